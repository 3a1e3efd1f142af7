package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-seat-hold-booking/internal/api"
	"github.com/sanosuguru/go-seat-hold-booking/internal/application"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/event"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/hold"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/payment"
	"github.com/sanosuguru/go-seat-hold-booking/internal/domain/seat"
)

// レスポンスの kind
const (
	KindSeatsUnavailable  = "SeatsUnavailable"
	KindSeatsBusy         = "SeatsBusy"
	KindHoldNotActive     = "HoldNotActive"
	KindExtensionUsed     = "ExtensionUsed"
	KindPaymentInProgress = "PaymentInProgress"
	KindAlreadyCommitted  = "AlreadyCommitted"
	KindPaymentMismatch   = "PaymentMismatch"
	KindNotFound          = "NotFound"
	KindConflict          = "Conflict"
)

var validationErrors = []error{
	hold.ErrEventIDRequired,
	hold.ErrOwnerRequired,
	hold.ErrSeatIDsRequired,
	hold.ErrTooManySeats,
	payment.ErrReferenceRequired,
	payment.ErrInvalidReference,
	seat.ErrEventIDRequired,
	seat.ErrSeatIDsRequired,
	seat.ErrSeatIDRequired,
	seat.ErrInvalidPrice,
	event.ErrEventIDRequired,
	event.ErrSeatIDRequired,
	event.ErrDuplicateSeatID,
	event.ErrInvalidPrice,
	event.ErrNoSeats,
	event.ErrEventIDMismatch,
}

// mapError はサービスのエラーを HTTP のエラーに変換する
func mapError(err error) error {
	switch {
	case errors.Is(err, application.ErrSeatsUnavailable), errors.Is(err, seat.ErrSeatNotAvailable):
		return api.NewHTTPError(http.StatusConflict, KindSeatsUnavailable, application.ErrSeatsUnavailable.Error())
	case errors.Is(err, application.ErrSeatsBusy):
		return api.NewHTTPError(http.StatusConflict, KindSeatsBusy, application.ErrSeatsBusy.Error())
	case errors.Is(err, seat.ErrSeatNotFound),
		errors.Is(err, hold.ErrHoldNotFound),
		errors.Is(err, payment.ErrPaymentNotFound),
		errors.Is(err, event.ErrSeatMapNotFound):
		return api.NewHTTPError(http.StatusNotFound, KindNotFound, err.Error())
	case errors.Is(err, hold.ErrHoldNotActive),
		errors.Is(err, hold.ErrHoldExpired),
		errors.Is(err, hold.ErrHoldAlreadyTerminal),
		errors.Is(err, application.ErrPaymentFailed):
		return api.NewHTTPError(http.StatusConflict, KindHoldNotActive, err.Error())
	case errors.Is(err, hold.ErrHoldExtensionUsed):
		return api.NewHTTPError(http.StatusConflict, KindExtensionUsed, err.Error())
	case errors.Is(err, payment.ErrPaymentInProgress):
		return api.NewHTTPError(http.StatusConflict, KindPaymentInProgress, err.Error())
	case errors.Is(err, application.ErrAlreadyCommitted):
		return api.NewHTTPError(http.StatusConflict, KindAlreadyCommitted, err.Error())
	case errors.Is(err, application.ErrPaymentMismatch):
		return api.NewHTTPError(http.StatusConflict, KindPaymentMismatch, err.Error())
	case errors.Is(err, hold.ErrVersionConflict), errors.Is(err, payment.ErrVersionConflict):
		return api.NewHTTPError(http.StatusConflict, KindConflict, err.Error())
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return api.NewHTTPError(http.StatusBadRequest, api.KindValidationFailed, err.Error())
		}
	}
	// 内部エラーは CustomHTTPErrorHandler で500としてログに残る
	return err
}

func badRequest(message string) *echo.HTTPError {
	return api.NewHTTPError(http.StatusBadRequest, api.KindValidationFailed, message)
}
