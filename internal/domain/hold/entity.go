package hold

import "time"

// Status は仮押さえの状態を表す
type Status string

const (
	StatusActive    Status = "active"
	StatusCommitted Status = "committed"
	StatusReleased  Status = "released"
	StatusExpired   Status = "expired"
)

// DefaultTTL は仮押さえの有効期間（デフォルト10分）
const DefaultTTL = 10 * time.Minute

// IsTerminal は終端状態かを返す
func (s Status) IsTerminal() bool {
	return s != StatusActive
}

// Hold は座席集合に対する時間制限付きの排他的な仮押さえを表す
// 状態が変わるたびに Version が増え、保存は読み取った Version と一致した場合のみ成功する
type Hold struct {
	ID             string
	EventID        string
	SeatIDs        []string
	Owner          string
	IdempotencyKey string
	Amount         int
	Status         Status
	Extended       bool
	PaymentID      *string
	BookingID      *string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	UpdatedAt      time.Time
	Version        int
}

// NewHold は新しい仮押さえを作成する
func NewHold(id, eventID, owner, idempotencyKey string, seatIDs []string, now time.Time, ttl time.Duration) *Hold {
	return &Hold{
		ID:             id,
		EventID:        eventID,
		SeatIDs:        seatIDs,
		Owner:          owner,
		IdempotencyKey: idempotencyKey,
		Status:         StatusActive,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
		UpdatedAt:      now,
	}
}

// IsActive はアクティブかを返す
func (h *Hold) IsActive() bool {
	return h.Status == StatusActive
}

// IsExpiredAt は now 時点で有効期限を過ぎているかを返す
func (h *Hold) IsExpiredAt(now time.Time) bool {
	return !now.Before(h.ExpiresAt)
}

// CanCommitAt は now 時点で確定可能かを返す
func (h *Hold) CanCommitAt(now time.Time) bool {
	return h.IsActive() && !h.IsExpiredAt(now)
}

// Extend は有効期限を一度だけ延長する
func (h *Hold) Extend(now time.Time, d time.Duration) error {
	if !h.IsActive() {
		return ErrHoldAlreadyTerminal
	}
	if h.IsExpiredAt(now) {
		return ErrHoldExpired
	}
	if h.Extended {
		return ErrHoldExtensionUsed
	}
	h.Extended = true
	h.ExpiresAt = h.ExpiresAt.Add(d)
	h.touch(now)
	return nil
}

// AttachPayment は支払いを紐付ける
func (h *Hold) AttachPayment(paymentID string, now time.Time) error {
	if !h.CanCommitAt(now) {
		return ErrHoldNotActive
	}
	h.PaymentID = &paymentID
	h.touch(now)
	return nil
}

// DetachPayment は paymentID の紐付けを外して previous に戻す
// 紐付いているのが別の支払いなら何もせず false を返す
func (h *Hold) DetachPayment(paymentID string, previous *string, now time.Time) bool {
	if h.PaymentID == nil || *h.PaymentID != paymentID {
		return false
	}
	h.PaymentID = previous
	h.touch(now)
	return true
}

// Commit は active から committed へ遷移する
func (h *Hold) Commit(bookingID string, now time.Time) error {
	if !h.IsActive() {
		return ErrHoldAlreadyTerminal
	}
	if h.IsExpiredAt(now) {
		return ErrHoldExpired
	}
	h.Status = StatusCommitted
	h.BookingID = &bookingID
	h.touch(now)
	return nil
}

// Release は active から released へ遷移する
func (h *Hold) Release(now time.Time) error {
	if !h.IsActive() {
		return ErrHoldAlreadyTerminal
	}
	h.Status = StatusReleased
	h.touch(now)
	return nil
}

// Expire は期限切れの active を expired へ遷移する
func (h *Hold) Expire(now time.Time) error {
	if !h.IsActive() {
		return ErrHoldAlreadyTerminal
	}
	if !h.IsExpiredAt(now) {
		return ErrHoldNotExpired
	}
	h.Status = StatusExpired
	h.touch(now)
	return nil
}

func (h *Hold) touch(now time.Time) {
	h.UpdatedAt = now
	h.Version++
}

// Clone は仮押さえのコピーを返す
func (h *Hold) Clone() *Hold {
	c := *h
	c.SeatIDs = append([]string(nil), h.SeatIDs...)
	if h.PaymentID != nil {
		v := *h.PaymentID
		c.PaymentID = &v
	}
	if h.BookingID != nil {
		v := *h.BookingID
		c.BookingID = &v
	}
	return &c
}

// Validate は仮押さえの検証を行う
func (h *Hold) Validate() error {
	if h.EventID == "" {
		return ErrEventIDRequired
	}
	if h.Owner == "" {
		return ErrOwnerRequired
	}
	if len(h.SeatIDs) == 0 {
		return ErrSeatIDsRequired
	}
	return nil
}
