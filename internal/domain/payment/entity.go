package payment

import (
	"regexp"
	"time"
)

// Status は支払いの状態を表す
type Status string

const (
	StatusPending   Status = "pending"
	StatusVerifying Status = "verifying"
	StatusVerified  Status = "verified"
	StatusRejected  Status = "rejected"
	StatusExpired   Status = "expired"
)

// IsTerminal は終端状態かを返す
func (s Status) IsTerminal() bool {
	switch s {
	case StatusVerified, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// 拒否・タイムアウトの理由
const (
	ReasonRejected = "rejected"
	ReasonTimeout  = "verification_timeout"
	ReasonHoldLost = "hold_lost"
)

var referencePattern = regexp.MustCompile(`^[A-Za-z0-9]{6,35}$`)

// Payment は仮押さえに対して提出された送金参照番号と検証状態を表す
type Payment struct {
	ID          string
	HoldID      string
	Reference   string
	Status      Status
	Reason      string
	NeedsReview bool // 検証済みだが座席を確保できなかった
	SubmittedAt time.Time
	VerifyingAt *time.Time
	ResolvedAt  *time.Time
	UpdatedAt   time.Time
	Version     int
}

// NewPayment は pending の支払いを作成する
func NewPayment(id, holdID, reference string, now time.Time) *Payment {
	return &Payment{
		ID:          id,
		HoldID:      holdID,
		Reference:   reference,
		Status:      StatusPending,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
}

// ValidateReference は参照番号の形式を検証する
// 有効性の判定は外部の決済連携が行う
func ValidateReference(ref string) error {
	if ref == "" {
		return ErrReferenceRequired
	}
	if !referencePattern.MatchString(ref) {
		return ErrInvalidReference
	}
	return nil
}

// MarkVerifying は pending から verifying へ遷移する
func (p *Payment) MarkVerifying(now time.Time) error {
	if p.Status != StatusPending {
		if p.Status == StatusVerifying {
			return ErrAlreadyVerifying
		}
		return ErrPaymentAlreadyResolved
	}
	p.Status = StatusVerifying
	p.VerifyingAt = &now
	p.touch(now)
	return nil
}

// Verify は検証済みにする
// holdLost の場合は座席を確保できなかったため要確認として記録する
func (p *Payment) Verify(now time.Time, holdLost bool) error {
	if holdLost {
		return p.resolve(StatusVerified, ReasonHoldLost, true, now)
	}
	return p.resolve(StatusVerified, "", false, now)
}

// Reject は拒否済みにする
func (p *Payment) Reject(reason string, now time.Time) error {
	return p.resolve(StatusRejected, reason, false, now)
}

// Expire は期限切れにする
func (p *Payment) Expire(reason string, now time.Time) error {
	return p.resolve(StatusExpired, reason, false, now)
}

func (p *Payment) resolve(to Status, reason string, needsReview bool, now time.Time) error {
	if p.Status.IsTerminal() {
		return ErrPaymentAlreadyResolved
	}
	p.Status = to
	p.Reason = reason
	p.NeedsReview = needsReview
	p.ResolvedAt = &now
	p.touch(now)
	return nil
}

// IsStaleAt は検証待ちのまま timeout を超えたかを返す
func (p *Payment) IsStaleAt(now time.Time, timeout time.Duration) bool {
	return !p.Status.IsTerminal() && !now.Before(p.SubmittedAt.Add(timeout))
}

func (p *Payment) touch(now time.Time) {
	p.UpdatedAt = now
	p.Version++
}

// Clone は支払いのコピーを返す
func (p *Payment) Clone() *Payment {
	c := *p
	if p.VerifyingAt != nil {
		v := *p.VerifyingAt
		c.VerifyingAt = &v
	}
	if p.ResolvedAt != nil {
		v := *p.ResolvedAt
		c.ResolvedAt = &v
	}
	return &c
}
