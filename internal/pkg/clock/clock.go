package clock

import (
	"sync"
	"time"
)

// Clock は現在時刻を提供する
type Clock interface {
	Now() time.Time
}

// Real はシステム時刻を返すClock
type Real struct{}

// Now は現在時刻を返す
func (Real) Now() time.Time {
	return time.Now()
}

// Fake はテスト用の仮想時計
// Advance で進めた分だけ時刻が経過する
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake は指定時刻から始まる仮想時計を作成する
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance は時刻を d だけ進める
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Set は時刻を t に設定する
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}
