package id

import (
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// Generator は仮押さえ・支払い・予約のIDを払い出す
type Generator interface {
	NewID() string
}

// UUIDGenerator は UUIDv4 でIDを生成する
type UUIDGenerator struct{}

func NewUUIDGenerator() UUIDGenerator {
	return UUIDGenerator{}
}

func (UUIDGenerator) NewID() string {
	return uuid.New().String()
}

// Sequence は prefix-1, prefix-2, ... を返す（テスト用）
type Sequence struct {
	mu     sync.Mutex
	prefix string
	n      int
}

func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix}
}

func (s *Sequence) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return s.prefix + "-" + strconv.Itoa(s.n)
}
