// Package clock supplies logical time to the governance engines. Time is
// counted in seconds and never decreases.
package clock

import (
	"math"
	"sync"
)

type Clock interface {
	Now() uint64
}

// Manual is a clock driven explicitly by its owner, used by tests and tools.
type Manual struct {
	mtx sync.RWMutex
	now uint64
}

func NewManual(start uint64) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() uint64 {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return m.now
}

// Set moves the clock to t; earlier values are ignored.
func (m *Manual) Set(t uint64) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if t > m.now {
		m.now = t
	}
}

func (m *Manual) Advance(d uint64) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.now = SaturatingAdd(m.now, d)
}

// Block follows block header time. The ABCI app calls Set at the start of
// every block.
type Block struct {
	Manual
}

func NewBlock() *Block {
	return &Block{}
}

func SaturatingAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

// Elapsed reports whether at least d has passed between since and now.
func Elapsed(since, now, d uint64) bool {
	return now >= SaturatingAdd(since, d)
}
