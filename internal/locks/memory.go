package locks

import (
	"context"
	"sync"
	"time"
)

type slot struct {
	ch   chan struct{}
	refs int
}

// Memory is an in-process keyed mutex. Slots are dropped once nobody holds or waits for them.
type Memory struct {
	wait  time.Duration
	mu    sync.Mutex
	slots map[int64]*slot
}

func NewMemory(wait time.Duration) *Memory {
	return &Memory{wait: wait, slots: make(map[int64]*slot)}
}

func (m *Memory) acquireSlot(key int64) *slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		m.slots[key] = s
	}
	s.refs++
	return s
}

func (m *Memory) releaseSlot(key int64, s *slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(m.slots, key)
	}
}

func (m *Memory) Lock(ctx context.Context, key int64) (func(), error) {
	s := m.acquireSlot(key)
	waitCtx, cancel := withWait(ctx, m.wait)
	defer cancel()

	select {
	case s.ch <- struct{}{}:
	case <-waitCtx.Done():
		m.releaseSlot(key, s)
		return nil, timeoutErr(ctx)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			m.releaseSlot(key, s)
		})
	}, nil
}

// held reports how many keys currently have holders or waiters.
func (m *Memory) held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}
