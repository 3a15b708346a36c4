package pending

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/gatekeeper/gate/config"
)

func TestStorePutGetRemove(t *testing.T) {
	s := NewStore()

	_, ok := s.Get(55)
	assert.False(t, ok)

	s.Put(55, State{ChatID: 100, UserID: 55, Mode: config.ModeEquation, Expected: 7})
	st, ok := s.Get(55)
	require.True(t, ok)
	assert.Equal(t, 7, st.Expected)
	assert.Equal(t, 1, s.Len())

	s.Put(55, State{ChatID: 100, UserID: 55, Mode: config.ModeEquation, Expected: 11})
	st, _ = s.Get(55)
	assert.Equal(t, 11, st.Expected, "last request wins")
	assert.Equal(t, 1, s.Len())

	s.Remove(55)
	s.Remove(55)
	_, ok = s.Get(55)
	assert.False(t, ok)
	assert.Zero(t, s.Len())
}

func TestStoreIssuedBefore(t *testing.T) {
	s := NewStore()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s.Put(1, State{UserID: 1, IssuedAt: base.Add(-3 * time.Minute)})
	s.Put(2, State{UserID: 2, IssuedAt: base.Add(-10 * time.Minute)})
	s.Put(3, State{UserID: 3, IssuedAt: base})

	assert.Equal(t, []int64{2, 1}, s.IssuedBefore(base.Add(-time.Minute)))
	assert.Empty(t, s.IssuedBefore(base.Add(-time.Hour)))
}

func TestStoreLockSerializesSameUser(t *testing.T) {
	s := NewStore()
	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := s.Lock(42)
			defer unlock()
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxSeen.Load())

	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	assert.Empty(t, s.locks, "released locks are dropped")
}

func TestStoreLockDoesNotBlockOtherUsers(t *testing.T) {
	s := NewStore()
	unlock := s.Lock(1)
	defer unlock()

	done := make(chan struct{})
	go func() {
		release := s.Lock(2)
		release()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock for user 2 blocked behind user 1")
	}
}
