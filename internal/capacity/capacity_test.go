package capacity

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCap(t *testing.T) {
	assert.Equal(t, uint(2), Snapshot{Available: 2, MaxPerOrder: 3}.Cap())
	assert.Equal(t, uint(3), Snapshot{Available: 5, MaxPerOrder: 3}.Cap())
	assert.Equal(t, uint(0), Snapshot{Available: 0, MaxPerOrder: 3}.Cap())
}

func TestAdmit(t *testing.T) {
	pool := Snapshot{Available: 2, MaxPerOrder: 3}

	assert.Equal(t, Allow, Admit(1, 0, pool))
	assert.Equal(t, Allow, Admit(1, 1, pool))
	assert.Equal(t, Deny, Admit(1, 2, pool))
	assert.Equal(t, Deny, Admit(2, 1, pool))
	assert.Equal(t, Allow, Admit(-1, 2, pool))
	assert.Equal(t, Deny, Admit(-1, 0, pool))
}

func TestAdmit_DecrementAllowedAboveCap(t *testing.T) {
	// 快照刷新后 cap 变小，减少仍然允许
	pool := Snapshot{Available: 1, MaxPerOrder: 3}
	assert.Equal(t, Allow, Admit(-1, 3, pool))
	assert.Equal(t, Deny, Admit(1, 3, pool))
}

func TestAdmit_SoldOutIsDistinct(t *testing.T) {
	pool := Snapshot{Available: 0, MaxPerOrder: 3}
	assert.True(t, pool.SoldOut())
	assert.Equal(t, SoldOut, Admit(1, 0, pool))
	assert.Equal(t, Allow, Admit(-1, 1, pool))
}

func TestAdmit_NeverExceedsCap(t *testing.T) {
	for avail := uint(0); avail <= 6; avail++ {
		for max := uint(0); max <= 4; max++ {
			pool := Snapshot{Available: avail, MaxPerOrder: max}
			total := uint(0)
			for i := 0; i < 10; i++ {
				if Admit(1, total, pool) == Allow {
					total++
				}
			}
			assert.LessOrEqual(t, total, pool.Cap(), "pool=%+v", pool)
			assert.Equal(t, pool.Cap(), total, "pool=%+v", pool)
		}
	}
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "allow", Allow.String())
	assert.Equal(t, "deny", Deny.String())
	assert.Equal(t, "sold_out", SoldOut.String())
}

type stubSource struct {
	calls atomic.Int32
	snap  Snapshot
	err   error
}

func (s *stubSource) Availability(context.Context) (Snapshot, error) {
	s.calls.Add(1)
	return s.snap, s.err
}

func TestRefresh_KeepsOldSnapshotOnError(t *testing.T) {
	tr := NewTracker()
	tr.Update(Snapshot{Available: 4, MaxPerOrder: 3}, time.Now())

	src := &stubSource{err: errors.New("boom")}
	got, err := Refresh(context.Background(), src, tr, time.Now)
	require.Error(t, err)
	assert.Equal(t, uint(4), got.Available)
	assert.Equal(t, uint(4), tr.Snapshot().Available)
}

func TestTracker_NotLoaded(t *testing.T) {
	tr := NewTracker()
	_, loaded := tr.FetchedAt()
	assert.False(t, loaded)
	assert.True(t, tr.Snapshot().SoldOut())
}

func TestPoller_RunStopsOnCancel(t *testing.T) {
	src := &stubSource{snap: Snapshot{Available: 3, MaxPerOrder: 3}}
	tr := NewTracker()
	p := NewPoller(src, tr, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return src.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
	assert.Equal(t, uint(3), tr.Snapshot().Available)
}
