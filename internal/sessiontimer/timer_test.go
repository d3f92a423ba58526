package sessiontimer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "1:30:00", Format(5400*time.Second))
	assert.Equal(t, "0:00:00", Format(0))
	assert.Equal(t, "0:00:00", Format(-time.Minute))
	assert.Equal(t, "0:59:59", Format(time.Hour-time.Second))
	assert.Equal(t, "12:00:01", Format(12*time.Hour+time.Second))
}

func TestFormatCompact(t *testing.T) {
	assert.Equal(t, "1:30:00", FormatCompact(5400*time.Second))
	assert.Equal(t, "59:59", FormatCompact(time.Hour-time.Second))
	assert.Equal(t, "00:05", FormatCompact(5*time.Second))
	assert.Equal(t, "00:00", FormatCompact(0))
}

func TestRemaining_HoldsAtZero(t *testing.T) {
	start := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	endsAt := start.Add(5400 * time.Second)

	assert.Equal(t, "1:30:00", Format(Remaining(endsAt, start)))
	assert.Equal(t, "0:00:00", Format(Remaining(endsAt, start.Add(5400*time.Second))))
	assert.Equal(t, time.Duration(0), Remaining(endsAt, start.Add(2*time.Hour)))
}

func TestRemaining_TruncatesSubSecond(t *testing.T) {
	now := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, 10*time.Second, Remaining(now.Add(10*time.Second+400*time.Millisecond), now))
}

func TestCompute_CarriesPolicy(t *testing.T) {
	now := time.Now()
	p := Policy{FreeExtensionUsed: true, IsLateOrder: true}
	tick := Compute(now.Add(-time.Minute), now, p)

	assert.True(t, tick.Expired)
	assert.Equal(t, p, tick.Policy)
	assert.Equal(t, "0:00:00", tick.Display)
}

func TestTimer_RunTicksAndStops(t *testing.T) {
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := base

	ch := make(chan time.Time)
	stopped := make(chan struct{})
	tm := New(base.Add(3*time.Second), Policy{})
	tm.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	}
	tm.ticker = func(time.Duration) (<-chan time.Time, func()) {
		return ch, func() { close(stopped) }
	}

	ticks := make(chan string, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tm.Run(ctx, func(tk Tick) { ticks <- tk.Display })
		close(done)
	}()

	// 每次回调完成后再拨动时钟
	got := []string{<-ticks}
	for i := 0; i < 5; i++ {
		mu.Lock()
		clock = clock.Add(time.Second)
		now := clock
		mu.Unlock()
		ch <- now
		got = append(got, <-ticks)
	}
	cancel()
	<-done
	<-stopped

	assert.Equal(t, []string{"0:00:03", "0:00:02", "0:00:01", "0:00:00", "0:00:00", "0:00:00"}, got)
}
