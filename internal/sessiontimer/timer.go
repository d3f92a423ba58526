package sessiontimer

import (
	"context"
	"fmt"
	"time"
)

// Cadence 倒计时重算频率。
const Cadence = time.Second

// Policy 由服务端下发的会话策略标记，计时器只透传、从不修改。
type Policy struct {
	FreeExtensionUsed bool `json:"free_extension_used"`
	IsLateOrder       bool `json:"is_late_order"`
}

// Window 会话时间窗，两端时间戳来自服务端。
type Window struct {
	StartedAt time.Time
	EndsAt    time.Time
}

// Remaining 返回 max(0, endsAt-now)，截断到秒。
func Remaining(endsAt, now time.Time) time.Duration {
	d := endsAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return d.Truncate(time.Second)
}

func (w Window) Remaining(now time.Time) time.Duration {
	return Remaining(w.EndsAt, now)
}

// Format 输出 H:MM:SS。
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

// FormatCompact 不足一小时时省略小时位（MM:SS）。
func FormatCompact(d time.Duration) string {
	if d >= time.Hour {
		return Format(d)
	}
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// Tick 每次重算的结果。Expired 只表示倒计时归零，不代表状态变化。
type Tick struct {
	Remaining time.Duration
	Display   string
	Compact   string
	Expired   bool
	Policy    Policy
}

// Compute 单次重算。
func Compute(endsAt, now time.Time, p Policy) Tick {
	r := Remaining(endsAt, now)
	return Tick{
		Remaining: r,
		Display:   Format(r),
		Compact:   FormatCompact(r),
		Expired:   r == 0,
		Policy:    p,
	}
}

// Timer 以 1Hz 重算剩余时间，归零后保持为零，等待服务端推进状态。
type Timer struct {
	endsAt time.Time
	policy Policy

	now    func() time.Time
	ticker func(time.Duration) (<-chan time.Time, func())
}

func New(endsAt time.Time, p Policy) *Timer {
	return &Timer{endsAt: endsAt, policy: p, now: time.Now, ticker: realTicker}
}

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Current 当前时刻的 Tick。
func (t *Timer) Current() Tick {
	return Compute(t.endsAt, t.now(), t.policy)
}

// Run 立即回调一次，此后每秒回调，直到 ctx 结束（视图卸载）。
func (t *Timer) Run(ctx context.Context, onTick func(Tick)) {
	c, stop := t.ticker(Cadence)
	defer stop()

	onTick(t.Current())
	for {
		select {
		case <-ctx.Done():
			return
		case <-c:
			onTick(t.Current())
		}
	}
}
