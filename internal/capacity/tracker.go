package capacity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Tracker 保存最新的池快照，轮询协程写、购物车读。
type Tracker struct {
	mu        sync.RWMutex
	snap      Snapshot
	fetchedAt time.Time
	loaded    bool
}

func NewTracker() *Tracker { return &Tracker{} }

// Snapshot 未加载前返回零值（即售罄）。
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}

func (t *Tracker) Update(s Snapshot, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap = s
	t.fetchedAt = at
	t.loaded = true
}

// FetchedAt 返回最近一次更新时间，loaded=false 表示从未拉取成功。
func (t *Tracker) FetchedAt() (at time.Time, loaded bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fetchedAt, t.loaded
}

// AvailabilitySource 可用设备数的来源（一般是后端 API）。
type AvailabilitySource interface {
	Availability(ctx context.Context) (Snapshot, error)
}

// Refresh 拉取一次并写入 tracker。失败时保留旧值。
func Refresh(ctx context.Context, src AvailabilitySource, t *Tracker, now func() time.Time) (Snapshot, error) {
	s, err := src.Availability(ctx)
	if err != nil {
		return t.Snapshot(), err
	}
	t.Update(s, now())
	return s, nil
}

// Poller 周期刷新快照，ctx 取消即退出。
type Poller struct {
	src      AvailabilitySource
	tracker  *Tracker
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewPoller(src AvailabilitySource, tracker *Tracker, interval time.Duration, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{src: src, tracker: tracker, interval: interval, logger: logger, now: time.Now}
}

// Run 立即刷新一次，然后按 interval 刷新，直到 ctx 结束。
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	if _, err := Refresh(ctx, p.src, p.tracker, p.now); err != nil && ctx.Err() == nil {
		p.logger.Warn("availability refresh failed", zap.Error(err))
	}
}
