package policy

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// Clock 一天内的时刻（分钟）。
type Clock int

// ParseClock 解析 "HH:MM"。
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	return Clock(t.Hour()*60 + t.Minute()), nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Hours 营业时间策略：晚单判定、夜间禁止续时。
type Hours struct {
	Location        *time.Location
	LateCutoff      Clock
	AfterHoursStart Clock
	AfterHoursEnd   Clock
}

// NewHours 从配置字符串构造。
func NewHours(tz, lateCutoff, afterStart, afterEnd string) (Hours, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Hours{}, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	h := Hours{Location: loc}
	if h.LateCutoff, err = ParseClock(lateCutoff); err != nil {
		return Hours{}, err
	}
	if h.AfterHoursStart, err = ParseClock(afterStart); err != nil {
		return Hours{}, err
	}
	if h.AfterHoursEnd, err = ParseClock(afterEnd); err != nil {
		return Hours{}, err
	}
	return h, nil
}

func (h Hours) local(t time.Time) Clock {
	lt := t.In(h.Location)
	return Clock(lt.Hour()*60 + lt.Minute())
}

// IsLateOrder 本地时间在 [LateCutoff, AfterHoursEnd) 内下的单为晚单。
func (h Hours) IsLateOrder(t time.Time) bool {
	return within(h.local(t), h.LateCutoff, h.AfterHoursEnd)
}

// IsAfterHours 本地时间在 [AfterHoursStart, AfterHoursEnd) 内，禁止续时。
func (h Hours) IsAfterHours(t time.Time) bool {
	return within(h.local(t), h.AfterHoursStart, h.AfterHoursEnd)
}

// within 支持跨午夜的区间。
func within(c, from, to Clock) bool {
	if from == to {
		return false
	}
	if from < to {
		return c >= from && c < to
	}
	return c >= from || c < to
}
