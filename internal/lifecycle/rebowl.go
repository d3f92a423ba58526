package lifecycle

import "fmt"

// RebowlStatus 换碗请求状态，由管理端推进。
type RebowlStatus string

const (
	RebowlRequested  RebowlStatus = "REQUESTED"
	RebowlInProgress RebowlStatus = "IN_PROGRESS"
	RebowlDone       RebowlStatus = "DONE"
	RebowlCanceled   RebowlStatus = "CANCELED"
)

var rebowlTransitions = map[RebowlStatus][]RebowlStatus{
	RebowlRequested:  {RebowlInProgress, RebowlCanceled},
	RebowlInProgress: {RebowlDone, RebowlCanceled},
}

func ParseRebowlStatus(s string) (RebowlStatus, error) {
	switch st := RebowlStatus(s); st {
	case RebowlRequested, RebowlInProgress, RebowlDone, RebowlCanceled:
		return st, nil
	}
	return "", fmt.Errorf("unknown rebowl status %q", s)
}

// IsOpen 每个订单同时最多一个未结束的换碗请求。
func (s RebowlStatus) IsOpen() bool {
	return s == RebowlRequested || s == RebowlInProgress
}

// OpenRebowl 未结束状态集合，供查询使用。
func OpenRebowl() []RebowlStatus {
	return []RebowlStatus{RebowlRequested, RebowlInProgress}
}

func CanTransitionRebowl(from, to RebowlStatus) bool {
	for _, st := range rebowlTransitions[from] {
		if st == to {
			return true
		}
	}
	return false
}

// RebowlAllowed 只有会话计时中才能申请换碗。
func RebowlAllowed(s Status) bool {
	return s.IsTimed()
}
