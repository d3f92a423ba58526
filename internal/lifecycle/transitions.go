package lifecycle

// Action 客户端可以请求的两个动作。
type Action string

const (
	ActionCancel         Action = "cancel"
	ActionReadyForPickup Action = "ready_for_pickup"
)

// clientActions 客户端动作 -> 允许的状态集合。
var clientActions = map[Action][]Status{
	ActionCancel:         {StatusNew, StatusConfirmed, StatusOnTheWay},
	ActionReadyForPickup: {StatusSessionActive, StatusSessionEnding},
}

// clientActionTargets 动作成功后的目标状态。
var clientActionTargets = map[Action]Status{
	ActionCancel:         StatusCanceled,
	ActionReadyForPickup: StatusWaitingForPickup,
}

// serverTransitions 服务端推进表。CANCELED 对所有非终态可达，单独处理。
var serverTransitions = map[Status][]Status{
	StatusNew:              {StatusConfirmed},
	StatusConfirmed:        {StatusOnTheWay},
	StatusOnTheWay:         {StatusDelivered},
	StatusDelivered:        {StatusSessionActive},
	StatusSessionActive:    {StatusSessionEnding, StatusWaitingForPickup, StatusCompleted},
	StatusSessionEnding:    {StatusSessionActive, StatusWaitingForPickup, StatusCompleted},
	StatusWaitingForPickup: {StatusSessionActive, StatusCompleted},
}

// ClientAllows 判断某状态下客户端是否可以发起动作。
func ClientAllows(s Status, a Action) bool {
	for _, st := range clientActions[a] {
		if st == s {
			return true
		}
	}
	return false
}

// ClientActions 返回某状态下客户端可见的动作，顺序固定。
func ClientActions(s Status) []Action {
	var out []Action
	for _, a := range []Action{ActionCancel, ActionReadyForPickup} {
		if ClientAllows(s, a) {
			out = append(out, a)
		}
	}
	return out
}

// AllowedFrom 返回允许发起动作的状态集合（拷贝）。
func AllowedFrom(a Action) []Status {
	return append([]Status(nil), clientActions[a]...)
}

// Target 动作成功后的状态。
func Target(a Action) (Status, bool) {
	s, ok := clientActionTargets[a]
	return s, ok
}

// CanTransition 服务端状态推进校验。
func CanTransition(from, to Status) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StatusCanceled {
		return true
	}
	for _, st := range serverTransitions[from] {
		if st == to {
			return true
		}
	}
	return false
}
