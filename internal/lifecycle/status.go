package lifecycle

import "fmt"

// Status 订单状态，服务端是唯一权威。
type Status string

const (
	StatusNew              Status = "NEW"
	StatusConfirmed        Status = "CONFIRMED"
	StatusOnTheWay         Status = "ON_THE_WAY"
	StatusDelivered        Status = "DELIVERED"
	StatusSessionActive    Status = "SESSION_ACTIVE"
	StatusSessionEnding    Status = "SESSION_ENDING"
	StatusWaitingForPickup Status = "WAITING_FOR_PICKUP"
	StatusCompleted        Status = "COMPLETED"
	StatusCanceled         Status = "CANCELED"
)

// All 按生命周期顺序列出全部状态。
var All = []Status{
	StatusNew,
	StatusConfirmed,
	StatusOnTheWay,
	StatusDelivered,
	StatusSessionActive,
	StatusSessionEnding,
	StatusWaitingForPickup,
	StatusCompleted,
	StatusCanceled,
}

// ParseStatus 校验并转换外部传入的状态字符串。
func ParseStatus(s string) (Status, error) {
	for _, st := range All {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// IsTimed 表示该状态下展示会话倒计时。
func (s Status) IsTimed() bool {
	return s == StatusSessionActive || s == StatusSessionEnding
}

// HoldsUnits 非终态订单都占用设备。
func (s Status) HoldsUnits() bool {
	return !s.IsTerminal()
}

// UnitHolding 占用设备的状态集合，供查询使用。
func UnitHolding() []Status {
	out := make([]Status, 0, len(All))
	for _, s := range All {
		if s.HoldsUnits() {
			out = append(out, s)
		}
	}
	return out
}

// Category 展示分类，九个状态映射到四类。
type Category string

const (
	CategoryPending         Category = "pending"
	CategoryActive          Category = "active"
	CategoryTerminalSuccess Category = "terminal-success"
	CategoryTerminalFailure Category = "terminal-failure"
)

type display struct {
	category Category
	labels   map[string]string
}

// 状态展示映射是数据，不是分支逻辑。
var displays = map[Status]display{
	StatusNew:              {CategoryPending, map[string]string{"ru": "Новый", "en": "New"}},
	StatusConfirmed:        {CategoryPending, map[string]string{"ru": "Подтвержден", "en": "Confirmed"}},
	StatusOnTheWay:         {CategoryPending, map[string]string{"ru": "В пути", "en": "On the way"}},
	StatusDelivered:        {CategoryActive, map[string]string{"ru": "Доставлен", "en": "Delivered"}},
	StatusSessionActive:    {CategoryActive, map[string]string{"ru": "Сессия", "en": "Session"}},
	StatusSessionEnding:    {CategoryActive, map[string]string{"ru": "Завершается", "en": "Ending"}},
	StatusWaitingForPickup: {CategoryActive, map[string]string{"ru": "Ждем возврата", "en": "Pickup"}},
	StatusCompleted:        {CategoryTerminalSuccess, map[string]string{"ru": "Завершен", "en": "Completed"}},
	StatusCanceled:         {CategoryTerminalFailure, map[string]string{"ru": "Отменен", "en": "Canceled"}},
}

// DefaultLanguage 未知语言回退。
const DefaultLanguage = "ru"

func (s Status) Category() Category {
	if d, ok := displays[s]; ok {
		return d.category
	}
	return CategoryPending
}

// Label 返回本地化状态名；未知语言回退到 DefaultLanguage，未知状态原样返回。
func (s Status) Label(lang string) string {
	d, ok := displays[s]
	if !ok {
		return string(s)
	}
	if l, ok := d.labels[lang]; ok {
		return l
	}
	return d.labels[DefaultLanguage]
}
