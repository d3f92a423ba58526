package capacity

// Snapshot 是设备池的一次读数，只作参考，提交时以服务端为准。
type Snapshot struct {
	Available   uint `json:"available"`
	MaxPerOrder uint `json:"max_per_order"`
}

// Cap = min(max_per_order, available)
func (s Snapshot) Cap() uint {
	if s.Available < s.MaxPerOrder {
		return s.Available
	}
	return s.MaxPerOrder
}

// SoldOut 与 cap 为 0 不同：整个下单流程关闭。
func (s Snapshot) SoldOut() bool {
	return s.Available == 0
}

// Decision 本地准入结果。
type Decision int

const (
	Allow Decision = iota
	Deny
	SoldOut
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	case SoldOut:
		return "sold_out"
	default:
		return "unknown"
	}
}

// Admit 判断购物车设备数变化 delta 后是否仍在 cap 内。
// 减少永远允许（直到 0）；售罄时任何增加都返回 SoldOut。
func Admit(delta int, currentTotal uint, pool Snapshot) Decision {
	next := int64(currentTotal) + int64(delta)
	if next < 0 {
		return Deny
	}
	if delta <= 0 {
		return Allow
	}
	if pool.SoldOut() {
		return SoldOut
	}
	if uint64(next) > uint64(pool.Cap()) {
		return Deny
	}
	return Allow
}
