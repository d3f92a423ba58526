package redis

import "fmt"

// UnitsInUseKey 当前被非终态订单占用的设备数。
func UnitsInUseKey() string {
	return "hookah:pool:in_use"
}

// ReleaseMarkerKey 标记某订单是否已归还设备。
func ReleaseMarkerKey(orderID string) string {
	return fmt.Sprintf("hookah:pool:released:%s", orderID)
}

// ActiveOrderLockKey 标记某身份是否已有进行中的订单。
func ActiveOrderLockKey(identity string) string {
	return fmt.Sprintf("hookah:order:active:%s", identity)
}

// RateLimitKey 下单接口限流键。
func RateLimitKey(kind, id string) string {
	return fmt.Sprintf("rate_limit:orders:%s:%s", kind, id)
}
