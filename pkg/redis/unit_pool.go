package redis

import (
	"context"
	"errors"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// luaAcquireUnits：Redis 内原子「读占用 → 判断 ≤ 总量且 ≤ 单笔上限 → INCRBY」
// KEYS[1]=占用key，ARGV[1]=数量，ARGV[2]=总量，ARGV[3]=单笔上限
// 返回占用后的剩余可用数，不足返回 -1，超单笔上限返回 -2
const luaAcquireUnits = `
local key = KEYS[1]
local n = tonumber(ARGV[1])
local total = tonumber(ARGV[2])
local maxPer = tonumber(ARGV[3])
if n > maxPer then
  return -2
end
local inUse = tonumber(redis.call('GET', key) or '0')
if inUse + n <= total then
  local now = redis.call('INCRBY', key, n)
  return total - now
else
  return -1
end
`

// luaReleaseUnitsOnce 通过 SETNX 标记保证「同一订单只归还一次」，占用数不减到负。
const luaReleaseUnitsOnce = `
local markKey = KEYS[1]
local key = KEYS[2]
local n = tonumber(ARGV[1])
local ttlSec = tonumber(ARGV[2])

if redis.call('SETNX', markKey, '1') == 1 then
  redis.call('EXPIRE', markKey, ttlSec)
  local inUse = tonumber(redis.call('GET', key) or '0')
  if inUse < n then
    n = inUse
  end
  redis.call('DECRBY', key, n)
  return 1
end
return 0
`

var (
	// ErrPoolExhausted 设备已被其他订单占满。
	ErrPoolExhausted = errors.New("unit pool exhausted")
	// ErrOverPerOrderCap 超过单笔上限。
	ErrOverPerOrderCap = errors.New("units exceed per-order cap")
)

// AcquireUnits 原子占用 n 台设备，返回剩余可用数。
func AcquireUnits(ctx context.Context, rdb *rd.Client, n, total, maxPerOrder int) (int64, error) {
	res, err := rdb.Eval(ctx, luaAcquireUnits, []string{UnitsInUseKey()}, n, total, maxPerOrder).Int64()
	if err != nil {
		return 0, err
	}
	switch {
	case res == -2:
		return 0, ErrOverPerOrderCap
	case res < 0:
		return 0, ErrPoolExhausted
	}
	return res, nil
}

// ReleaseUnitsOnce 幂等归还设备：
// - 首次归还返回 true
// - 重复归还返回 false（不会重复减占用）
func ReleaseUnitsOnce(ctx context.Context, rdb *rd.Client, orderID string, n int) (bool, error) {
	const markTTLSeconds = int64((7 * 24 * time.Hour) / time.Second)

	res, err := rdb.Eval(ctx, luaReleaseUnitsOnce, []string{ReleaseMarkerKey(orderID), UnitsInUseKey()}, n, markTTLSeconds).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// UnitsInUse 查询当前占用数，key 不存在视为 0。
func UnitsInUse(ctx context.Context, rdb *rd.Client) (int64, error) {
	v, err := rdb.Get(ctx, UnitsInUseKey()).Int64()
	if errors.Is(err, rd.Nil) {
		return 0, nil
	}
	return v, err
}

// SetUnitsInUse 用数据库重算结果覆盖占用数（启动或管理员触发）。
func SetUnitsInUse(ctx context.Context, rdb *rd.Client, n int64) error {
	return rdb.Set(ctx, UnitsInUseKey(), n, 0).Err()
}
