package redis

import (
	"context"
	"strings"

	rd "github.com/redis/go-redis/v9"
)

// luaReleaseLockIfMatch 仅当锁值匹配 order_id 时才删除，避免误删新订单的锁。
const luaReleaseLockIfMatch = `
local lockKey = KEYS[1]
local orderID = ARGV[1]
if redis.call('GET', lockKey) == orderID then
  return redis.call('DEL', lockKey)
end
return 0
`

// AcquireActiveOrderLock 同一身份同时只能有一个进行中的订单。
// 返回 false 表示已被占用，holder 为当前持有者的 order_id。
func AcquireActiveOrderLock(ctx context.Context, rdb *rd.Client, identity, orderID string) (ok bool, holder string, err error) {
	key := ActiveOrderLockKey(identity)
	ok, err = rdb.SetNX(ctx, key, orderID, 0).Result()
	if err != nil || ok {
		return ok, orderID, err
	}
	holder, err = rdb.Get(ctx, key).Result()
	if err == rd.Nil {
		return false, "", nil
	}
	return false, holder, err
}

// ForceActiveOrderLock 覆盖写入（重算时使用）。
func ForceActiveOrderLock(ctx context.Context, rdb *rd.Client, identity, orderID string) error {
	return rdb.Set(ctx, ActiveOrderLockKey(identity), orderID, 0).Err()
}

// ReleaseActiveOrderLockIfMatch 安全释放身份占位锁。
func ReleaseActiveOrderLockIfMatch(ctx context.Context, rdb *rd.Client, identity, orderID string) error {
	_, err := ReclaimActiveOrderLock(ctx, rdb, identity, orderID)
	return err
}

// ReclaimActiveOrderLock 与 ReleaseActiveOrderLockIfMatch 相同，但返回是否真的删除。
func ReclaimActiveOrderLock(ctx context.Context, rdb *rd.Client, identity, orderID string) (bool, error) {
	n, err := rdb.Eval(ctx, luaReleaseLockIfMatch, []string{ActiveOrderLockKey(identity)}, orderID).Int()
	return n == 1, err
}

// ActiveOrderLocks 扫描全部身份锁，identity -> order_id。
func ActiveOrderLocks(ctx context.Context, rdb *rd.Client) (map[string]string, error) {
	out := make(map[string]string)
	prefix := ActiveOrderLockKey("")
	iter := rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		orderID, err := rdb.Get(ctx, key).Result()
		if err == rd.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[strings.TrimPrefix(key, prefix)] = orderID
	}
	return out, iter.Err()
}
