package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	rediskey "hookah_delivery/pkg/redis"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// luaRateLimit：Redis 滑动窗口限流 Lua 脚本（原子操作）
// KEYS[1]=限流key，ARGV[1]=当前时间戳(ms)，ARGV[2]=窗口开始时间戳(ms)，ARGV[3]=窗口秒数，
// ARGV[4]=member，ARGV[5]=limit
// 返回：当前窗口内的请求数（超限返回 -1）
const luaRateLimit = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local windowStart = tonumber(ARGV[2])
local windowSec = tonumber(ARGV[3])
local member = ARGV[4]

-- 删除窗口外的旧记录
redis.call('ZREMRANGEBYSCORE', key, '0', windowStart)

local count = redis.call('ZCARD', key)
if count < tonumber(ARGV[5]) then
  redis.call('ZADD', key, now, member)
  redis.call('EXPIRE', key, windowSec)
  return count + 1
else
  return -1
end
`

// RedisRateLimit 按身份限流（body 中的 identity），解析失败时按 IP。
func RedisRateLimit(rdb *rd.Client, limit int, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	windowSec := int64(window / time.Second)
	if windowSec < 1 {
		windowSec = 1
	}
	return func(c *gin.Context) {
		var key string
		if identity := extractIdentity(c); identity != "" {
			key = rediskey.RateLimitKey("identity", identity)
		} else {
			key = rediskey.RateLimitKey("ip", c.ClientIP())
		}

		now := time.Now()
		nowMs := now.UnixMilli()
		windowStart := nowMs - windowSec*1000
		member := fmt.Sprintf("%d-%d", nowMs, now.UnixNano())

		res, err := rdb.Eval(c.Request.Context(), luaRateLimit, []string{key},
			nowMs, windowStart, windowSec, member, limit).Int()
		if err != nil {
			// Redis 出错时放行
			logger.Warn("rate limit check failed", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}
		if res < 0 {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":  http.StatusTooManyRequests,
				"error": "rate_limited",
				"msg":   "too many requests, please retry later",
			})
			return
		}
		c.Next()
	}
}

// extractIdentity 从请求 body 中解析 identity（不消耗 body，可重复读）
func extractIdentity(c *gin.Context) string {
	if c.Request.Body == nil {
		return ""
	}
	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return ""
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

	var req struct {
		Identity string `json:"identity"`
	}
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		return ""
	}
	return strings.TrimSpace(req.Identity)
}
