package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRedisRateLimit_PerIdentity(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	r := gin.New()
	r.POST("/orders", RedisRateLimit(rdb, 2, time.Minute, zap.NewNop()), func(c *gin.Context) {
		body := make([]byte, 64)
		n, _ := c.Request.Body.Read(body)
		c.String(http.StatusOK, string(body[:n]))
	})

	post := func(identity string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/orders",
			strings.NewReader(`{"identity":"`+identity+`"}`))
		r.ServeHTTP(w, req)
		return w
	}

	w := post("tg:1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tg:1", "body is still readable downstream")
	assert.Equal(t, http.StatusOK, post("tg:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, post("tg:1").Code)
	assert.Equal(t, http.StatusOK, post("tg:2").Code)
}

func TestRedisRateLimit_FailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	mr.Close()

	r := gin.New()
	r.POST("/orders", RedisRateLimit(rdb, 1, time.Second, zap.NewNop()), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{}`)))
		assert.Equal(t, http.StatusNoContent, w.Code)
	}
}

func TestAdminToken(t *testing.T) {
	r := gin.New()
	r.Use(AdminToken("secret"))
	r.GET("/admin", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("X-Admin-Token", "secret")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	empty := gin.New()
	empty.Use(AdminToken(""))
	empty.GET("/admin", func(c *gin.Context) { c.Status(http.StatusOK) })
	w = httptest.NewRecorder()
	empty.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
