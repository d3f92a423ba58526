package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hookah_delivery/internal/capacity"

	"go.uber.org/zap"
)

// Client 访问订单后端的 HTTP 客户端。
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type envelope struct {
	Code  int             `json:"code"`
	Error string          `json:"error"`
	Msg   string          `json:"msg"`
	Data  json.RawMessage `json:"data"`
}

// Availability 实现 capacity.AvailabilitySource。
func (c *Client) Availability(ctx context.Context) (capacity.Snapshot, error) {
	var s capacity.Snapshot
	err := c.do(ctx, http.MethodGet, "/api/availability", nil, &s)
	return s, err
}

func (c *Client) Mixes(ctx context.Context) ([]Mix, error) {
	var list []Mix
	err := c.do(ctx, http.MethodGet, "/api/mixes", nil, &list)
	return list, err
}

// Featured 没有推荐口味时返回 nil, nil。
func (c *Client) Featured(ctx context.Context) (*Mix, error) {
	var m *Mix
	err := c.do(ctx, http.MethodGet, "/api/mixes/featured", nil, &m)
	return m, err
}

func (c *Client) Drinks(ctx context.Context) ([]Drink, error) {
	var list []Drink
	err := c.do(ctx, http.MethodGet, "/api/drinks", nil, &list)
	return list, err
}

// ValidatePromo 返回折扣百分比；无效时 errors.Is(err, ErrPromoInvalid)。
func (c *Client) ValidatePromo(ctx context.Context, code, phone string) (int, error) {
	var out struct {
		Percent int `json:"percent"`
	}
	body := map[string]string{"code": code, "phone": phone}
	if err := c.do(ctx, http.MethodPost, "/api/promo/validate", body, &out); err != nil {
		return 0, err
	}
	return out.Percent, nil
}

func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (CreateOrderResult, error) {
	var res CreateOrderResult
	err := c.do(ctx, http.MethodPost, "/api/orders", req, &res)
	return res, err
}

func (c *Client) Orders(ctx context.Context, identity string) (Orders, error) {
	var out Orders
	err := c.do(ctx, http.MethodGet, "/api/orders?identity="+url.QueryEscape(identity), nil, &out)
	return out, err
}

func (c *Client) Cancel(ctx context.Context, orderID, identity string) (Order, error) {
	return c.clientAction(ctx, orderID, identity, "cancel")
}

func (c *Client) ReadyForPickup(ctx context.Context, orderID, identity string) (Order, error) {
	return c.clientAction(ctx, orderID, identity, "ready-for-pickup")
}

func (c *Client) clientAction(ctx context.Context, orderID, identity, action string) (Order, error) {
	var o Order
	path := fmt.Sprintf("/api/orders/%s/%s", url.PathEscape(orderID), action)
	err := c.do(ctx, http.MethodPost, path, map[string]string{"identity": identity}, &o)
	return o, err
}

// RequestRebowl mixID 为空时沿用订单原口味。
func (c *Client) RequestRebowl(ctx context.Context, orderID, identity, mixID string) (Rebowl, error) {
	var r Rebowl
	path := fmt.Sprintf("/api/orders/%s/rebowl", url.PathEscape(orderID))
	err := c.do(ctx, http.MethodPost, path, map[string]string{"identity": identity, "mix_id": mixID}, &r)
	return r, err
}

func (c *Client) Rebowls(ctx context.Context, orderID, identity string) ([]Rebowl, error) {
	var out []Rebowl
	path := fmt.Sprintf("/api/orders/%s/rebowls?identity=%s", url.PathEscape(orderID), url.QueryEscape(identity))
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// do 发送请求并解析 {code,msg,error,data}。
// - 网络错误、非信封响应、服务端 internal 错误 -> *TransportError
// - 其余非 2xx -> *APIError
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("unexpected response %d: %w", resp.StatusCode, err)}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(env.Data) == 0 {
			return nil
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s: decode data: %w", op, err)
		}
		return nil
	}

	apiErr := &APIError{HTTPStatus: resp.StatusCode, Kind: env.Error, Msg: env.Msg}
	if apiErr.Msg == "" {
		apiErr.Msg = http.StatusText(resp.StatusCode)
	}
	if len(env.Data) > 0 {
		var detail struct {
			Field  string `json:"field"`
			Status string `json:"status"`
		}
		if json.Unmarshal(env.Data, &detail) == nil {
			apiErr.Field = detail.Field
			apiErr.Status = lifecycleStatus(detail.Status)
		}
	}
	c.logger.Info("request rejected",
		zap.String("op", op),
		zap.Int("http_status", resp.StatusCode),
		zap.String("kind", apiErr.Kind),
		zap.String("msg", apiErr.Msg))

	if _, known := kindSentinels[apiErr.Kind]; !known && resp.StatusCode >= 500 {
		return &TransportError{Op: op, Err: apiErr}
	}
	return apiErr
}
