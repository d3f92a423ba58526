package storefront

import (
	"context"
	"sync"
	"time"

	"hookah_delivery/internal/capacity"
	"hookah_delivery/internal/cart"
	"hookah_delivery/internal/gateway"
	"hookah_delivery/internal/lifecycle"
	"hookah_delivery/internal/pricing"

	"go.uber.org/zap"
)

// Backend 店面依赖的后端接口，*gateway.Client 实现了它。
type Backend interface {
	capacity.AvailabilitySource
	Mixes(ctx context.Context) ([]gateway.Mix, error)
	Featured(ctx context.Context) (*gateway.Mix, error)
	Drinks(ctx context.Context) ([]gateway.Drink, error)
	ValidatePromo(ctx context.Context, code, phone string) (int, error)
	CreateOrder(ctx context.Context, req gateway.CreateOrderRequest) (gateway.CreateOrderResult, error)
	Orders(ctx context.Context, identity string) (gateway.Orders, error)
	Cancel(ctx context.Context, orderID, identity string) (gateway.Order, error)
	ReadyForPickup(ctx context.Context, orderID, identity string) (gateway.Order, error)
	RequestRebowl(ctx context.Context, orderID, identity, mixID string) (gateway.Rebowl, error)
	Rebowls(ctx context.Context, orderID, identity string) ([]gateway.Rebowl, error)
}

// Session 一次浏览会话的全部状态：身份、语言、池快照、购物车、折扣码、进行中的请求。
// 显式传递，不使用包级全局变量。
type Session struct {
	Identity string
	Language string

	backend Backend
	tracker *capacity.Tracker
	cart    *cart.Cart
	logger  *zap.Logger
	now     func() time.Time

	mu           sync.Mutex
	mixes        []gateway.Mix
	featured     *gateway.Mix
	drinks       []gateway.Drink
	promoCode    string
	promoPercent int
	submitting   bool
	inFlight     map[string]lifecycle.Action
}

// NewSession identity 由宿主平台给出，原样透传，不做解析。
func NewSession(identity, language string, backend Backend, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if language == "" {
		language = lifecycle.DefaultLanguage
	}
	tracker := capacity.NewTracker()
	return &Session{
		Identity: identity,
		Language: language,
		backend:  backend,
		tracker:  tracker,
		cart:     cart.New(tracker, cart.PriceBook{}, cart.PriceBook{}),
		logger:   logger.With(zap.String("identity", identity)),
		now:      time.Now,
		inFlight: map[string]lifecycle.Action{},
	}
}

func (s *Session) Cart() *cart.Cart { return s.cart }

func (s *Session) Tracker() *capacity.Tracker { return s.tracker }

// LoadCatalog 拉取口味、推荐和饮料，刷新购物车价格表。
func (s *Session) LoadCatalog(ctx context.Context) error {
	mixes, err := s.backend.Mixes(ctx)
	if err != nil {
		return err
	}
	featured, err := s.backend.Featured(ctx)
	if err != nil {
		return err
	}
	drinks, err := s.backend.Drinks(ctx)
	if err != nil {
		return err
	}

	units := make(cart.PriceBook, len(mixes))
	for _, m := range mixes {
		units[m.ID] = m.Price
	}
	addOns := make(cart.PriceBook, len(drinks))
	for _, d := range drinks {
		addOns[d.ID] = d.Price
	}
	s.cart.SetPriceBooks(units, addOns)

	s.mu.Lock()
	s.mixes, s.featured, s.drinks = mixes, featured, drinks
	s.mu.Unlock()
	return nil
}

// RefreshAvailability 拉取一次池快照；失败时保留旧快照。
func (s *Session) RefreshAvailability(ctx context.Context) (capacity.Snapshot, error) {
	return capacity.Refresh(ctx, s.backend, s.tracker, s.now)
}

// StartPolling 后台轮询池快照，返回的 stop 会等待轮询协程退出。
func (s *Session) StartPolling(ctx context.Context, interval time.Duration) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p := capacity.NewPoller(s.backend, s.tracker, interval, s.logger)
	go func() {
		defer close(done)
		p.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

// PromoPercent 当前生效的折扣码与百分比。
func (s *Session) PromoPercent() (code string, percent int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promoCode, s.promoPercent
}

func (s *Session) ClearPromo() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.promoCode, s.promoPercent = "", 0
}

// Totals 购物车价格草稿（含已验证的折扣）。
func (s *Session) Totals() pricing.Draft {
	_, p := s.PromoPercent()
	return s.cart.ComputeTotals(p)
}
