package storefront

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"hookah_delivery/internal/capacity"
	"hookah_delivery/internal/gateway"
	"hookah_delivery/internal/lifecycle"
	"hookah_delivery/internal/sessiontimer"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend 可编程的后端，记录调用次数。
type fakeBackend struct {
	mu   sync.Mutex
	snap capacity.Snapshot

	availabilityCalls atomic.Int32
	createCalls       atomic.Int32
	actionCalls       atomic.Int32

	createFn func(gateway.CreateOrderRequest) (gateway.CreateOrderResult, error)
	actionFn func(orderID string) (gateway.Order, error)
	promoFn  func(code string) (int, error)
	rebowlFn func(orderID, mixID string) (gateway.Rebowl, error)
}

func (f *fakeBackend) setSnapshot(s capacity.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = s
}

func (f *fakeBackend) Availability(context.Context) (capacity.Snapshot, error) {
	f.availabilityCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap, nil
}

func (f *fakeBackend) Mixes(context.Context) ([]gateway.Mix, error) {
	return []gateway.Mix{
		{ID: "mix-a", Name: "A", Price: decimal.NewFromInt(70), Featured: true},
		{ID: "mix-b", Name: "B", Price: decimal.NewFromInt(70)},
	}, nil
}

func (f *fakeBackend) Featured(context.Context) (*gateway.Mix, error) {
	return &gateway.Mix{ID: "mix-a", Name: "A", Price: decimal.NewFromInt(70), Featured: true}, nil
}

func (f *fakeBackend) Drinks(context.Context) ([]gateway.Drink, error) {
	return []gateway.Drink{
		{ID: "drink-x", Name: "X", Price: decimal.NewFromInt(5)},
		{ID: "drink-y", Name: "Y", Price: decimal.NewFromInt(10)},
	}, nil
}

func (f *fakeBackend) ValidatePromo(_ context.Context, code, _ string) (int, error) {
	if f.promoFn != nil {
		return f.promoFn(code)
	}
	return 10, nil
}

func (f *fakeBackend) CreateOrder(_ context.Context, req gateway.CreateOrderRequest) (gateway.CreateOrderResult, error) {
	f.createCalls.Add(1)
	if f.createFn != nil {
		return f.createFn(req)
	}
	return gateway.CreateOrderResult{OrderID: "o-1", Status: lifecycle.StatusNew}, nil
}

func (f *fakeBackend) Orders(context.Context, string) (gateway.Orders, error) {
	return gateway.Orders{}, nil
}

func (f *fakeBackend) Cancel(_ context.Context, orderID, _ string) (gateway.Order, error) {
	return f.action(orderID)
}

func (f *fakeBackend) ReadyForPickup(_ context.Context, orderID, _ string) (gateway.Order, error) {
	return f.action(orderID)
}

func (f *fakeBackend) action(orderID string) (gateway.Order, error) {
	f.actionCalls.Add(1)
	if f.actionFn != nil {
		return f.actionFn(orderID)
	}
	return gateway.Order{ID: orderID, Status: lifecycle.StatusCanceled}, nil
}

func (f *fakeBackend) RequestRebowl(_ context.Context, orderID, _, mixID string) (gateway.Rebowl, error) {
	f.actionCalls.Add(1)
	if f.rebowlFn != nil {
		return f.rebowlFn(orderID, mixID)
	}
	return gateway.Rebowl{ID: "r-1", OrderID: orderID, MixID: mixID, Status: lifecycle.RebowlRequested}, nil
}

func (f *fakeBackend) Rebowls(_ context.Context, orderID, _ string) ([]gateway.Rebowl, error) {
	return []gateway.Rebowl{{ID: "r-1", OrderID: orderID, Status: lifecycle.RebowlDone}}, nil
}

func newTestSession(t *testing.T, snap capacity.Snapshot) (*Session, *fakeBackend) {
	t.Helper()
	fb := &fakeBackend{snap: snap}
	s := NewSession("tg:1", "en", fb, nil)
	ctx := context.Background()
	require.NoError(t, s.LoadCatalog(ctx))
	_, err := s.RefreshAvailability(ctx)
	require.NoError(t, err)
	return s, fb
}

func validForm() CheckoutForm {
	return CheckoutForm{
		Phone:         "+995555000111",
		Address:       "Rustaveli Ave 1",
		DepositType:   "cash",
		RulesAccepted: true,
	}
}

func TestCatalogView_SoldOut(t *testing.T) {
	s, _ := newTestSession(t, capacity.Snapshot{Available: 0, MaxPerOrder: 3})

	v := s.CatalogView()
	assert.True(t, v.SoldOut)
	assert.True(t, v.Loaded)
	for _, m := range v.Mixes {
		assert.False(t, m.CanAdd)
	}
	d, err := s.Cart().AddUnit("mix-a")
	require.NoError(t, err)
	assert.Equal(t, capacity.SoldOut, d)
	assert.True(t, s.Cart().IsEmpty())
}

func TestCatalogView_CapFollowsLatestSnapshot(t *testing.T) {
	s, fb := newTestSession(t, capacity.Snapshot{Available: 5, MaxPerOrder: 3})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := s.Cart().AddUnit("mix-a")
		require.NoError(t, err)
		require.Equal(t, capacity.Allow, d)
	}
	v := s.CatalogView()
	assert.Equal(t, uint(3), v.Cap)
	assert.True(t, v.Mixes[0].CanAdd)
	assert.Equal(t, uint(2), v.Mixes[0].Qty)
	require.NotNil(t, v.Featured)
	assert.Equal(t, "mix-a", v.Featured.ID)

	fb.setSnapshot(capacity.Snapshot{Available: 2, MaxPerOrder: 3})
	_, err := s.RefreshAvailability(ctx)
	require.NoError(t, err)

	v = s.CatalogView()
	assert.Equal(t, uint(2), v.Cap)
	assert.False(t, v.Mixes[1].CanAdd)
	d, err := s.Cart().AddUnit("mix-b")
	require.NoError(t, err)
	assert.Equal(t, capacity.Deny, d)
	assert.Equal(t, uint(2), s.Cart().TotalUnits())
}

func TestTotals_DiscountOnUnitsOnly(t *testing.T) {
	s, _ := newTestSession(t, capacity.Snapshot{Available: 5, MaxPerOrder: 3})
	ctx := context.Background()

	_, err := s.Cart().AddUnit("mix-a")
	require.NoError(t, err)
	for _, id := range []string{"drink-x", "drink-y"} {
		ok, err := s.Cart().AddAddOn(id)
		require.NoError(t, err)
		require.True(t, ok)
	}
	p, err := s.ApplyPromo(ctx, " hello10 ", "")
	require.NoError(t, err)
	assert.Equal(t, 10, p)
	code, _ := s.PromoPercent()
	assert.Equal(t, "HELLO10", code)

	d := s.Totals()
	assert.Equal(t, "70", d.UnitPrice.String())
	assert.Equal(t, "15", d.AddOnsTotal.String())
	assert.Equal(t, "78", d.Total.String())
}

func TestApplyPromo(t *testing.T) {
	s, fb := newTestSession(t, capacity.Snapshot{Available: 5, MaxPerOrder: 3})
	ctx := context.Background()

	_, err := s.ApplyPromo(ctx, "bad code!", "")
	var fe *FormError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Fields, "promo_code")

	_, err = s.ApplyPromo(ctx, "GOOD", "")
	require.NoError(t, err)

	fb.promoFn = func(string) (int, error) {
		return 0, &gateway.APIError{HTTPStatus: 400, Kind: "promo_invalid", Msg: "promo code is not valid: expired"}
	}
	_, err = s.ApplyPromo(ctx, "OLD", "")
	assert.ErrorIs(t, err, gateway.ErrPromoInvalid)
	code, p := s.PromoPercent()
	assert.Empty(t, code)
	assert.Zero(t, p)
}

func TestSubmit_LocalValidationNeverReachesNetwork(t *testing.T) {
	s, fb := newTestSession(t, capacity.Snapshot{Available: 5, MaxPerOrder: 3})
	ctx := context.Background()

	_, err := s.Submit(ctx, validForm())
	assert.ErrorIs(t, err, ErrEmptyCart)

	_, err = s.Cart().AddUnit("mix-a")
	require.NoError(t, err)

	form := validForm()
	form.Address = "  "
	form.RulesAccepted = false
	form.DepositType = "card"
	_, err = s.Submit(ctx, form)
	var fe *FormError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "required", fe.Fields["address"])
	assert.Equal(t, "rules must be accepted", fe.Fields["rules_accepted"])
	assert.Contains(t, fe.Fields["deposit_type"], "one of")

	assert.Zero(t, fb.createCalls.Load())
	assert.False(t, s.Cart().IsEmpty())
}

func TestSubmit_SuccessClearsCart(t *testing.T) {
	s, fb := newTestSession(t, capacity.Snapshot{Available: 5, MaxPerOrder: 3})
	ctx := context.Background()

	var got gateway.CreateOrderRequest
	fb.createFn = func(req gateway.CreateOrderRequest) (gateway.CreateOrderResult, error) {
		got = req
		return gateway.CreateOrderResult{OrderID: "o-1", Status: lifecycle.StatusNew}, nil
	}
	_, err := s.Cart().AddUnit("mix-b")
	require.NoError(t, err)
	_, err = s.Cart().AddUnit("mix-a")
	require.NoError(t, err)
	_, err = s.Cart().AddAddOn("drink-x")
	require.NoError(t, err)
	_, err = s.ApplyPromo(ctx, "TEN", "")
	require.NoError(t, err)

	before := fb.availabilityCalls.Load()
	res, err := s.Submit(ctx, validForm())
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusNew, res.Status)

	assert.Equal(t, "tg:1", got.Identity)
	assert.Equal(t, []gateway.Selection{{ID: "mix-a", Qty: 1}, {ID: "mix-b", Qty: 1}}, got.BaseSelections)
	assert.Equal(t, []gateway.Selection{{ID: "drink-x", Qty: 1}}, got.AddOnSelections)
	assert.Equal(t, "TEN", got.PromoCode)

	assert.True(t, s.Cart().IsEmpty())
	code, _ := s.PromoPercent()
	assert.Empty(t, code)
	assert.Greater(t, fb.availabilityCalls.Load(), before)
}

func TestSubmit_CapacityRejectionRefreshesAvailability(t *testing.T) {
	s, fb := newTestSession(t, capacity.Snapshot{Available: 3, MaxPerOrder: 3})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Cart().AddUnit("mix-a")
		require.NoError(t, err)
	}
	fb.createFn = func(gateway.CreateOrderRequest) (gateway.CreateOrderResult, error) {
		fb.setSnapshot(capacity.Snapshot{Available: 1, MaxPerOrder: 3})
		return gateway.CreateOrderResult{}, &gateway.APIError{HTTPStatus: 409, Kind: "capacity_exceeded",
			Msg: "not enough free units, please adjust the order"}
	}

	_, err := s.Submit(ctx, validForm())
	require.ErrorIs(t, err, gateway.ErrCapacityExceeded)
	assert.Equal(t, "not enough free units, please adjust the order", err.Error())

	assert.Equal(t, uint(1), s.Tracker().Snapshot().Available)
	assert.Equal(t, uint(3), s.Cart().TotalUnits(), "cart is kept for the user to adjust")
	assert.False(t, s.Submitting())
}

func TestSubmit_InFlightLock(t *testing.T) {
	s, fb := newTestSession(t, capacity.Snapshot{Available: 5, MaxPerOrder: 3})
	ctx := context.Background()
	_, err := s.Cart().AddUnit("mix-a")
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	fb.createFn = func(gateway.CreateOrderRequest) (gateway.CreateOrderResult, error) {
		close(entered)
		<-release
		return gateway.CreateOrderResult{OrderID: "o-1", Status: lifecycle.StatusNew}, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(ctx, validForm())
		done <- err
	}()
	<-entered
	assert.True(t, s.Submitting())

	_, err = s.Submit(ctx, validForm())
	assert.ErrorIs(t, err, ErrSubmitInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), fb.createCalls.Load())
}

func TestCancel_LocalTableBlocksRequest(t *testing.T) {
	s, fb := newTestSession(t, capacity.Snapshot{Available: 5, MaxPerOrder: 3})
	o := gateway.Order{ID: "o-1", Status: lifecycle.StatusDelivered}

	got, err := s.Cancel(context.Background(), o)
	require.ErrorIs(t, err, ErrActionNotAllowed)
	var ae *ActionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, lifecycle.StatusDelivered, ae.Status)
	assert.Equal(t, lifecycle.StatusDelivered, got.Status)
	assert.Zero(t, fb.actionCalls.Load())

	_, err = s.ReadyForPickup(context.Background(), gateway.Order{ID: "o-1", Status: lifecycle.StatusNew})
	assert.ErrorIs(t, err, ErrActionNotAllowed)
}

func TestCancel_ServerRejectionLeavesOrderUnchanged(t *testing.T) {
	s, fb := newTestSession(t, capacity.Snapshot{Available: 5, MaxPerOrder: 3})
	fb.actionFn = func(string) (gateway.Order, error) {
		return gateway.Order{}, &gateway.APIError{HTTPStatus: 409, Kind: "transition_rejected",
			Msg: "cancel is only possible before delivery", Status: lifecycle.StatusDelivered}
	}
	o := gateway.Order{ID: "o-1", Status: lifecycle.StatusOnTheWay}

	got, err := s.Cancel(context.Background(), o)
	require.ErrorIs(t, err, gateway.ErrTransitionRejected)
	assert.Equal(t, "cancel is only possible before delivery", err.Error())
	assert.Equal(t, o, got)
	_, pending := s.Pending("o-1")
	assert.False(t, pending)
}

func TestCancel_OneRequestPerOrder(t *testing.T) {
	s, fb := newTestSession(t, capacity.Snapshot{Available: 5, MaxPerOrder: 3})
	entered := make(chan struct{})
	release := make(chan struct{})
	fb.actionFn = func(id string) (gateway.Order, error) {
		close(entered)
		<-release
		return gateway.Order{ID: id, Status: lifecycle.StatusCanceled}, nil
	}
	o := gateway.Order{ID: "o-1", Status: lifecycle.StatusNew}

	done := make(chan gateway.Order, 1)
	go func() {
		got, _ := s.Cancel(context.Background(), o)
		done <- got
	}()
	<-entered
	a, pending := s.Pending("o-1")
	assert.True(t, pending)
	assert.Equal(t, lifecycle.ActionCancel, a)

	_, err := s.Cancel(context.Background(), o)
	assert.ErrorIs(t, err, ErrActionInFlight)

	close(release)
	assert.Equal(t, lifecycle.StatusCanceled, (<-done).Status)
}

func TestRequestRebowl(t *testing.T) {
	s, fb := newTestSession(t, capacity.Snapshot{Available: 5, MaxPerOrder: 3})
	ctx := context.Background()

	_, err := s.RequestRebowl(ctx, gateway.Order{ID: "o-1", Status: lifecycle.StatusDelivered}, "")
	require.ErrorIs(t, err, ErrActionNotAllowed)
	assert.Zero(t, fb.actionCalls.Load())

	entered := make(chan struct{})
	release := make(chan struct{})
	fb.rebowlFn = func(id, mix string) (gateway.Rebowl, error) {
		close(entered)
		<-release
		return gateway.Rebowl{ID: "r-1", OrderID: id, MixID: mix, Status: lifecycle.RebowlRequested}, nil
	}
	o := gateway.Order{ID: "o-1", Status: lifecycle.StatusSessionEnding}

	done := make(chan gateway.Rebowl, 1)
	go func() {
		r, _ := s.RequestRebowl(ctx, o, "mix-b")
		done <- r
	}()
	<-entered
	a, pending := s.Pending("o-1")
	assert.True(t, pending)
	assert.Equal(t, lifecycle.Action("rebowl"), a)

	_, err = s.ReadyForPickup(ctx, o)
	assert.ErrorIs(t, err, ErrActionInFlight, "shares the per-order lock")

	close(release)
	r := <-done
	assert.Equal(t, "mix-b", r.MixID)
	_, pending = s.Pending("o-1")
	assert.False(t, pending)

	fb.rebowlFn = func(string, string) (gateway.Rebowl, error) {
		return gateway.Rebowl{}, &gateway.APIError{HTTPStatus: 409, Kind: "transition_rejected",
			Msg: "a new bowl was already requested", Status: lifecycle.StatusSessionEnding}
	}
	_, err = s.RequestRebowl(ctx, o, "")
	require.ErrorIs(t, err, gateway.ErrTransitionRejected)
	assert.Equal(t, "a new bowl was already requested", err.Error())

	list, err := s.Rebowls(ctx, o)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, lifecycle.RebowlDone, list[0].Status)
}

func TestRenderOrder(t *testing.T) {
	now := time.Date(2026, 3, 6, 20, 0, 0, 0, time.UTC)
	ends := now.Add(5400 * time.Second)
	o := gateway.Order{
		ID:                "o-1",
		Status:            lifecycle.StatusSessionActive,
		SessionEndsAt:     &ends,
		FreeExtensionUsed: true,
		Total:             decimal.NewFromInt(78),
	}

	v := RenderOrder(o, "en", now)
	require.NotNil(t, v.Timer)
	assert.Equal(t, "1:30:00", v.Timer.Display)
	assert.Equal(t, "Session", v.Label)
	assert.Equal(t, lifecycle.CategoryActive, v.Category)
	assert.Equal(t, []lifecycle.Action{lifecycle.ActionReadyForPickup}, v.Actions)
	assert.True(t, v.Rebowl)
	assert.True(t, v.Policy.FreeExtensionUsed)
	assert.Equal(t, "78.00", v.Total)

	// 倒计时归零保持为零，状态不变
	v = RenderOrder(o, "en", ends.Add(time.Hour))
	assert.Equal(t, "0:00:00", v.Timer.Display)
	assert.True(t, v.Timer.Expired)
	assert.Equal(t, lifecycle.StatusSessionActive, v.Status)

	o.Status = lifecycle.StatusDelivered
	v = RenderOrder(o, "xx", now)
	assert.Nil(t, v.Timer)
	assert.Equal(t, "Доставлен", v.Label)
	assert.Empty(t, v.Actions)
	assert.False(t, v.Rebowl)
}

func TestWatchSession(t *testing.T) {
	s, _ := newTestSession(t, capacity.Snapshot{Available: 5, MaxPerOrder: 3})

	err := s.WatchSession(context.Background(), gateway.Order{Status: lifecycle.StatusNew}, func(sessiontimer.Tick) {})
	assert.ErrorIs(t, err, ErrNotTimed)

	ends := time.Now().Add(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	var ticks []sessiontimer.Tick
	err = s.WatchSession(ctx, gateway.Order{Status: lifecycle.StatusSessionEnding, SessionEndsAt: &ends},
		func(tk sessiontimer.Tick) {
			ticks = append(ticks, tk)
			cancel()
		})
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	assert.False(t, ticks[0].Expired)
}

func TestStartPolling(t *testing.T) {
	fb := &fakeBackend{snap: capacity.Snapshot{Available: 4, MaxPerOrder: 3}}
	s := NewSession("tg:1", "", fb, nil)
	assert.Equal(t, lifecycle.DefaultLanguage, s.Language)

	stop := s.StartPolling(context.Background(), 10*time.Millisecond)
	require.Eventually(t, func() bool {
		_, loaded := s.Tracker().FetchedAt()
		return loaded
	}, time.Second, 5*time.Millisecond)
	stop()

	assert.Equal(t, uint(4), s.Tracker().Snapshot().Available)
	calls := fb.availabilityCalls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, fb.availabilityCalls.Load(), "no polling after stop")
}

func TestFormError_Message(t *testing.T) {
	fe := &FormError{Fields: map[string]string{"phone": "required", "address": "required"}}
	assert.Equal(t, "invalid form: address: required; phone: required", fe.Error())
	assert.False(t, errors.Is(fe, ErrEmptyCart))
}
