package storefront

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"hookah_delivery/internal/gateway"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var (
	ErrEmptyCart      = errors.New("cart has no units")
	ErrSubmitInFlight = errors.New("order submission already in progress")
)

// CheckoutForm 配送信息。校验在本地完成，不合法的表单不会发出请求。
type CheckoutForm struct {
	Phone         string `json:"phone" validate:"required,min=5,max=32"`
	Address       string `json:"address" validate:"required,max=512"`
	Entrance      string `json:"entrance" validate:"max=32"`
	Floor         string `json:"floor" validate:"max=32"`
	Apartment     string `json:"apartment" validate:"max=32"`
	DoorCode      string `json:"door_code" validate:"max=32"`
	Comment       string `json:"comment" validate:"max=1024"`
	DepositType   string `json:"deposit_type" validate:"required,oneof=cash passport none"`
	RulesAccepted bool   `json:"rules_accepted" validate:"required"`
}

// FormError 本地校验失败，字段名 -> 说明。
type FormError struct {
	Fields map[string]string
}

func (e *FormError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, f := range names {
		parts = append(parts, f+": "+e.Fields[f])
	}
	return "invalid form: " + strings.Join(parts, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate 去掉首尾空白后校验。
func (f *CheckoutForm) Validate() error {
	f.Phone = strings.TrimSpace(f.Phone)
	f.Address = strings.TrimSpace(f.Address)
	err := validate.Struct(f)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return err
	}
	fe := &FormError{Fields: make(map[string]string, len(ves))}
	for _, ve := range ves {
		fe.Fields[ve.Field()] = describe(ve)
	}
	return fe
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		if fe.Field() == "rules_accepted" {
			return "rules must be accepted"
		}
		return "required"
	case "oneof":
		return "must be one of " + fe.Param()
	case "min":
		return "at least " + fe.Param() + " characters"
	case "max":
		return "at most " + fe.Param() + " characters"
	case "alphanum":
		return "letters and digits only"
	}
	return fmt.Sprintf("failed %s", fe.Tag())
}

// ApplyPromo 本地检查格式后交给后端校验；成功后折扣只作用于设备价格。
func (s *Session) ApplyPromo(ctx context.Context, code, phone string) (int, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if err := validate.Var(code, "required,alphanum,max=32"); err != nil {
		var ves validator.ValidationErrors
		if errors.As(err, &ves) && len(ves) > 0 {
			return 0, &FormError{Fields: map[string]string{"promo_code": describe(ves[0])}}
		}
		return 0, err
	}
	percent, err := s.backend.ValidatePromo(ctx, code, strings.TrimSpace(phone))
	if err != nil {
		if errors.Is(err, gateway.ErrPromoInvalid) {
			s.ClearPromo()
		}
		return 0, err
	}
	s.mu.Lock()
	s.promoCode, s.promoPercent = code, percent
	s.mu.Unlock()
	return percent, nil
}

// Submit 提交购物车。
// - 同一时间只允许一个提交（ErrSubmitInFlight）
// - 表单不合法返回 *FormError，不发请求
// - 服务端容量拒绝时刷新池快照并原样返回错误（errors.Is(err, gateway.ErrCapacityExceeded)）
// - 成功后清空购物车和折扣码
func (s *Session) Submit(ctx context.Context, form CheckoutForm) (gateway.CreateOrderResult, error) {
	if s.cart.IsEmpty() {
		return gateway.CreateOrderResult{}, ErrEmptyCart
	}
	if err := form.Validate(); err != nil {
		return gateway.CreateOrderResult{}, err
	}

	s.mu.Lock()
	if s.submitting {
		s.mu.Unlock()
		return gateway.CreateOrderResult{}, ErrSubmitInFlight
	}
	s.submitting = true
	promo := s.promoCode
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.submitting = false
		s.mu.Unlock()
	}()

	req := gateway.CreateOrderRequest{
		Identity:      s.Identity,
		Phone:         form.Phone,
		Address:       form.Address,
		Entrance:      form.Entrance,
		Floor:         form.Floor,
		Apartment:     form.Apartment,
		DoorCode:      form.DoorCode,
		Comment:       form.Comment,
		DepositType:   form.DepositType,
		PromoCode:     promo,
		RulesAccepted: form.RulesAccepted,
	}
	for _, l := range s.cart.Lines() {
		req.BaseSelections = append(req.BaseSelections, gateway.Selection{ID: l.ID, Qty: l.Qty})
	}
	for _, l := range s.cart.AddOnLines() {
		req.AddOnSelections = append(req.AddOnSelections, gateway.Selection{ID: l.ID, Qty: l.Qty})
	}

	res, err := s.backend.CreateOrder(ctx, req)
	if err != nil {
		s.logger.Warn("order submission failed", zap.Error(err))
		if errors.Is(err, gateway.ErrCapacityExceeded) {
			if _, rerr := s.RefreshAvailability(ctx); rerr != nil {
				s.logger.Warn("availability refresh after capacity rejection failed", zap.Error(rerr))
			}
		}
		if errors.Is(err, gateway.ErrPromoInvalid) {
			s.ClearPromo()
		}
		return gateway.CreateOrderResult{}, err
	}

	s.cart.Clear()
	s.ClearPromo()
	if _, err := s.RefreshAvailability(ctx); err != nil {
		s.logger.Warn("availability refresh after submit failed", zap.Error(err))
	}
	s.logger.Info("order submitted", zap.String("order_id", res.OrderID), zap.String("total", res.Total.String()))
	return res, nil
}

// Submitting 提交按钮是否应处于禁用/加载状态。
func (s *Session) Submitting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitting
}
