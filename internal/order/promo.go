package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hookah_delivery/internal/model"

	"gorm.io/gorm"
)

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidatePromo 校验折扣码，返回折扣百分比。phone 为空时不检查单号码使用次数。
func (s *Service) ValidatePromo(ctx context.Context, code, phone string) (int, error) {
	code = normalizeCode(code)
	if code == "" {
		return 0, &ValidationError{Field: "code", Msg: "required"}
	}
	p, err := s.findUsablePromo(ctx, s.db.WithContext(ctx), code, strings.TrimSpace(phone))
	if err != nil {
		return 0, err
	}
	return p.Percent, nil
}

func (s *Service) findUsablePromo(ctx context.Context, db *gorm.DB, code, phone string) (*model.PromoCode, error) {
	var p model.PromoCode
	err := db.Where("code = ? AND active = ?", code, true).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: unknown code", ErrPromoInvalid)
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	if now.Before(p.ValidFrom) || now.After(p.ValidUntil) {
		return nil, fmt.Errorf("%w: expired", ErrPromoInvalid)
	}
	if p.UsedCount >= p.MaxUses {
		return nil, fmt.Errorf("%w: usage limit reached", ErrPromoInvalid)
	}
	if phone != "" {
		var used int64
		err := db.Model(&model.PromoCodeUsage{}).
			Where("promo_code_id = ? AND phone = ?", p.ID, phone).
			Count(&used).Error
		if err != nil {
			return nil, err
		}
		if used > 0 {
			return nil, fmt.Errorf("%w: already used with this phone", ErrPromoInvalid)
		}
	}
	return &p, nil
}

// consumePromo 在下单事务内占用一次折扣码；并发超额时条件更新影响 0 行。
func (s *Service) consumePromo(tx *gorm.DB, p *model.PromoCode, o *model.Order) error {
	res := tx.Model(&model.PromoCode{}).
		Where("id = ? AND used_count < max_uses", p.ID).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: usage limit reached", ErrPromoInvalid)
	}
	err := tx.Create(&model.PromoCodeUsage{
		PromoCodeID: p.ID,
		Phone:       o.Phone,
		OrderID:     o.ID,
		UsedAt:      s.now(),
	}).Error
	if model.IsUniqueViolation(err) {
		return fmt.Errorf("%w: already used with this phone", ErrPromoInvalid)
	}
	return err
}
