package model

import "time"

// PromoCode 折扣码，仅作用于设备价格。
type PromoCode struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Code       string    `gorm:"size:64;uniqueIndex;not null" json:"code"`
	Percent    int       `gorm:"not null" json:"percent"`
	MaxUses    int       `gorm:"not null;default:10" json:"max_uses"`
	UsedCount  int       `gorm:"not null;default:0" json:"used_count"`
	ValidFrom  time.Time `gorm:"not null" json:"valid_from"`
	ValidUntil time.Time `gorm:"not null;index" json:"valid_until"`
	Active     bool      `gorm:"not null;default:true;index" json:"is_active"`
}

func (PromoCode) TableName() string { return "promo_codes" }

// PromoCodeUsage 同一手机号同一折扣码只能用一次。
type PromoCodeUsage struct {
	ID     uint      `gorm:"primarykey"`
	UsedAt time.Time `gorm:"not null"`

	PromoCodeID uint   `gorm:"not null;uniqueIndex:uq_promo_usage_per_phone"`
	Phone       string `gorm:"size:32;not null;uniqueIndex:uq_promo_usage_per_phone"`
	OrderID     string `gorm:"size:36;not null"`
}

func (PromoCodeUsage) TableName() string { return "promo_code_usages" }
