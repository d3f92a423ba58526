package model

import (
	"time"

	"hookah_delivery/internal/lifecycle"

	"github.com/shopspring/decimal"
)

// RebowlRequest 会话中换一碗新的。DONE 时订单会话重新计时。
type RebowlRequest struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	OrderID  string `gorm:"size:36;not null;index" json:"order_id"`
	Identity string `gorm:"size:128;not null" json:"-"`
	MixID    string `gorm:"size:36;not null" json:"mix_id"`
	MixName  string `gorm:"size:128;not null" json:"mix_name"`

	Price      decimal.Decimal        `gorm:"type:decimal(10,2);not null" json:"price"`
	AddMinutes int                    `gorm:"not null" json:"add_minutes"`
	Status     lifecycle.RebowlStatus `gorm:"size:16;not null;index" json:"status"`

	InProgressAt *time.Time `json:"in_progress_at"`
	DoneAt       *time.Time `json:"done_at"`
	CanceledAt   *time.Time `json:"canceled_at"`
	AdminNote    string     `gorm:"size:512" json:"admin_note,omitempty"`
}

func (RebowlRequest) TableName() string { return "rebowl_requests" }
