package model

import (
	"time"

	"hookah_delivery/internal/lifecycle"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DepositType 押金方式。
type DepositType string

const (
	DepositCash     DepositType = "cash"
	DepositPassport DepositType = "passport"
	DepositNone     DepositType = "none"
)

func (d DepositType) Valid() bool {
	return d == DepositCash || d == DepositPassport || d == DepositNone
}

// Order 服务端权威订单，只逻辑终结（COMPLETED/CANCELED），不物理删除。
type Order struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Identity string           `gorm:"size:128;not null;index" json:"-"`
	Status   lifecycle.Status `gorm:"size:32;not null;index" json:"status"`
	Units    int              `gorm:"not null" json:"units"`

	Phone     string `gorm:"size:32;not null" json:"phone"`
	Address   string `gorm:"size:512;not null" json:"address"`
	Entrance  string `gorm:"size:32" json:"entrance,omitempty"`
	Floor     string `gorm:"size:32" json:"floor,omitempty"`
	Apartment string `gorm:"size:32" json:"apartment,omitempty"`
	DoorCode  string `gorm:"size:32" json:"door_code,omitempty"`
	Comment   string `gorm:"size:1024" json:"comment,omitempty"`

	DepositType   DepositType `gorm:"size:16;not null" json:"deposit_type"`
	DepositAmount int64       `gorm:"not null" json:"deposit_amount"`

	PromoCode       *string `gorm:"size:64" json:"promo_code"`
	DiscountPercent int     `gorm:"not null;default:0" json:"discount_percent"`

	// 金额在下单时确定，之后目录调价不影响
	UnitPrice   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	AddOnsTotal decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"addons_total"`
	Discount    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"discount"`
	Total       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total"`

	IsLateOrder       bool `gorm:"not null;default:false" json:"is_late_order"`
	FreeExtensionUsed bool `gorm:"not null;default:false" json:"free_extension_used"`

	ConfirmedAt       *time.Time `json:"confirmed_at"`
	DepartedAt        *time.Time `json:"departed_at"`
	DeliveredAt       *time.Time `json:"delivered_at"`
	SessionStartedAt  *time.Time `json:"session_started_at"`
	SessionEndsAt     *time.Time `gorm:"index" json:"session_ends_at"`
	PickupRequestedAt *time.Time `json:"pickup_requested_at"`
	CompletedAt       *time.Time `json:"completed_at"`
	CanceledAt        *time.Time `json:"canceled_at"`
	CancelReason      string     `gorm:"size:255" json:"cancel_reason,omitempty"`

	Items []OrderItem `gorm:"constraint:OnDelete:CASCADE" json:"items"`
}

func (Order) TableName() string { return "orders" }

// ItemKind 订单行类型。
type ItemKind string

const (
	ItemUnit  ItemKind = "unit"
	ItemAddOn ItemKind = "addon"
)

// OrderItem 下单时捕获的单价。
type OrderItem struct {
	ID        uint      `gorm:"primarykey" json:"-"`
	CreatedAt time.Time `json:"-"`

	OrderID    string          `gorm:"size:36;not null;index" json:"-"`
	Kind       ItemKind        `gorm:"size:16;not null" json:"type"`
	ProductID  string          `gorm:"size:36;not null" json:"product_id"`
	Name       string          `gorm:"size:128;not null" json:"name"`
	Quantity   int             `gorm:"not null" json:"quantity"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	TotalPrice decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total_price"`
}

func (OrderItem) TableName() string { return "order_items" }
