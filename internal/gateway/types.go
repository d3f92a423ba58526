package gateway

import (
	"time"

	"hookah_delivery/internal/lifecycle"

	"github.com/shopspring/decimal"
)

// Mix 设备口味（基础商品），四个 0..5 的口味维度。
type Mix struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Flavors     string          `json:"flavors"`
	Description string          `json:"description"`
	Strength    int             `json:"strength"`
	Coolness    int             `json:"coolness"`
	Sweetness   int             `json:"sweetness"`
	Smokiness   int             `json:"smokiness"`
	ImageURL    string          `json:"image_url"`
	Price       decimal.Decimal `json:"price"`
	Featured    bool            `json:"is_featured"`
}

// Drink 附加商品。
type Drink struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"image_url"`
}

type Selection struct {
	ID  string `json:"id"`
	Qty uint   `json:"qty"`
}

// CreateOrderRequest 下单请求，Identity 由宿主平台提供，这里原样透传。
type CreateOrderRequest struct {
	Identity        string      `json:"identity"`
	BaseSelections  []Selection `json:"base_selections"`
	AddOnSelections []Selection `json:"addon_selections"`
	Phone           string      `json:"phone"`
	Address         string      `json:"address"`
	Entrance        string      `json:"entrance,omitempty"`
	Floor           string      `json:"floor,omitempty"`
	Apartment       string      `json:"apartment,omitempty"`
	DoorCode        string      `json:"door_code,omitempty"`
	Comment         string      `json:"comment,omitempty"`
	DepositType     string      `json:"deposit_type"`
	PromoCode       string      `json:"promo_code,omitempty"`
	RulesAccepted   bool        `json:"rules_accepted"`
}

type CreateOrderResult struct {
	OrderID         string           `json:"order_id"`
	Status          lifecycle.Status `json:"status"`
	UnitPrice       decimal.Decimal  `json:"unit_price"`
	AddOnsTotal     decimal.Decimal  `json:"addons_total"`
	Discount        decimal.Decimal  `json:"discount"`
	DiscountPercent int              `json:"discount_percent"`
	Total           decimal.Decimal  `json:"total"`
	IsLateOrder     bool             `json:"is_late_order"`
}

type OrderItem struct {
	Type       string          `json:"type"`
	ProductID  string          `json:"product_id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// Order 服务端订单视图。
type Order struct {
	ID        string             `json:"id"`
	CreatedAt time.Time          `json:"created_at"`
	Status    lifecycle.Status   `json:"status"`
	Category  lifecycle.Category `json:"category"`
	Actions   []lifecycle.Action `json:"actions"`
	CanRebowl bool               `json:"can_rebowl"`
	Units     int                `json:"units"`

	Phone         string `json:"phone"`
	Address       string `json:"address"`
	DepositType   string `json:"deposit_type"`
	DepositAmount int64  `json:"deposit_amount"`

	PromoCode       *string         `json:"promo_code"`
	DiscountPercent int             `json:"discount_percent"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	AddOnsTotal     decimal.Decimal `json:"addons_total"`
	Discount        decimal.Decimal `json:"discount"`
	Total           decimal.Decimal `json:"total"`

	IsLateOrder       bool       `json:"is_late_order"`
	FreeExtensionUsed bool       `json:"free_extension_used"`
	SessionStartedAt  *time.Time `json:"session_started_at"`
	SessionEndsAt     *time.Time `json:"session_ends_at"`
	CancelReason      string     `json:"cancel_reason"`

	Items []OrderItem `json:"items"`
}

// Orders 进行中订单（最多一个）与历史。
type Orders struct {
	Active  *Order  `json:"active"`
	History []Order `json:"history"`
}

// Rebowl 会话中的换碗请求。
type Rebowl struct {
	ID         string                 `json:"id"`
	CreatedAt  time.Time              `json:"created_at"`
	OrderID    string                 `json:"order_id"`
	MixID      string                 `json:"mix_id"`
	MixName    string                 `json:"mix_name"`
	Price      decimal.Decimal        `json:"price"`
	AddMinutes int                    `json:"add_minutes"`
	Status     lifecycle.RebowlStatus `json:"status"`
	DoneAt     *time.Time             `json:"done_at"`
	AdminNote  string                 `json:"admin_note"`
}
