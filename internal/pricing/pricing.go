package pricing

import "github.com/shopspring/decimal"

// Draft 是下单前的价格草稿，不落库。
// 折扣只作用于 UnitPrice，AddOnsTotal 永远按原价计算。
type Draft struct {
	UnitPrice       decimal.Decimal `json:"unit_price"`
	AddOnsTotal     decimal.Decimal `json:"addons_total"`
	DiscountPercent int             `json:"discount_percent"`
	Discount        decimal.Decimal `json:"discount"`
	Total           decimal.Decimal `json:"total"`
}

var hundred = decimal.NewFromInt(100)

// Compute 计算订单总价：total = unit*(1-p) + addOns。
func Compute(unitPrice, addOnsTotal decimal.Decimal, discountPercent int) Draft {
	p := ClampPercent(discountPercent)
	discount := unitPrice.Mul(decimal.NewFromInt(int64(p))).Div(hundred).Round(2)
	return Draft{
		UnitPrice:       unitPrice,
		AddOnsTotal:     addOnsTotal,
		DiscountPercent: p,
		Discount:        discount,
		Total:           unitPrice.Sub(discount).Add(addOnsTotal),
	}
}

// ClampPercent 把折扣限制在 [0,100]。
func ClampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// LineTotal 单价 × 数量。
func LineTotal(price decimal.Decimal, qty uint) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(qty)))
}
