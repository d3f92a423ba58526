package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCompute_DiscountOnlyOnUnits(t *testing.T) {
	d := Compute(decimal.NewFromInt(70), decimal.NewFromInt(15), 10)

	assert.True(t, d.Total.Equal(decimal.NewFromInt(78)), "total=%s", d.Total)
	assert.True(t, d.Discount.Equal(decimal.NewFromInt(7)))
	assert.True(t, d.AddOnsTotal.Equal(decimal.NewFromInt(15)))
	assert.Equal(t, 10, d.DiscountPercent)
}

func TestCompute_NoDiscount(t *testing.T) {
	d := Compute(decimal.NewFromInt(140), decimal.NewFromInt(30), 0)
	assert.True(t, d.Total.Equal(decimal.NewFromInt(170)))
	assert.True(t, d.Discount.IsZero())
}

func TestCompute_FullDiscountKeepsAddOns(t *testing.T) {
	d := Compute(decimal.NewFromInt(70), decimal.NewFromInt(15), 150)
	assert.Equal(t, 100, d.DiscountPercent)
	assert.True(t, d.Total.Equal(decimal.NewFromInt(15)))
}

func TestCompute_FractionalDiscount(t *testing.T) {
	d := Compute(decimal.NewFromInt(70), decimal.Zero, 15)
	assert.Equal(t, "59.5", d.Total.String())
}

func TestClampPercent(t *testing.T) {
	assert.Equal(t, 0, ClampPercent(-5))
	assert.Equal(t, 42, ClampPercent(42))
	assert.Equal(t, 100, ClampPercent(101))
}

func TestLineTotal(t *testing.T) {
	assert.True(t, LineTotal(decimal.NewFromInt(5), 3).Equal(decimal.NewFromInt(15)))
}
