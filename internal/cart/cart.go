package cart

import (
	"errors"
	"sort"
	"sync"

	"hookah_delivery/internal/capacity"
	"hookah_delivery/internal/pricing"

	"github.com/shopspring/decimal"
)

// MaxAddOns 附加商品（饮料）总数上限，与设备池无关。
const MaxAddOns = 8

var ErrUnknownProduct = errors.New("unknown product")

// PoolSource 提供最新的池快照；每次变更都重新读取，不缓存 cap。
type PoolSource interface {
	Snapshot() capacity.Snapshot
}

// PriceBook 商品ID -> 目录价。
type PriceBook map[string]decimal.Decimal

func (b PriceBook) Price(id string) (decimal.Decimal, bool) {
	p, ok := b[id]
	return p, ok
}

// Line 购物车的一行。
type Line struct {
	ID    string          `json:"id"`
	Qty   uint            `json:"qty"`
	Price decimal.Decimal `json:"price"`
	Total decimal.Decimal `json:"total"`
}

// Cart 是未提交的选择，只属于当前会话。
type Cart struct {
	mu     sync.Mutex
	pool   PoolSource
	units  PriceBook
	addOns PriceBook

	lines      map[string]uint
	addOnLines map[string]uint
}

func New(pool PoolSource, units, addOns PriceBook) *Cart {
	return &Cart{
		pool:       pool,
		units:      units,
		addOns:     addOns,
		lines:      map[string]uint{},
		addOnLines: map[string]uint{},
	}
}

// SetPriceBooks 目录刷新后替换价格表，已选数量不变。
func (c *Cart) SetPriceBooks(units, addOns PriceBook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.units = units
	c.addOns = addOns
}

// AddUnit 按 capacity.Admit 增加 1 台；被拒绝时不做任何修改。
func (c *Cart) AddUnit(productID string) (capacity.Decision, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.units.Price(productID); !ok {
		return capacity.Deny, ErrUnknownProduct
	}
	d := capacity.Admit(+1, c.totalUnitsLocked(), c.pool.Snapshot())
	if d == capacity.Allow {
		c.lines[productID]++
	}
	return d, nil
}

// RemoveUnit 减 1，到 0 时删除该行。
func (c *Cart) RemoveUnit(productID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	decrement(c.lines, productID)
}

// AddAddOn 总数不超过 MaxAddOns 时加 1，返回是否生效。
func (c *Cart) AddAddOn(id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.addOns.Price(id); !ok {
		return false, ErrUnknownProduct
	}
	if sum(c.addOnLines) >= MaxAddOns {
		return false, nil
	}
	c.addOnLines[id]++
	return true, nil
}

func (c *Cart) RemoveAddOn(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	decrement(c.addOnLines, id)
}

// Clear 提交成功或用户放弃时清空。
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = map[string]uint{}
	c.addOnLines = map[string]uint{}
}

func (c *Cart) TotalUnits() uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalUnitsLocked()
}

func (c *Cart) TotalAddOns() uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sum(c.addOnLines)
}

func (c *Cart) IsEmpty() bool {
	return c.TotalUnits() == 0
}

// Lines 按 ID 排序返回设备行。
func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return buildLines(c.lines, c.units)
}

func (c *Cart) AddOnLines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return buildLines(c.addOnLines, c.addOns)
}

// ComputeTotals 按目录价汇总；折扣只作用于设备部分。
func (c *Cart) ComputeTotals(discountPercent int) pricing.Draft {
	c.mu.Lock()
	defer c.mu.Unlock()

	unit := decimal.Zero
	for _, l := range buildLines(c.lines, c.units) {
		unit = unit.Add(l.Total)
	}
	addOns := decimal.Zero
	for _, l := range buildLines(c.addOnLines, c.addOns) {
		addOns = addOns.Add(l.Total)
	}
	return pricing.Compute(unit, addOns, discountPercent)
}

func (c *Cart) totalUnitsLocked() uint {
	return sum(c.lines)
}

func buildLines(m map[string]uint, book PriceBook) []Line {
	out := make([]Line, 0, len(m))
	for id, qty := range m {
		price, _ := book.Price(id)
		out = append(out, Line{ID: id, Qty: qty, Price: price, Total: pricing.LineTotal(price, qty)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func decrement(m map[string]uint, id string) {
	q, ok := m[id]
	if !ok {
		return
	}
	if q <= 1 {
		delete(m, id)
		return
	}
	m[id] = q - 1
}

func sum(m map[string]uint) uint {
	var n uint
	for _, q := range m {
		n += q
	}
	return n
}
