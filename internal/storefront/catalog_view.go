package storefront

import (
	"hookah_delivery/internal/cart"
	"hookah_delivery/internal/gateway"
)

// MixView 一个口味卡片。CanAdd=false 时加号按钮禁用。
type MixView struct {
	gateway.Mix
	Qty    uint `json:"qty"`
	CanAdd bool `json:"can_add"`
}

type DrinkView struct {
	gateway.Drink
	Qty    uint `json:"qty"`
	CanAdd bool `json:"can_add"`
}

// CatalogView 目录页状态。SoldOut 时整个下单流程关闭，不展示加号。
type CatalogView struct {
	SoldOut    bool        `json:"sold_out"`
	Loaded     bool        `json:"loaded"`
	Available  uint        `json:"available"`
	Cap        uint        `json:"cap"`
	InCart     uint        `json:"in_cart"`
	AddOnsLeft uint        `json:"addons_left"`
	Featured   *MixView    `json:"featured"`
	Mixes      []MixView   `json:"mixes"`
	Drinks     []DrinkView `json:"drinks"`
}

// CatalogView 每次调用都用最新快照重新计算 cap。
func (s *Session) CatalogView() CatalogView {
	snap := s.tracker.Snapshot()
	_, loaded := s.tracker.FetchedAt()
	inCart := s.cart.TotalUnits()
	addOns := s.cart.TotalAddOns()

	v := CatalogView{
		SoldOut:   snap.SoldOut(),
		Loaded:    loaded,
		Available: snap.Available,
		Cap:       snap.Cap(),
		InCart:    inCart,
	}
	if addOns < cart.MaxAddOns {
		v.AddOnsLeft = cart.MaxAddOns - addOns
	}

	qty := map[string]uint{}
	for _, l := range s.cart.Lines() {
		qty[l.ID] = l.Qty
	}
	addOnQty := map[string]uint{}
	for _, l := range s.cart.AddOnLines() {
		addOnQty[l.ID] = l.Qty
	}
	canAdd := !v.SoldOut && inCart < v.Cap

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.mixes {
		v.Mixes = append(v.Mixes, MixView{Mix: m, Qty: qty[m.ID], CanAdd: canAdd})
	}
	if s.featured != nil {
		v.Featured = &MixView{Mix: *s.featured, Qty: qty[s.featured.ID], CanAdd: canAdd}
	}
	for _, d := range s.drinks {
		v.Drinks = append(v.Drinks, DrinkView{Drink: d, Qty: addOnQty[d.ID], CanAdd: v.AddOnsLeft > 0})
	}
	return v
}
