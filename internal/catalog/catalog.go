package catalog

import (
	"context"
	"errors"
	"fmt"

	"hookah_delivery/internal/model"

	"gorm.io/gorm"
)

// Repository 只读目录访问（口味 + 饮料）。
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Mixes 上架口味，按 sort_order, name 排序。
func (r *Repository) Mixes(ctx context.Context) ([]model.Mix, error) {
	var list []model.Mix
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("sort_order, name").
		Find(&list).Error
	return list, err
}

// Featured 本周推荐；没有时返回 nil, nil。
func (r *Repository) Featured(ctx context.Context) (*model.Mix, error) {
	var m model.Mix
	err := r.db.WithContext(ctx).
		Where("active = ? AND featured = ?", true, true).
		Order("sort_order, name").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repository) Drinks(ctx context.Context) ([]model.Drink, error) {
	var list []model.Drink
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("sort_order, name").
		Find(&list).Error
	return list, err
}

// MixesByID 按 ID 取上架口味；缺失的 ID 不在结果里。
func (r *Repository) MixesByID(ctx context.Context, ids []string) (map[string]model.Mix, error) {
	var list []model.Mix
	if len(ids) > 0 {
		if err := r.db.WithContext(ctx).Where("id IN ? AND active = ?", ids, true).Find(&list).Error; err != nil {
			return nil, err
		}
	}
	out := make(map[string]model.Mix, len(list))
	for _, m := range list {
		out[m.ID] = m
	}
	return out, nil
}

func (r *Repository) DrinksByID(ctx context.Context, ids []string) (map[string]model.Drink, error) {
	var list []model.Drink
	if len(ids) > 0 {
		if err := r.db.WithContext(ctx).Where("id IN ? AND active = ?", ids, true).Find(&list).Error; err != nil {
			return nil, err
		}
	}
	out := make(map[string]model.Drink, len(list))
	for _, d := range list {
		out[d.ID] = d
	}
	return out, nil
}

// SeedDefaults 目录为空时写入演示数据，重复调用无副作用。
func (r *Repository) SeedDefaults(ctx context.Context, unitPrice int64) error {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Mix{}).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	mixes := []model.Mix{
		{ID: "mix-lemon-mint", Name: "Lemon Mint", Flavors: "lemon, mint", Strength: 2, Coolness: 4, Sweetness: 2, Smokiness: 3, Featured: true, SortOrder: 1},
		{ID: "mix-berry-ice", Name: "Berry Ice", Flavors: "blueberry, raspberry, ice", Strength: 3, Coolness: 5, Sweetness: 4, Smokiness: 3, SortOrder: 2},
		{ID: "mix-tropic", Name: "Tropic", Flavors: "mango, passion fruit", Strength: 3, Coolness: 2, Sweetness: 5, Smokiness: 4, SortOrder: 3},
		{ID: "mix-dark-grape", Name: "Dark Grape", Flavors: "grape, anise", Strength: 5, Coolness: 1, Sweetness: 3, Smokiness: 5, SortOrder: 4},
	}
	for i := range mixes {
		mixes[i].Price = unitPrice
		mixes[i].Active = true
		mixes[i].ImageURL = fmt.Sprintf("/images/%s.jpg", mixes[i].ID)
	}
	drinks := []model.Drink{
		{ID: "drink-cola", Name: "Coca-Cola 0.5", Price: 5, Active: true, SortOrder: 1},
		{ID: "drink-water", Name: "Water 0.5", Price: 3, Active: true, SortOrder: 2},
		{ID: "drink-lemonade", Name: "Lemonade", Price: 6, Active: true, SortOrder: 3},
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&mixes).Error; err != nil {
			return err
		}
		return tx.Create(&drinks).Error
	})
}
