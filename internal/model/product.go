package model

import (
	"time"

	"gorm.io/gorm"
)

// Mix 基础商品（水烟口味），每单按台数计价。
type Mix struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name        string `gorm:"size:128;not null" json:"name"`
	Flavors     string `gorm:"size:255;not null" json:"flavors"`
	Description string `gorm:"size:1024" json:"description,omitempty"`
	// 四个口味维度，取值 1..5
	Strength  int `gorm:"not null;default:3" json:"strength"`
	Coolness  int `gorm:"not null;default:3" json:"coolness"`
	Sweetness int `gorm:"not null;default:3" json:"sweetness"`
	Smokiness int `gorm:"not null;default:3" json:"smokiness"`

	ImageURL  string `gorm:"size:512" json:"image_url"`
	Price     int64  `gorm:"not null" json:"price"` // 单位：GEL
	Active    bool   `gorm:"not null;default:true;index" json:"is_active"`
	Featured  bool   `gorm:"not null;default:false" json:"is_featured"`
	SortOrder int    `gorm:"not null;default:0" json:"-"`
}

func (Mix) TableName() string { return "mixes" }

// Drink 附加商品（饮料）。
type Drink struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name      string `gorm:"size:128;not null" json:"name"`
	Price     int64  `gorm:"not null" json:"price"`
	ImageURL  string `gorm:"size:512" json:"image_url,omitempty"`
	Active    bool   `gorm:"not null;default:true;index" json:"is_active"`
	SortOrder int    `gorm:"not null;default:0" json:"-"`
}

func (Drink) TableName() string { return "drinks" }
