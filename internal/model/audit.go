package model

import "time"

// AuditLog 记录每次状态变更（客户端动作、管理推进、定时任务）。
type AuditLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	EntityType string `gorm:"size:32;not null;index:ix_audit_entity" json:"entity_type"`
	EntityID   string `gorm:"size:36;index:ix_audit_entity" json:"entity_id"`
	Action     string `gorm:"size:64;not null" json:"action"`
	Actor      string `gorm:"size:128;not null" json:"actor"`
	Details    string `gorm:"size:1024" json:"details"`
}

func (AuditLog) TableName() string { return "audit_logs" }

// Notification 已发送的通知，EventID 唯一保证消费幂等。
type Notification struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	EventID  string `gorm:"size:64;uniqueIndex;not null" json:"event_id"`
	OrderID  string `gorm:"size:36;index" json:"order_id"`
	Identity string `gorm:"size:128;not null" json:"identity"`
	Template string `gorm:"size:64;not null" json:"template"`
	Text     string `gorm:"size:1024;not null" json:"text"`
}

func (Notification) TableName() string { return "notifications" }

// All 返回需要 AutoMigrate 的全部模型。
func All() []any {
	return []any{
		&Mix{}, &Drink{},
		&Order{}, &OrderItem{}, &RebowlRequest{},
		&PromoCode{}, &PromoCodeUsage{},
		&AuditLog{}, &Notification{},
	}
}
