package model

import "time"

// UserMembership 用户当前会员投影
type UserMembership struct {
	ID        uint64    `gorm:"primaryKey;column:user_membership_id"`
	UserID    uint64    `gorm:"column:user_id;uniqueIndex"`
	Level     string    `gorm:"column:level"`
	ExpireAt  time.Time `gorm:"column:expire_at;index"`
	AutoRenew bool      `gorm:"column:auto_renew;default:false"`
	Status    string    `gorm:"column:status"` // active, expired
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (UserMembership) TableName() string { return "user_membership" }

// MembershipRecord 会员变更记录 (只追加)
type MembershipRecord struct {
	ID             uint64    `gorm:"primaryKey;column:membership_record_id"`
	UserID         uint64    `gorm:"column:user_id;index"`
	Level          string    `gorm:"column:level"`
	DurationMonths int       `gorm:"column:duration_months"`
	StartTime      time.Time `gorm:"column:start_time"`
	EndTime        time.Time `gorm:"column:end_time"`
	OrderID        string    `gorm:"column:order_id"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (MembershipRecord) TableName() string { return "membership_record" }
