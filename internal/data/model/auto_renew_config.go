package model

import "time"

// AutoRenewConfig 自动续费配置，每用户一行
// 不变量：status=disabled_due_to_failures 时 enabled 必为 false
type AutoRenewConfig struct {
	ID             uint64     `gorm:"primaryKey;column:auto_renew_config_id"`
	UserID         uint64     `gorm:"column:user_id;uniqueIndex"`
	Level          string     `gorm:"column:level"`
	DurationMonths int        `gorm:"column:duration_months"`
	PaymentMethod  string     `gorm:"column:payment_method"`
	NextRenewDate  time.Time  `gorm:"column:next_renew_date;index"`
	Status         string     `gorm:"column:status"` // pending, processing, success, failed, disabled_due_to_failures
	Enabled        bool       `gorm:"column:enabled;default:false"`
	FailureCount   int        `gorm:"column:failure_count;default:0"`
	FailureReason  string     `gorm:"column:failure_reason"`
	LastAttemptAt  *time.Time `gorm:"column:last_attempt_at"`
	LastRenewalAt  *time.Time `gorm:"column:last_renewal_at"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
}

func (AutoRenewConfig) TableName() string { return "auto_renew_config" }
