package model

import "time"

// Withdrawal 提现申请
type Withdrawal struct {
	ID            string     `gorm:"primaryKey;column:withdrawal_id;type:varchar(36)"`
	UserID        uint64     `gorm:"column:user_id;index"`
	Amount        float64    `gorm:"column:amount;type:decimal(10,2)"`
	Status        string     `gorm:"column:status;index"` // pending, approved, rejected, completed, failed
	AccountInfo   string     `gorm:"column:account_info"`
	AppliedAt     time.Time  `gorm:"column:applied_at"`
	ProcessedAt   *time.Time `gorm:"column:processed_at"`
	ProcessedBy   string     `gorm:"column:processed_by"`
	TransactionID string     `gorm:"column:transaction_id"`
	Reason        string     `gorm:"column:reason"`
}

func (Withdrawal) TableName() string { return "withdrawal" }
