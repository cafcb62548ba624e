package model

import "time"

// Wallet 用户钱包
// 不变量：balance = total_income - total_withdrawal 且 balance >= 0
type Wallet struct {
	ID              string    `gorm:"primaryKey;column:wallet_id;type:varchar(36)"`
	UserID          uint64    `gorm:"column:user_id;uniqueIndex"`
	Balance         float64   `gorm:"column:balance;type:decimal(10,2);default:0.00"`
	TotalIncome     float64   `gorm:"column:total_income;type:decimal(10,2);default:0.00"`
	TotalWithdrawal float64   `gorm:"column:total_withdrawal;type:decimal(10,2);default:0.00"`
	Version         int       `gorm:"column:version;default:0"` // 乐观锁版本号
	CreatedAt       time.Time `gorm:"column:created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (Wallet) TableName() string { return "wallet" }

// WalletTransaction 钱包流水 (只追加的审计账本，写入后不可变)
type WalletTransaction struct {
	ID           string    `gorm:"primaryKey;column:wallet_transaction_id;type:varchar(36)"`
	UserID       uint64    `gorm:"column:user_id;index"`
	WalletID     string    `gorm:"column:wallet_id;type:varchar(36);index"`
	Type         string    `gorm:"column:type"` // income, withdrawal, adjustment
	Amount       float64   `gorm:"column:amount;type:decimal(10,2)"` // 有符号：收入为正，提现为负
	BalanceAfter float64   `gorm:"column:balance_after;type:decimal(10,2)"`
	RelatedID    string    `gorm:"column:related_id"`
	CreatedAt    time.Time `gorm:"column:created_at;index"`
}

func (WalletTransaction) TableName() string { return "wallet_transaction" }
