package model

import "time"

// Order 订单模型
type Order struct {
	ID             string    `gorm:"primaryKey;column:order_id"`
	UserID         uint64    `gorm:"column:user_id;index"`
	Type           string    `gorm:"column:type"` // membership, membership_renewal, video
	Level          string    `gorm:"column:level"`
	DurationMonths int       `gorm:"column:duration_months"`
	Amount         float64   `gorm:"column:amount;type:decimal(10,2)"`
	OriginalAmount float64   `gorm:"column:original_amount;type:decimal(10,2)"`
	DiscountAmount float64   `gorm:"column:discount_amount;type:decimal(10,2)"`
	CouponCode     string    `gorm:"column:coupon_code"`
	AutoRenew      bool      `gorm:"column:auto_renew;default:false"`
	Status         string    `gorm:"column:status"` // pending, completed, failed
	PaymentMethod  string    `gorm:"column:payment_method"`
	TransactionID  string    `gorm:"column:transaction_id"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (Order) TableName() string { return "orders" }
