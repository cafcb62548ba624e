package model

import "time"

// Coupon 优惠券
type Coupon struct {
	ID                uint64    `gorm:"primaryKey;column:coupon_id"`
	Code              string    `gorm:"column:code;uniqueIndex"`
	DiscountType      string    `gorm:"column:discount_type"` // fixed, percentage
	DiscountValue     float64   `gorm:"column:discount_value;type:decimal(10,2)"`
	MinOrderAmount    float64   `gorm:"column:min_order_amount;type:decimal(10,2)"`
	MaxDiscountAmount float64   `gorm:"column:max_discount_amount;type:decimal(10,2)"`
	MaxUsage          int       `gorm:"column:max_usage"`
	MaxUsagePerUser   int       `gorm:"column:max_usage_per_user"`
	Active            bool      `gorm:"column:active;default:true"`
	StartDate         time.Time `gorm:"column:start_date"`
	ExpireAt          time.Time `gorm:"column:expire_at"`
	CreatedAt         time.Time `gorm:"column:created_at"`
}

func (Coupon) TableName() string { return "coupon" }

// CouponUsage 优惠券使用记录，存在的行数即使用次数
type CouponUsage struct {
	ID       uint64    `gorm:"primaryKey;column:coupon_usage_id"`
	CouponID uint64    `gorm:"column:coupon_id;uniqueIndex:uk_coupon_user_order,priority:1"`
	UserID   uint64    `gorm:"column:user_id;uniqueIndex:uk_coupon_user_order,priority:2"`
	OrderID  string    `gorm:"column:order_id;uniqueIndex:uk_coupon_user_order,priority:3"`
	UsedAt   time.Time `gorm:"column:used_at"`
}

func (CouponUsage) TableName() string { return "coupon_usage" }
