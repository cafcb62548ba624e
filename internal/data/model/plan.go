package model

// MembershipPlan 会员价格表，(等级, 月数) 唯一
type MembershipPlan struct {
	ID             uint64  `gorm:"primaryKey;column:plan_id"`
	Level          string  `gorm:"column:level;uniqueIndex:uk_level_duration,priority:1"`
	DurationMonths int     `gorm:"column:duration_months;uniqueIndex:uk_level_duration,priority:2"`
	Price          float64 `gorm:"column:price;type:decimal(10,2)"`
	Name           string  `gorm:"column:name"`
}

func (MembershipPlan) TableName() string { return "membership_plan" }
