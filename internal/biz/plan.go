package biz

import "context"

// Plan 会员价格表条目，按 (等级, 购买月数) 唯一
type Plan struct {
	ID             uint64
	Level          string
	DurationMonths int
	Price          float64
	Name           string
}

// PlanRepo 价格表仓库接口
type PlanRepo interface {
	// GetPlan 按 (等级, 月数) 查询，不存在时返回 (nil, nil)
	GetPlan(ctx context.Context, level string, durationMonths int) (*Plan, error)
	ListPlans(ctx context.Context) ([]*Plan, error)
}
