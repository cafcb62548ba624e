package data

import (
	"context"
	"errors"

	"xinyuan_tech/membership-service/internal/biz"
	"xinyuan_tech/membership-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

type planRepo struct {
	data *Data
	log  *log.Helper
}

// NewPlanRepo .
func NewPlanRepo(data *Data, logger log.Logger) biz.PlanRepo {
	return &planRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// GetPlan 按等级和时长查询套餐，不存在时返回 nil
func (r *planRepo) GetPlan(ctx context.Context, level string, durationMonths int) (*biz.Plan, error) {
	var m model.MembershipPlan
	err := r.data.DB(ctx).
		Where("level = ? AND duration_months = ?", level, durationMonths).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.WithContext(ctx).Errorf("failed to get plan: level=%s, duration=%d, err=%v", level, durationMonths, err)
		return nil, err
	}
	return planToBiz(&m), nil
}

// ListPlans 查询全部套餐
func (r *planRepo) ListPlans(ctx context.Context) ([]*biz.Plan, error) {
	var ms []*model.MembershipPlan
	err := r.data.DB(ctx).
		Order("level ASC, duration_months ASC").
		Find(&ms).Error
	if err != nil {
		r.log.WithContext(ctx).Errorf("failed to list plans: err=%v", err)
		return nil, err
	}
	plans := make([]*biz.Plan, 0, len(ms))
	for _, m := range ms {
		plans = append(plans, planToBiz(m))
	}
	return plans, nil
}

func planToBiz(m *model.MembershipPlan) *biz.Plan {
	return &biz.Plan{
		ID:             m.ID,
		Level:          m.Level,
		DurationMonths: m.DurationMonths,
		Price:          m.Price,
		Name:           m.Name,
	}
}
