package data

import (
	"context"
	"errors"

	"xinyuan_tech/membership-service/internal/biz"
	"xinyuan_tech/membership-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type couponRepo struct {
	data *Data
	log  *log.Helper
}

// NewCouponRepo .
func NewCouponRepo(data *Data, logger log.Logger) biz.CouponRepo {
	return &couponRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// GetCouponByCode 按券码查询，不存在时返回 nil
func (r *couponRepo) GetCouponByCode(ctx context.Context, code string) (*biz.Coupon, error) {
	return r.getCoupon(ctx, r.data.DB(ctx), code)
}

// GetCouponByCodeForUpdate 在事务内对券行加排他锁后读取
func (r *couponRepo) GetCouponByCodeForUpdate(ctx context.Context, code string) (*biz.Coupon, error) {
	db := r.data.DB(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
	return r.getCoupon(ctx, db, code)
}

func (r *couponRepo) getCoupon(ctx context.Context, db *gorm.DB, code string) (*biz.Coupon, error) {
	var m model.Coupon
	err := db.Where("code = ?", code).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.WithContext(ctx).Errorf("failed to get coupon: code=%s, err=%v", code, err)
		return nil, err
	}
	return couponToBiz(&m), nil
}

// CountUsages 统计券的总使用次数
func (r *couponRepo) CountUsages(ctx context.Context, couponID uint64) (int, error) {
	var count int64
	err := r.data.DB(ctx).Model(&model.CouponUsage{}).
		Where("coupon_id = ?", couponID).
		Count(&count).Error
	if err != nil {
		r.log.WithContext(ctx).Errorf("failed to count coupon usages: couponID=%d, err=%v", couponID, err)
		return 0, err
	}
	return int(count), nil
}

// CountUserUsages 统计单个用户对券的使用次数
func (r *couponRepo) CountUserUsages(ctx context.Context, couponID, userID uint64) (int, error) {
	var count int64
	err := r.data.DB(ctx).Model(&model.CouponUsage{}).
		Where("coupon_id = ? AND user_id = ?", couponID, userID).
		Count(&count).Error
	if err != nil {
		r.log.WithContext(ctx).Errorf("failed to count user coupon usages: couponID=%d, userID=%d, err=%v", couponID, userID, err)
		return 0, err
	}
	return int(count), nil
}

// AddUsage 记录一次券的使用
func (r *couponRepo) AddUsage(ctx context.Context, usage *biz.CouponUsage) error {
	record := &model.CouponUsage{
		CouponID: usage.CouponID,
		UserID:   usage.UserID,
		OrderID:  usage.OrderID,
		UsedAt:   usage.UsedAt,
	}
	if err := r.data.DB(ctx).Create(record).Error; err != nil {
		r.log.WithContext(ctx).Errorf("failed to add coupon usage: couponID=%d, userID=%d, err=%v", usage.CouponID, usage.UserID, err)
		return err
	}
	usage.ID = record.ID
	return nil
}

func couponToBiz(m *model.Coupon) *biz.Coupon {
	return &biz.Coupon{
		ID:                m.ID,
		Code:              m.Code,
		DiscountType:      m.DiscountType,
		DiscountValue:     m.DiscountValue,
		MinOrderAmount:    m.MinOrderAmount,
		MaxDiscountAmount: m.MaxDiscountAmount,
		MaxUsage:          m.MaxUsage,
		MaxUsagePerUser:   m.MaxUsagePerUser,
		Active:            m.Active,
		StartDate:         m.StartDate,
		ExpireAt:          m.ExpireAt,
		CreatedAt:         m.CreatedAt,
	}
}
