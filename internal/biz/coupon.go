package biz

import (
	"context"
	"math"
	"time"

	"xinyuan_tech/membership-service/internal/constants"
	"xinyuan_tech/membership-service/internal/errors"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// Coupon 优惠券
type Coupon struct {
	ID                uint64
	Code              string
	DiscountType      string // fixed, percentage
	DiscountValue     float64
	MinOrderAmount    float64
	MaxDiscountAmount float64
	MaxUsage          int
	MaxUsagePerUser   int
	Active            bool
	StartDate         time.Time
	ExpireAt          time.Time
	CreatedAt         time.Time
}

// CouponUsage 优惠券使用记录，(coupon_id, user_id, order_id) 唯一
type CouponUsage struct {
	ID       uint64
	CouponID uint64
	UserID   uint64
	OrderID  string
	UsedAt   time.Time
}

// CouponResult 优惠券校验/核销结果
type CouponResult struct {
	CouponID       uint64
	DiscountAmount float64
	FinalAmount    float64
}

// CouponRepo 优惠券仓库接口
type CouponRepo interface {
	// GetCouponByCode 不存在时返回 (nil, nil)
	GetCouponByCode(ctx context.Context, code string) (*Coupon, error)
	// GetCouponByCodeForUpdate 在事务内对券行加排他锁后读取
	GetCouponByCodeForUpdate(ctx context.Context, code string) (*Coupon, error)
	CountUsages(ctx context.Context, couponID uint64) (int, error)
	CountUserUsages(ctx context.Context, couponID, userID uint64) (int, error)
	AddUsage(ctx context.Context, usage *CouponUsage) error
}

// CouponDiscount 计算优惠金额 (纯函数)
// fixed 类型扣减 min(面值, 原价)；percentage 类型按比例扣减并受最高优惠额约束。
func CouponDiscount(c *Coupon, basePrice float64) float64 {
	var d float64
	switch c.DiscountType {
	case constants.CouponTypeFixed:
		d = math.Min(c.DiscountValue, basePrice)
	case constants.CouponTypePercentage:
		d = basePrice * c.DiscountValue / 100
		if c.MaxDiscountAmount > 0 && d > c.MaxDiscountAmount {
			d = c.MaxDiscountAmount
		}
	}
	if d > basePrice {
		d = basePrice
	}
	if d < 0 {
		d = 0
	}
	return Round2(d)
}

// CouponUsecase 优惠券业务逻辑
type CouponUsecase struct {
	repo CouponRepo
	log  *log.Helper
}

// NewCouponUsecase 创建优惠券业务用例
func NewCouponUsecase(repo CouponRepo, logger log.Logger) *CouponUsecase {
	return &CouponUsecase{
		repo: repo,
		log:  log.NewHelper(logger),
	}
}

// Validate 校验优惠券 (只读，不记录使用)
func (uc *CouponUsecase) Validate(ctx context.Context, code string, userID uint64, basePrice float64) (*CouponResult, error) {
	coupon, err := uc.repo.GetCouponByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return uc.evaluate(ctx, coupon, userID, basePrice)
}

// Redeem 核销优惠券，必须在订单事务内调用。
// 先对券行加锁再统计使用次数，保证并发核销下不会超过使用上限；
// (coupon_id, user_id, order_id) 唯一索引兜底防止重复记录。
func (uc *CouponUsecase) Redeem(ctx context.Context, code string, userID uint64, orderID string, basePrice float64) (*CouponResult, error) {
	coupon, err := uc.repo.GetCouponByCodeForUpdate(ctx, code)
	if err != nil {
		return nil, err
	}
	result, err := uc.evaluate(ctx, coupon, userID, basePrice)
	if err != nil {
		return nil, err
	}

	usage := &CouponUsage{
		CouponID: coupon.ID,
		UserID:   userID,
		OrderID:  orderID,
		UsedAt:   time.Now().UTC(),
	}
	if err := uc.repo.AddUsage(ctx, usage); err != nil {
		uc.log.Errorf("Failed to record coupon usage: coupon=%s, user=%d, order=%s: %v", code, userID, orderID, err)
		return nil, err
	}

	uc.log.Infof("Coupon %s redeemed by user %d on order %s: discount=%.2f", code, userID, orderID, result.DiscountAmount)
	return result, nil
}

// evaluate 执行优惠券的全部可用性检查并计算优惠金额
func (uc *CouponUsecase) evaluate(ctx context.Context, coupon *Coupon, userID uint64, basePrice float64) (*CouponResult, error) {
	if coupon == nil {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeCouponNotFound)
	}
	if !coupon.Active {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeCouponInactive)
	}

	now := time.Now().UTC()
	if !coupon.StartDate.IsZero() && now.Before(coupon.StartDate) {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeCouponNotStarted)
	}
	if !coupon.ExpireAt.IsZero() && now.After(coupon.ExpireAt) {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeCouponExpired)
	}
	if coupon.MinOrderAmount > 0 && basePrice < coupon.MinOrderAmount {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeCouponMinOrderNotMet)
	}

	if coupon.MaxUsage > 0 {
		used, err := uc.repo.CountUsages(ctx, coupon.ID)
		if err != nil {
			return nil, err
		}
		if used >= coupon.MaxUsage {
			return nil, pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeCouponExhausted)
		}
	}
	if coupon.MaxUsagePerUser > 0 {
		used, err := uc.repo.CountUserUsages(ctx, coupon.ID, userID)
		if err != nil {
			return nil, err
		}
		if used >= coupon.MaxUsagePerUser {
			return nil, pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeCouponUserLimitReached)
		}
	}

	discount := CouponDiscount(coupon, basePrice)
	final := Round2(basePrice - discount)
	if final < 0 {
		final = 0
	}
	return &CouponResult{
		CouponID:       coupon.ID,
		DiscountAmount: discount,
		FinalAmount:    final,
	}, nil
}
