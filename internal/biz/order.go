package biz

import (
	"context"
	"fmt"
	"time"

	"xinyuan_tech/membership-service/internal/constants"
	"xinyuan_tech/membership-service/internal/errors"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
)

// Order 订单记录，completed 后不可再变更
type Order struct {
	ID             string
	UserID         uint64
	Type           string // membership, membership_renewal, video
	Level          string
	DurationMonths int
	Amount         float64
	OriginalAmount float64
	DiscountAmount float64
	CouponCode     string
	AutoRenew      bool
	Status         string // pending, completed, failed
	PaymentMethod  string
	TransactionID  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OrderRepo 订单仓库接口
type OrderRepo interface {
	CreateOrder(ctx context.Context, order *Order) error
	// GetOrder 不存在时返回 (nil, nil)
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	UpdateOrder(ctx context.Context, order *Order) error
	// TransitionOrder 条件流转：当前状态必须为 fromStatus，返回是否流转成功
	TransitionOrder(ctx context.Context, order *Order, fromStatus string) (bool, error)
}

// CreateMembershipOrder 创建会员购买订单
// 优惠券核销与订单落库在同一事务内完成：订单未持久化时绝不会记录券的使用。
func (uc *MembershipUsecase) CreateMembershipOrder(ctx context.Context, userID uint64, level string, durationMonths int, autoRenew bool, paymentMethod, couponCode string) (*Order, error) {
	uc.log.Infof("CreateMembershipOrder: userID=%d, level=%s, duration=%dm, coupon=%q", userID, level, durationMonths, couponCode)

	price, originalPrice, err := uc.CalculateUpgradePrice(ctx, userID, level, durationMonths)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := &Order{
		ID:             fmt.Sprintf("MEM%d%d", now.UnixNano(), userID),
		UserID:         userID,
		Type:           constants.OrderTypeMembership,
		Level:          level,
		DurationMonths: durationMonths,
		Amount:         price,
		OriginalAmount: originalPrice,
		AutoRenew:      autoRenew,
		Status:         constants.OrderStatusPending,
		PaymentMethod:  paymentMethod,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = uc.tm.Exec(ctx, func(ctx context.Context) error {
		if couponCode != "" {
			res, err := uc.couponUc.Redeem(ctx, couponCode, userID, order.ID, price)
			if err != nil {
				return err
			}
			order.CouponCode = couponCode
			order.DiscountAmount = res.DiscountAmount
			order.Amount = res.FinalAmount
		}
		return uc.orderRepo.CreateOrder(ctx, order)
	})
	if err != nil {
		uc.log.Errorf("Failed to create membership order for user %d: %v", userID, err)
		return nil, err
	}

	uc.log.Infof("Created order %s: amount=%.2f (original=%.2f, discount=%.2f)", order.ID, order.Amount, order.OriginalAmount, order.DiscountAmount)
	return order, nil
}

// HandlePaymentCallback 处理支付回调
// 幂等：订单只能从 pending 条件流转到终态，并发重复回调最多一次生效。
// 只有网关确认成功才会延长会员，订单完成与会员延期在同一事务内。
func (uc *MembershipUsecase) HandlePaymentCallback(ctx context.Context, orderID, status, transactionID string) error {
	uc.log.Infof("HandlePaymentCallback: orderID=%s, status=%s, transactionID=%s", orderID, status, transactionID)

	return uc.tm.Exec(ctx, func(ctx context.Context) error {
		order, err := uc.orderRepo.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeOrderNotFound)
		}
		if order.Status != constants.OrderStatusPending {
			uc.log.Infof("Order %s already %s, skipping (idempotent)", orderID, order.Status)
			return nil
		}

		now := time.Now().UTC()
		if status != constants.PaymentCallbackSuccess {
			order.Status = constants.OrderStatusFailed
			order.UpdatedAt = now
			ok, err := uc.orderRepo.TransitionOrder(ctx, order, constants.OrderStatusPending)
			if err != nil {
				return err
			}
			if !ok {
				uc.log.Infof("Order %s already finalized, skipping failure callback", orderID)
			}
			return nil
		}
		if transactionID == "" {
			return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodePaymentFailed)
		}

		order.Status = constants.OrderStatusCompleted
		order.TransactionID = transactionID
		order.UpdatedAt = now
		ok, err := uc.orderRepo.TransitionOrder(ctx, order, constants.OrderStatusPending)
		if err != nil {
			return err
		}
		if !ok {
			// 另一个并发回调已完成该订单，本次不再触发会员延期
			uc.log.Infof("Order %s already finalized by a concurrent callback, skipping (idempotent)", orderID)
			return nil
		}

		switch order.Type {
		case constants.OrderTypeMembership, constants.OrderTypeMembershipRenewal:
			_, err := uc.Upgrade(ctx, order.UserID, order.Level, order.DurationMonths, order.AutoRenew, order.PaymentMethod, order.ID)
			return err
		default:
			// 视频等其他订单类型的履约由各自的结算路径处理
			return nil
		}
	})
}
