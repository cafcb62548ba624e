package data

import (
	"context"
	"errors"

	"xinyuan_tech/membership-service/internal/biz"
	"xinyuan_tech/membership-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

type orderRepo struct {
	data *Data
	log  *log.Helper
}

// NewOrderRepo .
func NewOrderRepo(data *Data, logger log.Logger) biz.OrderRepo {
	return &orderRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// CreateOrder 创建订单
func (r *orderRepo) CreateOrder(ctx context.Context, order *biz.Order) error {
	record := orderToModel(order)
	if err := r.data.DB(ctx).Create(record).Error; err != nil {
		r.log.WithContext(ctx).Errorf("failed to create order: orderID=%s, err=%v", order.ID, err)
		return err
	}
	return nil
}

// GetOrder 查询订单，不存在时返回 nil
func (r *orderRepo) GetOrder(ctx context.Context, orderID string) (*biz.Order, error) {
	var m model.Order
	err := r.data.DB(ctx).Where("order_id = ?", orderID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.WithContext(ctx).Errorf("failed to get order: orderID=%s, err=%v", orderID, err)
		return nil, err
	}
	return orderToBiz(&m), nil
}

// UpdateOrder 更新订单
func (r *orderRepo) UpdateOrder(ctx context.Context, order *biz.Order) error {
	record := orderToModel(order)
	if err := r.data.DB(ctx).Save(record).Error; err != nil {
		r.log.WithContext(ctx).Errorf("failed to update order: orderID=%s, err=%v", order.ID, err)
		return err
	}
	return nil
}

// TransitionOrder 条件流转：当前状态必须为 fromStatus。
// 0 行受影响说明订单已被并发回调终结，返回 false 由调用方跳过。
func (r *orderRepo) TransitionOrder(ctx context.Context, order *biz.Order, fromStatus string) (bool, error) {
	result := r.data.DB(ctx).Model(&model.Order{}).
		Where("order_id = ? AND status = ?", order.ID, fromStatus).
		Updates(map[string]interface{}{
			"status":         order.Status,
			"transaction_id": order.TransactionID,
			"updated_at":     order.UpdatedAt,
		})
	if result.Error != nil {
		r.log.WithContext(ctx).Errorf("failed to transition order: orderID=%s, from=%s, to=%s, err=%v", order.ID, fromStatus, order.Status, result.Error)
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		r.log.WithContext(ctx).Warnf("order status transition conflict: orderID=%s, from=%s, to=%s", order.ID, fromStatus, order.Status)
		return false, nil
	}
	return true, nil
}

func orderToModel(o *biz.Order) *model.Order {
	return &model.Order{
		ID:             o.ID,
		UserID:         o.UserID,
		Type:           o.Type,
		Level:          o.Level,
		DurationMonths: o.DurationMonths,
		Amount:         o.Amount,
		OriginalAmount: o.OriginalAmount,
		DiscountAmount: o.DiscountAmount,
		CouponCode:     o.CouponCode,
		AutoRenew:      o.AutoRenew,
		Status:         o.Status,
		PaymentMethod:  o.PaymentMethod,
		TransactionID:  o.TransactionID,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func orderToBiz(m *model.Order) *biz.Order {
	return &biz.Order{
		ID:             m.ID,
		UserID:         m.UserID,
		Type:           m.Type,
		Level:          m.Level,
		DurationMonths: m.DurationMonths,
		Amount:         m.Amount,
		OriginalAmount: m.OriginalAmount,
		DiscountAmount: m.DiscountAmount,
		CouponCode:     m.CouponCode,
		AutoRenew:      m.AutoRenew,
		Status:         m.Status,
		PaymentMethod:  m.PaymentMethod,
		TransactionID:  m.TransactionID,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
