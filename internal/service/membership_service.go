package service

import (
	"context"
	"time"

	"xinyuan_tech/membership-service/internal/biz"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
)

// MembershipService 会员计费服务
type MembershipService struct {
	uc *biz.MembershipUsecase
	cc *biz.CouponUsecase
}

// NewMembershipService 创建会员服务实例
func NewMembershipService(uc *biz.MembershipUsecase, cc *biz.CouponUsecase) *MembershipService {
	return &MembershipService{uc: uc, cc: cc}
}

// MembershipReply 会员信息
type MembershipReply struct {
	UserID    uint64 `json:"user_id"`
	Level     string `json:"level"`
	ExpireAt  string `json:"expire_at"`
	AutoRenew bool   `json:"auto_renew"`
	Status    string `json:"status"`
	IsMember  bool   `json:"is_member"`
}

// GetMyMembership 获取用户当前会员信息
func (s *MembershipService) GetMyMembership(ctx context.Context, userID uint64) (*MembershipReply, error) {
	if userID == 0 {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, pkgErrors.ErrCodeInvalidArgument)
	}
	m, err := s.uc.GetMyMembership(ctx, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return &MembershipReply{UserID: userID, IsMember: false}, nil
	}
	return &MembershipReply{
		UserID:    m.UserID,
		Level:     m.Level,
		ExpireAt:  m.ExpireAt.Format(time.RFC3339),
		AutoRenew: m.AutoRenew,
		Status:    m.Status,
		IsMember:  m.Active(time.Now().UTC()),
	}, nil
}

// CalculatePriceRequest 试算请求
type CalculatePriceRequest struct {
	UserID         uint64 `json:"user_id"`
	Level          string `json:"level"`
	DurationMonths int    `json:"duration_months"`
}

// CalculatePriceReply 试算结果
type CalculatePriceReply struct {
	Price         float64 `json:"price"`
	OriginalPrice float64 `json:"original_price"`
}

// CalculateUpgradePrice 计算升级/购买价格 (只读试算，不落库)
func (s *MembershipService) CalculateUpgradePrice(ctx context.Context, req *CalculatePriceRequest) (*CalculatePriceReply, error) {
	if req.UserID == 0 || req.Level == "" {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, pkgErrors.ErrCodeInvalidArgument)
	}
	price, original, err := s.uc.CalculateUpgradePrice(ctx, req.UserID, req.Level, req.DurationMonths)
	if err != nil {
		return nil, err
	}
	return &CalculatePriceReply{Price: price, OriginalPrice: original}, nil
}

// CreateOrderRequest 创建会员订单请求
type CreateOrderRequest struct {
	UserID         uint64 `json:"user_id"`
	Level          string `json:"level"`
	DurationMonths int    `json:"duration_months"`
	AutoRenew      bool   `json:"auto_renew"`
	PaymentMethod  string `json:"payment_method"`
	CouponCode     string `json:"coupon_code"`
}

// OrderReply 订单信息
type OrderReply struct {
	OrderID        string  `json:"order_id"`
	UserID         uint64  `json:"user_id"`
	Type           string  `json:"type"`
	Amount         float64 `json:"amount"`
	OriginalAmount float64 `json:"original_amount"`
	DiscountAmount float64 `json:"discount_amount"`
	Status         string  `json:"status"`
}

// CreateMembershipOrder 创建会员购买订单
func (s *MembershipService) CreateMembershipOrder(ctx context.Context, req *CreateOrderRequest) (*OrderReply, error) {
	if req.UserID == 0 || req.Level == "" {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, pkgErrors.ErrCodeInvalidArgument)
	}
	order, err := s.uc.CreateMembershipOrder(ctx, req.UserID, req.Level, req.DurationMonths, req.AutoRenew, req.PaymentMethod, req.CouponCode)
	if err != nil {
		return nil, err
	}
	return orderToReply(order), nil
}

// PaymentCallbackRequest 支付回调请求
type PaymentCallbackRequest struct {
	OrderID       string `json:"order_id"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
}

// PaymentCallbackReply 支付回调结果
type PaymentCallbackReply struct {
	Handled bool `json:"handled"`
}

// PaymentCallback 处理支付网关回调 (幂等)
func (s *MembershipService) PaymentCallback(ctx context.Context, req *PaymentCallbackRequest) (*PaymentCallbackReply, error) {
	if req.OrderID == "" {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, pkgErrors.ErrCodeInvalidArgument)
	}
	if err := s.uc.HandlePaymentCallback(ctx, req.OrderID, req.Status, req.TransactionID); err != nil {
		return nil, err
	}
	return &PaymentCallbackReply{Handled: true}, nil
}

// SetupAutoRenewRequest 开通自动续费请求
type SetupAutoRenewRequest struct {
	UserID         uint64 `json:"user_id"`
	Level          string `json:"level"`
	DurationMonths int    `json:"duration_months"`
	PaymentMethod  string `json:"payment_method"`
}

// AutoRenewReply 自动续费配置
type AutoRenewReply struct {
	UserID         uint64 `json:"user_id"`
	Level          string `json:"level"`
	DurationMonths int    `json:"duration_months"`
	NextRenewDate  string `json:"next_renew_date"`
	Status         string `json:"status"`
	Enabled        bool   `json:"enabled"`
	FailureCount   int    `json:"failure_count"`
}

// SetupAutoRenew 开通自动续费
func (s *MembershipService) SetupAutoRenew(ctx context.Context, req *SetupAutoRenewRequest) (*AutoRenewReply, error) {
	if req.UserID == 0 || req.Level == "" {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, pkgErrors.ErrCodeInvalidArgument)
	}
	cfg, err := s.uc.SetupAutoRenew(ctx, req.UserID, req.Level, req.DurationMonths, req.PaymentMethod)
	if err != nil {
		return nil, err
	}
	return autoRenewToReply(cfg), nil
}

// UpdateAutoRenewRequest 切换自动续费开关请求
type UpdateAutoRenewRequest struct {
	UserID  uint64 `json:"user_id"`
	Enabled bool   `json:"enabled"`
}

// UpdateAutoRenew 切换自动续费开关
func (s *MembershipService) UpdateAutoRenew(ctx context.Context, req *UpdateAutoRenewRequest) (*AutoRenewReply, error) {
	if req.UserID == 0 {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, pkgErrors.ErrCodeInvalidArgument)
	}
	cfg, err := s.uc.UpdateAutoRenew(ctx, req.UserID, req.Enabled)
	if err != nil {
		return nil, err
	}
	return autoRenewToReply(cfg), nil
}

// ValidateCouponRequest 优惠券校验请求
type ValidateCouponRequest struct {
	UserID         uint64 `json:"user_id"`
	Code           string `json:"code"`
	Level          string `json:"level"`
	DurationMonths int    `json:"duration_months"`
}

// ValidateCouponReply 优惠券校验结果
type ValidateCouponReply struct {
	Valid          bool    `json:"valid"`
	DiscountAmount float64 `json:"discount_amount"`
	FinalAmount    float64 `json:"final_amount"`
}

// ValidateCoupon 校验优惠券 (只读，不记录使用)
// 订单金额由服务端按 (level, duration) 试算，不信任客户端传入的价格。
func (s *MembershipService) ValidateCoupon(ctx context.Context, req *ValidateCouponRequest) (*ValidateCouponReply, error) {
	if req.UserID == 0 || req.Code == "" || req.Level == "" || req.DurationMonths <= 0 {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, pkgErrors.ErrCodeInvalidArgument)
	}
	price, _, err := s.uc.CalculateUpgradePrice(ctx, req.UserID, req.Level, req.DurationMonths)
	if err != nil {
		return nil, err
	}
	res, err := s.cc.Validate(ctx, req.Code, req.UserID, price)
	if err != nil {
		return nil, err
	}
	return &ValidateCouponReply{
		Valid:          true,
		DiscountAmount: res.DiscountAmount,
		FinalAmount:    res.FinalAmount,
	}, nil
}

func orderToReply(o *biz.Order) *OrderReply {
	return &OrderReply{
		OrderID:        o.ID,
		UserID:         o.UserID,
		Type:           o.Type,
		Amount:         o.Amount,
		OriginalAmount: o.OriginalAmount,
		DiscountAmount: o.DiscountAmount,
		Status:         o.Status,
	}
}

func autoRenewToReply(cfg *biz.AutoRenewConfig) *AutoRenewReply {
	return &AutoRenewReply{
		UserID:         cfg.UserID,
		Level:          cfg.Level,
		DurationMonths: cfg.DurationMonths,
		NextRenewDate:  cfg.NextRenewDate.Format(time.RFC3339),
		Status:         cfg.Status,
		Enabled:        cfg.Enabled,
		FailureCount:   cfg.FailureCount,
	}
}
