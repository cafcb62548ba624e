package constants

import "time"

// 会员等级
const (
	LevelBasic   = "basic"
	LevelPremium = "premium"
	LevelVIP     = "vip"
)

// 会员投影状态
const (
	MembershipStatusActive  = "active"
	MembershipStatusExpired = "expired"
)

// 订单类型
const (
	OrderTypeMembership        = "membership"
	OrderTypeMembershipRenewal = "membership_renewal"
	OrderTypeVideo             = "video"
)

// 订单状态
const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusFailed    = "failed"
)

// 支付回调状态 (与 payment gateway 保持一致)
const (
	PaymentCallbackSuccess = "success"
	PaymentCallbackFailed  = "failed"
)

// 自动续费配置状态
const (
	RenewStatusPending    = "pending"
	RenewStatusProcessing = "processing"
	RenewStatusSuccess    = "success"
	RenewStatusFailed     = "failed"
	RenewStatusDisabled   = "disabled_due_to_failures"
)

// 提现状态
const (
	WithdrawalStatusPending   = "pending"
	WithdrawalStatusApproved  = "approved"
	WithdrawalStatusRejected  = "rejected"
	WithdrawalStatusCompleted = "completed"
	WithdrawalStatusFailed    = "failed"
)

// 提现处理动作
const (
	WithdrawalActionApprove = "approve"
	WithdrawalActionReject  = "reject"
)

// 钱包流水类型
const (
	WalletTxTypeIncome     = "income"
	WalletTxTypeWithdrawal = "withdrawal"
	WalletTxTypeAdjustment = "adjustment"
)

// 优惠券类型
const (
	CouponTypeFixed      = "fixed"
	CouponTypePercentage = "percentage"
)

// 续费相关常量
const (
	// MaxRenewFailures 自动续费连续失败上限，达到后禁用配置
	MaxRenewFailures = 3
	// AutoRenewDaysBefore 自动续费提前天数 (next_renew_date = 到期日 - 3天)
	AutoRenewDaysBefore = 3
	// RenewalWindowDays 续费扫描窗口天数 (到期前 1 天内的会员参与扫描)
	RenewalWindowDays = 1
	// PaymentChargeTimeout 支付网关扣款超时时间
	PaymentChargeTimeout = 30 * time.Second
)

// 计费相关常量
const (
	// DaysPerMonth 按平月 30 天折算剩余价值
	DaysPerMonth = 30
	// UpgradeDiscountRate 升级折扣系数 (10% off)
	UpgradeDiscountRate = 0.9
)

// 钱包相关常量
const (
	// WalletUpdateMaxRetries 乐观锁冲突时同请求内的最大重试次数
	WalletUpdateMaxRetries = 3
)

// 分布式锁相关常量
const (
	// MembershipLockExpiration 会员变更锁过期时间
	MembershipLockExpiration = 30 * time.Second
	// MembershipLockRetries 会员变更锁重试次数
	MembershipLockRetries = 8
)

// 通知类型
const (
	NotifyKindRenewSuccess   = "renew_success"
	NotifyKindRenewDisabled  = "auto_renew_disabled"
	NotifyKindWithdrawalDone = "withdrawal_completed"
)

// 分页相关常量
const (
	// DefaultPageSize 默认分页大小
	DefaultPageSize = 10
	// MaxPageSize 最大分页大小
	MaxPageSize = 100
)
