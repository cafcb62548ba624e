package errors

import (
	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	i18nPkg "github.com/gaoyong06/go-pkg/middleware/i18n"
)

func init() {
	// 初始化全局错误管理器（使用项目特定的配置）
	pkgErrors.InitGlobalErrorManager("i18n", i18nPkg.Language)
}

// 会员服务错误码定义
// 错误码格式：SSMMEE (6位数字)，其中 SS=14 表示 membership-service
// 模块划分：
//   01: 参数/套餐模块
//   02: 会员模块
//   03: 订单模块
//   04: 支付模块
//   05: 优惠券模块
//   06: 钱包模块
//   07: 提现模块

// 参数/套餐模块 (140100-140199)
const (
	// ErrCodePlanNotFound 套餐价格表中不存在该 (等级, 时长) 组合
	ErrCodePlanNotFound = 140101
	// ErrCodeInvalidAmount 金额无效错误
	ErrCodeInvalidAmount = 140102
	// ErrCodeReasonRequired 驳回操作缺少原因错误
	ErrCodeReasonRequired = 140103
	// ErrCodeInvalidDuration 购买时长无效错误
	ErrCodeInvalidDuration = 140104
	// ErrCodeInvalidAction 操作类型无效错误
	ErrCodeInvalidAction = 140105
)

// 会员模块 (140200-140299)
const (
	// ErrCodeMembershipNotFound 会员记录不存在错误
	ErrCodeMembershipNotFound = 140201
	// ErrCodeAutoRenewNotFound 自动续费配置不存在错误
	ErrCodeAutoRenewNotFound = 140202
	// ErrCodeMembershipLockBusy 会员变更锁竞争失败错误
	ErrCodeMembershipLockBusy = 140203
)

// 订单模块 (140300-140399)
const (
	// ErrCodeOrderNotFound 订单不存在错误
	ErrCodeOrderNotFound = 140301
	// ErrCodeOrderCreateFailed 订单创建失败错误
	ErrCodeOrderCreateFailed = 140302
	// ErrCodeOrderAlreadyCompleted 订单已完成错误 (completed 后不可变更)
	ErrCodeOrderAlreadyCompleted = 140303
)

// 支付模块 (140400-140499)
const (
	// ErrCodePaymentFailed 支付网关扣款失败错误
	ErrCodePaymentFailed = 140401
	// ErrCodePaymentTimeout 支付网关超时错误 (瞬时失败，计入 failure_count)
	ErrCodePaymentTimeout = 140402
)

// 优惠券模块 (140500-140599)
const (
	// ErrCodeCouponNotFound 优惠券不存在错误
	ErrCodeCouponNotFound = 140501
	// ErrCodeCouponInactive 优惠券未启用错误
	ErrCodeCouponInactive = 140502
	// ErrCodeCouponNotStarted 优惠券未到生效时间错误
	ErrCodeCouponNotStarted = 140503
	// ErrCodeCouponExpired 优惠券已过期错误
	ErrCodeCouponExpired = 140504
	// ErrCodeCouponExhausted 优惠券总使用次数已达上限错误
	ErrCodeCouponExhausted = 140505
	// ErrCodeCouponUserLimitReached 优惠券单用户使用次数已达上限错误
	ErrCodeCouponUserLimitReached = 140506
	// ErrCodeCouponMinOrderNotMet 订单金额未达到优惠券最低消费错误
	ErrCodeCouponMinOrderNotMet = 140507
)

// 钱包模块 (140600-140699)
const (
	// ErrCodeWalletNotFound 钱包不存在错误
	ErrCodeWalletNotFound = 140601
	// ErrCodeInsufficientBalance 余额不足错误
	ErrCodeInsufficientBalance = 140602
	// ErrCodeConcurrencyConflict 乐观锁版本冲突错误 (有限重试后仍失败)
	ErrCodeConcurrencyConflict = 140603
	// ErrCodeDataIntegrity 账本数据完整性错误 (流水回放与余额不一致等，必须中止操作)
	ErrCodeDataIntegrity = 140604
)

// 提现模块 (140700-140799)
const (
	// ErrCodeWithdrawalNotFound 提现申请不存在错误
	ErrCodeWithdrawalNotFound = 140701
	// ErrCodeInvalidWithdrawalStatus 提现状态机非法流转错误
	ErrCodeInvalidWithdrawalStatus = 140702
)
