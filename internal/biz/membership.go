package biz

import (
	"context"
	"fmt"
	"time"

	"xinyuan_tech/membership-service/internal/conf"
	"xinyuan_tech/membership-service/internal/constants"
	"xinyuan_tech/membership-service/internal/errors"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redsync/redsync/v4"
)

// UserMembership 用户当前会员投影 (每用户一行)
type UserMembership struct {
	ID        uint64
	UserID    uint64
	Level     string
	ExpireAt  time.Time
	AutoRenew bool
	Status    string // active, expired
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Active 判断会员是否有效
func (m *UserMembership) Active(now time.Time) bool {
	return m != nil && !m.ExpireAt.IsZero() && m.ExpireAt.After(now)
}

// MembershipRecord 会员变更记录 (只追加，永不删除)
type MembershipRecord struct {
	ID             uint64
	UserID         uint64
	Level          string
	DurationMonths int
	StartTime      time.Time
	EndTime        time.Time
	OrderID        string
	CreatedAt      time.Time
}

// AutoRenewConfig 自动续费配置 (每用户一行，禁用时原地保留)
type AutoRenewConfig struct {
	ID             uint64
	UserID         uint64
	Level          string
	DurationMonths int
	PaymentMethod  string
	NextRenewDate  time.Time
	Status         string // pending, processing, success, failed, disabled_due_to_failures
	Enabled        bool
	FailureCount   int
	FailureReason  string
	LastAttemptAt  *time.Time
	LastRenewalAt  *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// MembershipRepo 会员仓库接口
type MembershipRepo interface {
	// GetMembership 不存在时返回 (nil, nil)
	GetMembership(ctx context.Context, userID uint64) (*UserMembership, error)
	SaveMembership(ctx context.Context, m *UserMembership) error
	AddMembershipRecord(ctx context.Context, r *MembershipRecord) error
	// UpdateExpiredMemberships 批量把已过期的 active 投影置为 expired，返回受影响的用户
	UpdateExpiredMemberships(ctx context.Context) (int, []uint64, error)
}

// AutoRenewRepo 自动续费配置仓库接口
type AutoRenewRepo interface {
	// GetConfig 不存在时返回 (nil, nil)
	GetConfig(ctx context.Context, userID uint64) (*AutoRenewConfig, error)
	UpsertConfig(ctx context.Context, cfg *AutoRenewConfig) error
	SaveConfig(ctx context.Context, cfg *AutoRenewConfig) error
	// ListDueConfigs 查询到期应续费的配置：enabled 且状态不为 processing/disabled，
	// next_renew_date 已到，且对应会员过期未超过 windowDays 天宽限期
	ListDueConfigs(ctx context.Context, windowDays int) ([]*AutoRenewConfig, error)
	// MarkProcessing 条件流转到 processing，已在处理或已禁用时返回 false
	MarkProcessing(ctx context.Context, userID uint64, at time.Time) (bool, error)
	MarkSuccess(ctx context.Context, userID uint64, at time.Time) error
	// MarkFailed 置为 failed 并把 failure_count 加一
	MarkFailed(ctx context.Context, userID uint64, reason string, at time.Time) error
	// DisableExhausted 批量禁用 failed 且失败次数达到上限的配置，返回受影响的用户
	DisableExhausted(ctx context.Context, maxFailures int) (int, []uint64, error)
}

// MembershipUsecase 会员计费业务逻辑
type MembershipUsecase struct {
	planRepo   PlanRepo
	memberRepo MembershipRepo
	renewRepo  AutoRenewRepo
	orderRepo  OrderRepo
	couponUc   *CouponUsecase
	tm         Transaction
	rs         *redsync.Redsync
	conf       *conf.Bootstrap
	log        *log.Helper
}

// NewMembershipUsecase 创建会员业务用例
func NewMembershipUsecase(
	planRepo PlanRepo,
	memberRepo MembershipRepo,
	renewRepo AutoRenewRepo,
	orderRepo OrderRepo,
	couponUc *CouponUsecase,
	tm Transaction,
	rs *redsync.Redsync,
	conf *conf.Bootstrap,
	logger log.Logger,
) *MembershipUsecase {
	return &MembershipUsecase{
		planRepo:   planRepo,
		memberRepo: memberRepo,
		renewRepo:  renewRepo,
		orderRepo:  orderRepo,
		couponUc:   couponUc,
		tm:         tm,
		rs:         rs,
		conf:       conf,
		log:        log.NewHelper(logger),
	}
}

// GetMyMembership 获取用户当前会员信息
func (uc *MembershipUsecase) GetMyMembership(ctx context.Context, userID uint64) (*UserMembership, error) {
	m, err := uc.memberRepo.GetMembership(ctx, userID)
	if err != nil {
		return nil, err
	}
	if m != nil && !m.Active(time.Now().UTC()) {
		m.Status = constants.MembershipStatusExpired
	}
	return m, nil
}

// CalculateUpgradePrice 计算升级/购买价格，返回 (应付价, 原价)
func (uc *MembershipUsecase) CalculateUpgradePrice(ctx context.Context, userID uint64, level string, durationMonths int) (float64, float64, error) {
	if durationMonths <= 0 {
		return 0, 0, pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeInvalidDuration)
	}

	plan, err := uc.planRepo.GetPlan(ctx, level, durationMonths)
	if err != nil {
		uc.log.Errorf("Failed to get plan %s/%dm: %v", level, durationMonths, err)
		return 0, 0, err
	}
	if plan == nil {
		return 0, 0, pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodePlanNotFound)
	}

	member, err := uc.memberRepo.GetMembership(ctx, userID)
	if err != nil {
		return 0, 0, err
	}

	now := time.Now().UTC()
	if !member.Active(now) {
		return Round2(plan.Price), plan.Price, nil
	}

	// 当前等级的月价用于折算剩余价值
	monthly, err := uc.planRepo.GetPlan(ctx, member.Level, 1)
	if err != nil {
		return 0, 0, err
	}
	currentMonthlyPrice := 0.0
	if monthly != nil {
		currentMonthlyPrice = monthly.Price
	}

	return ProratedUpgradePrice(plan.Price, currentMonthlyPrice, member.ExpireAt, now), plan.Price, nil
}

// Upgrade 应用升级/续费：五个步骤在同一事务内完成，任一步失败不留下部分状态。
// 同一用户的并发升级/续费通过分布式锁串行化，保证
// "读当前到期时间、写新到期时间" 的原子性。
func (uc *MembershipUsecase) Upgrade(ctx context.Context, userID uint64, level string, durationMonths int, autoRenew bool, paymentMethod, orderID string) (*UserMembership, error) {
	uc.log.Infof("Upgrade: userID=%d, level=%s, duration=%dm, autoRenew=%v, order=%s", userID, level, durationMonths, autoRenew, orderID)

	if durationMonths <= 0 {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeInvalidDuration)
	}

	lockKey := fmt.Sprintf("membership_lock:user:%d", userID)
	mutex := uc.rs.NewMutex(
		lockKey,
		redsync.WithExpiry(constants.MembershipLockExpiration),
		redsync.WithTries(constants.MembershipLockRetries),
	)
	if err := mutex.LockContext(ctx); err != nil {
		uc.log.Warnf("Failed to acquire membership lock for user %d: %v", userID, err)
		return nil, pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeMembershipLockBusy)
	}
	defer func() {
		if _, err := mutex.UnlockContext(ctx); err != nil {
			uc.log.Warnf("Failed to unlock membership lock for user %d: %v", userID, err)
		}
	}()

	var result *UserMembership
	err := uc.tm.Exec(ctx, func(ctx context.Context) error {
		now := time.Now().UTC()

		// 1. 读取当前会员
		member, err := uc.memberRepo.GetMembership(ctx, userID)
		if err != nil {
			return err
		}

		// 2. 计算新的到期时间
		var currentExpire time.Time
		if member != nil {
			currentExpire = member.ExpireAt
		}
		newExpire := CalculateExpireDate(currentExpire, durationMonths, now)

		// 到期时间只能前移
		if member != nil && newExpire.Before(member.ExpireAt) {
			uc.log.Errorf("Expire date would move backwards for user %d: %v -> %v", userID, member.ExpireAt, newExpire)
			return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeDataIntegrity)
		}

		// 3. 追加会员变更记录
		record := &MembershipRecord{
			UserID:         userID,
			Level:          level,
			DurationMonths: durationMonths,
			StartTime:      now,
			EndTime:        newExpire,
			OrderID:        orderID,
			CreatedAt:      now,
		}
		if err := uc.memberRepo.AddMembershipRecord(ctx, record); err != nil {
			return err
		}

		// 4. 写当前等级/到期投影
		if member == nil {
			member = &UserMembership{
				UserID:    userID,
				CreatedAt: now,
			}
		}
		member.Level = level
		member.ExpireAt = newExpire
		member.AutoRenew = autoRenew
		member.Status = constants.MembershipStatusActive
		member.UpdatedAt = now
		if err := uc.memberRepo.SaveMembership(ctx, member); err != nil {
			return err
		}

		// 5. 自动续费配置：下次续费日 = 新到期日 - 3 天，状态重新置回 pending
		if autoRenew {
			cfg := &AutoRenewConfig{
				UserID:         userID,
				Level:          level,
				DurationMonths: durationMonths,
				PaymentMethod:  paymentMethod,
				NextRenewDate:  newExpire.AddDate(0, 0, -uc.renewDaysBefore()),
				Status:         constants.RenewStatusPending,
				Enabled:        true,
				UpdatedAt:      now,
			}
			if err := uc.renewRepo.UpsertConfig(ctx, cfg); err != nil {
				return err
			}
		}

		result = member
		return nil
	})
	if err != nil {
		uc.log.Errorf("Upgrade failed for user %d: %v", userID, err)
		return nil, err
	}

	uc.log.Infof("Upgrade succeeded for user %d, new expire: %v", userID, result.ExpireAt)
	return result, nil
}

// SetupAutoRenew 用户开通自动续费
func (uc *MembershipUsecase) SetupAutoRenew(ctx context.Context, userID uint64, level string, durationMonths int, paymentMethod string) (*AutoRenewConfig, error) {
	if durationMonths <= 0 {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeInvalidDuration)
	}
	plan, err := uc.planRepo.GetPlan(ctx, level, durationMonths)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodePlanNotFound)
	}

	member, err := uc.memberRepo.GetMembership(ctx, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeMembershipNotFound)
	}

	now := time.Now().UTC()
	cfg := &AutoRenewConfig{
		UserID:         userID,
		Level:          level,
		DurationMonths: durationMonths,
		PaymentMethod:  paymentMethod,
		NextRenewDate:  member.ExpireAt.AddDate(0, 0, -uc.renewDaysBefore()),
		Status:         constants.RenewStatusPending,
		Enabled:        true,
		UpdatedAt:      now,
	}
	if err := uc.renewRepo.UpsertConfig(ctx, cfg); err != nil {
		return nil, err
	}

	member.AutoRenew = true
	member.UpdatedAt = now
	if err := uc.memberRepo.SaveMembership(ctx, member); err != nil {
		return nil, err
	}

	uc.log.Infof("Auto-renew enabled for user %d: %s/%dm", userID, level, durationMonths)
	return cfg, nil
}

// UpdateAutoRenew 用户切换自动续费开关
// 重新开启时清零失败计数并把状态置回 pending。
func (uc *MembershipUsecase) UpdateAutoRenew(ctx context.Context, userID uint64, enabled bool) (*AutoRenewConfig, error) {
	cfg, err := uc.renewRepo.GetConfig(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeAutoRenewNotFound)
	}

	now := time.Now().UTC()
	cfg.Enabled = enabled
	if enabled {
		cfg.Status = constants.RenewStatusPending
		cfg.FailureCount = 0
		cfg.FailureReason = ""
	}
	cfg.UpdatedAt = now
	if err := uc.renewRepo.SaveConfig(ctx, cfg); err != nil {
		return nil, err
	}

	member, err := uc.memberRepo.GetMembership(ctx, userID)
	if err != nil {
		return nil, err
	}
	if member != nil {
		member.AutoRenew = enabled
		member.UpdatedAt = now
		if err := uc.memberRepo.SaveMembership(ctx, member); err != nil {
			return nil, err
		}
	}

	uc.log.Infof("Auto-renew for user %d set to %v", userID, enabled)
	return cfg, nil
}

// UpdateExpiredMemberships 批量更新过期会员投影状态 (定时任务)
func (uc *MembershipUsecase) UpdateExpiredMemberships(ctx context.Context) (int, []uint64, error) {
	count, uids, err := uc.memberRepo.UpdateExpiredMemberships(ctx)
	if err != nil {
		uc.log.Errorf("Failed to update expired memberships: %v", err)
		return 0, nil, err
	}
	uc.log.Infof("Updated %d expired memberships", count)
	return count, uids, nil
}

func (uc *MembershipUsecase) renewDaysBefore() int {
	if uc.conf != nil && uc.conf.Renew != nil && uc.conf.Renew.DaysBefore > 0 {
		return uc.conf.Renew.DaysBefore
	}
	return constants.AutoRenewDaysBefore
}
