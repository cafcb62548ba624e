package biz

import (
	"context"
	"fmt"
	"time"

	"xinyuan_tech/membership-service/internal/conf"
	"xinyuan_tech/membership-service/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
)

// AutoRenewResult 单个用户的自动续费结果
type AutoRenewResult struct {
	UserID        uint64
	Level         string
	Success       bool
	OrderID       string
	TransactionID string
	ErrorMessage  string
}

// RenewalUsecase 自动续费扫描业务逻辑
// 扫描对到期会员严格串行处理，每个用户的结果先落库再处理下一个，
// 进程中途崩溃最多留下一个 processing 状态的用户，不会丢失或重复续费。
type RenewalUsecase struct {
	memberUc  *MembershipUsecase
	renewRepo AutoRenewRepo
	orderRepo OrderRepo
	planRepo  PlanRepo
	payment   PaymentClient
	notifier  NotificationClient
	tm        Transaction
	conf      *conf.Bootstrap
	log       *log.Helper
}

// NewRenewalUsecase 创建自动续费业务用例
func NewRenewalUsecase(
	memberUc *MembershipUsecase,
	renewRepo AutoRenewRepo,
	orderRepo OrderRepo,
	planRepo PlanRepo,
	payment PaymentClient,
	notifier NotificationClient,
	tm Transaction,
	conf *conf.Bootstrap,
	logger log.Logger,
) *RenewalUsecase {
	return &RenewalUsecase{
		memberUc:  memberUc,
		renewRepo: renewRepo,
		orderRepo: orderRepo,
		planRepo:  planRepo,
		payment:   payment,
		notifier:  notifier,
		tm:        tm,
		conf:      conf,
		log:       log.NewHelper(logger),
	}
}

// ProcessAutoRenewals 处理自动续费扫描
func (uc *RenewalUsecase) ProcessAutoRenewals(ctx context.Context) (int, int, int, []*AutoRenewResult, error) {
	window := constants.RenewalWindowDays
	if uc.conf != nil && uc.conf.Renew != nil && uc.conf.Renew.WindowDays > 0 {
		window = uc.conf.Renew.WindowDays
	}
	uc.log.Infof("Starting auto-renewal process (windowDays=%d)", window)

	configs, err := uc.renewRepo.ListDueConfigs(ctx, window)
	if err != nil {
		uc.log.Errorf("Failed to list due auto-renew configs: %v", err)
		return 0, 0, 0, nil, err
	}

	totalCount := len(configs)
	successCount := 0
	failedCount := 0
	results := make([]*AutoRenewResult, 0, totalCount)

	for _, cfg := range configs {
		result := &AutoRenewResult{
			UserID: cfg.UserID,
			Level:  cfg.Level,
		}

		// 条件流转到 processing：已在处理或已禁用的配置直接跳过，
		// 保证同一到期日至多发起一次扣款
		ok, err := uc.renewRepo.MarkProcessing(ctx, cfg.UserID, time.Now().UTC())
		if err != nil {
			result.ErrorMessage = "failed to mark processing: " + err.Error()
			failedCount++
			results = append(results, result)
			continue
		}
		if !ok {
			result.ErrorMessage = "already processing or disabled"
			uc.log.Infof("Skipping auto-renew for user %d: already processing or disabled", cfg.UserID)
			results = append(results, result)
			continue
		}

		orderID, transactionID, err := uc.renewOne(ctx, cfg)
		now := time.Now().UTC()
		if err != nil {
			result.ErrorMessage = err.Error()
			failedCount++
			if markErr := uc.renewRepo.MarkFailed(ctx, cfg.UserID, err.Error(), now); markErr != nil {
				uc.log.Errorf("Failed to persist failure for user %d: %v", cfg.UserID, markErr)
			}
			uc.log.Errorf("Auto-renewal failed for user %d: %v", cfg.UserID, err)
		} else {
			result.Success = true
			result.OrderID = orderID
			result.TransactionID = transactionID
			successCount++
			if markErr := uc.renewRepo.MarkSuccess(ctx, cfg.UserID, now); markErr != nil {
				uc.log.Errorf("Failed to persist success for user %d: %v", cfg.UserID, markErr)
			}
			uc.log.Infof("Auto-renewal succeeded for user %d: order=%s", cfg.UserID, orderID)

			// 成功通知尽力而为，失败不回滚续费
			if err := uc.notifier.Notify(ctx, cfg.UserID, constants.NotifyKindRenewSuccess, map[string]string{
				"order_id": orderID,
				"level":    cfg.Level,
			}); err != nil {
				uc.log.Warnf("Failed to send renewal notification to user %d: %v", cfg.UserID, err)
			}
		}

		results = append(results, result)
	}

	uc.log.Infof("Auto-renewal process completed: total=%d, success=%d, failed=%d", totalCount, successCount, failedCount)
	return totalCount, successCount, failedCount, results, nil
}

// renewOne 对单个用户执行续费：建单、扣款、事务内完成订单与会员延期
func (uc *RenewalUsecase) renewOne(ctx context.Context, cfg *AutoRenewConfig) (string, string, error) {
	plan, err := uc.planRepo.GetPlan(ctx, cfg.Level, cfg.DurationMonths)
	if err != nil {
		return "", "", err
	}
	if plan == nil {
		return "", "", fmt.Errorf("plan not found: %s/%dm", cfg.Level, cfg.DurationMonths)
	}

	now := time.Now().UTC()
	order := &Order{
		ID:             fmt.Sprintf("REN%d%d", now.UnixNano(), cfg.UserID),
		UserID:         cfg.UserID,
		Type:           constants.OrderTypeMembershipRenewal,
		Level:          cfg.Level,
		DurationMonths: cfg.DurationMonths,
		Amount:         Round2(plan.Price),
		OriginalAmount: plan.Price,
		AutoRenew:      true,
		Status:         constants.OrderStatusPending,
		PaymentMethod:  cfg.PaymentMethod,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := uc.orderRepo.CreateOrder(ctx, order); err != nil {
		return "", "", err
	}

	// 网关超时视为瞬时失败：订单保持非 completed，计入 failure_count
	chargeCtx, cancel := context.WithTimeout(ctx, constants.PaymentChargeTimeout)
	defer cancel()
	transactionID, err := uc.payment.Charge(chargeCtx, order)
	if err != nil {
		order.Status = constants.OrderStatusFailed
		order.UpdatedAt = time.Now().UTC()
		if updErr := uc.orderRepo.UpdateOrder(ctx, order); updErr != nil {
			uc.log.Errorf("Failed to mark order %s failed: %v", order.ID, updErr)
		}
		return order.ID, "", err
	}

	// 扣款确认成功后，订单完成与会员延期在同一事务内
	err = uc.tm.Exec(ctx, func(ctx context.Context) error {
		order.Status = constants.OrderStatusCompleted
		order.TransactionID = transactionID
		order.UpdatedAt = time.Now().UTC()
		if err := uc.orderRepo.UpdateOrder(ctx, order); err != nil {
			return err
		}
		_, err := uc.memberUc.Upgrade(ctx, cfg.UserID, cfg.Level, cfg.DurationMonths, true, cfg.PaymentMethod, order.ID)
		return err
	})
	if err != nil {
		return order.ID, transactionID, err
	}
	return order.ID, transactionID, nil
}

// DisableFailedConfigs 禁用失败次数达到上限的自动续费配置 (低频扫描)
func (uc *RenewalUsecase) DisableFailedConfigs(ctx context.Context) (int, error) {
	count, uids, err := uc.renewRepo.DisableExhausted(ctx, constants.MaxRenewFailures)
	if err != nil {
		uc.log.Errorf("Failed to disable exhausted auto-renew configs: %v", err)
		return 0, err
	}

	for _, uid := range uids {
		if err := uc.notifier.Notify(ctx, uid, constants.NotifyKindRenewDisabled, map[string]string{
			"max_failures": fmt.Sprintf("%d", constants.MaxRenewFailures),
		}); err != nil {
			uc.log.Warnf("Failed to send disable notification to user %d: %v", uid, err)
		}
	}

	if count > 0 {
		uc.log.Infof("Disabled %d auto-renew configs after repeated failures: %v", count, uids)
	}
	return count, nil
}
