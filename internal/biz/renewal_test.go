package biz

import (
	"context"
	"errors"
	"testing"
	"time"

	"xinyuan_tech/membership-service/internal/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renewalEnv(t *testing.T) *testEnv {
	env := newTestEnv(basicPlans()...)
	ctx := context.Background()
	now := time.Now().UTC()

	// 到期前 2 天的会员，已开通自动续费
	require.NoError(t, env.memberRepo.SaveMembership(ctx, &UserMembership{
		UserID: 1, Level: constants.LevelPremium, ExpireAt: now.AddDate(0, 0, 2),
		AutoRenew: true, Status: constants.MembershipStatusActive,
	}))
	require.NoError(t, env.renewRepo.SaveConfig(ctx, &AutoRenewConfig{
		UserID: 1, Level: constants.LevelPremium, DurationMonths: 1,
		PaymentMethod: "card-token", NextRenewDate: now.AddDate(0, 0, -1),
		Status: constants.RenewStatusPending, Enabled: true,
	}))
	return env
}

func TestProcessAutoRenewals(t *testing.T) {
	ctx := context.Background()

	t.Run("successful renewal extends membership by plan duration", func(t *testing.T) {
		env := renewalEnv(t)
		before, err := env.memberRepo.GetMembership(ctx, 1)
		require.NoError(t, err)

		total, success, failed, results, err := env.renewUc.ProcessAutoRenewals(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, 1, success)
		assert.Equal(t, 0, failed)
		require.Len(t, results, 1)
		assert.True(t, results[0].Success)
		assert.NotEmpty(t, results[0].OrderID)
		assert.NotEmpty(t, results[0].TransactionID)

		// 会员从原到期日顺延一个月
		after, err := env.memberRepo.GetMembership(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, before.ExpireAt.AddDate(0, 1, 0), after.ExpireAt)

		// 配置状态：success + 失败计数清零 + 记录续费时间
		cfg, err := env.renewRepo.GetConfig(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, constants.RenewStatusSuccess, cfg.Status)
		assert.Equal(t, 0, cfg.FailureCount)
		require.NotNil(t, cfg.LastRenewalAt)

		// 续费订单按套餐原价完成
		order, err := env.orderRepo.GetOrder(ctx, results[0].OrderID)
		require.NoError(t, err)
		assert.Equal(t, constants.OrderTypeMembershipRenewal, order.Type)
		assert.Equal(t, constants.OrderStatusCompleted, order.Status)
		assert.Equal(t, 99.0, order.Amount)

		// 成功通知
		assert.Equal(t, 1, env.notifier.kinds[constants.NotifyKindRenewSuccess])
	})

	t.Run("charge failure increments failure count and keeps order failed", func(t *testing.T) {
		env := renewalEnv(t)
		env.payment.err = errors.New("card declined")

		total, success, failed, results, err := env.renewUc.ProcessAutoRenewals(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, 0, success)
		assert.Equal(t, 1, failed)
		require.Len(t, results, 1)
		assert.False(t, results[0].Success)
		assert.Contains(t, results[0].ErrorMessage, "card declined")

		cfg, err := env.renewRepo.GetConfig(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, constants.RenewStatusFailed, cfg.Status)
		assert.Equal(t, 1, cfg.FailureCount)
		assert.Equal(t, "card declined", cfg.FailureReason)

		order, err := env.orderRepo.GetOrder(ctx, results[0].OrderID)
		require.NoError(t, err)
		assert.Equal(t, constants.OrderStatusFailed, order.Status)

		// 会员未被延长
		m, err := env.memberRepo.GetMembership(ctx, 1)
		require.NoError(t, err)
		assert.True(t, m.ExpireAt.Before(time.Now().UTC().AddDate(0, 0, 3)))
	})

	t.Run("failed config is retried on next sweep", func(t *testing.T) {
		env := renewalEnv(t)
		env.payment.err = errors.New("gateway timeout")
		_, _, _, _, err := env.renewUc.ProcessAutoRenewals(ctx)
		require.NoError(t, err)

		// 失败后恢复，下一轮扫描重试成功
		env.payment.err = nil
		_, success, _, _, err := env.renewUc.ProcessAutoRenewals(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, success)

		cfg, err := env.renewRepo.GetConfig(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, constants.RenewStatusSuccess, cfg.Status)
		assert.Equal(t, 0, cfg.FailureCount)
	})

	t.Run("processing config is skipped", func(t *testing.T) {
		env := renewalEnv(t)
		_, err := env.renewRepo.MarkProcessing(ctx, 1, time.Now().UTC())
		require.NoError(t, err)

		total, success, failed, _, err := env.renewUc.ProcessAutoRenewals(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, total)
		assert.Equal(t, 0, success)
		assert.Equal(t, 0, failed)
		assert.Equal(t, 0, env.payment.charges)
	})

	t.Run("config not yet due is skipped", func(t *testing.T) {
		env := renewalEnv(t)
		cfg, err := env.renewRepo.GetConfig(ctx, 1)
		require.NoError(t, err)
		cfg.NextRenewDate = time.Now().UTC().AddDate(0, 0, 2)
		require.NoError(t, env.renewRepo.SaveConfig(ctx, cfg))

		total, _, _, _, err := env.renewUc.ProcessAutoRenewals(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, total)
		assert.Equal(t, 0, env.payment.charges)
	})

	t.Run("disabled config is never charged", func(t *testing.T) {
		env := renewalEnv(t)
		cfg, err := env.renewRepo.GetConfig(ctx, 1)
		require.NoError(t, err)
		cfg.Enabled = false
		cfg.Status = constants.RenewStatusDisabled
		require.NoError(t, env.renewRepo.SaveConfig(ctx, cfg))

		total, _, _, _, err := env.renewUc.ProcessAutoRenewals(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, total)
		assert.Equal(t, 0, env.payment.charges)
	})

	t.Run("renewal re-arms the next cycle", func(t *testing.T) {
		env := renewalEnv(t)
		_, _, _, _, err := env.renewUc.ProcessAutoRenewals(ctx)
		require.NoError(t, err)

		m, err := env.memberRepo.GetMembership(ctx, 1)
		require.NoError(t, err)
		cfg, err := env.renewRepo.GetConfig(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, m.ExpireAt.AddDate(0, 0, -constants.AutoRenewDaysBefore), cfg.NextRenewDate)
		assert.True(t, cfg.Enabled)
	})
}

func TestDisableFailedConfigs(t *testing.T) {
	ctx := context.Background()

	t.Run("disables after reaching max failures", func(t *testing.T) {
		env := renewalEnv(t)
		env.payment.err = errors.New("card declined")

		for i := 0; i < constants.MaxRenewFailures; i++ {
			_, _, _, _, err := env.renewUc.ProcessAutoRenewals(ctx)
			require.NoError(t, err)
		}

		cfg, err := env.renewRepo.GetConfig(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, constants.MaxRenewFailures, cfg.FailureCount)

		count, err := env.renewUc.DisableFailedConfigs(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		cfg, err = env.renewRepo.GetConfig(ctx, 1)
		require.NoError(t, err)
		assert.False(t, cfg.Enabled)
		assert.Equal(t, constants.RenewStatusDisabled, cfg.Status)

		// 禁用通知
		assert.Equal(t, 1, env.notifier.kinds[constants.NotifyKindRenewDisabled])

		// 禁用后不再参与扫描
		env.payment.err = nil
		total, _, _, _, err := env.renewUc.ProcessAutoRenewals(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, total)
	})

	t.Run("retry in flight is not disabled", func(t *testing.T) {
		env := renewalEnv(t)
		env.payment.err = errors.New("card declined")
		for i := 0; i < constants.MaxRenewFailures; i++ {
			_, _, _, _, err := env.renewUc.ProcessAutoRenewals(ctx)
			require.NoError(t, err)
		}

		// 又一次重试进行中 (processing)：禁用扫描不得中途禁用
		_, err := env.renewRepo.MarkProcessing(ctx, 1, time.Now().UTC())
		require.NoError(t, err)

		count, err := env.renewUc.DisableFailedConfigs(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, count)

		cfg, err := env.renewRepo.GetConfig(ctx, 1)
		require.NoError(t, err)
		assert.True(t, cfg.Enabled)
		assert.Equal(t, constants.RenewStatusProcessing, cfg.Status)
	})

	t.Run("below threshold stays enabled", func(t *testing.T) {
		env := renewalEnv(t)
		env.payment.err = errors.New("card declined")
		_, _, _, _, err := env.renewUc.ProcessAutoRenewals(ctx)
		require.NoError(t, err)

		count, err := env.renewUc.DisableFailedConfigs(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, count)

		cfg, err := env.renewRepo.GetConfig(ctx, 1)
		require.NoError(t, err)
		assert.True(t, cfg.Enabled)
	})
}
