package data

import (
	"context"
	"errors"
	"time"

	"xinyuan_tech/membership-service/internal/biz"
	"xinyuan_tech/membership-service/internal/constants"
	"xinyuan_tech/membership-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type autoRenewRepo struct {
	data *Data
	log  *log.Helper
}

// NewAutoRenewRepo .
func NewAutoRenewRepo(data *Data, logger log.Logger) biz.AutoRenewRepo {
	return &autoRenewRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// GetConfig 查询用户自动续费配置，不存在时返回 nil
func (r *autoRenewRepo) GetConfig(ctx context.Context, userID uint64) (*biz.AutoRenewConfig, error) {
	var m model.AutoRenewConfig
	err := r.data.DB(ctx).Where("user_id = ?", userID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.WithContext(ctx).Errorf("failed to get auto renew config: userID=%d, err=%v", userID, err)
		return nil, err
	}
	return autoRenewToBiz(&m), nil
}

// UpsertConfig 按 user_id 插入或更新套餐和下次续费日。
// 重新开通只重置状态，不清除历史失败计数 (由 UpdateAutoRenew 负责)。
func (r *autoRenewRepo) UpsertConfig(ctx context.Context, cfg *biz.AutoRenewConfig) error {
	now := time.Now().UTC()
	record := &model.AutoRenewConfig{
		UserID:         cfg.UserID,
		Level:          cfg.Level,
		DurationMonths: cfg.DurationMonths,
		PaymentMethod:  cfg.PaymentMethod,
		NextRenewDate:  cfg.NextRenewDate,
		Status:         cfg.Status,
		Enabled:        cfg.Enabled,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := r.data.DB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"level", "duration_months", "payment_method",
			"next_renew_date", "status", "enabled", "updated_at",
		}),
	}).Create(record).Error
	if err != nil {
		r.log.WithContext(ctx).Errorf("failed to upsert auto renew config: userID=%d, err=%v", cfg.UserID, err)
		return err
	}
	return nil
}

// SaveConfig 全量保存配置
func (r *autoRenewRepo) SaveConfig(ctx context.Context, cfg *biz.AutoRenewConfig) error {
	record := &model.AutoRenewConfig{
		ID:             cfg.ID,
		UserID:         cfg.UserID,
		Level:          cfg.Level,
		DurationMonths: cfg.DurationMonths,
		PaymentMethod:  cfg.PaymentMethod,
		NextRenewDate:  cfg.NextRenewDate,
		Status:         cfg.Status,
		Enabled:        cfg.Enabled,
		FailureCount:   cfg.FailureCount,
		FailureReason:  cfg.FailureReason,
		LastAttemptAt:  cfg.LastAttemptAt,
		LastRenewalAt:  cfg.LastRenewalAt,
		CreatedAt:      cfg.CreatedAt,
		UpdatedAt:      cfg.UpdatedAt,
	}
	if err := r.data.DB(ctx).Save(record).Error; err != nil {
		r.log.WithContext(ctx).Errorf("failed to save auto renew config: userID=%d, err=%v", cfg.UserID, err)
		return err
	}
	cfg.ID = record.ID
	return nil
}

// ListDueConfigs 查询到期应续费的配置：enabled 且未在处理/未被禁用，
// next_renew_date 已到，且对应会员过期未超过 windowDays 天宽限期
func (r *autoRenewRepo) ListDueConfigs(ctx context.Context, windowDays int) ([]*biz.AutoRenewConfig, error) {
	now := time.Now().UTC()
	graceFloor := now.AddDate(0, 0, -windowDays)

	var ms []*model.AutoRenewConfig
	err := r.data.DB(ctx).Model(&model.AutoRenewConfig{}).
		Joins("JOIN user_membership ON user_membership.user_id = auto_renew_config.user_id").
		Where("auto_renew_config.enabled = ?", true).
		Where("auto_renew_config.status NOT IN ?", []string{
			constants.RenewStatusProcessing,
			constants.RenewStatusDisabled,
		}).
		Where("auto_renew_config.next_renew_date <= ?", now).
		Where("user_membership.expire_at >= ?", graceFloor).
		Find(&ms).Error
	if err != nil {
		r.log.WithContext(ctx).Errorf("failed to list due auto renew configs: err=%v", err)
		return nil, err
	}

	configs := make([]*biz.AutoRenewConfig, 0, len(ms))
	for _, m := range ms {
		configs = append(configs, autoRenewToBiz(m))
	}
	return configs, nil
}

// MarkProcessing 条件流转到 processing，保证同一配置同时只被一个 worker 处理
func (r *autoRenewRepo) MarkProcessing(ctx context.Context, userID uint64, at time.Time) (bool, error) {
	result := r.data.DB(ctx).Model(&model.AutoRenewConfig{}).
		Where("user_id = ? AND enabled = ? AND status NOT IN ?", userID, true, []string{
			constants.RenewStatusProcessing,
			constants.RenewStatusDisabled,
		}).
		Updates(map[string]interface{}{
			"status":          constants.RenewStatusProcessing,
			"last_attempt_at": at,
			"updated_at":      at,
		})
	if result.Error != nil {
		r.log.WithContext(ctx).Errorf("failed to mark auto renew processing: userID=%d, err=%v", userID, result.Error)
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkSuccess 续费成功，清零失败计数
func (r *autoRenewRepo) MarkSuccess(ctx context.Context, userID uint64, at time.Time) error {
	err := r.data.DB(ctx).Model(&model.AutoRenewConfig{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"status":          constants.RenewStatusSuccess,
			"failure_count":   0,
			"failure_reason":  "",
			"last_renewal_at": at,
			"updated_at":      at,
		}).Error
	if err != nil {
		r.log.WithContext(ctx).Errorf("failed to mark auto renew success: userID=%d, err=%v", userID, err)
		return err
	}
	return nil
}

// MarkFailed 续费失败，失败计数加一
func (r *autoRenewRepo) MarkFailed(ctx context.Context, userID uint64, reason string, at time.Time) error {
	err := r.data.DB(ctx).Model(&model.AutoRenewConfig{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"status":         constants.RenewStatusFailed,
			"failure_count":  gorm.Expr("failure_count + 1"),
			"failure_reason": reason,
			"updated_at":     at,
		}).Error
	if err != nil {
		r.log.WithContext(ctx).Errorf("failed to mark auto renew failed: userID=%d, err=%v", userID, err)
		return err
	}
	return nil
}

// DisableExhausted 批量禁用失败次数达到上限的配置。
// 只处理 failed 状态：正在重试中的 processing 配置不能被禁用。
// 查用户与改状态在同一事务内，通知名单与实际禁用的行保持一致。
func (r *autoRenewRepo) DisableExhausted(ctx context.Context, maxFailures int) (int, []uint64, error) {
	now := time.Now().UTC()

	var uids []uint64
	var affected int64
	err := r.data.Exec(ctx, func(ctx context.Context) error {
		if err := r.data.DB(ctx).Model(&model.AutoRenewConfig{}).
			Where("enabled = ? AND status = ? AND failure_count >= ?", true, constants.RenewStatusFailed, maxFailures).
			Pluck("user_id", &uids).Error; err != nil {
			return err
		}
		if len(uids) == 0 {
			return nil
		}

		result := r.data.DB(ctx).Model(&model.AutoRenewConfig{}).
			Where("user_id IN ? AND enabled = ? AND status = ? AND failure_count >= ?", uids, true, constants.RenewStatusFailed, maxFailures).
			Updates(map[string]interface{}{
				"enabled":    false,
				"status":     constants.RenewStatusDisabled,
				"updated_at": now,
			})
		if result.Error != nil {
			return result.Error
		}
		affected = result.RowsAffected
		return nil
	})
	if err != nil {
		r.log.WithContext(ctx).Errorf("failed to disable exhausted auto renew configs: err=%v", err)
		return 0, nil, err
	}
	return int(affected), uids, nil
}

func autoRenewToBiz(m *model.AutoRenewConfig) *biz.AutoRenewConfig {
	return &biz.AutoRenewConfig{
		ID:             m.ID,
		UserID:         m.UserID,
		Level:          m.Level,
		DurationMonths: m.DurationMonths,
		PaymentMethod:  m.PaymentMethod,
		NextRenewDate:  m.NextRenewDate,
		Status:         m.Status,
		Enabled:        m.Enabled,
		FailureCount:   m.FailureCount,
		FailureReason:  m.FailureReason,
		LastAttemptAt:  m.LastAttemptAt,
		LastRenewalAt:  m.LastRenewalAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
