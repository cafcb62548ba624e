package data

import (
	"context"
	stderrors "errors"

	"xinyuan_tech/membership-service/internal/biz"
	"xinyuan_tech/membership-service/internal/constants"
	"xinyuan_tech/membership-service/internal/data/model"
	bizErrors "xinyuan_tech/membership-service/internal/errors"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

type withdrawalRepo struct {
	data *Data
	log  *log.Helper
}

// NewWithdrawalRepo .
func NewWithdrawalRepo(data *Data, logger log.Logger) biz.WithdrawalRepo {
	return &withdrawalRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// CreateWithdrawal 创建提现申请
func (r *withdrawalRepo) CreateWithdrawal(ctx context.Context, w *biz.Withdrawal) error {
	record := withdrawalToModel(w)
	if err := r.data.DB(ctx).Create(record).Error; err != nil {
		r.log.WithContext(ctx).Errorf("failed to create withdrawal: userID=%d, err=%v", w.UserID, err)
		return err
	}
	return nil
}

// GetWithdrawal 查询提现申请，不存在时返回 nil
func (r *withdrawalRepo) GetWithdrawal(ctx context.Context, id string) (*biz.Withdrawal, error) {
	var m model.Withdrawal
	err := r.data.DB(ctx).Where("withdrawal_id = ?", id).First(&m).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.WithContext(ctx).Errorf("failed to get withdrawal: id=%s, err=%v", id, err)
		return nil, err
	}
	return withdrawalToBiz(&m), nil
}

// UpdateWithdrawal 条件更新：当前状态必须为 fromStatus。
// 0 行受影响说明状态已被并发流转，返回非法流转错误。
func (r *withdrawalRepo) UpdateWithdrawal(ctx context.Context, w *biz.Withdrawal, fromStatus string) error {
	result := r.data.DB(ctx).Model(&model.Withdrawal{}).
		Where("withdrawal_id = ? AND status = ?", w.ID, fromStatus).
		Updates(map[string]interface{}{
			"status":         w.Status,
			"processed_at":   w.ProcessedAt,
			"processed_by":   w.ProcessedBy,
			"transaction_id": w.TransactionID,
			"reason":         w.Reason,
		})
	if result.Error != nil {
		r.log.WithContext(ctx).Errorf("failed to update withdrawal: id=%s, err=%v", w.ID, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		r.log.WithContext(ctx).Warnf("withdrawal status transition conflict: id=%s, from=%s, to=%s", w.ID, fromStatus, w.Status)
		return pkgErrors.NewBizErrorWithLang(ctx, bizErrors.ErrCodeInvalidWithdrawalStatus)
	}
	return nil
}

// GetWithdrawalStats 提现统计，userID 为 0 时统计全部用户
func (r *withdrawalRepo) GetWithdrawalStats(ctx context.Context, userID uint64) (*biz.WithdrawalStats, error) {
	db := r.data.DB(ctx).Model(&model.Withdrawal{})
	if userID > 0 {
		db = db.Where("user_id = ?", userID)
	}

	var rows []struct {
		Status string
		Count  int
		Amount float64
	}
	err := db.Select("status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		r.log.WithContext(ctx).Errorf("failed to get withdrawal stats: userID=%d, err=%v", userID, err)
		return nil, err
	}

	stats := &biz.WithdrawalStats{}
	for _, row := range rows {
		stats.TotalCount += row.Count
		stats.TotalAmount += row.Amount
		switch row.Status {
		case constants.WithdrawalStatusPending:
			stats.PendingCount = row.Count
		case constants.WithdrawalStatusApproved:
			stats.ApprovedCount = row.Count
		case constants.WithdrawalStatusRejected:
			stats.RejectedCount = row.Count
		case constants.WithdrawalStatusCompleted:
			stats.CompletedCount = row.Count
			stats.CompletedAmount = row.Amount
		case constants.WithdrawalStatusFailed:
			stats.FailedCount = row.Count
		}
	}
	return stats, nil
}

func withdrawalToModel(w *biz.Withdrawal) *model.Withdrawal {
	return &model.Withdrawal{
		ID:            w.ID,
		UserID:        w.UserID,
		Amount:        w.Amount,
		Status:        w.Status,
		AccountInfo:   w.AccountInfo,
		AppliedAt:     w.AppliedAt,
		ProcessedAt:   w.ProcessedAt,
		ProcessedBy:   w.ProcessedBy,
		TransactionID: w.TransactionID,
		Reason:        w.Reason,
	}
}

func withdrawalToBiz(m *model.Withdrawal) *biz.Withdrawal {
	return &biz.Withdrawal{
		ID:            m.ID,
		UserID:        m.UserID,
		Amount:        m.Amount,
		Status:        m.Status,
		AccountInfo:   m.AccountInfo,
		AppliedAt:     m.AppliedAt,
		ProcessedAt:   m.ProcessedAt,
		ProcessedBy:   m.ProcessedBy,
		TransactionID: m.TransactionID,
		Reason:        m.Reason,
	}
}
