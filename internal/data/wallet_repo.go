package data

import (
	"context"
	stderrors "errors"

	"xinyuan_tech/membership-service/internal/biz"
	"xinyuan_tech/membership-service/internal/data/model"
	bizErrors "xinyuan_tech/membership-service/internal/errors"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

type walletRepo struct {
	data *Data
	log  *log.Helper
}

// NewWalletRepo .
func NewWalletRepo(data *Data, logger log.Logger) biz.WalletRepo {
	return &walletRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// GetWallet 查询用户钱包，不存在时返回 nil
func (r *walletRepo) GetWallet(ctx context.Context, userID uint64) (*biz.Wallet, error) {
	var m model.Wallet
	err := r.data.DB(ctx).Where("user_id = ?", userID).First(&m).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.WithContext(ctx).Errorf("failed to get wallet: userID=%d, err=%v", userID, err)
		return nil, err
	}
	return walletToBiz(&m), nil
}

// CreateWallet 创建钱包
func (r *walletRepo) CreateWallet(ctx context.Context, w *biz.Wallet) error {
	record := walletToModel(w)
	if err := r.data.DB(ctx).Create(record).Error; err != nil {
		r.log.WithContext(ctx).Errorf("failed to create wallet: userID=%d, err=%v", w.UserID, err)
		return err
	}
	return nil
}

// UpdateWalletVersioned 带乐观锁版本检查的更新。
// 并发写入使版本过期时不落库，返回 ConcurrencyConflict 由上层重试。
func (r *walletRepo) UpdateWalletVersioned(ctx context.Context, w *biz.Wallet) error {
	result := r.data.DB(ctx).Model(&model.Wallet{}).
		Where("wallet_id = ? AND version = ?", w.ID, w.Version).
		Updates(map[string]interface{}{
			"balance":          w.Balance,
			"total_income":     w.TotalIncome,
			"total_withdrawal": w.TotalWithdrawal,
			"version":          w.Version + 1,
			"updated_at":       w.UpdatedAt,
		})
	if result.Error != nil {
		r.log.WithContext(ctx).Errorf("failed to update wallet: walletID=%s, err=%v", w.ID, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		r.log.WithContext(ctx).Warnf("wallet version conflict: walletID=%s, version=%d", w.ID, w.Version)
		return pkgErrors.NewBizErrorWithLang(ctx, bizErrors.ErrCodeConcurrencyConflict)
	}
	w.Version++
	return nil
}

// AddTransaction 追加钱包流水
func (r *walletRepo) AddTransaction(ctx context.Context, tx *biz.WalletTransaction) error {
	record := &model.WalletTransaction{
		ID:           tx.ID,
		UserID:       tx.UserID,
		WalletID:     tx.WalletID,
		Type:         tx.Type,
		Amount:       tx.Amount,
		BalanceAfter: tx.BalanceAfter,
		RelatedID:    tx.RelatedID,
		CreatedAt:    tx.CreatedAt,
	}
	if err := r.data.DB(ctx).Create(record).Error; err != nil {
		r.log.WithContext(ctx).Errorf("failed to add wallet transaction: walletID=%s, err=%v", tx.WalletID, err)
		return err
	}
	return nil
}

// SumTransactions 回放钱包全部流水求和
func (r *walletRepo) SumTransactions(ctx context.Context, walletID string) (float64, error) {
	var sum float64
	err := r.data.DB(ctx).Model(&model.WalletTransaction{}).
		Where("wallet_id = ?", walletID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	if err != nil {
		r.log.WithContext(ctx).Errorf("failed to sum wallet transactions: walletID=%s, err=%v", walletID, err)
		return 0, err
	}
	return sum, nil
}

// ListWallets 分页列出钱包 (对账扫描用)
func (r *walletRepo) ListWallets(ctx context.Context, offset, limit int) ([]*biz.Wallet, error) {
	var ms []*model.Wallet
	err := r.data.DB(ctx).
		Order("wallet_id ASC").
		Offset(offset).
		Limit(limit).
		Find(&ms).Error
	if err != nil {
		r.log.WithContext(ctx).Errorf("failed to list wallets: offset=%d, limit=%d, err=%v", offset, limit, err)
		return nil, err
	}
	wallets := make([]*biz.Wallet, 0, len(ms))
	for _, m := range ms {
		wallets = append(wallets, walletToBiz(m))
	}
	return wallets, nil
}

func walletToModel(w *biz.Wallet) *model.Wallet {
	return &model.Wallet{
		ID:              w.ID,
		UserID:          w.UserID,
		Balance:         w.Balance,
		TotalIncome:     w.TotalIncome,
		TotalWithdrawal: w.TotalWithdrawal,
		Version:         w.Version,
		CreatedAt:       w.CreatedAt,
		UpdatedAt:       w.UpdatedAt,
	}
}

func walletToBiz(m *model.Wallet) *biz.Wallet {
	return &biz.Wallet{
		ID:              m.ID,
		UserID:          m.UserID,
		Balance:         m.Balance,
		TotalIncome:     m.TotalIncome,
		TotalWithdrawal: m.TotalWithdrawal,
		Version:         m.Version,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}
