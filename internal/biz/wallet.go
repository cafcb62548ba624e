package biz

import (
	"context"
	"time"

	"xinyuan_tech/membership-service/internal/constants"
	"xinyuan_tech/membership-service/internal/errors"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// Wallet 用户钱包，余额变更的互斥单元。
// 不变量：balance = total_income - total_withdrawal 且 balance >= 0。
type Wallet struct {
	ID              string
	UserID          uint64
	Balance         float64
	TotalIncome     float64
	TotalWithdrawal float64
	Version         int // 乐观锁版本号
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// WalletTransaction 钱包流水 (只追加的审计账本)
// 不变量：按创建顺序回放全部流水的 amount 之和等于当前余额。
type WalletTransaction struct {
	ID           string
	UserID       uint64
	WalletID     string
	Type         string // income, withdrawal, adjustment
	Amount       float64
	BalanceAfter float64
	RelatedID    string
	CreatedAt    time.Time
}

// Withdrawal 提现申请
// 状态机：pending -> approved/rejected -> completed/failed，
// rejected/completed/failed 为终态。余额在 approve 时扣减且只扣一次。
type Withdrawal struct {
	ID            string
	UserID        uint64
	Amount        float64
	Status        string
	AccountInfo   string
	AppliedAt     time.Time
	ProcessedAt   *time.Time
	ProcessedBy   string
	TransactionID string
	Reason        string
}

// WithdrawalStats 提现统计
type WithdrawalStats struct {
	TotalCount      int
	PendingCount    int
	ApprovedCount   int
	RejectedCount   int
	CompletedCount  int
	FailedCount     int
	TotalAmount     float64
	CompletedAmount float64
}

// WalletRepo 钱包仓库接口
type WalletRepo interface {
	// GetWallet 不存在时返回 (nil, nil)
	GetWallet(ctx context.Context, userID uint64) (*Wallet, error)
	CreateWallet(ctx context.Context, w *Wallet) error
	// UpdateWalletVersioned 带版本检查更新，版本不匹配时返回 ConcurrencyConflict
	UpdateWalletVersioned(ctx context.Context, w *Wallet) error
	AddTransaction(ctx context.Context, tx *WalletTransaction) error
	// SumTransactions 回放钱包全部流水求和 (审计用)
	SumTransactions(ctx context.Context, walletID string) (float64, error)
	ListWallets(ctx context.Context, offset, limit int) ([]*Wallet, error)
}

// WithdrawalRepo 提现仓库接口
type WithdrawalRepo interface {
	CreateWithdrawal(ctx context.Context, w *Withdrawal) error
	// GetWithdrawal 不存在时返回 (nil, nil)
	GetWithdrawal(ctx context.Context, id string) (*Withdrawal, error)
	// UpdateWithdrawal 条件更新：当前状态必须为 fromStatus，否则返回非法流转错误
	UpdateWithdrawal(ctx context.Context, w *Withdrawal, fromStatus string) error
	// GetWithdrawalStats userID 为 0 时统计全部用户
	GetWithdrawalStats(ctx context.Context, userID uint64) (*WithdrawalStats, error)
}

// WalletUsecase 钱包/提现业务逻辑
type WalletUsecase struct {
	walletRepo WalletRepo
	wdRepo     WithdrawalRepo
	notifier   NotificationClient
	tm         Transaction
	log        *log.Helper
}

// NewWalletUsecase 创建钱包业务用例
func NewWalletUsecase(walletRepo WalletRepo, wdRepo WithdrawalRepo, notifier NotificationClient, tm Transaction, logger log.Logger) *WalletUsecase {
	return &WalletUsecase{
		walletRepo: walletRepo,
		wdRepo:     wdRepo,
		notifier:   notifier,
		tm:         tm,
		log:        log.NewHelper(logger),
	}
}

// GetWallet 获取用户钱包，不存在时返回 (nil, nil)
func (uc *WalletUsecase) GetWallet(ctx context.Context, userID uint64) (*Wallet, error) {
	return uc.walletRepo.GetWallet(ctx, userID)
}

// CreateWithdrawal 创建提现申请
// pending 只是请求占位，不动余额；余额校验推迟到 approve 时按最新余额执行。
// 钱包不存在时以零余额懒创建。
func (uc *WalletUsecase) CreateWithdrawal(ctx context.Context, userID uint64, amount float64, accountInfo string) (*Withdrawal, error) {
	if amount <= 0 {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeInvalidAmount)
	}

	now := time.Now().UTC()
	w := &Withdrawal{
		ID:          uuid.New().String(),
		UserID:      userID,
		Amount:      Round2(amount),
		Status:      constants.WithdrawalStatusPending,
		AccountInfo: accountInfo,
		AppliedAt:   now,
	}

	err := uc.tm.Exec(ctx, func(ctx context.Context) error {
		if _, err := uc.ensureWallet(ctx, userID, now); err != nil {
			return err
		}
		return uc.wdRepo.CreateWithdrawal(ctx, w)
	})
	if err != nil {
		uc.log.Errorf("Failed to create withdrawal for user %d: %v", userID, err)
		return nil, err
	}

	uc.log.Infof("Withdrawal %s created: user=%d, amount=%.2f", w.ID, userID, w.Amount)
	return w, nil
}

// ProcessWithdrawal 管理端处理提现申请，仅允许从 pending 流转。
// approve 按最新余额复核后原子地扣减余额、累计提现总额、追加审计流水并置为
// approved；余额不足时申请保持 pending 并返回 InsufficientBalance。
// reject 必须携带原因，不动余额。
func (uc *WalletUsecase) ProcessWithdrawal(ctx context.Context, id, action, reason, processedBy string) (*Withdrawal, error) {
	switch action {
	case constants.WithdrawalActionApprove:
		return uc.approveWithdrawal(ctx, id, processedBy)
	case constants.WithdrawalActionReject:
		if reason == "" {
			return nil, pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeReasonRequired)
		}
		return uc.rejectWithdrawal(ctx, id, reason, processedBy)
	default:
		return nil, pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeInvalidAction)
	}
}

func (uc *WalletUsecase) rejectWithdrawal(ctx context.Context, id, reason, processedBy string) (*Withdrawal, error) {
	var result *Withdrawal
	err := uc.tm.Exec(ctx, func(ctx context.Context) error {
		w, err := uc.wdRepo.GetWithdrawal(ctx, id)
		if err != nil {
			return err
		}
		if w == nil {
			return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeWithdrawalNotFound)
		}
		if w.Status != constants.WithdrawalStatusPending {
			return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeInvalidWithdrawalStatus)
		}

		now := time.Now().UTC()
		w.Status = constants.WithdrawalStatusRejected
		w.Reason = reason
		w.ProcessedBy = processedBy
		w.ProcessedAt = &now
		if err := uc.wdRepo.UpdateWithdrawal(ctx, w, constants.WithdrawalStatusPending); err != nil {
			return err
		}
		result = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Infof("Withdrawal %s rejected by %s: %s", id, processedBy, reason)
	return result, nil
}

func (uc *WalletUsecase) approveWithdrawal(ctx context.Context, id, processedBy string) (*Withdrawal, error) {
	var result *Withdrawal
	err := uc.withVersionRetry(ctx, func(ctx context.Context) error {
		w, err := uc.wdRepo.GetWithdrawal(ctx, id)
		if err != nil {
			return err
		}
		if w == nil {
			return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeWithdrawalNotFound)
		}
		if w.Status != constants.WithdrawalStatusPending {
			return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeInvalidWithdrawalStatus)
		}

		wallet, err := uc.walletRepo.GetWallet(ctx, w.UserID)
		if err != nil {
			return err
		}
		if wallet == nil {
			return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeWalletNotFound)
		}

		// 审批时刻按最新余额复核
		if wallet.Balance < w.Amount {
			return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeInsufficientBalance)
		}

		now := time.Now().UTC()
		newBalance := Round2(wallet.Balance - w.Amount)
		if newBalance < 0 {
			uc.log.Errorf("Negative balance detected for wallet %s: balance=%.2f, amount=%.2f", wallet.ID, wallet.Balance, w.Amount)
			return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeDataIntegrity)
		}

		wallet.Balance = newBalance
		wallet.TotalWithdrawal = Round2(wallet.TotalWithdrawal + w.Amount)
		wallet.UpdatedAt = now
		if err := uc.walletRepo.UpdateWalletVersioned(ctx, wallet); err != nil {
			return err
		}

		if err := uc.walletRepo.AddTransaction(ctx, &WalletTransaction{
			ID:           uuid.New().String(),
			UserID:       w.UserID,
			WalletID:     wallet.ID,
			Type:         constants.WalletTxTypeWithdrawal,
			Amount:       -w.Amount,
			BalanceAfter: newBalance,
			RelatedID:    w.ID,
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		w.Status = constants.WithdrawalStatusApproved
		w.ProcessedBy = processedBy
		w.ProcessedAt = &now
		if err := uc.wdRepo.UpdateWithdrawal(ctx, w, constants.WithdrawalStatusPending); err != nil {
			return err
		}
		result = w
		return nil
	})
	if err != nil {
		uc.log.Errorf("Failed to approve withdrawal %s: %v", id, err)
		return nil, err
	}
	uc.log.Infof("Withdrawal %s approved by %s, new balance recorded", id, processedBy)
	return result, nil
}

// CompleteWithdrawal 记录外部打款结果，仅允许从 approved 流转。
// 余额已在 approve 时扣减，此处不再变更。
func (uc *WalletUsecase) CompleteWithdrawal(ctx context.Context, id, transactionID string) (*Withdrawal, error) {
	var result *Withdrawal
	err := uc.tm.Exec(ctx, func(ctx context.Context) error {
		w, err := uc.wdRepo.GetWithdrawal(ctx, id)
		if err != nil {
			return err
		}
		if w == nil {
			return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeWithdrawalNotFound)
		}
		if w.Status != constants.WithdrawalStatusApproved {
			return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeInvalidWithdrawalStatus)
		}

		w.Status = constants.WithdrawalStatusCompleted
		w.TransactionID = transactionID
		if err := uc.wdRepo.UpdateWithdrawal(ctx, w, constants.WithdrawalStatusApproved); err != nil {
			return err
		}
		result = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 通知失败不影响主流程
	if err := uc.notifier.Notify(ctx, result.UserID, constants.NotifyKindWithdrawalDone, map[string]string{
		"withdrawal_id":  result.ID,
		"transaction_id": transactionID,
	}); err != nil {
		uc.log.Warnf("Failed to send completion notification for withdrawal %s: %v", id, err)
	}

	uc.log.Infof("Withdrawal %s completed, transaction=%s", id, transactionID)
	return result, nil
}

// FailWithdrawal 外部打款失败，仅允许从 approved 流转。
// 扣减过的金额通过 adjustment 流水退回钱包。
func (uc *WalletUsecase) FailWithdrawal(ctx context.Context, id, reason string) (*Withdrawal, error) {
	var result *Withdrawal
	err := uc.withVersionRetry(ctx, func(ctx context.Context) error {
		w, err := uc.wdRepo.GetWithdrawal(ctx, id)
		if err != nil {
			return err
		}
		if w == nil {
			return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeWithdrawalNotFound)
		}
		if w.Status != constants.WithdrawalStatusApproved {
			return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeInvalidWithdrawalStatus)
		}

		wallet, err := uc.walletRepo.GetWallet(ctx, w.UserID)
		if err != nil {
			return err
		}
		if wallet == nil {
			return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeWalletNotFound)
		}

		now := time.Now().UTC()
		newBalance := Round2(wallet.Balance + w.Amount)
		wallet.Balance = newBalance
		wallet.TotalWithdrawal = Round2(wallet.TotalWithdrawal - w.Amount)
		wallet.UpdatedAt = now
		if err := uc.walletRepo.UpdateWalletVersioned(ctx, wallet); err != nil {
			return err
		}

		if err := uc.walletRepo.AddTransaction(ctx, &WalletTransaction{
			ID:           uuid.New().String(),
			UserID:       w.UserID,
			WalletID:     wallet.ID,
			Type:         constants.WalletTxTypeAdjustment,
			Amount:       w.Amount,
			BalanceAfter: newBalance,
			RelatedID:    w.ID,
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		w.Status = constants.WithdrawalStatusFailed
		w.Reason = reason
		if err := uc.wdRepo.UpdateWithdrawal(ctx, w, constants.WithdrawalStatusApproved); err != nil {
			return err
		}
		result = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Infof("Withdrawal %s marked failed and refunded: %s", id, reason)
	return result, nil
}

// CreditIncome 收入入账 (创作者分成等)，钱包不存在时懒创建
func (uc *WalletUsecase) CreditIncome(ctx context.Context, userID uint64, amount float64, relatedID string) (*Wallet, error) {
	if amount <= 0 {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeInvalidAmount)
	}
	amount = Round2(amount)

	var result *Wallet
	err := uc.withVersionRetry(ctx, func(ctx context.Context) error {
		now := time.Now().UTC()
		wallet, err := uc.ensureWallet(ctx, userID, now)
		if err != nil {
			return err
		}

		newBalance := Round2(wallet.Balance + amount)
		wallet.Balance = newBalance
		wallet.TotalIncome = Round2(wallet.TotalIncome + amount)
		wallet.UpdatedAt = now
		if err := uc.walletRepo.UpdateWalletVersioned(ctx, wallet); err != nil {
			return err
		}

		if err := uc.walletRepo.AddTransaction(ctx, &WalletTransaction{
			ID:           uuid.New().String(),
			UserID:       userID,
			WalletID:     wallet.ID,
			Type:         constants.WalletTxTypeIncome,
			Amount:       amount,
			BalanceAfter: newBalance,
			RelatedID:    relatedID,
			CreatedAt:    now,
		}); err != nil {
			return err
		}
		result = wallet
		return nil
	})
	if err != nil {
		uc.log.Errorf("Failed to credit income for user %d: %v", userID, err)
		return nil, err
	}

	uc.log.Infof("Credited %.2f to user %d wallet, balance=%.2f", amount, userID, result.Balance)
	return result, nil
}

// GetWithdrawalStats 提现统计，userID 为 0 时统计全部
func (uc *WalletUsecase) GetWithdrawalStats(ctx context.Context, userID uint64) (*WithdrawalStats, error) {
	return uc.wdRepo.GetWithdrawalStats(ctx, userID)
}

// ReconcileWallet 回放钱包流水并与余额对账
// 不一致属于致命错误：记录完整上下文并返回 DataIntegrity。
func (uc *WalletUsecase) ReconcileWallet(ctx context.Context, userID uint64) error {
	wallet, err := uc.walletRepo.GetWallet(ctx, userID)
	if err != nil {
		return err
	}
	if wallet == nil {
		return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeWalletNotFound)
	}
	return uc.reconcile(ctx, wallet)
}

// ReconcileWallets 全量对账扫描 (定时任务)，返回不一致的钱包数
func (uc *WalletUsecase) ReconcileWallets(ctx context.Context) (int, error) {
	mismatched := 0
	offset := 0
	for {
		wallets, err := uc.walletRepo.ListWallets(ctx, offset, constants.MaxPageSize)
		if err != nil {
			return mismatched, err
		}
		if len(wallets) == 0 {
			break
		}
		for _, wallet := range wallets {
			if err := uc.reconcile(ctx, wallet); err != nil {
				mismatched++
			}
		}
		offset += len(wallets)
	}

	if mismatched > 0 {
		uc.log.Errorf("Wallet reconciliation found %d mismatched wallets", mismatched)
	} else {
		uc.log.Infof("Wallet reconciliation passed")
	}
	return mismatched, nil
}

func (uc *WalletUsecase) reconcile(ctx context.Context, wallet *Wallet) error {
	sum, err := uc.walletRepo.SumTransactions(ctx, wallet.ID)
	if err != nil {
		return err
	}
	if Round2(sum) != Round2(wallet.Balance) || wallet.Balance < 0 {
		uc.log.Errorf("Ledger mismatch for wallet %s (user %d): balance=%.2f, replay_sum=%.2f, income=%.2f, withdrawal=%.2f",
			wallet.ID, wallet.UserID, wallet.Balance, sum, wallet.TotalIncome, wallet.TotalWithdrawal)
		return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeDataIntegrity)
	}
	return nil
}

// ensureWallet 获取钱包，不存在时以零余额创建
func (uc *WalletUsecase) ensureWallet(ctx context.Context, userID uint64, now time.Time) (*Wallet, error) {
	wallet, err := uc.walletRepo.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	if wallet != nil {
		return wallet, nil
	}
	wallet = &Wallet{
		ID:        uuid.New().String(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.walletRepo.CreateWallet(ctx, wallet); err != nil {
		return nil, err
	}
	return wallet, nil
}

// withVersionRetry 在单个事务内执行 fn，乐观锁冲突时有限重试后原样上抛
func (uc *WalletUsecase) withVersionRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < constants.WalletUpdateMaxRetries; attempt++ {
		err = uc.tm.Exec(ctx, fn)
		if err == nil || !errors.IsCode(err, errors.ErrCodeConcurrencyConflict) {
			return err
		}
		uc.log.Warnf("Wallet version conflict, retrying (attempt %d)", attempt+1)
	}
	return err
}
