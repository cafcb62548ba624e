package service

import (
	"context"
	"time"

	"xinyuan_tech/membership-service/internal/biz"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
)

// WalletService 钱包/提现服务
type WalletService struct {
	uc *biz.WalletUsecase
}

// NewWalletService 创建钱包服务实例
func NewWalletService(uc *biz.WalletUsecase) *WalletService {
	return &WalletService{uc: uc}
}

// WalletReply 钱包信息
type WalletReply struct {
	WalletID        string  `json:"wallet_id"`
	UserID          uint64  `json:"user_id"`
	Balance         float64 `json:"balance"`
	TotalIncome     float64 `json:"total_income"`
	TotalWithdrawal float64 `json:"total_withdrawal"`
}

// GetWallet 获取用户钱包
func (s *WalletService) GetWallet(ctx context.Context, userID uint64) (*WalletReply, error) {
	if userID == 0 {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, pkgErrors.ErrCodeInvalidArgument)
	}
	w, err := s.uc.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return &WalletReply{UserID: userID}, nil
	}
	return walletToReply(w), nil
}

// CreateWithdrawalRequest 提现申请请求
type CreateWithdrawalRequest struct {
	UserID      uint64  `json:"user_id"`
	Amount      float64 `json:"amount"`
	AccountInfo string  `json:"account_info"`
}

// WithdrawalReply 提现申请信息
type WithdrawalReply struct {
	WithdrawalID  string  `json:"withdrawal_id"`
	UserID        uint64  `json:"user_id"`
	Amount        float64 `json:"amount"`
	Status        string  `json:"status"`
	AppliedAt     string  `json:"applied_at"`
	ProcessedAt   string  `json:"processed_at,omitempty"`
	ProcessedBy   string  `json:"processed_by,omitempty"`
	TransactionID string  `json:"transaction_id,omitempty"`
	Reason        string  `json:"reason,omitempty"`
}

// CreateWithdrawal 创建提现申请
func (s *WalletService) CreateWithdrawal(ctx context.Context, req *CreateWithdrawalRequest) (*WithdrawalReply, error) {
	if req.UserID == 0 {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, pkgErrors.ErrCodeInvalidArgument)
	}
	w, err := s.uc.CreateWithdrawal(ctx, req.UserID, req.Amount, req.AccountInfo)
	if err != nil {
		return nil, err
	}
	return withdrawalToReply(w), nil
}

// ProcessWithdrawalRequest 处理提现申请请求 (管理端)
type ProcessWithdrawalRequest struct {
	WithdrawalID string `json:"withdrawal_id"`
	Action       string `json:"action"` // approve, reject
	Reason       string `json:"reason"`
	ProcessedBy  string `json:"processed_by"`
}

// ProcessWithdrawal 管理端审批提现申请
func (s *WalletService) ProcessWithdrawal(ctx context.Context, req *ProcessWithdrawalRequest) (*WithdrawalReply, error) {
	if req.WithdrawalID == "" {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, pkgErrors.ErrCodeInvalidArgument)
	}
	w, err := s.uc.ProcessWithdrawal(ctx, req.WithdrawalID, req.Action, req.Reason, req.ProcessedBy)
	if err != nil {
		return nil, err
	}
	return withdrawalToReply(w), nil
}

// CompleteWithdrawalRequest 记录外部打款结果请求
type CompleteWithdrawalRequest struct {
	WithdrawalID  string `json:"withdrawal_id"`
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
}

// CompleteWithdrawal 记录外部打款结果：成功置为 completed，失败退回余额
func (s *WalletService) CompleteWithdrawal(ctx context.Context, req *CompleteWithdrawalRequest) (*WithdrawalReply, error) {
	if req.WithdrawalID == "" {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, pkgErrors.ErrCodeInvalidArgument)
	}
	var (
		w   *biz.Withdrawal
		err error
	)
	if req.Success {
		w, err = s.uc.CompleteWithdrawal(ctx, req.WithdrawalID, req.TransactionID)
	} else {
		w, err = s.uc.FailWithdrawal(ctx, req.WithdrawalID, req.Reason)
	}
	if err != nil {
		return nil, err
	}
	return withdrawalToReply(w), nil
}

// CreditIncomeRequest 收入入账请求
type CreditIncomeRequest struct {
	UserID    uint64  `json:"user_id"`
	Amount    float64 `json:"amount"`
	RelatedID string  `json:"related_id"`
}

// CreditIncome 收入入账
func (s *WalletService) CreditIncome(ctx context.Context, req *CreditIncomeRequest) (*WalletReply, error) {
	if req.UserID == 0 {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, pkgErrors.ErrCodeInvalidArgument)
	}
	w, err := s.uc.CreditIncome(ctx, req.UserID, req.Amount, req.RelatedID)
	if err != nil {
		return nil, err
	}
	return walletToReply(w), nil
}

// WithdrawalStatsReply 提现统计
type WithdrawalStatsReply struct {
	TotalCount      int     `json:"total_count"`
	PendingCount    int     `json:"pending_count"`
	ApprovedCount   int     `json:"approved_count"`
	RejectedCount   int     `json:"rejected_count"`
	CompletedCount  int     `json:"completed_count"`
	FailedCount     int     `json:"failed_count"`
	TotalAmount     float64 `json:"total_amount"`
	CompletedAmount float64 `json:"completed_amount"`
}

// GetWithdrawalStats 提现统计，userID 为 0 时统计全部用户
func (s *WalletService) GetWithdrawalStats(ctx context.Context, userID uint64) (*WithdrawalStatsReply, error) {
	stats, err := s.uc.GetWithdrawalStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &WithdrawalStatsReply{
		TotalCount:      stats.TotalCount,
		PendingCount:    stats.PendingCount,
		ApprovedCount:   stats.ApprovedCount,
		RejectedCount:   stats.RejectedCount,
		CompletedCount:  stats.CompletedCount,
		FailedCount:     stats.FailedCount,
		TotalAmount:     stats.TotalAmount,
		CompletedAmount: stats.CompletedAmount,
	}, nil
}

func walletToReply(w *biz.Wallet) *WalletReply {
	return &WalletReply{
		WalletID:        w.ID,
		UserID:          w.UserID,
		Balance:         w.Balance,
		TotalIncome:     w.TotalIncome,
		TotalWithdrawal: w.TotalWithdrawal,
	}
}

func withdrawalToReply(w *biz.Withdrawal) *WithdrawalReply {
	reply := &WithdrawalReply{
		WithdrawalID:  w.ID,
		UserID:        w.UserID,
		Amount:        w.Amount,
		Status:        w.Status,
		AppliedAt:     w.AppliedAt.Format(time.RFC3339),
		ProcessedBy:   w.ProcessedBy,
		TransactionID: w.TransactionID,
		Reason:        w.Reason,
	}
	if w.ProcessedAt != nil {
		reply.ProcessedAt = w.ProcessedAt.Format(time.RFC3339)
	}
	return reply
}
