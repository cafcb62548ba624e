package biz

import (
	"context"

	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewMembershipUsecase,
	NewCouponUsecase,
	NewWalletUsecase,
	NewRenewalUsecase,
)

// Transaction 事务执行接口
type Transaction interface {
	Exec(ctx context.Context, fn func(ctx context.Context) error) error
}
