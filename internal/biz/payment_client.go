package biz

import "context"

// PaymentClient 支付网关客户端接口 (防腐层)
// Charge 对订单发起扣款，成功时返回网关交易号。
// 网关不保证幂等，调用方必须自行保证同一到期日至多发起一次扣款。
type PaymentClient interface {
	Charge(ctx context.Context, order *Order) (transactionID string, err error)
}
