package data

import (
	"context"
	"math"

	"xinyuan_tech/membership-service/internal/biz"
	"xinyuan_tech/membership-service/internal/conf"
	bizErrors "xinyuan_tech/membership-service/internal/errors"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
)

type paymentClient struct {
	core coreapi.Client
	log  *log.Helper
}

// NewPaymentClient 创建 Midtrans 支付网关客户端
func NewPaymentClient(c *conf.Bootstrap, logger log.Logger) biz.PaymentClient {
	env := midtrans.Sandbox
	serverKey := ""
	if c != nil && c.Client != nil && c.Client.Midtrans != nil {
		serverKey = c.Client.Midtrans.ServerKey
		if c.Client.Midtrans.Production {
			env = midtrans.Production
		}
	}

	var core coreapi.Client
	core.New(serverKey, env)
	return &paymentClient{
		core: core,
		log:  log.NewHelper(logger),
	}
}

// Charge 发起一笔扣款。订单的 payment_method 携带续费时保存的卡 token。
func (p *paymentClient) Charge(ctx context.Context, order *biz.Order) (string, error) {
	req := &coreapi.ChargeReq{
		PaymentType: coreapi.PaymentTypeCreditCard,
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  order.ID,
			GrossAmt: int64(math.Round(order.Amount)),
		},
		CreditCard: &coreapi.CreditCardDetails{
			TokenID: order.PaymentMethod,
		},
	}

	resp, err := p.core.ChargeTransaction(req)
	if err != nil {
		p.log.WithContext(ctx).Errorf("midtrans charge failed: orderID=%s, err=%v", order.ID, err)
		return "", pkgErrors.NewBizErrorWithLang(ctx, bizErrors.ErrCodePaymentFailed)
	}

	switch resp.TransactionStatus {
	case "capture", "settlement":
		p.log.WithContext(ctx).Infof("midtrans charge succeeded: orderID=%s, transactionID=%s, status=%s",
			order.ID, resp.TransactionID, resp.TransactionStatus)
		return resp.TransactionID, nil
	default:
		p.log.WithContext(ctx).Warnf("midtrans charge not settled: orderID=%s, status=%s, message=%s",
			order.ID, resp.TransactionStatus, resp.StatusMessage)
		return "", pkgErrors.NewBizErrorWithLang(ctx, bizErrors.ErrCodePaymentFailed)
	}
}
