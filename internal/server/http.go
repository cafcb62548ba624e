package server

import (
	"encoding/json"
	stdhttp "net/http"
	"strconv"

	"github.com/gaoyong06/go-pkg/health"
	"github.com/gaoyong06/go-pkg/middleware/i18n"

	"xinyuan_tech/membership-service/internal/conf"
	"xinyuan_tech/membership-service/internal/service"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// NewHTTPServer new an HTTP server.
func NewHTTPServer(c *conf.Bootstrap, member *service.MembershipService, wallet *service.WalletService, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			// 添加 i18n 中间件
			i18n.Middleware(),
		),
		http.ErrorEncoder(customErrorEncoder),
	}
	if c.Server.Http.Addr != "" {
		opts = append(opts, http.Address(c.Server.Http.Addr))
	}
	srv := http.NewServer(opts...)

	registerMembershipRoutes(srv, member)
	registerWalletRoutes(srv, wallet)

	// 注册健康检查端点
	srv.Route("/").GET("/health", func(ctx http.Context) error {
		return ctx.Result(200, health.NewResponse("membership-service"))
	})

	return srv
}

func registerMembershipRoutes(srv *http.Server, svc *service.MembershipService) {
	r := srv.Route("/v1/memberships")

	r.GET("/{user_id}", func(ctx http.Context) error {
		userID, err := pathUint(ctx, "user_id")
		if err != nil {
			return err
		}
		reply, err := svc.GetMyMembership(ctx, userID)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.POST("/price", func(ctx http.Context) error {
		var req service.CalculatePriceRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := svc.CalculateUpgradePrice(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.POST("/orders", func(ctx http.Context) error {
		var req service.CreateOrderRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := svc.CreateMembershipOrder(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.POST("/payment/callback", func(ctx http.Context) error {
		var req service.PaymentCallbackRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := svc.PaymentCallback(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.POST("/auto-renew", func(ctx http.Context) error {
		var req service.SetupAutoRenewRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := svc.SetupAutoRenew(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.PUT("/auto-renew", func(ctx http.Context) error {
		var req service.UpdateAutoRenewRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := svc.UpdateAutoRenew(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.POST("/coupons/validate", func(ctx http.Context) error {
		var req service.ValidateCouponRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := svc.ValidateCoupon(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})
}

func registerWalletRoutes(srv *http.Server, svc *service.WalletService) {
	r := srv.Route("/v1/wallets")

	r.GET("/{user_id}", func(ctx http.Context) error {
		userID, err := pathUint(ctx, "user_id")
		if err != nil {
			return err
		}
		reply, err := svc.GetWallet(ctx, userID)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.POST("/income", func(ctx http.Context) error {
		var req service.CreditIncomeRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := svc.CreditIncome(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.POST("/withdrawals", func(ctx http.Context) error {
		var req service.CreateWithdrawalRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := svc.CreateWithdrawal(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.POST("/withdrawals/process", func(ctx http.Context) error {
		var req service.ProcessWithdrawalRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := svc.ProcessWithdrawal(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.POST("/withdrawals/complete", func(ctx http.Context) error {
		var req service.CompleteWithdrawalRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := svc.CompleteWithdrawal(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.GET("/withdrawals/stats", func(ctx http.Context) error {
		var userID uint64
		if raw := ctx.Query().Get("user_id"); raw != "" {
			parsed, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return kerrors.BadRequest("INVALID_ARGUMENT", "invalid user_id")
			}
			userID = parsed
		}
		reply, err := svc.GetWithdrawalStats(ctx, userID)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})
}

func pathUint(ctx http.Context, key string) (uint64, error) {
	raw := ctx.Vars().Get(key)
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, kerrors.BadRequest("INVALID_ARGUMENT", "invalid "+key)
	}
	return v, nil
}

func customErrorEncoder(w stdhttp.ResponseWriter, r *stdhttp.Request, err error) {
	se := kerrors.FromError(err)
	status := stdhttp.StatusInternalServerError
	response := map[string]interface{}{
		"code":    status,
		"message": "internal server error",
	}

	if se != nil {
		status = mapErrorStatus(int(se.Code))
		response["code"] = se.Code
		response["reason"] = se.Reason
		response["message"] = se.Message
		if len(se.Metadata) > 0 {
			response["metadata"] = se.Metadata
		}
	} else if err != nil {
		response["message"] = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

func mapErrorStatus(code int) int {
	if code >= 100 && code < 600 {
		return code
	}
	if code >= 140000 && code < 150000 {
		return stdhttp.StatusBadRequest
	}
	return stdhttp.StatusInternalServerError
}
