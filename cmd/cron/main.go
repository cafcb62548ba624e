package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"xinyuan_tech/membership-service/internal/biz"
	"xinyuan_tech/membership-service/internal/conf"

	klog "github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
	_ "go.uber.org/automaxprocs"
)

var (
	flagconf string
)

// CronApp Cron 应用结构
type CronApp struct {
	membershipUsecase *biz.MembershipUsecase
	renewalUsecase    *biz.RenewalUsecase
	walletUsecase     *biz.WalletUsecase
}

// newLogger 创建 logger
func newLogger() klog.Logger {
	return klog.With(klog.NewStdLogger(os.Stdout),
		"ts", klog.DefaultTimestamp,
		"caller", klog.DefaultCaller,
		"service.name", "membership-cron",
	)
}

func init() {
	flag.StringVar(&flagconf, "conf", "configs/config.yaml", "config path, eg: -conf config.yaml")
}

func main() {
	flag.Parse()

	// 初始化配置
	bc, err := conf.Load(flagconf)
	if err != nil {
		panic(err)
	}

	// 初始化应用
	app, cleanup, err := wireApp(bc)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	// 创建定时任务调度器（支持秒级调度）
	cronScheduler := cron.New(cron.WithSeconds())

	// 1. 会员过期检查 - 每天凌晨 2 点执行
	_, err = cronScheduler.AddFunc("0 0 2 * * *", func() {
		log.Println("[CRON] Starting membership expiration check...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		count, uids, err := app.membershipUsecase.UpdateExpiredMemberships(ctx)
		if err != nil {
			log.Printf("[CRON] Error updating expired memberships: %v", err)
		} else {
			log.Printf("[CRON] Updated %d expired memberships: %v", count, uids)
			log.Println("[CRON] Finished membership expiration check")
		}
	})
	if err != nil {
		log.Printf("Failed to add expiration check job: %v", err)
	}

	// 2. 自动续费处理 - 每天凌晨 3 点执行
	_, err = cronScheduler.AddFunc("0 0 3 * * *", func() {
		log.Println("[CRON] Starting auto-renewal process...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		totalCount, successCount, failedCount, results, err := app.renewalUsecase.ProcessAutoRenewals(ctx)
		if err != nil {
			log.Printf("[CRON] Error processing auto-renewals: %v", err)
			return
		}
		log.Printf("[CRON] Auto-renewal completed: total=%d, success=%d, failed=%d",
			totalCount, successCount, failedCount)

		// 记录详细结果
		for _, result := range results {
			if result.Success {
				log.Printf("[CRON] Auto-renewal success: user=%d, level=%s, order=%s",
					result.UserID, result.Level, result.OrderID)
			} else {
				log.Printf("[CRON] Auto-renewal failed: user=%d, level=%s, error=%s",
					result.UserID, result.Level, result.ErrorMessage)
			}
		}
	})
	if err != nil {
		log.Printf("Failed to add auto-renewal job: %v", err)
	}

	// 3. 钱包账本对账 - 每天凌晨 4 点执行
	_, err = cronScheduler.AddFunc("0 0 4 * * *", func() {
		log.Println("[CRON] Starting wallet reconciliation...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		mismatched, err := app.walletUsecase.ReconcileWallets(ctx)
		if err != nil {
			log.Printf("[CRON] Error reconciling wallets: %v", err)
		}
		log.Printf("[CRON] Wallet reconciliation finished: mismatched=%d", mismatched)
	})
	if err != nil {
		log.Printf("Failed to add wallet reconciliation job: %v", err)
	}

	// 4. 禁用连续失败的自动续费 - 每周日凌晨 5 点执行
	_, err = cronScheduler.AddFunc("0 0 5 * * 0", func() {
		log.Println("[CRON] Starting auto-renew failure sweep...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		count, err := app.renewalUsecase.DisableFailedConfigs(ctx)
		if err != nil {
			log.Printf("[CRON] Error disabling failed auto-renew configs: %v", err)
		} else {
			log.Printf("[CRON] Disabled %d auto-renew configs", count)
		}
	})
	if err != nil {
		log.Printf("Failed to add failure sweep job: %v", err)
	}

	cronScheduler.Start()
	log.Println("Cron scheduler started")

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down cron scheduler...")
	stopCtx := cronScheduler.Stop()
	<-stopCtx.Done()
	log.Println("Cron scheduler stopped")
}
