package biz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"xinyuan_tech/membership-service/internal/conf"
	"xinyuan_tech/membership-service/internal/constants"
	bizErrors "xinyuan_tech/membership-service/internal/errors"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redsync/redsync/v4"
	redsyncredis "github.com/go-redsync/redsync/v4/redis"
)

// 内存实现的测试替身。并发相关的实现 (钱包版本号、券行锁、提现条件更新)
// 与 data 层保持一致的语义，其余为最小实现。

type fakeTx struct{}

func (fakeTx) Exec(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakePlanRepo struct {
	plans map[string]*Plan // key: level/months
}

func newFakePlanRepo(plans ...*Plan) *fakePlanRepo {
	r := &fakePlanRepo{plans: make(map[string]*Plan)}
	for _, p := range plans {
		r.plans[planKey(p.Level, p.DurationMonths)] = p
	}
	return r
}

func planKey(level string, months int) string {
	return fmt.Sprintf("%s/%d", level, months)
}

func (r *fakePlanRepo) GetPlan(ctx context.Context, level string, durationMonths int) (*Plan, error) {
	return r.plans[planKey(level, durationMonths)], nil
}

func (r *fakePlanRepo) ListPlans(ctx context.Context) ([]*Plan, error) {
	out := make([]*Plan, 0, len(r.plans))
	for _, p := range r.plans {
		out = append(out, p)
	}
	return out, nil
}

type fakeMembershipRepo struct {
	mu      sync.Mutex
	members map[uint64]*UserMembership
	records []*MembershipRecord
}

func newFakeMembershipRepo() *fakeMembershipRepo {
	return &fakeMembershipRepo{members: make(map[uint64]*UserMembership)}
}

func (r *fakeMembershipRepo) GetMembership(ctx context.Context, userID uint64) (*UserMembership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[userID]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (r *fakeMembershipRepo) SaveMembership(ctx context.Context, m *UserMembership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	if cp.ID == 0 {
		cp.ID = uint64(len(r.members) + 1)
	}
	r.members[m.UserID] = &cp
	return nil
}

func (r *fakeMembershipRepo) AddMembershipRecord(ctx context.Context, rec *MembershipRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.ID = uint64(len(r.records) + 1)
	cp := *rec
	r.records = append(r.records, &cp)
	return nil
}

func (r *fakeMembershipRepo) UpdateExpiredMemberships(ctx context.Context) (int, []uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	var uids []uint64
	for uid, m := range r.members {
		if m.Status == constants.MembershipStatusActive && !m.ExpireAt.After(now) {
			m.Status = constants.MembershipStatusExpired
			uids = append(uids, uid)
		}
	}
	return len(uids), uids, nil
}

type fakeAutoRenewRepo struct {
	mu      sync.Mutex
	configs map[uint64]*AutoRenewConfig
}

func newFakeAutoRenewRepo() *fakeAutoRenewRepo {
	return &fakeAutoRenewRepo{configs: make(map[uint64]*AutoRenewConfig)}
}

func (r *fakeAutoRenewRepo) GetConfig(ctx context.Context, userID uint64) (*AutoRenewConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[userID]
	if !ok {
		return nil, nil
	}
	cp := *cfg
	return &cp, nil
}

func (r *fakeAutoRenewRepo) UpsertConfig(ctx context.Context, cfg *AutoRenewConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.configs[cfg.UserID]
	if !ok {
		cp := *cfg
		cp.ID = uint64(len(r.configs) + 1)
		r.configs[cfg.UserID] = &cp
		return nil
	}
	// 与 data 层一致：不覆盖历史失败计数
	existing.Level = cfg.Level
	existing.DurationMonths = cfg.DurationMonths
	existing.PaymentMethod = cfg.PaymentMethod
	existing.NextRenewDate = cfg.NextRenewDate
	existing.Status = cfg.Status
	existing.Enabled = cfg.Enabled
	existing.UpdatedAt = cfg.UpdatedAt
	return nil
}

func (r *fakeAutoRenewRepo) SaveConfig(ctx context.Context, cfg *AutoRenewConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *cfg
	if cp.ID == 0 {
		cp.ID = uint64(len(r.configs) + 1)
	}
	r.configs[cfg.UserID] = &cp
	return nil
}

func (r *fakeAutoRenewRepo) ListDueConfigs(ctx context.Context, windowDays int) ([]*AutoRenewConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	var out []*AutoRenewConfig
	for _, cfg := range r.configs {
		if !cfg.Enabled {
			continue
		}
		if cfg.Status == constants.RenewStatusProcessing || cfg.Status == constants.RenewStatusDisabled {
			continue
		}
		if cfg.NextRenewDate.After(now) {
			continue
		}
		cp := *cfg
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeAutoRenewRepo) MarkProcessing(ctx context.Context, userID uint64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[userID]
	if !ok || !cfg.Enabled {
		return false, nil
	}
	if cfg.Status == constants.RenewStatusProcessing || cfg.Status == constants.RenewStatusDisabled {
		return false, nil
	}
	cfg.Status = constants.RenewStatusProcessing
	cfg.LastAttemptAt = &at
	return true, nil
}

func (r *fakeAutoRenewRepo) MarkSuccess(ctx context.Context, userID uint64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[userID]
	if !ok {
		return fmt.Errorf("config not found for user %d", userID)
	}
	cfg.Status = constants.RenewStatusSuccess
	cfg.FailureCount = 0
	cfg.FailureReason = ""
	cfg.LastRenewalAt = &at
	return nil
}

func (r *fakeAutoRenewRepo) MarkFailed(ctx context.Context, userID uint64, reason string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[userID]
	if !ok {
		return fmt.Errorf("config not found for user %d", userID)
	}
	cfg.Status = constants.RenewStatusFailed
	cfg.FailureCount++
	cfg.FailureReason = reason
	return nil
}

func (r *fakeAutoRenewRepo) DisableExhausted(ctx context.Context, maxFailures int) (int, []uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var uids []uint64
	for uid, cfg := range r.configs {
		if cfg.Enabled && cfg.Status == constants.RenewStatusFailed && cfg.FailureCount >= maxFailures {
			cfg.Enabled = false
			cfg.Status = constants.RenewStatusDisabled
			uids = append(uids, uid)
		}
	}
	return len(uids), uids, nil
}

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*Order
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[string]*Order)}
}

func (r *fakeOrderRepo) CreateOrder(ctx context.Context, order *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orders[order.ID]; exists {
		return fmt.Errorf("duplicate order id %s", order.ID)
	}
	cp := *order
	r.orders[order.ID] = &cp
	return nil
}

func (r *fakeOrderRepo) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOrderRepo) UpdateOrder(ctx context.Context, order *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *order
	r.orders[order.ID] = &cp
	return nil
}

func (r *fakeOrderRepo) TransitionOrder(ctx context.Context, order *Order, fromStatus string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[order.ID]
	if !ok || stored.Status != fromStatus {
		return false, nil
	}
	cp := *order
	r.orders[order.ID] = &cp
	return true, nil
}

type fakeCouponRepo struct {
	mu      sync.Mutex
	coupons map[string]*Coupon
	usages  []*CouponUsage
}

func newFakeCouponRepo(coupons ...*Coupon) *fakeCouponRepo {
	r := &fakeCouponRepo{coupons: make(map[string]*Coupon)}
	for _, c := range coupons {
		r.coupons[c.Code] = c
	}
	return r
}

func (r *fakeCouponRepo) GetCouponByCode(ctx context.Context, code string) (*Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.coupons[code]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCouponRepo) GetCouponByCodeForUpdate(ctx context.Context, code string) (*Coupon, error) {
	return r.GetCouponByCode(ctx, code)
}

func (r *fakeCouponRepo) CountUsages(ctx context.Context, couponID uint64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, u := range r.usages {
		if u.CouponID == couponID {
			count++
		}
	}
	return count, nil
}

func (r *fakeCouponRepo) CountUserUsages(ctx context.Context, couponID, userID uint64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, u := range r.usages {
		if u.CouponID == couponID && u.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (r *fakeCouponRepo) AddUsage(ctx context.Context, usage *CouponUsage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.usages {
		if u.CouponID == usage.CouponID && u.UserID == usage.UserID && u.OrderID == usage.OrderID {
			return fmt.Errorf("duplicate coupon usage")
		}
	}
	// 与数据库行锁 + 计数语义一致：写入时刻再次校验总量与单用户上限
	for _, c := range r.coupons {
		if c.ID != usage.CouponID {
			continue
		}
		total, byUser := 0, 0
		for _, u := range r.usages {
			if u.CouponID != usage.CouponID {
				continue
			}
			total++
			if u.UserID == usage.UserID {
				byUser++
			}
		}
		if c.MaxUsage > 0 && total >= c.MaxUsage {
			return pkgErrors.NewBizErrorWithLang(ctx, bizErrors.ErrCodeCouponExhausted)
		}
		if c.MaxUsagePerUser > 0 && byUser >= c.MaxUsagePerUser {
			return pkgErrors.NewBizErrorWithLang(ctx, bizErrors.ErrCodeCouponUserLimitReached)
		}
	}
	usage.ID = uint64(len(r.usages) + 1)
	cp := *usage
	r.usages = append(r.usages, &cp)
	return nil
}

type fakeWalletRepo struct {
	mu      sync.Mutex
	wallets map[uint64]*Wallet
	txs     []*WalletTransaction
}

func newFakeWalletRepo() *fakeWalletRepo {
	return &fakeWalletRepo{wallets: make(map[uint64]*Wallet)}
}

func (r *fakeWalletRepo) GetWallet(ctx context.Context, userID uint64) (*Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[userID]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *fakeWalletRepo) CreateWallet(ctx context.Context, w *Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *w
	r.wallets[w.UserID] = &cp
	return nil
}

func (r *fakeWalletRepo) UpdateWalletVersioned(ctx context.Context, w *Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.wallets[w.UserID]
	if !ok || stored.Version != w.Version {
		return pkgErrors.NewBizErrorWithLang(ctx, bizErrors.ErrCodeConcurrencyConflict)
	}
	cp := *w
	cp.Version = w.Version + 1
	r.wallets[w.UserID] = &cp
	w.Version = cp.Version
	return nil
}

func (r *fakeWalletRepo) AddTransaction(ctx context.Context, tx *WalletTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *tx
	r.txs = append(r.txs, &cp)
	return nil
}

func (r *fakeWalletRepo) SumTransactions(ctx context.Context, walletID string) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum float64
	for _, tx := range r.txs {
		if tx.WalletID == walletID {
			sum += tx.Amount
		}
	}
	return sum, nil
}

func (r *fakeWalletRepo) ListWallets(ctx context.Context, offset, limit int) ([]*Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*Wallet, 0, len(r.wallets))
	for _, w := range r.wallets {
		cp := *w
		all = append(all, &cp)
	}
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

type fakeWithdrawalRepo struct {
	mu          sync.Mutex
	withdrawals map[string]*Withdrawal
}

func newFakeWithdrawalRepo() *fakeWithdrawalRepo {
	return &fakeWithdrawalRepo{withdrawals: make(map[string]*Withdrawal)}
}

func (r *fakeWithdrawalRepo) CreateWithdrawal(ctx context.Context, w *Withdrawal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *w
	r.withdrawals[w.ID] = &cp
	return nil
}

func (r *fakeWithdrawalRepo) GetWithdrawal(ctx context.Context, id string) (*Withdrawal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.withdrawals[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *fakeWithdrawalRepo) UpdateWithdrawal(ctx context.Context, w *Withdrawal, fromStatus string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.withdrawals[w.ID]
	if !ok || stored.Status != fromStatus {
		return pkgErrors.NewBizErrorWithLang(ctx, bizErrors.ErrCodeInvalidWithdrawalStatus)
	}
	cp := *w
	r.withdrawals[w.ID] = &cp
	return nil
}

func (r *fakeWithdrawalRepo) GetWithdrawalStats(ctx context.Context, userID uint64) (*WithdrawalStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &WithdrawalStats{}
	for _, w := range r.withdrawals {
		if userID > 0 && w.UserID != userID {
			continue
		}
		stats.TotalCount++
		stats.TotalAmount += w.Amount
		switch w.Status {
		case constants.WithdrawalStatusPending:
			stats.PendingCount++
		case constants.WithdrawalStatusApproved:
			stats.ApprovedCount++
		case constants.WithdrawalStatusRejected:
			stats.RejectedCount++
		case constants.WithdrawalStatusCompleted:
			stats.CompletedCount++
			stats.CompletedAmount += w.Amount
		case constants.WithdrawalStatusFailed:
			stats.FailedCount++
		}
	}
	return stats, nil
}

type fakePayment struct {
	mu      sync.Mutex
	err     error
	charges int
}

func (p *fakePayment) Charge(ctx context.Context, order *Order) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.charges++
	if p.err != nil {
		return "", p.err
	}
	return fmt.Sprintf("txn-%s", order.ID), nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []string
	kinds map[string]int
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{kinds: make(map[string]int)}
}

func (n *fakeNotifier) Notify(ctx context.Context, userID uint64, kind string, payload map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, fmt.Sprintf("%d:%s", userID, kind))
	n.kinds[kind]++
	return nil
}

// memoryLockPool 进程内的 redsync 连接池，供测试使用
type memoryLockPool struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryLockPool() *memoryLockPool {
	return &memoryLockPool{data: make(map[string]string)}
}

func (p *memoryLockPool) Get(ctx context.Context) (redsyncredis.Conn, error) {
	return &memoryLockConn{pool: p}, nil
}

type memoryLockConn struct {
	pool *memoryLockPool
}

func (c *memoryLockConn) Get(name string) (string, error) {
	c.pool.mu.Lock()
	defer c.pool.mu.Unlock()
	return c.pool.data[name], nil
}

func (c *memoryLockConn) Set(name string, value string) (bool, error) {
	c.pool.mu.Lock()
	defer c.pool.mu.Unlock()
	c.pool.data[name] = value
	return true, nil
}

func (c *memoryLockConn) SetNX(name string, value string, expiry time.Duration) (bool, error) {
	c.pool.mu.Lock()
	defer c.pool.mu.Unlock()
	if _, exists := c.pool.data[name]; exists {
		return false, nil
	}
	c.pool.data[name] = value
	return true, nil
}

func (c *memoryLockConn) Eval(script *redsyncredis.Script, keysAndArgs ...interface{}) (interface{}, error) {
	c.pool.mu.Lock()
	defer c.pool.mu.Unlock()
	if len(keysAndArgs) < 2 {
		return int64(0), nil
	}
	name, _ := keysAndArgs[0].(string)
	value, _ := keysAndArgs[1].(string)
	if c.pool.data[name] != value {
		return int64(0), nil
	}
	// 值匹配即视为持锁者：删除脚本与续期脚本均返回成功
	delete(c.pool.data, name)
	return int64(1), nil
}

func (c *memoryLockConn) PTTL(name string) (time.Duration, error) {
	return time.Minute, nil
}

func (c *memoryLockConn) Close() error { return nil }

func newTestRedsync() *redsync.Redsync {
	return redsync.New(newMemoryLockPool())
}

func testConf() *conf.Bootstrap {
	return &conf.Bootstrap{
		Renew: &conf.Renew{DaysBefore: constants.AutoRenewDaysBefore, WindowDays: constants.RenewalWindowDays},
	}
}

type testEnv struct {
	planRepo   *fakePlanRepo
	memberRepo *fakeMembershipRepo
	renewRepo  *fakeAutoRenewRepo
	orderRepo  *fakeOrderRepo
	couponRepo *fakeCouponRepo
	walletRepo *fakeWalletRepo
	wdRepo     *fakeWithdrawalRepo
	payment    *fakePayment
	notifier   *fakeNotifier

	couponUc *CouponUsecase
	memberUc *MembershipUsecase
	walletUc *WalletUsecase
	renewUc  *RenewalUsecase
}

func newTestEnv(plans ...*Plan) *testEnv {
	logger := log.NewStdLogger(nopWriter{})
	env := &testEnv{
		planRepo:   newFakePlanRepo(plans...),
		memberRepo: newFakeMembershipRepo(),
		renewRepo:  newFakeAutoRenewRepo(),
		orderRepo:  newFakeOrderRepo(),
		couponRepo: newFakeCouponRepo(),
		walletRepo: newFakeWalletRepo(),
		wdRepo:     newFakeWithdrawalRepo(),
		payment:    &fakePayment{},
		notifier:   newFakeNotifier(),
	}
	env.couponUc = NewCouponUsecase(env.couponRepo, logger)
	env.memberUc = NewMembershipUsecase(env.planRepo, env.memberRepo, env.renewRepo, env.orderRepo, env.couponUc, fakeTx{}, newTestRedsync(), testConf(), logger)
	env.walletUc = NewWalletUsecase(env.walletRepo, env.wdRepo, env.notifier, fakeTx{}, logger)
	env.renewUc = NewRenewalUsecase(env.memberUc, env.renewRepo, env.orderRepo, env.planRepo, env.payment, env.notifier, fakeTx{}, testConf(), logger)
	return env
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() log.Logger {
	return log.NewStdLogger(nopWriter{})
}
