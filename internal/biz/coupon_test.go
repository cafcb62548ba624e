package biz

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"xinyuan_tech/membership-service/internal/constants"
	bizErrors "xinyuan_tech/membership-service/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeCoupon() *Coupon {
	now := time.Now().UTC()
	return &Coupon{
		ID:            1,
		Code:          "SAVE10",
		DiscountType:  constants.CouponTypeFixed,
		DiscountValue: 10,
		Active:        true,
		StartDate:     now.Add(-time.Hour),
		ExpireAt:      now.Add(24 * time.Hour),
	}
}

func TestCouponDiscount(t *testing.T) {
	t.Run("fixed discount", func(t *testing.T) {
		c := &Coupon{DiscountType: constants.CouponTypeFixed, DiscountValue: 10}
		assert.Equal(t, 10.0, CouponDiscount(c, 99))
	})

	t.Run("fixed discount capped by base price", func(t *testing.T) {
		c := &Coupon{DiscountType: constants.CouponTypeFixed, DiscountValue: 50}
		assert.Equal(t, 29.0, CouponDiscount(c, 29))
	})

	t.Run("percentage discount", func(t *testing.T) {
		c := &Coupon{DiscountType: constants.CouponTypePercentage, DiscountValue: 20}
		assert.Equal(t, 19.8, CouponDiscount(c, 99))
	})

	t.Run("percentage discount capped by max amount", func(t *testing.T) {
		c := &Coupon{DiscountType: constants.CouponTypePercentage, DiscountValue: 50, MaxDiscountAmount: 15}
		assert.Equal(t, 15.0, CouponDiscount(c, 99))
	})
}

func TestCouponValidate(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	cases := []struct {
		name     string
		coupon   *Coupon
		base     float64
		wantCode int
	}{
		{
			name:     "inactive",
			coupon:   &Coupon{ID: 2, Code: "C", Active: false},
			base:     99,
			wantCode: bizErrors.ErrCodeCouponInactive,
		},
		{
			name: "not started",
			coupon: &Coupon{ID: 3, Code: "C", Active: true,
				StartDate: now.Add(time.Hour), ExpireAt: now.Add(48 * time.Hour)},
			base:     99,
			wantCode: bizErrors.ErrCodeCouponNotStarted,
		},
		{
			name: "expired",
			coupon: &Coupon{ID: 4, Code: "C", Active: true,
				StartDate: now.Add(-48 * time.Hour), ExpireAt: now.Add(-time.Hour)},
			base:     99,
			wantCode: bizErrors.ErrCodeCouponExpired,
		},
		{
			name: "below min order amount",
			coupon: &Coupon{ID: 5, Code: "C", Active: true,
				StartDate: now.Add(-time.Hour), ExpireAt: now.Add(time.Hour), MinOrderAmount: 50},
			base:     29,
			wantCode: bizErrors.ErrCodeCouponMinOrderNotMet,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newFakeCouponRepo(tc.coupon)
			uc := NewCouponUsecase(repo, testLogger())
			_, err := uc.Validate(ctx, tc.coupon.Code, 1, tc.base)
			require.Error(t, err)
			assert.True(t, bizErrors.IsCode(err, tc.wantCode), "got %v", err)
		})
	}

	t.Run("unknown code", func(t *testing.T) {
		uc := NewCouponUsecase(newFakeCouponRepo(), testLogger())
		_, err := uc.Validate(ctx, "NOPE", 1, 99)
		require.Error(t, err)
		assert.True(t, bizErrors.IsCode(err, bizErrors.ErrCodeCouponNotFound))
	})

	t.Run("valid coupon returns discount", func(t *testing.T) {
		uc := NewCouponUsecase(newFakeCouponRepo(activeCoupon()), testLogger())
		res, err := uc.Validate(ctx, "SAVE10", 1, 99)
		require.NoError(t, err)
		assert.Equal(t, 10.0, res.DiscountAmount)
		assert.Equal(t, 89.0, res.FinalAmount)
	})

	t.Run("validate does not record usage", func(t *testing.T) {
		repo := newFakeCouponRepo(activeCoupon())
		uc := NewCouponUsecase(repo, testLogger())
		_, err := uc.Validate(ctx, "SAVE10", 1, 99)
		require.NoError(t, err)
		assert.Empty(t, repo.usages)
	})
}

func TestCouponRedeem(t *testing.T) {
	ctx := context.Background()

	t.Run("redeem records usage", func(t *testing.T) {
		repo := newFakeCouponRepo(activeCoupon())
		uc := NewCouponUsecase(repo, testLogger())
		res, err := uc.Redeem(ctx, "SAVE10", 1, "order-1", 99)
		require.NoError(t, err)
		assert.Equal(t, 89.0, res.FinalAmount)
		require.Len(t, repo.usages, 1)
		assert.Equal(t, uint64(1), repo.usages[0].UserID)
	})

	t.Run("total usage limit enforced", func(t *testing.T) {
		c := activeCoupon()
		c.MaxUsage = 2
		repo := newFakeCouponRepo(c)
		uc := NewCouponUsecase(repo, testLogger())

		for i := 0; i < 2; i++ {
			_, err := uc.Redeem(ctx, "SAVE10", uint64(i+1), fmt.Sprintf("order-%d", i), 99)
			require.NoError(t, err)
		}
		_, err := uc.Redeem(ctx, "SAVE10", 3, "order-3", 99)
		require.Error(t, err)
		assert.True(t, bizErrors.IsCode(err, bizErrors.ErrCodeCouponExhausted))
	})

	t.Run("per user limit enforced", func(t *testing.T) {
		c := activeCoupon()
		c.MaxUsagePerUser = 1
		repo := newFakeCouponRepo(c)
		uc := NewCouponUsecase(repo, testLogger())

		_, err := uc.Redeem(ctx, "SAVE10", 1, "order-1", 99)
		require.NoError(t, err)
		_, err = uc.Redeem(ctx, "SAVE10", 1, "order-2", 99)
		require.Error(t, err)
		assert.True(t, bizErrors.IsCode(err, bizErrors.ErrCodeCouponUserLimitReached))
	})

	t.Run("concurrent redemptions never exceed max usage", func(t *testing.T) {
		c := activeCoupon()
		c.MaxUsage = 5
		repo := newFakeCouponRepo(c)
		uc := NewCouponUsecase(repo, testLogger())

		var wg sync.WaitGroup
		succeeded := make(chan struct{}, 20)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := uc.Redeem(ctx, "SAVE10", uint64(i+1), fmt.Sprintf("order-%d", i), 99)
				if err == nil {
					succeeded <- struct{}{}
				}
			}(i)
		}
		wg.Wait()
		close(succeeded)

		count := 0
		for range succeeded {
			count++
		}
		assert.Equal(t, 5, count)
		assert.Len(t, repo.usages, 5)
	})

	t.Run("concurrent redemptions by one user never exceed per-user limit", func(t *testing.T) {
		c := activeCoupon()
		c.MaxUsage = 100
		c.MaxUsagePerUser = 1
		repo := newFakeCouponRepo(c)
		uc := NewCouponUsecase(repo, testLogger())

		var wg sync.WaitGroup
		var mu sync.Mutex
		succeeded := 0
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := uc.Redeem(ctx, "SAVE10", 1, fmt.Sprintf("order-%d", i), 99)
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					succeeded++
				} else {
					assert.True(t, bizErrors.IsCode(err, bizErrors.ErrCodeCouponUserLimitReached))
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 1, succeeded)
		assert.Len(t, repo.usages, 1)
	})
}
