package biz

import (
	"math"
	"time"

	"xinyuan_tech/membership-service/internal/constants"
)

// 计费计算器：纯函数，无 I/O。
// 升级价格 = (目标套餐价 - 当前会员剩余价值) * 升级折扣系数，下限为 0。
// 剩余价值按平月 30 天折算：当前等级月价 / 30 * 剩余天数。

// Round2 金额四舍五入保留两位小数
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// DaysRemaining 计算剩余天数 (不足一天按一天计)
func DaysRemaining(expireAt, now time.Time) int {
	if !expireAt.After(now) {
		return 0
	}
	return int(math.Ceil(expireAt.Sub(now).Hours() / 24))
}

// ProratedUpgradePrice 计算升级价格
// 仅当用户持有未过期的付费会员时抵扣剩余价值并应用升级折扣；
// 否则直接返回目标套餐价。结果保证非负。
func ProratedUpgradePrice(basePrice, currentMonthlyPrice float64, expireAt, now time.Time) float64 {
	if !expireAt.After(now) || currentMonthlyPrice <= 0 {
		return Round2(basePrice)
	}

	remainingValue := currentMonthlyPrice / constants.DaysPerMonth * float64(DaysRemaining(expireAt, now))
	price := basePrice - remainingValue
	if price < 0 {
		price = 0
	}
	return Round2(price * constants.UpgradeDiscountRate)
}

// CalculateExpireDate 计算新的到期时间
// 当前会员仍有效时在原到期日上顺延，否则从现在起算。
// 这是整个系统最关键的正确性规则，并发升级/续费必须在持锁事务内调用。
func CalculateExpireDate(currentExpire time.Time, durationMonths int, now time.Time) time.Time {
	if currentExpire.After(now) {
		return currentExpire.AddDate(0, durationMonths, 0)
	}
	return now.AddDate(0, durationMonths, 0)
}
