package data

import (
	"context"
	"errors"
	"time"

	"xinyuan_tech/membership-service/internal/biz"
	"xinyuan_tech/membership-service/internal/constants"
	"xinyuan_tech/membership-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

type membershipRepo struct {
	data *Data
	log  *log.Helper
}

// NewMembershipRepo .
func NewMembershipRepo(data *Data, logger log.Logger) biz.MembershipRepo {
	return &membershipRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// GetMembership 查询用户会员投影，不存在时返回 nil
func (r *membershipRepo) GetMembership(ctx context.Context, userID uint64) (*biz.UserMembership, error) {
	var m model.UserMembership
	err := r.data.DB(ctx).Where("user_id = ?", userID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.WithContext(ctx).Errorf("failed to get membership: userID=%d, err=%v", userID, err)
		return nil, err
	}
	return membershipToBiz(&m), nil
}

// SaveMembership 保存会员投影 (存在则更新)
func (r *membershipRepo) SaveMembership(ctx context.Context, m *biz.UserMembership) error {
	record := &model.UserMembership{
		ID:        m.ID,
		UserID:    m.UserID,
		Level:     m.Level,
		ExpireAt:  m.ExpireAt,
		AutoRenew: m.AutoRenew,
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if err := r.data.DB(ctx).Save(record).Error; err != nil {
		r.log.WithContext(ctx).Errorf("failed to save membership: userID=%d, err=%v", m.UserID, err)
		return err
	}
	m.ID = record.ID
	return nil
}

// AddMembershipRecord 追加会员变更记录
func (r *membershipRepo) AddMembershipRecord(ctx context.Context, rec *biz.MembershipRecord) error {
	record := &model.MembershipRecord{
		UserID:         rec.UserID,
		Level:          rec.Level,
		DurationMonths: rec.DurationMonths,
		StartTime:      rec.StartTime,
		EndTime:        rec.EndTime,
		OrderID:        rec.OrderID,
		CreatedAt:      rec.CreatedAt,
	}
	if err := r.data.DB(ctx).Create(record).Error; err != nil {
		r.log.WithContext(ctx).Errorf("failed to add membership record: userID=%d, err=%v", rec.UserID, err)
		return err
	}
	rec.ID = record.ID
	return nil
}

// UpdateExpiredMemberships 批量把已过期的 active 投影置为 expired
func (r *membershipRepo) UpdateExpiredMemberships(ctx context.Context) (int, []uint64, error) {
	now := time.Now().UTC()

	var uids []uint64
	err := r.data.DB(ctx).Model(&model.UserMembership{}).
		Where("status = ? AND expire_at <= ?", constants.MembershipStatusActive, now).
		Pluck("user_id", &uids).Error
	if err != nil {
		r.log.WithContext(ctx).Errorf("failed to list expired memberships: err=%v", err)
		return 0, nil, err
	}
	if len(uids) == 0 {
		return 0, nil, nil
	}

	result := r.data.DB(ctx).Model(&model.UserMembership{}).
		Where("status = ? AND expire_at <= ?", constants.MembershipStatusActive, now).
		Updates(map[string]interface{}{
			"status":     constants.MembershipStatusExpired,
			"updated_at": now,
		})
	if result.Error != nil {
		r.log.WithContext(ctx).Errorf("failed to update expired memberships: err=%v", result.Error)
		return 0, nil, result.Error
	}
	return int(result.RowsAffected), uids, nil
}

func membershipToBiz(m *model.UserMembership) *biz.UserMembership {
	return &biz.UserMembership{
		ID:        m.ID,
		UserID:    m.UserID,
		Level:     m.Level,
		ExpireAt:  m.ExpireAt,
		AutoRenew: m.AutoRenew,
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
