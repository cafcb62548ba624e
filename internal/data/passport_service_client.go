package data

import (
	"context"
	"fmt"
	"time"

	"xinyuan_tech/membership-service/internal/biz"
	"xinyuan_tech/membership-service/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
)

type userClient struct {
	client *http.Client
	log    *log.Helper
}

// NewUserClient 创建 passport 服务客户端
func NewUserClient(c *conf.Bootstrap, logger log.Logger) (biz.UserClient, error) {
	helper := log.NewHelper(logger)

	addr := ""
	timeout := 5 * time.Second
	if c != nil && c.Client != nil && c.Client.PassportService != nil {
		addr = c.Client.PassportService.Addr
		if c.Client.PassportService.Timeout != "" {
			if d, err := time.ParseDuration(c.Client.PassportService.Timeout); err == nil {
				timeout = d
			}
		}
	}
	if addr == "" {
		return nil, fmt.Errorf("passport service address is required")
	}

	client, err := http.NewClient(
		context.Background(),
		http.WithEndpoint(addr),
		http.WithTimeout(timeout),
	)
	if err != nil {
		helper.Errorf("failed to create passport client: addr=%s, err=%v", addr, err)
		return nil, err
	}
	return &userClient{
		client: client,
		log:    helper,
	}, nil
}

type getUserReply struct {
	UserID   uint64 `json:"user_id"`
	Nickname string `json:"nickname"`
	Email    string `json:"email"`
}

// GetUser 查询用户基础信息
func (u *userClient) GetUser(ctx context.Context, userID uint64) (*biz.User, error) {
	var reply getUserReply
	path := fmt.Sprintf("/v1/users/%d", userID)
	err := u.client.Invoke(ctx, "GET", path, nil, &reply)
	if err != nil {
		u.log.WithContext(ctx).Errorf("failed to get user from passport: userID=%d, err=%v", userID, err)
		return nil, err
	}
	return &biz.User{
		UserID:   reply.UserID,
		Nickname: reply.Nickname,
		Email:    reply.Email,
	}, nil
}
