package biz

import "context"

// User passport-service 中的用户信息
type User struct {
	UserID   uint64
	Nickname string
	Email    string
}

// UserClient passport 服务客户端接口 (防腐层)
type UserClient interface {
	GetUser(ctx context.Context, userID uint64) (*User, error)
}
