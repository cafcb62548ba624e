package biz

import "context"

// NotificationClient 通知服务客户端接口 (防腐层)
// 尽力而为：发送失败只记录日志，绝不回滚业务操作。
type NotificationClient interface {
	Notify(ctx context.Context, userID uint64, kind string, payload map[string]string) error
}
