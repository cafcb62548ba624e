package data

import (
	"context"
	"fmt"

	"xinyuan_tech/membership-service/internal/biz"
	"xinyuan_tech/membership-service/internal/conf"
	"xinyuan_tech/membership-service/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
	"gopkg.in/gomail.v2"
)

type notificationClient struct {
	dialer *gomail.Dialer
	sender string
	users  biz.UserClient
	log    *log.Helper
}

// NewNotificationClient 创建邮件通知客户端
func NewNotificationClient(c *conf.Bootstrap, users biz.UserClient, logger log.Logger) biz.NotificationClient {
	var dialer *gomail.Dialer
	sender := ""
	if c != nil && c.Client != nil && c.Client.Smtp != nil {
		smtp := c.Client.Smtp
		dialer = gomail.NewDialer(smtp.Host, smtp.Port, smtp.Username, smtp.Password)
		sender = smtp.Sender
	}
	return &notificationClient{
		dialer: dialer,
		sender: sender,
		users:  users,
		log:    log.NewHelper(logger),
	}
}

// Notify 按通知类型向用户发送邮件，收件地址通过 passport 服务解析
func (n *notificationClient) Notify(ctx context.Context, userID uint64, kind string, payload map[string]string) error {
	if n.dialer == nil {
		return fmt.Errorf("smtp is not configured")
	}

	user, err := n.users.GetUser(ctx, userID)
	if err != nil {
		n.log.WithContext(ctx).Errorf("failed to resolve user for notification: userID=%d, err=%v", userID, err)
		return err
	}
	if user == nil || user.Email == "" {
		n.log.WithContext(ctx).Warnf("user %d has no email, skipping %s notification", userID, kind)
		return nil
	}

	subject, body := renderNotification(kind, payload)

	m := gomail.NewMessage()
	m.SetHeader("From", n.sender)
	m.SetHeader("To", user.Email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := n.dialer.DialAndSend(m); err != nil {
		n.log.WithContext(ctx).Errorf("failed to send %s notification to user %d: %v", kind, userID, err)
		return err
	}
	n.log.WithContext(ctx).Infof("sent %s notification to user %d", kind, userID)
	return nil
}

func renderNotification(kind string, payload map[string]string) (subject, body string) {
	switch kind {
	case constants.NotifyKindRenewSuccess:
		subject = "会员自动续费成功"
		body = fmt.Sprintf("您的会员已自动续费，订单号 %s，新的到期时间 %s。",
			payload["order_id"], payload["expire_at"])
	case constants.NotifyKindRenewDisabled:
		subject = "自动续费已停用"
		body = "您的会员自动续费连续多次扣款失败，已为您停用。如需继续使用请更新支付方式后重新开启。"
	case constants.NotifyKindWithdrawalDone:
		subject = "提现已到账"
		body = fmt.Sprintf("您的提现申请 %s 已打款完成，交易号 %s。",
			payload["withdrawal_id"], payload["transaction_id"])
	default:
		subject = "账户通知"
		body = "您的账户有新的变动，请登录查看。"
	}
	return subject, body
}
