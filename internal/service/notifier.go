package service

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"salm/portal/config"
)

// Message 一封待投递的通知
type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier 通知投递通道
type Notifier interface {
	Channel() string
	Send(ctx context.Context, msg *Message) error
}

// NewNotifier 按配置创建投递通道，默认只写日志
func NewNotifier(cfg *config.NotifyConfig, logger *zap.Logger) (Notifier, error) {
	switch cfg.Driver {
	case "", "log":
		return NewLogNotifier(logger), nil
	case "smtp":
		return NewSMTPNotifier(&cfg.SMTP, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("不支持的通知驱动: %s", cfg.Driver)
	}
}

// ── 日志 ──

// LogNotifier 把通知写入日志，开发环境使用
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier 创建日志通道
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Channel() string { return "log" }

func (n *LogNotifier) Send(_ context.Context, msg *Message) error {
	n.logger.Info("请假通知",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}

// ── SMTP ──

// SMTPNotifier 通过 SMTP 发送纯文本邮件
type SMTPNotifier struct {
	cfg     *config.SMTPConfig
	timeout time.Duration
}

// NewSMTPNotifier 创建 SMTP 通道；每次投递单独建连
func NewSMTPNotifier(cfg *config.SMTPConfig, timeout time.Duration) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, timeout: timeout}
}

func (n *SMTPNotifier) Channel() string { return "smtp" }

func (n *SMTPNotifier) Send(ctx context.Context, msg *Message) error {
	m := mail.NewMsg()
	if err := m.From(n.cfg.From); err != nil {
		return fmt.Errorf("发件人地址无效: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("收件人地址无效: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	client, err := mail.NewClient(n.cfg.Host, n.options()...)
	if err != nil {
		return fmt.Errorf("创建 SMTP 客户端失败: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("发送邮件失败: %w", err)
	}
	return nil
}

func (n *SMTPNotifier) options() []mail.Option {
	opts := []mail.Option{mail.WithPort(n.cfg.Port)}
	if n.timeout > 0 {
		opts = append(opts, mail.WithTimeout(n.timeout))
	}
	if n.cfg.SSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if n.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.cfg.Username),
			mail.WithPassword(n.cfg.Password),
		)
	}
	return opts
}
