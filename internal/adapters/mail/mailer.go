// Package mail は auth.Mailer の実装です。
package mail

import (
	"context"
	"errors"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/ogurasousui/codex-expense-approval/internal/core/auth"
	"github.com/ogurasousui/codex-expense-approval/internal/platform/config"
)

const implicitTLSPort = 465

// ErrNotConfigured は SMTP が未設定のためメールを送信しなかった場合に返却されます。
var ErrNotConfigured = errors.New("smtp not configured")

// SMTPMailer は SMTP サーバー経由でメールを送信します。
type SMTPMailer struct {
	from    string
	options []gomail.Option
	host    string
}

var _ auth.Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer は SMTP 設定から SMTPMailer を生成します。
// 465 番ポートは暗黙的 TLS、それ以外は STARTTLS を試みます。
func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		from:    cfg.From,
		host:    cfg.Host,
		options: clientOptions(cfg),
	}
}

func clientOptions(cfg config.SMTPConfig) []gomail.Option {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTimeout(15 * time.Second),
	}
	if cfg.Port == implicitTLSPort {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}
	if cfg.User != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.User),
			gomail.WithPassword(cfg.Password),
		)
	}
	return opts
}

// Send はプレーンテキストのメールを送信します。
func (m *SMTPMailer) Send(ctx context.Context, msg auth.Message) error {
	out, err := buildMessage(m.from, msg)
	if err != nil {
		return err
	}

	client, err := gomail.NewClient(m.host, m.options...)
	if err != nil {
		return fmt.Errorf("mail: new client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, out); err != nil {
		return fmt.Errorf("mail: send to %s: %w", msg.To, err)
	}
	return nil
}

func buildMessage(from string, msg auth.Message) (*gomail.Msg, error) {
	out := gomail.NewMsg()
	if err := out.From(from); err != nil {
		return nil, fmt.Errorf("mail: from %q: %w", from, err)
	}
	if err := out.To(msg.To); err != nil {
		return nil, fmt.Errorf("mail: to %q: %w", msg.To, err)
	}
	out.Subject(msg.Subject)
	out.SetBodyString(gomail.TypeTextPlain, msg.Text)
	return out, nil
}

// LogMailer は SMTP 未設定時に送信内容をログへ出力します。本文は出力しません。
type LogMailer struct {
	logger *zap.Logger
}

var _ auth.Mailer = (*LogMailer)(nil)

// NewLogMailer は LogMailer を生成します。
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger.Named("mail")}
}

// Send はメールを送信せずに宛先と件名をログに残し、ErrNotConfigured を返します。
func (m *LogMailer) Send(_ context.Context, msg auth.Message) error {
	m.logger.Info("smtp not configured, mail not sent",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return ErrNotConfigured
}
