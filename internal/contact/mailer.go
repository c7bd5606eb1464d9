package contact

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Mailer は通知メール送信のインターフェース。
// テスト時にモックに差し替え可能。
type Mailer interface {
	Send(subject, body string) error
}

// SMTPConfig はSMTPメーラーの設定。
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

// SMTPMailer はnet/smtpを使用した通知メール送信の実装。
type SMTPMailer struct {
	config SMTPConfig
}

// NewSMTPMailer はSMTPMailerを生成する。
func NewSMTPMailer(config SMTPConfig) *SMTPMailer {
	return &SMTPMailer{config: config}
}

// Send は通知メールを送信する。
func (m *SMTPMailer) Send(subject, body string) error {
	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)
	auth := smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)

	msg := strings.Join([]string{
		"From: " + m.config.From,
		"To: " + m.config.To,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="UTF-8"`,
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(addr, auth, m.config.From, []string{m.config.To}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send notification mail: %w", err)
	}
	return nil
}

// compile-time interface check
var _ Mailer = (*SMTPMailer)(nil)
