package email

import (
	"context"
	"fmt"
	"net/smtp"
	"net/url"

	"github.com/friendshare/identity-server/internal/config"
)

var _ Sender = (*SMTPSender)(nil)

// SMTPSender delivers mail through a plain SMTP relay using the settings
// from config.
type SMTPSender struct {
	host     string
	port     string
	account  string
	password string
	baseURL  string
	appName  string
}

func NewSMTPSender(cfg config.Config) *SMTPSender {
	return &SMTPSender{
		host:     cfg.GetSMTPHost(),
		port:     cfg.GetSMTPPort(),
		account:  cfg.GetSMTPAccount(),
		password: cfg.GetSMTPPassword(),
		baseURL:  cfg.GetBaseURL(),
		appName:  cfg.GetAppName(),
	}
}

func (s *SMTPSender) SendConfirmation(_ context.Context, to, userID, token string) error {
	link := fmt.Sprintf("%s/confirm-email?userId=%s&token=%s",
		s.baseURL, url.QueryEscape(userID), url.QueryEscape(token))

	subject := fmt.Sprintf("Confirm your %s account", s.appName)
	body := fmt.Sprintf("Welcome to %s!\r\n\r\nPlease confirm your email address by visiting:\r\n%s\r\n", s.appName, link)
	return s.send(to, subject, body)
}

func (s *SMTPSender) SendPasswordReset(_ context.Context, to, email, token string) error {
	link := fmt.Sprintf("%s/reset-password?email=%s&token=%s",
		s.baseURL, url.QueryEscape(email), url.QueryEscape(token))

	subject := fmt.Sprintf("Reset your %s password", s.appName)
	body := fmt.Sprintf("A password reset was requested for your account.\r\n\r\nReset it here:\r\n%s\r\n\r\nIf you did not request this, ignore this email.\r\n", link)
	return s.send(to, subject, body)
}

func (s *SMTPSender) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", s.account, to, subject, body)

	auth := smtp.PlainAuth("", s.account, s.password, s.host)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	if err := smtp.SendMail(addr, auth, s.account, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}
