package mail

import (
	"fmt"
	"net/smtp"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/Amparo/internal/pkg/env"
)

// Sender delivers a single HTML email.
type Sender interface {
	Send(to, subject, body string) error
}

// SMTPSender sends through the server configured by the SMTP_* variables.
type SMTPSender struct{}

func (SMTPSender) Send(to, subject, body string) error {
	return SendMail(to, subject, body)
}

// SendMail sends an HTML email via SMTP
func SendMail(to string, subject string, body string) error {
	host := env.GetEnv("SMTP_HOST", "")
	port := env.GetEnv("SMTP_PORT", "")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := env.GetEnv("SMTP_SENDER", "")

	if host == "" {
		log.Warnf("[Mail] SMTP_HOST not set, not sending %q to %s", subject, to)
		return nil
	}
	if sender == "" {
		sender = "no-reply@localhost"
		log.Infof("[Mail] SMTP_SENDER not set, using default sender: %s", sender)
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	err := smtp.SendMail(addr, auth, sender, []string{to}, msg)
	if err != nil {
		log.Errorf("[Mail] send error: %v", err)
	} else {
		log.Infof("[Mail] sent to %s via %s", to, addr)
	}
	return err
}
