/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package mail

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/HamedShams/sprint-audit/internal/config"
	"github.com/rs/zerolog"
)

const bodyTemplate = `Hello,

Metric fails collected by script:

%s
Best regards,
sprint-audit
`

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer delivers the rendered report over plain SMTP.
type Mailer struct {
	addr    string
	subject string
	log     zerolog.Logger
	send    sendFunc
}

func NewMailer(cfg config.Config, log zerolog.Logger) *Mailer {
	return &Mailer{addr: cfg.SMTPAddr, subject: cfg.MailSubject, log: log, send: smtp.SendMail}
}

func (m *Mailer) Send(ctx context.Context, from string, to []string, report string) error {
	if len(to) == 0 {
		m.log.Info().Msg("mail: no recipients, nothing sent")
		return nil
	}
	if from == "" {
		return errors.New("mail: empty sender")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := Compose(from, to, m.subject, report)
	if err := m.send(m.addr, nil, from, to, msg); err != nil {
		return fmt.Errorf("mail: send via %s: %w", m.addr, err)
	}
	m.log.Info().Strs("to", to).Str("smtp", m.addr).Msg("mail: report sent")
	return nil
}

// Compose builds the RFC 5322 message around the report text.
func Compose(from string, to []string, subject, report string) []byte {
	b := &strings.Builder{}
	fmt.Fprintf(b, "From: %s\r\n", from)
	fmt.Fprintf(b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	body := fmt.Sprintf(bodyTemplate, report)
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}
