package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/HamedShams/sprint-audit/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	addr string
	from string
	to   []string
	msg  string
	err  error
}

func (c *captured) send(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
	c.addr, c.from, c.to, c.msg = addr, from, to, string(msg)
	return c.err
}

func newTestMailer(c *captured) *Mailer {
	m := NewMailer(config.Config{SMTPAddr: "smtp.test:25", MailSubject: "Metric fails WARNING"}, zerolog.Nop())
	m.send = c.send
	return m
}

func TestSend(t *testing.T) {
	c := &captured{}
	err := newTestMailer(c).Send(context.Background(), "lead@corp", []string{"alice@corp", "bob@corp"}, "7. Overload :\n\talice : 48/40 : OVERLOAD : 8\n")
	require.NoError(t, err)
	assert.Equal(t, "smtp.test:25", c.addr)
	assert.Equal(t, "lead@corp", c.from)
	assert.Equal(t, []string{"alice@corp", "bob@corp"}, c.to)
	assert.True(t, strings.HasPrefix(c.msg, "From: lead@corp\r\nTo: alice@corp, bob@corp\r\nSubject: Metric fails WARNING\r\n"))
	assert.Contains(t, c.msg, "\talice : 48/40 : OVERLOAD : 8\r\n")
}

func TestSend_NoRecipients(t *testing.T) {
	c := &captured{}
	require.NoError(t, newTestMailer(c).Send(context.Background(), "lead@corp", nil, "report"))
	assert.Empty(t, c.addr, "smtp not contacted")
}

func TestSend_WrapsTransportError(t *testing.T) {
	c := &captured{err: errors.New("454 relay denied")}
	err := newTestMailer(c).Send(context.Background(), "lead@corp", []string{"a@corp"}, "report")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay denied")
}
