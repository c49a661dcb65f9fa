package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sentMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func capture(n *SMTPNotifier) *[]sentMail {
	var sent []sentMail
	n.send = func(addr, from string, to []string, msg []byte) error {
		sent = append(sent, sentMail{addr: addr, from: from, to: to, msg: string(msg)})
		return nil
	}
	return &sent
}

func TestNotifySendsMail(t *testing.T) {
	n := NewSMTP("mail.example.com", 587, "sync@example.com", "ops@example.com", discardLogger())
	sent := capture(n)

	n.Notify(context.Background(), errors.New("calendar unreachable"), "8001")

	require.Len(t, *sent, 1)
	m := (*sent)[0]
	assert.Equal(t, "mail.example.com:587", m.addr)
	assert.Equal(t, "sync@example.com", m.from)
	assert.Equal(t, []string{"ops@example.com"}, m.to)
	assert.Contains(t, m.msg, "record 8001")
	assert.Contains(t, m.msg, "calendar unreachable")
}

func TestNotifySkipsWhenUnconfigured(t *testing.T) {
	n := NewSMTP("", 587, "", "", discardLogger())
	sent := capture(n)

	n.Notify(context.Background(), errors.New("boom"), "")
	assert.Empty(t, *sent, "no mail without an SMTP host")
}

func TestNotifyIgnoresNilError(t *testing.T) {
	n := NewSMTP("mail.example.com", 587, "sync@example.com", "ops@example.com", discardLogger())
	sent := capture(n)

	n.Notify(context.Background(), nil, "8001")
	assert.Empty(t, *sent)
}

func TestNotifySwallowsDeliveryFailure(t *testing.T) {
	n := NewSMTP("mail.example.com", 587, "sync@example.com", "ops@example.com", discardLogger())
	n.send = func(addr, from string, to []string, msg []byte) error {
		return errors.New("connection refused")
	}

	// Must not panic or propagate.
	n.Notify(context.Background(), errors.New("boom"), "")
}

func TestTestNotification(t *testing.T) {
	n := NewSMTP("mail.example.com", 587, "sync@example.com", "ops@example.com", discardLogger())
	sent := capture(n)

	n.Test(context.Background())
	require.Len(t, *sent, 1)
	assert.True(t, strings.Contains((*sent)[0].msg, "test notification"))
}
