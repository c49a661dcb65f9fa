package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"time"
)

// SMTPNotifier delivers sync errors to the operator by email. Delivery is
// fire-and-forget: failures are logged and never propagate, because a
// broken notifier must not take down a run that is otherwise fine.
type SMTPNotifier struct {
	host string
	port int
	from string
	to   string
	log  *slog.Logger

	// send is swappable for tests.
	send func(addr, from string, to []string, msg []byte) error
}

func NewSMTP(host string, port int, from, to string, log *slog.Logger) *SMTPNotifier {
	n := &SMTPNotifier{host: host, port: port, from: from, to: to, log: log}
	n.send = func(addr, from string, to []string, msg []byte) error {
		return smtp.SendMail(addr, nil, from, to, msg)
	}
	return n
}

// Notify reports an error, optionally tagged with the record it concerns.
func (n *SMTPNotifier) Notify(ctx context.Context, err error, recordID string) {
	if err == nil {
		return
	}
	attrs := []any{slog.String("error", err.Error())}
	if recordID != "" {
		attrs = append(attrs, slog.String("record", recordID))
	}
	n.log.Error("sync error", attrs...)

	if n.host == "" || n.to == "" {
		return
	}
	subject := "toggl-calsync error"
	if recordID != "" {
		subject = fmt.Sprintf("toggl-calsync error (record %s)", recordID)
	}
	body := fmt.Sprintf("Time: %s\r\nRecord: %s\r\nError: %s\r\n",
		time.Now().UTC().Format(time.RFC3339), recordID, err.Error())
	msg := []byte("Subject: " + subject + "\r\n" +
		"From: " + n.from + "\r\n" +
		"To: " + n.to + "\r\n" +
		"MIME-version: 1.0;\r\n" +
		`Content-Type: text/plain; charset="UTF-8";` + "\r\n" +
		"\r\n" + body)

	addr := fmt.Sprintf("%s:%d", n.host, n.port)
	if serr := n.send(addr, n.from, []string{n.to}, msg); serr != nil {
		n.log.Warn("notification delivery failed", slog.String("error", serr.Error()))
	}
}

// Test sends a synthetic notification to verify the delivery path.
func (n *SMTPNotifier) Test(ctx context.Context) {
	n.Notify(ctx, fmt.Errorf("test notification"), "")
}
