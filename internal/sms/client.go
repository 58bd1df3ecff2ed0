// Package sms defines the interface for transactional text messages and
// provides a SOLAPI-backed implementation plus a logging one for development.
package sms

import (
	"context"
	"log/slog"
)

// Message is one outbound text message.
type Message struct {
	To   string // normalised phone number
	Text string
}

// Sender is the interface the OTP service uses to deliver verification codes.
// Tests inject a stub that records calls without hitting the network.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// logSender writes messages to the log instead of delivering them.
type logSender struct {
	logger *slog.Logger
}

// NewLogSender returns a Sender for development environments without SMS
// credentials. Message text is logged at debug level only.
func NewLogSender(logger *slog.Logger) Sender {
	return &logSender{logger: logger}
}

func (s *logSender) Send(ctx context.Context, m Message) error {
	s.logger.InfoContext(ctx, "sms: delivery skipped", "to", m.To)
	s.logger.DebugContext(ctx, "sms: message", "to", m.To, "text", m.Text)
	return nil
}
