package services

import (
	"context"
	"log/slog"
)

// MaxMessageRunes is the longest body a sender delivers
const MaxMessageRunes = 4000

// Sender delivers a text message to a WhatsApp user
type Sender interface {
	SendText(ctx context.Context, to, body string) error
}

// LogSender only logs outbound messages. It backs CHANNEL=log for local runs.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender() *LogSender {
	return &LogSender{logger: slog.With("component", "sender", "channel", "log")}
}

func (s *LogSender) SendText(_ context.Context, to, body string) error {
	s.logger.Info("outbound message", "to", to, "body", truncate(body, MaxMessageRunes))
	return nil
}

// truncate cuts body to at most max runes
func truncate(body string, max int) string {
	r := []rune(body)
	if len(r) <= max {
		return body
	}
	return string(r[:max])
}
