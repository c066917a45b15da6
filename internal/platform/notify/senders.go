package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSender writes outbound messages to the log instead of a provider.
// Deployments plug real gateway implementations in per channel; this keeps
// the dispatch path exercised everywhere else.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) SendSMS(_ context.Context, to, body string) error {
	s.log.Info().Str("channel", "sms").Str("to", to).Str("body", body).Msg("notification sent")
	return nil
}

func (s *LogSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.log.Info().Str("channel", "email").Str("to", to).Str("subject", subject).Msg("notification sent")
	return nil
}

func (s *LogSender) SendPush(_ context.Context, deviceToken, title, body string) error {
	s.log.Info().Str("channel", "push").Str("to", deviceToken).Str("title", title).Msg("notification sent")
	return nil
}
