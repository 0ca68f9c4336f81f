package mail

import (
	"context"

	"github.com/rs/zerolog"
)

// LogTransport records messages in the log instead of delivering them. Bodies
// are omitted because they carry tokens.
type LogTransport struct {
	log zerolog.Logger
}

func NewLogTransport(log zerolog.Logger) *LogTransport {
	return &LogTransport{log: log.With().Str("component", "mail.log").Logger()}
}

func (t *LogTransport) Send(_ context.Context, msg Message) error {
	t.log.Info().
		Strs("to", msg.To).
		Str("subject", msg.Subject).
		Str("kind", msg.Kind).
		Int("body_bytes", len(msg.HTML)).
		Msg("mail delivered to log transport")
	return nil
}

func (t *LogTransport) Name() string { return "log" }
