package store

import (
	"context"
	"encoding/json"
	"log/slog"
)

// LogNotifier publishes run notifications to the structured log. It is the
// default sink when no broker is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Publish implements Notifier.
func (n *LogNotifier) Publish(ctx context.Context, subject string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	n.logger.Info("notify.publish", "subject", subject, "payload", string(b))
	return nil
}
