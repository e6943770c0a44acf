package otp

import (
	"context"

	"github.com/ruralpay/cartable/internal/logging"
	"github.com/ruralpay/cartable/internal/models"
	"go.uber.org/zap"
)

// Notifier delivers a fresh code to the actor out of band.
type Notifier interface {
	Deliver(ctx context.Context, c *models.Challenge, code string) error
}

// LogNotifier writes codes to the debug log. Used until an SMS provider is wired in.
type LogNotifier struct {
	log *logging.Logger
}

func NewLogNotifier(l *logging.Logger) *LogNotifier {
	return &LogNotifier{log: l.Named("otp")}
}

func (n *LogNotifier) Deliver(_ context.Context, c *models.Challenge, code string) error {
	n.log.Debug("otp code issued",
		zap.String("actor_id", c.ActorID),
		zap.String("handle", c.Handle),
		zap.String("operation", string(c.Operation)),
		zap.String("code", code),
	)
	return nil
}
