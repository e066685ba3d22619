package notification

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const (
	// KindWalletFunded is sent to a wallet owner after an external funding.
	KindWalletFunded = "wallet.funded"
	// KindTransferSent is sent to the sender of a completed transfer.
	KindTransferSent = "wallet.transfer.sent"
	// KindTransferReceived is sent to the recipient of a completed transfer.
	KindTransferReceived = "wallet.transfer.received"
)

// Message describes a notification payload.
type Message struct {
	Kind        string    `json:"kind"`
	Destination string    `json:"destination"`
	Body        string    `json:"body"`
	Reference   string    `json:"reference"`
	WalletID    string    `json:"wallet_id"`
	Amount      string    `json:"amount"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the structured logger.
type LoggerNotifier struct {
	logger *zap.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *zap.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		zap.String("kind", message.Kind),
		zap.String("destination", message.Destination),
		zap.String("reference", message.Reference),
		zap.String("amount", message.Amount),
		zap.String("body", message.Body))
	return nil
}

// Fanout sends every message to all notifiers and joins their errors.
type Fanout []Notifier

// Send delivers to every notifier even if an earlier one fails.
func (f Fanout) Send(ctx context.Context, message Message) error {
	var errs []error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
