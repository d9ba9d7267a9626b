package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Notifier delivers marketplace events to the affected profiles.
type Notifier interface {
	PaymentCompleted(ctx context.Context, ev PaymentCompleted) error
	DepositCompleted(ctx context.Context, ev DepositCompleted) error
}

// LogNotifier writes events to a structured log. It is the default sink until
// an outbound channel (mail, webhook) is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) PaymentCompleted(ctx context.Context, ev PaymentCompleted) error {
	n.Logger.InfoContext(ctx, "payment completed",
		slog.String("event_id", ev.EventID.String()),
		slog.Int64("job_id", ev.JobID),
		slog.Int64("client_id", ev.ClientID),
		slog.Int64("contractor_id", ev.ContractorID),
		slog.String("amount", ev.Amount.StringFixed(2)),
		slog.Time("paid_at", ev.PaidAt),
	)
	return nil
}

func (n LogNotifier) DepositCompleted(ctx context.Context, ev DepositCompleted) error {
	n.Logger.InfoContext(ctx, "deposit completed",
		slog.String("event_id", ev.EventID.String()),
		slog.Int64("client_id", ev.ClientID),
		slog.Int64("deposited_by", ev.DepositedBy),
		slog.String("amount", ev.Amount.StringFixed(2)),
	)
	return nil
}

// Handlers maps the engine task types onto n.
func Handlers(n Notifier) map[string]Handler {
	return map[string]Handler{
		TypePaymentCompleted: func(ctx context.Context, t *Task) error {
			var ev PaymentCompleted
			if err := json.Unmarshal(t.Payload, &ev); err != nil {
				return fmt.Errorf("decode %s: %w", t.Type, err)
			}
			return n.PaymentCompleted(ctx, ev)
		},
		TypeDepositCompleted: func(ctx context.Context, t *Task) error {
			var ev DepositCompleted
			if err := json.Unmarshal(t.Payload, &ev); err != nil {
				return fmt.Errorf("decode %s: %w", t.Type, err)
			}
			return n.DepositCompleted(ctx, ev)
		},
	}
}
