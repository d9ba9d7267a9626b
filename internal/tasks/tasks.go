package tasks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Task types emitted by the payment and deposit engines.
const (
	TypePaymentCompleted = "payment.completed"
	TypeDepositCompleted = "deposit.completed"
)

// Task statuses
const (
	StatusQueued  = "queued"
	StatusRunning = "running"
	StatusRetry   = "retry"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// Task represents a queued background task
type Task struct {
	ID          int64           `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Priority    int             `json:"priority"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	NextTryAt   *time.Time      `json:"next_try_at,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	Created     time.Time       `json:"created"`
	Updated     time.Time       `json:"updated"`
}

// PaymentCompleted is the payload of a payment.completed task.
type PaymentCompleted struct {
	EventID      uuid.UUID       `json:"event_id"`
	JobID        int64           `json:"job_id"`
	ClientID     int64           `json:"client_id"`
	ContractorID int64           `json:"contractor_id"`
	Amount       decimal.Decimal `json:"amount"`
	PaidAt       time.Time       `json:"paid_at"`
}

// DepositCompleted is the payload of a deposit.completed task.
type DepositCompleted struct {
	EventID     uuid.UUID       `json:"event_id"`
	ClientID    int64           `json:"client_id"`
	DepositedBy int64           `json:"deposited_by"`
	Amount      decimal.Decimal `json:"amount"`
	At          time.Time       `json:"at"`
}

// Handler is the function that processes a task
type Handler func(ctx context.Context, t *Task) error

// BackoffDuration returns exponential backoff duration for attempt n
func BackoffDuration(attempt int) time.Duration {
	if attempt <= 0 {
		return time.Second
	}
	if attempt > 16 {
		attempt = 16
	}
	d := time.Duration(1<<uint(attempt)) * time.Second
	max := 5 * time.Minute
	if d > max {
		return max
	}
	return d
}
