// Package deposits credits cash to client balances, bounded by the value of
// the depositing client's work in progress.
package deposits

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/garnizeh/freelance/internal/tasks"
	"github.com/garnizeh/freelance/pkg/models"
	"github.com/garnizeh/freelance/pkg/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultMaxRatio is the share of outstanding job value a single deposit may reach.
var DefaultMaxRatio = decimal.RequireFromString("0.25")

type Options struct {
	// MaxRatio bounds a deposit to outstanding * MaxRatio. Zero means DefaultMaxRatio.
	MaxRatio decimal.Decimal
	// AllowThirdParty lets a caller deposit into another client's balance.
	AllowThirdParty bool
}

type Service struct {
	txr    repository.TxRunner
	opts   Options
	logger *slog.Logger
	Now    func() time.Time
}

func NewService(txr repository.TxRunner, opts Options, logger *slog.Logger) *Service {
	if opts.MaxRatio.IsZero() {
		opts.MaxRatio = DefaultMaxRatio
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		txr:    txr,
		opts:   opts,
		logger: logger,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// Cap returns the largest deposit allowed against outstanding, rounded down
// to the cent.
func (s *Service) Cap(outstanding decimal.Decimal) decimal.Decimal {
	return outstanding.Mul(s.opts.MaxRatio).RoundFloor(2)
}

// Deposit credits amount to the client targetID. The amount may not exceed
// Cap of the sum of all job prices under the caller's in-progress contracts.
func (s *Service) Deposit(ctx context.Context, targetID int64, caller *models.Profile, amount decimal.Decimal) (*models.Profile, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", models.ErrUnprocessable)
	}
	if !amount.Equal(amount.Round(2)) {
		return nil, fmt.Errorf("%w: amount has more than two decimal places", models.ErrUnprocessable)
	}

	var client models.Profile
	err := s.txr.WithTx(ctx, func(tx repository.Tx) error {
		target, err := tx.GetProfileByRole(ctx, targetID, models.RoleClient)
		if err != nil {
			return err
		}
		if target == nil {
			return fmt.Errorf("%w: client %d", models.ErrNotFound, targetID)
		}
		if !s.opts.AllowThirdParty && caller.ID != target.ID {
			return fmt.Errorf("%w: deposits into another client's balance are disabled", models.ErrForbidden)
		}

		outstanding, err := tx.SumJobPrices(ctx, caller.ID, models.ContractInProgress)
		if err != nil {
			return err
		}
		if limit := s.Cap(outstanding); amount.GreaterThan(limit) {
			return fmt.Errorf("%w: deposit exceeds %s%% of outstanding jobs (max %s)",
				models.ErrUnprocessable, s.opts.MaxRatio.Shift(2).String(), limit.StringFixed(2))
		}

		if err := tx.Credit(ctx, target.ID, amount); err != nil {
			return err
		}

		at := s.Now()
		event := tasks.DepositCompleted{
			EventID:     uuid.New(),
			ClientID:    target.ID,
			DepositedBy: caller.ID,
			Amount:      amount,
			At:          at,
		}
		if err := tx.EnqueueTask(ctx, tasks.TypeDepositCompleted, event); err != nil {
			return err
		}

		client = *target
		client.Balance = target.Balance.Add(amount)
		client.Updated = at
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "cash deposited",
		slog.Int64("client_id", client.ID),
		slog.Int64("caller_id", caller.ID),
		slog.String("amount", amount.StringFixed(2)))

	return &client, nil
}
