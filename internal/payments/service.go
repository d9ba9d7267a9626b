// Package payments moves a job's price from its client to its contractor.
package payments

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/garnizeh/freelance/internal/tasks"
	"github.com/garnizeh/freelance/pkg/models"
	"github.com/garnizeh/freelance/pkg/repository"
	"github.com/google/uuid"
)

type Service struct {
	txr    repository.TxRunner
	logger *slog.Logger

	// Now is the clock stamped on payment dates.
	Now func() time.Time
}

func NewService(txr repository.TxRunner, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		txr:    txr,
		logger: logger,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// PayJob pays jobID on behalf of caller, who must be the client of the job's
// contract. Every write happens in one transaction. It returns the paid job.
func (s *Service) PayJob(ctx context.Context, jobID int64, caller *models.Profile) (*models.Job, error) {
	var paid models.Job

	err := s.txr.WithTx(ctx, func(tx repository.Tx) error {
		jc, err := tx.GetJobForClient(ctx, jobID, caller.ID)
		if err != nil {
			return err
		}
		if jc == nil {
			return fmt.Errorf("%w: job %d", models.ErrNotFound, jobID)
		}
		if jc.Paid {
			return fmt.Errorf("%w: job already paid", models.ErrUnprocessable)
		}

		// the caller resolved by the middleware may be stale
		client, err := tx.GetProfile(ctx, caller.ID)
		if err != nil {
			return err
		}
		if client == nil {
			return fmt.Errorf("%w: profile %d", models.ErrNotFound, caller.ID)
		}
		if client.Balance.LessThan(jc.Price) {
			return fmt.Errorf("%w: insufficient funds", models.ErrUnprocessable)
		}

		contractor, err := tx.GetProfile(ctx, jc.Contract.ContractorID)
		if err != nil {
			return err
		}
		if contractor == nil {
			return fmt.Errorf("%w: contractor %d", models.ErrNotFound, jc.Contract.ContractorID)
		}

		at := s.Now()
		if err := tx.Debit(ctx, client.ID, jc.Price); err != nil {
			return err
		}
		if err := tx.Credit(ctx, contractor.ID, jc.Price); err != nil {
			return err
		}
		if err := tx.MarkJobPaid(ctx, jc.ID, at); err != nil {
			return err
		}

		event := tasks.PaymentCompleted{
			EventID:      uuid.New(),
			JobID:        jc.ID,
			ClientID:     client.ID,
			ContractorID: contractor.ID,
			Amount:       jc.Price,
			PaidAt:       at,
		}
		if err := tx.EnqueueTask(ctx, tasks.TypePaymentCompleted, event); err != nil {
			return err
		}

		paid = jc.Job
		paid.Paid = true
		paid.PaymentDate = &at
		paid.Updated = at
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "job paid",
		slog.Int64("job_id", paid.ID),
		slog.Int64("client_id", caller.ID),
		slog.String("amount", paid.Price.StringFixed(2)))

	return &paid, nil
}
