// Package mock provides testify mocks of the repository interfaces.
package mock

import (
	"context"
	"time"

	"github.com/garnizeh/freelance/pkg/models"
	"github.com/garnizeh/freelance/pkg/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

var (
	_ repository.Tx         = (*Tx)(nil)
	_ repository.TxRunner   = (*TxRunner)(nil)
	_ repository.ReportRepo = (*ReportRepo)(nil)
)

// TxRunner hands Tx to every WithTx callback. Committed reports whether the
// last callback returned nil.
type TxRunner struct {
	Tx        *Tx
	BeginErr  error
	Calls     int
	Committed bool
}

func NewTxRunner() *TxRunner {
	return &TxRunner{Tx: new(Tx)}
}

func (r *TxRunner) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	r.Calls++
	r.Committed = false
	if r.BeginErr != nil {
		return r.BeginErr
	}
	if err := fn(r.Tx); err != nil {
		return err
	}
	r.Committed = true
	return nil
}

type Tx struct {
	mock.Mock
}

func (m *Tx) GetProfile(ctx context.Context, id int64) (*models.Profile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *Tx) GetProfileByRole(ctx context.Context, id int64, role models.Role) (*models.Profile, error) {
	args := m.Called(ctx, id, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *Tx) GetJobForClient(ctx context.Context, jobID, clientID int64) (*models.JobWithContract, error) {
	args := m.Called(ctx, jobID, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.JobWithContract), args.Error(1)
}

func (m *Tx) SumJobPrices(ctx context.Context, clientID int64, status models.ContractStatus) (decimal.Decimal, error) {
	args := m.Called(ctx, clientID, status)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *Tx) Debit(ctx context.Context, profileID int64, amount decimal.Decimal) error {
	return m.Called(ctx, profileID, amount).Error(0)
}

func (m *Tx) Credit(ctx context.Context, profileID int64, amount decimal.Decimal) error {
	return m.Called(ctx, profileID, amount).Error(0)
}

func (m *Tx) MarkJobPaid(ctx context.Context, jobID int64, at time.Time) error {
	return m.Called(ctx, jobID, at).Error(0)
}

func (m *Tx) EnqueueTask(ctx context.Context, typ string, payload any) error {
	return m.Called(ctx, typ, payload).Error(0)
}

type ReportRepo struct {
	mock.Mock
}

func (m *ReportRepo) ProfessionTotals(ctx context.Context, filter models.ReportFilter) ([]models.ProfessionTotal, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ProfessionTotal), args.Error(1)
}

func (m *ReportRepo) ClientTotals(ctx context.Context, filter models.ReportFilter) ([]models.ClientTotal, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ClientTotal), args.Error(1)
}
