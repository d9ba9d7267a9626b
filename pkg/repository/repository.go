package repository

import (
	"context"
	"time"

	"github.com/garnizeh/freelance/pkg/models"
	"github.com/shopspring/decimal"
)

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.
// Lookups return (nil, nil) when the row does not exist.

type ProfileRepo interface {
	CreateProfile(ctx context.Context, p *models.Profile) (int64, error)
	GetProfile(ctx context.Context, id int64) (*models.Profile, error)
	ListProfiles(ctx context.Context, role models.Role) ([]models.Profile, error)
}

type ContractRepo interface {
	CreateContract(ctx context.Context, c *models.Contract) (int64, error)
	GetContractForProfile(ctx context.Context, id, profileID int64) (*models.Contract, error)
	ListActiveContracts(ctx context.Context, profileID int64) ([]models.Contract, error)
}

type JobRepo interface {
	CreateJob(ctx context.Context, j *models.Job) (int64, error)
	GetJob(ctx context.Context, id int64) (*models.Job, error)
	ListUnpaidJobs(ctx context.Context, profileID int64) ([]models.Job, error)
}

type ReportRepo interface {
	// ProfessionTotals sums paid job prices grouped by contractor profession,
	// highest first. A non-zero filter.ProfileID restricts to that contractor.
	ProfessionTotals(ctx context.Context, filter models.ReportFilter) ([]models.ProfessionTotal, error)
	// ClientTotals sums paid job prices grouped by client, highest first,
	// truncated to filter.Limit. A non-zero filter.ProfileID restricts to that client.
	ClientTotals(ctx context.Context, filter models.ReportFilter) ([]models.ClientTotal, error)
}

// Tx is the single transaction context threaded through every mutating call of
// a payment or deposit. Nothing is visible to other connections until the
// enclosing TxRunner commits.
type Tx interface {
	GetProfile(ctx context.Context, id int64) (*models.Profile, error)
	GetProfileByRole(ctx context.Context, id int64, role models.Role) (*models.Profile, error)
	GetJobForClient(ctx context.Context, jobID, clientID int64) (*models.JobWithContract, error)
	SumJobPrices(ctx context.Context, clientID int64, status models.ContractStatus) (decimal.Decimal, error)

	// Debit fails without writing when the balance would go negative.
	Debit(ctx context.Context, profileID int64, amount decimal.Decimal) error
	Credit(ctx context.Context, profileID int64, amount decimal.Decimal) error
	// MarkJobPaid fails without writing when the job is already paid.
	MarkJobPaid(ctx context.Context, jobID int64, at time.Time) error

	EnqueueTask(ctx context.Context, typ string, payload any) error
}

// TxRunner runs fn inside one database transaction, committing when fn
// returns nil and rolling back otherwise.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}
