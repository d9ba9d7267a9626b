package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garnizeh/freelance/internal/tasks"
	"github.com/garnizeh/freelance/pkg/models"
	"github.com/garnizeh/freelance/pkg/repository"
	"github.com/shopspring/decimal"
)

// WithTx runs fn in a single transaction. The transaction is rolled back when
// fn returns an error or panics.
func (r *SQLiteRepo) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	sqlTx, err := r.conn.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(&sqliteTx{tx: sqlTx, taskMaxAttempts: r.taskMaxAttempts}); err != nil {
		r.logger.DebugContext(ctx, "transaction rolled back", "err", err)
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// sqliteTx implements repository.Tx on top of a *sql.Tx.
type sqliteTx struct {
	tx              *sql.Tx
	taskMaxAttempts int
}

var _ repository.Tx = (*sqliteTx)(nil)

func (t *sqliteTx) GetProfile(ctx context.Context, id int64) (*models.Profile, error) {
	return getProfile(ctx, t.tx, `SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id)
}

func (t *sqliteTx) GetProfileByRole(ctx context.Context, id int64, role models.Role) (*models.Profile, error) {
	return getProfile(ctx, t.tx, `SELECT `+profileColumns+` FROM profiles WHERE id = ? AND role = ?`, id, string(role))
}

// GetJobForClient returns the job only when its contract belongs to clientID.
func (t *sqliteTx) GetJobForClient(ctx context.Context, jobID, clientID int64) (*models.JobWithContract, error) {
	var (
		out              models.JobWithContract
		status           string
		created, updated int64
	)
	row := t.tx.QueryRowContext(ctx, `SELECT `+jobColumns+`, c.id, c.terms, c.status, c.client_id, c.contractor_id, c.created, c.updated
FROM jobs j
JOIN contracts c ON c.id = j.contract_id
WHERE j.id = ? AND c.client_id = ?`, jobID, clientID)
	j, err := scanJob(row, &out.Contract.ID, &out.Contract.Terms, &status, &out.Contract.ClientID, &out.Contract.ContractorID, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get job for client: %w", err)
	}

	out.Job = *j
	out.Contract.Status = models.ContractStatus(status)
	out.Contract.Created = fromMillis(created)
	out.Contract.Updated = fromMillis(updated)

	return &out, nil
}

// SumJobPrices sums every job price under clientID's contracts with the given status.
func (t *sqliteTx) SumJobPrices(ctx context.Context, clientID int64, status models.ContractStatus) (decimal.Decimal, error) {
	var cents int64
	err := t.tx.QueryRowContext(ctx, `SELECT COALESCE(SUM(j.price_cents), 0)
FROM jobs j
JOIN contracts c ON c.id = j.contract_id
WHERE c.client_id = ? AND c.status = ?`, clientID, string(status)).Scan(&cents)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum job prices: %w", err)
	}

	return fromCents(cents), nil
}

func (t *sqliteTx) Debit(ctx context.Context, profileID int64, amount decimal.Decimal) error {
	cents := toCents(amount)
	res, err := t.tx.ExecContext(ctx, `UPDATE profiles SET balance_cents = balance_cents - ?, updated = ? WHERE id = ? AND balance_cents >= ?`,
		cents, now(), profileID, cents)
	if err != nil {
		return fmt.Errorf("debit profile %d: %w", profileID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("debit profile %d: %w", profileID, err)
	} else if n == 0 {
		return fmt.Errorf("%w: insufficient funds on profile %d", models.ErrUnprocessable, profileID)
	}

	return nil
}

func (t *sqliteTx) Credit(ctx context.Context, profileID int64, amount decimal.Decimal) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE profiles SET balance_cents = balance_cents + ?, updated = ? WHERE id = ?`,
		toCents(amount), now(), profileID)
	if err != nil {
		return fmt.Errorf("credit profile %d: %w", profileID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("credit profile %d: %w", profileID, err)
	} else if n == 0 {
		return fmt.Errorf("%w: profile %d", models.ErrNotFound, profileID)
	}

	return nil
}

func (t *sqliteTx) MarkJobPaid(ctx context.Context, jobID int64, at time.Time) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE jobs SET paid = 1, payment_date = ?, updated = ? WHERE id = ? AND paid = 0`,
		toMillis(at), now(), jobID)
	if err != nil {
		return fmt.Errorf("mark job %d paid: %w", jobID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("mark job %d paid: %w", jobID, err)
	} else if n == 0 {
		return fmt.Errorf("%w: job %d already paid", models.ErrUnprocessable, jobID)
	}

	return nil
}

func (t *sqliteTx) EnqueueTask(ctx context.Context, typ string, payload any) error {
	_, err := tasks.Insert(ctx, t.tx, typ, payload, t.taskMaxAttempts)
	return err
}
