package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/freelance/pkg/models"
)

const jobColumns = `j.id, j.description, j.price_cents, j.paid, j.payment_date, j.contract_id, j.created, j.updated`

func scanJob(s scanner, extra ...any) (*models.Job, error) {
	var (
		j                models.Job
		cents            int64
		paymentDate      sql.NullInt64
		created, updated int64
	)
	dest := append([]any{&j.ID, &j.Description, &cents, &j.Paid, &paymentDate, &j.ContractID, &created, &updated}, extra...)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}

	j.Price = fromCents(cents)
	if paymentDate.Valid {
		t := fromMillis(paymentDate.Int64)
		j.PaymentDate = &t
	}
	j.Created = fromMillis(created)
	j.Updated = fromMillis(updated)

	return &j, nil
}

func (r *SQLiteRepo) CreateJob(ctx context.Context, j *models.Job) (int64, error) {
	if j == nil {
		return 0, fmt.Errorf("job is nil")
	}

	var paymentDate any
	if j.PaymentDate != nil {
		paymentDate = toMillis(*j.PaymentDate)
	}

	ts := now()
	res, err := r.conn.Exec(ctx, `INSERT INTO jobs (description, price_cents, paid, payment_date, contract_id, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		j.Description, toCents(j.Price), j.Paid, paymentDate, j.ContractID, ts, ts)
	if err != nil {
		return 0, fmt.Errorf("create job: %w", err)
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	j, err := scanJob(r.conn.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs j WHERE j.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get job: %w", err)
	}

	return j, nil
}

// ListUnpaidJobs returns unpaid jobs of the in-progress contracts profileID is a party to.
func (r *SQLiteRepo) ListUnpaidJobs(ctx context.Context, profileID int64) ([]models.Job, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+jobColumns+` FROM jobs j
JOIN contracts c ON c.id = j.contract_id
WHERE (c.client_id = ? OR c.contractor_id = ?) AND c.status = ? AND j.paid = 0
ORDER BY j.id`, profileID, profileID, string(models.ContractInProgress))
	if err != nil {
		return nil, fmt.Errorf("list unpaid jobs: %w", err)
	}
	defer rows.Close()

	var out []models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, *j)
	}

	return out, rows.Err()
}
