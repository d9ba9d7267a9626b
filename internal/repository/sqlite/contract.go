package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/freelance/pkg/models"
)

// contractSelect joins both owning profiles so responses can embed them.
const contractSelect = `SELECT c.id, c.terms, c.status, c.client_id, c.contractor_id, c.created, c.updated,
	cl.id, cl.first_name, cl.last_name, cl.profession, cl.balance_cents, cl.role, cl.created, cl.updated,
	co.id, co.first_name, co.last_name, co.profession, co.balance_cents, co.role, co.created, co.updated
FROM contracts c
JOIN profiles cl ON cl.id = c.client_id
JOIN profiles co ON co.id = c.contractor_id`

func scanContract(s scanner) (*models.Contract, error) {
	var (
		c                models.Contract
		status           string
		created, updated int64
		cl, co           models.Profile
		clCents, coCents int64
		clRole, coRole   string
		clCreated        int64
		clUpdated        int64
		coCreated        int64
		coUpdated        int64
	)
	err := s.Scan(&c.ID, &c.Terms, &status, &c.ClientID, &c.ContractorID, &created, &updated,
		&cl.ID, &cl.FirstName, &cl.LastName, &cl.Profession, &clCents, &clRole, &clCreated, &clUpdated,
		&co.ID, &co.FirstName, &co.LastName, &co.Profession, &coCents, &coRole, &coCreated, &coUpdated)
	if err != nil {
		return nil, err
	}

	c.Status = models.ContractStatus(status)
	c.Created = fromMillis(created)
	c.Updated = fromMillis(updated)

	cl.Balance, cl.Role, cl.Created, cl.Updated = fromCents(clCents), models.Role(clRole), fromMillis(clCreated), fromMillis(clUpdated)
	co.Balance, co.Role, co.Created, co.Updated = fromCents(coCents), models.Role(coRole), fromMillis(coCreated), fromMillis(coUpdated)
	c.Client = &cl
	c.Contractor = &co

	return &c, nil
}

func (r *SQLiteRepo) CreateContract(ctx context.Context, c *models.Contract) (int64, error) {
	if c == nil {
		return 0, fmt.Errorf("contract is nil")
	}
	status := c.Status
	if status == "" {
		status = models.ContractNew
	}

	ts := now()
	res, err := r.conn.Exec(ctx, `INSERT INTO contracts (terms, status, client_id, contractor_id, created, updated) VALUES (?, ?, ?, ?, ?, ?)`,
		c.Terms, string(status), c.ClientID, c.ContractorID, ts, ts)
	if err != nil {
		return 0, fmt.Errorf("create contract: %w", err)
	}

	return res.LastInsertId()
}

// GetContractForProfile returns contract id when profileID is its client or contractor.
func (r *SQLiteRepo) GetContractForProfile(ctx context.Context, id, profileID int64) (*models.Contract, error) {
	row := r.conn.QueryRow(ctx, contractSelect+` WHERE c.id = ? AND (c.client_id = ? OR c.contractor_id = ?)`, id, profileID, profileID)
	c, err := scanContract(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get contract: %w", err)
	}

	return c, nil
}

// ListActiveContracts returns the non-terminated contracts profileID is a party to.
func (r *SQLiteRepo) ListActiveContracts(ctx context.Context, profileID int64) ([]models.Contract, error) {
	rows, err := r.conn.QueryRows(ctx, contractSelect+` WHERE (c.client_id = ? OR c.contractor_id = ?) AND c.status <> ? ORDER BY c.id`,
		profileID, profileID, string(models.ContractTerminated))
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	defer rows.Close()

	var out []models.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		out = append(out, *c)
	}

	return out, rows.Err()
}
