package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/freelance/pkg/models"
)

const profileColumns = `id, first_name, last_name, profession, balance_cents, role, created, updated`

func scanProfile(s scanner) (*models.Profile, error) {
	var (
		p                models.Profile
		cents            int64
		role             string
		created, updated int64
	)
	if err := s.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Profession, &cents, &role, &created, &updated); err != nil {
		return nil, err
	}
	p.Balance = fromCents(cents)
	p.Role = models.Role(role)
	p.Created = fromMillis(created)
	p.Updated = fromMillis(updated)

	return &p, nil
}

func getProfile(ctx context.Context, q querier, query string, args ...any) (*models.Profile, error) {
	p, err := scanProfile(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}

	return p, nil
}

func (r *SQLiteRepo) CreateProfile(ctx context.Context, p *models.Profile) (int64, error) {
	if p == nil {
		return 0, fmt.Errorf("profile is nil")
	}

	ts := now()
	res, err := r.conn.Exec(ctx, `INSERT INTO profiles (first_name, last_name, profession, balance_cents, role, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.FirstName, p.LastName, p.Profession, toCents(p.Balance), string(p.Role), ts, ts)
	if err != nil {
		return 0, fmt.Errorf("create profile: %w", err)
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) GetProfile(ctx context.Context, id int64) (*models.Profile, error) {
	return getProfile(ctx, r.conn.GetConn(), `SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id)
}

// ListProfiles returns every profile, or only those with the given role when it is non-empty.
func (r *SQLiteRepo) ListProfiles(ctx context.Context, role models.Role) ([]models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles`
	var args []any
	if role != "" {
		query += ` WHERE role = ?`
		args = append(args, string(role))
	}
	query += ` ORDER BY id`

	rows, err := r.conn.QueryRows(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, *p)
	}

	return out, rows.Err()
}
