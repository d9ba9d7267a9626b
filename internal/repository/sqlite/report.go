package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/garnizeh/freelance/pkg/models"
)

// paidJobsWhere builds the filter shared by the aggregate reports. ownerColumn
// is the contract column the optional ProfileID restricts.
func paidJobsWhere(filter models.ReportFilter, ownerColumn string) (string, []any) {
	conds := []string{"j.paid = 1"}
	var args []any
	if filter.ProfileID != 0 {
		conds = append(conds, ownerColumn+" = ?")
		args = append(args, filter.ProfileID)
	}
	if filter.Start != nil {
		conds = append(conds, "j.payment_date >= ?")
		args = append(args, toMillis(*filter.Start))
	}
	if filter.End != nil {
		conds = append(conds, "j.payment_date <= ?")
		args = append(args, toMillis(*filter.End))
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *SQLiteRepo) ProfessionTotals(ctx context.Context, filter models.ReportFilter) ([]models.ProfessionTotal, error) {
	where, args := paidJobsWhere(filter, "c.contractor_id")
	query := `SELECT p.profession, SUM(j.price_cents) AS total
FROM jobs j
JOIN contracts c ON c.id = j.contract_id
JOIN profiles p ON p.id = c.contractor_id` + where + `
GROUP BY p.profession
ORDER BY total DESC, p.profession ASC`

	rows, err := r.conn.QueryRows(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("profession totals: %w", err)
	}
	defer rows.Close()

	var out []models.ProfessionTotal
	for rows.Next() {
		var (
			pt    models.ProfessionTotal
			cents int64
		)
		if err := rows.Scan(&pt.Profession, &cents); err != nil {
			return nil, fmt.Errorf("scan profession total: %w", err)
		}
		pt.Total = fromCents(cents)
		out = append(out, pt)
	}

	return out, rows.Err()
}

func (r *SQLiteRepo) ClientTotals(ctx context.Context, filter models.ReportFilter) ([]models.ClientTotal, error) {
	where, args := paidJobsWhere(filter, "c.client_id")
	limit := filter.Limit
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}
	args = append(args, limit)

	query := `SELECT p.id, p.first_name, p.last_name, SUM(j.price_cents) AS total
FROM jobs j
JOIN contracts c ON c.id = j.contract_id
JOIN profiles p ON p.id = c.client_id` + where + `
GROUP BY p.id, p.first_name, p.last_name
ORDER BY total DESC, p.id ASC
LIMIT ?`

	rows, err := r.conn.QueryRows(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("client totals: %w", err)
	}
	defer rows.Close()

	var out []models.ClientTotal
	for rows.Next() {
		var (
			p     models.Profile
			cents int64
		)
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &cents); err != nil {
			return nil, fmt.Errorf("scan client total: %w", err)
		}
		out = append(out, models.ClientTotal{ID: p.ID, FullName: p.FullName(), Paid: fromCents(cents)})
	}

	return out, rows.Err()
}
