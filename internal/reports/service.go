// Package reports ranks professions and clients by paid job value.
package reports

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/garnizeh/freelance/pkg/models"
	"github.com/garnizeh/freelance/pkg/repository"
)

type Scope string

const (
	// ScopeCaller restricts a report to jobs the caller took part in.
	ScopeCaller Scope = "caller"
	ScopeGlobal Scope = "global"
)

// ParseScope accepts "caller" and "global"; empty yields def.
func ParseScope(s string, def Scope) (Scope, error) {
	switch Scope(s) {
	case "":
		return def, nil
	case ScopeCaller, ScopeGlobal:
		return Scope(s), nil
	default:
		return "", fmt.Errorf("%w: unknown report scope %q", models.ErrInvalid, s)
	}
}

const (
	DefaultLimit = 2
	MaxLimit     = 100
)

type Query struct {
	Scope     Scope
	ProfileID int64
	Start     *time.Time
	End       *time.Time
	Limit     int
}

func (q Query) filter() models.ReportFilter {
	f := models.ReportFilter{Start: q.Start, End: q.End, Limit: q.Limit}
	if q.Scope != ScopeGlobal {
		f.ProfileID = q.ProfileID
	}
	return f
}

type Options struct {
	DefaultLimit int
	MaxLimit     int
}

type Service struct {
	repo   repository.ReportRepo
	opts   Options
	logger *slog.Logger
}

func NewService(repo repository.ReportRepo, opts Options, logger *slog.Logger) *Service {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = MaxLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, opts: opts, logger: logger}
}

// BestProfession returns the contractor profession that earned the most.
func (s *Service) BestProfession(ctx context.Context, q Query) (*models.ProfessionTotal, error) {
	if err := validRange(q); err != nil {
		return nil, err
	}

	totals, err := s.repo.ProfessionTotals(ctx, q.filter())
	if err != nil {
		return nil, err
	}
	if len(totals) == 0 {
		return nil, fmt.Errorf("%w: no paid jobs in range", models.ErrNotFound)
	}

	return &totals[0], nil
}

// BestClients returns the clients that paid the most, highest first.
func (s *Service) BestClients(ctx context.Context, q Query) ([]models.ClientTotal, error) {
	if err := validRange(q); err != nil {
		return nil, err
	}

	switch {
	case q.Limit == 0:
		q.Limit = s.opts.DefaultLimit
	case q.Limit < 0 || q.Limit > s.opts.MaxLimit:
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", models.ErrInvalid, s.opts.MaxLimit)
	}

	totals, err := s.repo.ClientTotals(ctx, q.filter())
	if err != nil {
		return nil, err
	}
	if totals == nil {
		totals = []models.ClientTotal{}
	}

	s.logger.DebugContext(ctx, "best clients computed", slog.Int("rows", len(totals)), slog.String("scope", string(q.Scope)))
	return totals, nil
}

func validRange(q Query) error {
	if q.Start != nil && q.End != nil && q.Start.After(*q.End) {
		return fmt.Errorf("%w: start is after end", models.ErrInvalid)
	}
	return nil
}
