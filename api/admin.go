package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/garnizeh/freelance/internal/reports"
	"github.com/garnizeh/freelance/pkg/models"
	"github.com/shopspring/decimal"
)

// Reporter is the reporting engine as seen by the HTTP layer.
type Reporter interface {
	BestProfession(ctx context.Context, q reports.Query) (*models.ProfessionTotal, error)
	BestClients(ctx context.Context, q reports.Query) ([]models.ClientTotal, error)
}

type AdminHandler struct {
	reporter     Reporter
	defaultScope reports.Scope
}

func NewAdminHandler(reporter Reporter, defaultScope reports.Scope) *AdminHandler {
	if defaultScope == "" {
		defaultScope = reports.ScopeCaller
	}
	return &AdminHandler{reporter: reporter, defaultScope: defaultScope}
}

type bestProfessionResponse struct {
	Success    bool            `json:"success"`
	Profession string          `json:"profession"`
	Total      decimal.Decimal `json:"total"`
}

type bestClientsResponse struct {
	Success bool                 `json:"success"`
	Clients []models.ClientTotal `json:"clients"`
}

func (h *AdminHandler) BestProfession(w http.ResponseWriter, r *http.Request) {
	q, ok := h.query(w, r)
	if !ok {
		return
	}

	best, err := h.reporter.BestProfession(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, bestProfessionResponse{Success: true, Profession: best.Profession, Total: best.Total}, http.StatusOK)
}

func (h *AdminHandler) BestClients(w http.ResponseWriter, r *http.Request) {
	q, ok := h.query(w, r)
	if !ok {
		return
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			badRequest(w, "limit must be a positive integer")
			return
		}
		q.Limit = n
	}

	clients, err := h.reporter.BestClients(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, bestClientsResponse{Success: true, Clients: clients}, http.StatusOK)
}

// query reads scope, start and end shared by both reports.
func (h *AdminHandler) query(w http.ResponseWriter, r *http.Request) (reports.Query, bool) {
	p, ok := caller(w, r)
	if !ok {
		return reports.Query{}, false
	}
	values := r.URL.Query()

	scope, err := reports.ParseScope(values.Get("scope"), h.defaultScope)
	if err != nil {
		writeError(w, r, err)
		return reports.Query{}, false
	}

	start, err := parseDate(values.Get("start"), false)
	if err != nil {
		badRequest(w, "invalid start date")
		return reports.Query{}, false
	}
	end, err := parseDate(values.Get("end"), true)
	if err != nil {
		badRequest(w, "invalid end date")
		return reports.Query{}, false
	}
	if start != nil && end != nil && start.After(*end) {
		badRequest(w, "start must not be after end")
		return reports.Query{}, false
	}

	return reports.Query{Scope: scope, ProfileID: p.ID, Start: start, End: end}, true
}

// parseDate accepts RFC3339 or YYYY-MM-DD. A date-only end bound covers the
// whole day up to its last millisecond.
func parseDate(s string, end bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}

	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, err
	}
	if end {
		t = t.Add(24*time.Hour - time.Millisecond)
	}
	return &t, nil
}
