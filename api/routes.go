package api

import (
	"github.com/garnizeh/freelance/internal/config"
	"github.com/garnizeh/freelance/internal/db"
	"github.com/garnizeh/freelance/internal/deposits"
	"github.com/garnizeh/freelance/internal/payments"
	"github.com/garnizeh/freelance/internal/reports"
	"github.com/garnizeh/freelance/internal/repository/sqlite"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

func SetupRoutes(cfg *config.Config, version, buildTime string, db *db.DB) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)

	// Repository
	repo := sqlite.New(db, logger)
	repo.SetTaskMaxAttempts(cfg.Workers.MaxAttempts)

	// Engines
	payer := payments.NewService(repo, logger)
	depositor := deposits.NewService(repo, deposits.Options{
		MaxRatio:        decimal.NewFromFloat(cfg.Deposit.MaxRatio),
		AllowThirdParty: cfg.Deposit.AllowThirdParty,
	}, logger)
	reporter := reports.NewService(repo, reports.Options{
		DefaultLimit: cfg.Reports.DefaultLimit,
		MaxLimit:     cfg.Reports.MaxLimit,
	}, logger)

	// Create handlers
	systemHandler := &SystemHandler{}
	contractsHandler := NewContractsHandler(repo)
	jobsHandler := NewJobsHandler(repo, payer)
	balancesHandler := NewBalancesHandler(depositor)
	adminHandler := NewAdminHandler(reporter, reports.Scope(cfg.Reports.DefaultScope))

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods("GET")

	// Caller-resolved routes
	authed := r.NewRoute().Subrouter()
	authed.Use(ProfileMiddleware(repo))

	authed.HandleFunc("/contracts/{id:[0-9]+}", contractsHandler.GetContract).Methods("GET")
	authed.HandleFunc("/contracts", contractsHandler.ListContracts).Methods("GET")

	authed.HandleFunc("/jobs/unpaid", jobsHandler.ListUnpaid).Methods("GET")
	authed.HandleFunc("/jobs/{job_id:[0-9]+}/pay", jobsHandler.Pay).Methods("POST")

	authed.HandleFunc("/balances/deposit/{userId:[0-9]+}", balancesHandler.Deposit).Methods("POST")

	authed.HandleFunc("/admin/best-profession", adminHandler.BestProfession).Methods("GET")
	authed.HandleFunc("/admin/best-clients", adminHandler.BestClients).Methods("GET")

	return r
}
