package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/garnizeh/freelance/internal/deposits"
	"github.com/garnizeh/freelance/internal/payments"
	"github.com/garnizeh/freelance/internal/reports"
	"github.com/garnizeh/freelance/internal/repository/sqlite"
	"github.com/garnizeh/freelance/internal/tasks"
	"github.com/garnizeh/freelance/pkg/models"
)

// callerFlag resolves --as into a profile the same way the HTTP layer does.
func callerFlag(ctx context.Context, cmd *cobra.Command, repo *sqlite.SQLiteRepo) (*models.Profile, error) {
	id, _ := cmd.Flags().GetInt64("as")
	if id <= 0 {
		return nil, fmt.Errorf("--as <profile id> is required")
	}
	p, err := repo.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("profile %d does not exist", id)
	}
	return p, nil
}

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, s)
	}
	return id, nil
}

var payCmd = &cobra.Command{
	Use:   "pay <job id>",
	Short: "Pay a job on behalf of its client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		jobID, err := parseID(args[0], "job")
		if err != nil {
			return err
		}

		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		repo := sqlite.New(e.db, e.logger)
		repo.SetTaskMaxAttempts(e.cfg.Workers.MaxAttempts)
		caller, err := callerFlag(ctx, cmd, repo)
		if err != nil {
			return err
		}

		job, err := payments.NewService(repo, e.logger).PayJob(ctx, jobID, caller)
		if err != nil {
			return err
		}
		fmt.Printf("Job %d paid: %s on %s\n", job.ID, job.Price.StringFixed(2), job.PaymentDate.Format(time.RFC3339))
		return nil
	},
}

var depositCmd = &cobra.Command{
	Use:   "deposit <client id> <amount>",
	Short: "Deposit cash into a client's balance",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		targetID, err := parseID(args[0], "client")
		if err != nil {
			return err
		}
		amount, err := decimal.NewFromString(args[1])
		if err != nil {
			return fmt.Errorf("invalid amount %q", args[1])
		}

		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		repo := sqlite.New(e.db, e.logger)
		repo.SetTaskMaxAttempts(e.cfg.Workers.MaxAttempts)
		caller, err := callerFlag(ctx, cmd, repo)
		if err != nil {
			return err
		}

		svc := deposits.NewService(repo, deposits.Options{
			MaxRatio:        decimal.NewFromFloat(e.cfg.Deposit.MaxRatio),
			AllowThirdParty: e.cfg.Deposit.AllowThirdParty,
		}, e.logger)
		client, err := svc.Deposit(ctx, targetID, caller, amount)
		if err != nil {
			return err
		}
		fmt.Printf("Deposited %s to %s, balance %s\n", amount.StringFixed(2), client.FullName(), client.Balance.StringFixed(2))
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Rank professions and clients by paid jobs",
}

// reportQuery reads the flags shared by the report subcommands.
func reportQuery(cmd *cobra.Command, def reports.Scope) (reports.Query, error) {
	var q reports.Query
	scopeFlag, _ := cmd.Flags().GetString("scope")
	scope, err := reports.ParseScope(scopeFlag, def)
	if err != nil {
		return q, err
	}
	q.Scope = scope
	q.ProfileID, _ = cmd.Flags().GetInt64("as")
	if q.Scope == reports.ScopeCaller && q.ProfileID <= 0 {
		return q, fmt.Errorf("--as is required with --scope caller")
	}

	for _, f := range []struct {
		name string
		dst  **time.Time
		end  bool
	}{{"start", &q.Start, false}, {"end", &q.End, true}} {
		v, _ := cmd.Flags().GetString(f.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return q, fmt.Errorf("--%s: expected YYYY-MM-DD", f.name)
		}
		if f.end {
			t = t.Add(24*time.Hour - time.Millisecond)
		}
		*f.dst = &t
	}

	q.Limit, _ = cmd.Flags().GetInt("limit")
	return q, nil
}

func reportService(e *env) *reports.Service {
	return reports.NewService(sqlite.New(e.db, e.logger), reports.Options{
		DefaultLimit: e.cfg.Reports.DefaultLimit,
		MaxLimit:     e.cfg.Reports.MaxLimit,
	}, e.logger)
}

var reportProfessionCmd = &cobra.Command{
	Use:   "profession",
	Short: "Show the best earning profession",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		q, err := reportQuery(cmd, reports.Scope(e.cfg.Reports.DefaultScope))
		if err != nil {
			return err
		}
		best, err := reportService(e).BestProfession(cmd.Context(), q)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\n", best.Profession, best.Total.StringFixed(2))
		return nil
	},
}

var reportClientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "Show the clients that paid the most",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		q, err := reportQuery(cmd, reports.Scope(e.cfg.Reports.DefaultScope))
		if err != nil {
			return err
		}
		clients, err := reportService(e).BestClients(cmd.Context(), q)
		if err != nil {
			return err
		}
		for _, c := range clients {
			fmt.Printf("%d\t%s\t%s\n", c.ID, c.FullName, c.Paid.StringFixed(2))
		}
		return nil
	},
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Inspect the background task queue",
}

var tasksDeadCmd = &cobra.Command{
	Use:   "dead",
	Short: "Count tasks that exhausted their retries",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		n, err := tasks.NewRepository(e.db).CountDeadLetters(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Dead-letter tasks: %d\n", n)
		return nil
	},
}

func init() {
	payCmd.Flags().Int64("as", 0, "Profile id of the paying client")
	depositCmd.Flags().Int64("as", 0, "Profile id of the depositing client")

	for _, c := range []*cobra.Command{reportProfessionCmd, reportClientsCmd} {
		c.Flags().Int64("as", 0, "Profile id the caller scope refers to")
		c.Flags().String("scope", "", "caller or global (default from config)")
		c.Flags().String("start", "", "First payment day, YYYY-MM-DD")
		c.Flags().String("end", "", "Last payment day, YYYY-MM-DD")
		reportCmd.AddCommand(c)
	}
	reportClientsCmd.Flags().Int("limit", 0, "Number of clients (default from config)")

	tasksCmd.AddCommand(tasksDeadCmd)
}
