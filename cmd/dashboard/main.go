package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"wealthdash/internal/client"
	"wealthdash/internal/domain/dashboard"
	"wealthdash/internal/domain/finance"
	"wealthdash/internal/domain/statecache"
	"wealthdash/internal/domain/summary"
	"wealthdash/internal/infrastructure/dashboardapi"
	"wealthdash/internal/infrastructure/sqlite"
	"wealthdash/internal/shared/config"
	"wealthdash/internal/shared/telemetry"
)

// app is everything a command needs, built from the config file.
type app struct {
	orch   *client.Orchestrator
	api    *dashboardapi.Client
	store  *statecache.Store
	db     *sql.DB
	out    io.Writer
	asJSON bool
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

func newApp(ctx context.Context, cmd *cli.Command) (*app, error) {
	cfg, err := config.LoadClient(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	logger := telemetry.NewLogger(os.Stderr, "text", level)
	slog.SetDefault(logger)

	api, err := dashboardapi.NewClient(dashboardapi.Options{
		BaseURL:     cfg.APIURL,
		AccessToken: cfg.AccessToken,
		Timeout:     cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}

	db, err := sqlite.Open(ctx, cfg.CachePath)
	if err != nil {
		return nil, err
	}

	store := statecache.NewStore(sqlite.NewKVRepository(db), logger)
	store.Load(ctx)

	policy, err := summary.ParsePolicy(cmd.String("policy"))
	if err != nil {
		db.Close()
		return nil, err
	}
	runner := dashboard.NewAggregator(summary.NewEngine(policy), logger)

	return &app{
		orch:   client.New(api, api, runner, store, logger),
		api:    api,
		store:  store,
		db:     db,
		out:    os.Stdout,
		asJSON: cmd.Bool("json"),
	}, nil
}

// action wraps a command body with app setup and teardown.
func action(fn func(ctx context.Context, cmd *cli.Command, a *app) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		a, err := newApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(ctx, cmd, a)
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "dashboard",
		Usage: "Personal wealth dashboard backed by a wealthdash server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   "wealthdash.yaml",
				Sources: cli.EnvVars("WEALTHDASH_CONFIG"),
			},
			&cli.BoolFlag{Name: "json", Usage: "Print JSON instead of tables"},
			&cli.StringFlag{
				Name:  "policy",
				Usage: "How investment accounts count toward assets (holdings or additive)",
				Value: string(summary.PolicyHoldings),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "link-token",
				Usage:  "Create a link token for the account-linking UI",
				Action: action(runLinkToken),
			},
			{
				Name:      "connect",
				Usage:     "Link an institution with the public token returned by the linking UI",
				ArgsUsage: "<public-token>",
				Action:    action(runConnect),
			},
			{
				Name:   "refresh",
				Usage:  "Fetch everything and recompute the summary",
				Action: action(runRefresh),
			},
			{
				Name:  "summary",
				Usage: "Show the cached financial summary",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "remote", Usage: "Ask the server to compute the summary instead of using the cache"},
				},
				Action: action(runSummary),
			},
			{
				Name:   "accounts",
				Usage:  "List cached accounts",
				Action: action(runAccounts),
			},
			{
				Name:  "transactions",
				Usage: "List cached transactions, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 25, Usage: "Maximum rows to print (0 for all)"},
				},
				Action: action(runTransactions),
			},
			{
				Name:   "investments",
				Usage:  "List cached holdings",
				Action: action(runInvestments),
			},
			{
				Name:   "liabilities",
				Usage:  "List cached liabilities",
				Action: action(runLiabilities),
			},
			{
				Name:   "status",
				Usage:  "Show connection and refresh status",
				Action: action(runStatus),
			},
			{
				Name:   "reset",
				Usage:  "Forget all cached data",
				Action: action(runReset),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func runLinkToken(ctx context.Context, cmd *cli.Command, a *app) error {
	tok, err := a.orch.CreateLinkToken(ctx)
	if err != nil {
		return err
	}
	if a.asJSON {
		return writeJSON(a.out, tok)
	}
	fmt.Fprintf(a.out, "%s\nexpires %s\n", tok.LinkToken, tok.Expiration.Local().Format("2006-01-02 15:04"))
	return nil
}

func runConnect(ctx context.Context, cmd *cli.Command, a *app) error {
	if err := a.orch.Connect(ctx, cmd.Args().First()); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "connected: %d account(s) cached\n", len(a.orch.Accounts()))
	return reportRefresh(a)
}

func runRefresh(ctx context.Context, cmd *cli.Command, a *app) error {
	if err := a.orch.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh failed, cached data kept: %w", err)
	}
	return printSummary(a, a.orch.Summary())
}

// reportRefresh prints the summary, or the refresh error that Connect swallowed.
func reportRefresh(a *app) error {
	if st := a.orch.Status(); st.LastError != "" {
		fmt.Fprintf(a.out, "refresh failed: %s\n", st.LastError)
		return nil
	}
	return printSummary(a, a.orch.Summary())
}

func runSummary(ctx context.Context, cmd *cli.Command, a *app) error {
	if cmd.Bool("remote") {
		s, err := a.api.Summary(ctx, finance.DateRange{})
		if err != nil {
			return err
		}
		return printSummary(a, s)
	}
	return printSummary(a, a.orch.Summary())
}

func printSummary(a *app, s *summary.FinancialSummary) error {
	if s == nil {
		fmt.Fprintln(a.out, "no summary yet, run `dashboard refresh`")
		return nil
	}
	if a.asJSON {
		return writeJSON(a.out, s)
	}
	return renderSummary(a.out, s)
}

func runAccounts(ctx context.Context, cmd *cli.Command, a *app) error {
	if a.asJSON {
		return writeJSON(a.out, a.orch.Accounts())
	}
	return renderAccounts(a.out, a.orch.Accounts())
}

func runTransactions(ctx context.Context, cmd *cli.Command, a *app) error {
	txns := a.orch.Transactions()
	if limit := int(cmd.Int("limit")); limit > 0 && len(txns) > limit {
		txns = txns[:limit]
	}
	if a.asJSON {
		return writeJSON(a.out, txns)
	}
	return renderTransactions(a.out, txns)
}

func runInvestments(ctx context.Context, cmd *cli.Command, a *app) error {
	bundle := a.orch.Investments()
	if a.asJSON {
		return writeJSON(a.out, bundle)
	}
	if bundle == nil {
		fmt.Fprintln(a.out, "no investments cached")
		return nil
	}
	return renderHoldings(a.out, bundle.Holdings)
}

func runLiabilities(ctx context.Context, cmd *cli.Command, a *app) error {
	bundle := a.orch.Liabilities()
	if a.asJSON {
		return writeJSON(a.out, bundle)
	}
	if bundle == nil {
		fmt.Fprintln(a.out, "no liabilities cached")
		return nil
	}
	return renderLiabilities(a.out, bundle)
}

func runStatus(ctx context.Context, cmd *cli.Command, a *app) error {
	st := a.orch.Status()
	updated := "never"
	if t := a.orch.LastUpdated(); !t.IsZero() {
		updated = t.Local().Format("2006-01-02 15:04")
	}
	if a.asJSON {
		return writeJSON(a.out, map[string]any{
			"connected":    a.orch.Connected(),
			"accounts":     len(a.orch.Accounts()),
			"last_updated": a.orch.LastUpdated(),
			"last_error":   st.LastError,
		})
	}
	fmt.Fprintf(a.out, "connected:    %t\naccounts:     %d\nlast updated: %s\n", a.orch.Connected(), len(a.orch.Accounts()), updated)
	if st.LastError != "" {
		fmt.Fprintf(a.out, "last error:   %s\n", st.LastError)
	}
	return nil
}

func runReset(ctx context.Context, cmd *cli.Command, a *app) error {
	a.store.Reset(ctx)
	fmt.Fprintln(a.out, "cache cleared")
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
