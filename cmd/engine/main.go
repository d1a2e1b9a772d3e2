/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the scoring engine. Handles configuration,
  dependency injection, and graceful shutdown.

COMMANDS:
  serve            Run the HTTP server with the background scheduler
  run              Run one day's batches from a JSON rows file
  seed-holidays    Import a CSV holiday calendar
  seed-templates   Load default message templates

STARTUP SEQUENCE (serve):
  1. Load TOML configuration (defaults when absent)
  2. Initialize SQLite store
  3. Wire calendar, period calculator, engine, boards, policy
  4. Configure HTTP router and start the scheduler
  5. Serve with graceful shutdown

EXAMPLES:
  # Run the server with a config file
  ./engine serve --config ./config.toml

  # Replay a day's batches from a file
  ./engine run --date 2025-01-29 --rows ./rows.json

  # Import holidays
  ./engine seed-holidays --file ./holidays.csv

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration file layout
*/
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vantage/scoring-engine/api"
	"github.com/vantage/scoring-engine/calendar"
	"github.com/vantage/scoring-engine/config"
	"github.com/vantage/scoring-engine/notify"
	"github.com/vantage/scoring-engine/period"
	"github.com/vantage/scoring-engine/ranking"
	"github.com/vantage/scoring-engine/scoring"
	"github.com/vantage/scoring-engine/store/sqlite"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "engine",
	Short: "Sales scoring and gamification engine",
	Long: `A batch scoring engine for sales teams: ingests daily results,
awards trophies against working-day-weighted goals, serves leaderboards,
and decides when notifications go out.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.toml (defaults apply when empty)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(seedHolidaysCmd)
	rootCmd.AddCommand(seedTemplatesCmd)

	runCmd.Flags().String("date", "", "Batch date, 2006-01-02 (default: today)")
	runCmd.Flags().String("rows", "", "Path to the JSON rows file")
	runCmd.MarkFlagRequired("rows")

	replayCmd.Flags().String("from", "", "First date of the range, 2006-01-02")
	replayCmd.Flags().String("to", "", "Last date of the range, 2006-01-02")
	replayCmd.MarkFlagRequired("from")
	replayCmd.MarkFlagRequired("to")

	seedHolidaysCmd.Flags().String("file", "", "Path to the CSV holiday calendar")
	seedHolidaysCmd.MarkFlagRequired("file")
}

// app bundles the wired dependencies behind every command.
type app struct {
	cfg     config.Config
	store   *sqlite.Store
	periods *period.Calculator
	engine  *scoring.Engine
	handler *api.Handler
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	cal := calendar.New(store)
	periods := period.NewCalculator(cal, cfg.PeriodCycle())
	engine := scoring.NewEngine(store, periods, cfg.ScoringRules())
	boards := ranking.NewAggregator(store, periods, cfg.CampaignStart(), ranking.DefaultTieBreak())
	policy := notify.NewPolicy(store, cfg.Notifications)
	catalog := notify.NewCatalog(store, 3, nil)

	return &app{
		cfg:     cfg,
		store:   store,
		periods: periods,
		engine:  engine,
		handler: api.NewHandler(store, engine, boards, policy, catalog, periods),
	}, nil
}

func (a *app) Close() { a.store.Close() }

// =============================================================================
// SERVE
// =============================================================================

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server with the background scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		scheduler := api.NewEvaluationScheduler(a.handler)
		scheduler.Start()
		defer scheduler.Stop()

		server := &http.Server{
			Addr:         a.cfg.Addr(),
			Handler:      api.NewRouter(a.handler),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		go func() {
			log.Printf("Server starting on http://%s", a.cfg.Addr())
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Server failed: %v", err)
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("forced shutdown: %w", err)
		}
		log.Println("Server stopped")
		return nil
	},
}

// =============================================================================
// RUN (one-shot batch)
// =============================================================================

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one day's batches from a JSON rows file",
	Long: `Runs the full daily sequence for one date: ingestion, the weekly
evaluation, and the monthly evaluation (a no-op off cycle-end). The
rows file is a JSON array of {name, store_code, role, goal, actual}.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		dateStr, _ := cmd.Flags().GetString("date")
		date := time.Now().UTC()
		if dateStr != "" {
			if date, err = time.Parse("2006-01-02", dateStr); err != nil {
				return fmt.Errorf("invalid --date %q", dateStr)
			}
		}

		rowsPath, _ := cmd.Flags().GetString("rows")
		data, err := os.ReadFile(rowsPath)
		if err != nil {
			return fmt.Errorf("read rows file: %w", err)
		}
		var dtos []api.IngestRowDTO
		if err := json.Unmarshal(data, &dtos); err != nil {
			return fmt.Errorf("parse rows file: %w", err)
		}
		rows := make([]scoring.Row, 0, len(dtos))
		for _, d := range dtos {
			rows = append(rows, scoring.Row{
				Name:      d.Name,
				StoreCode: d.StoreCode,
				Role:      scoring.Role(strings.ToUpper(d.Role)),
				Goal:      d.Goal,
				Actual:    d.Actual,
			})
		}

		ctx := context.Background()
		for _, step := range []func(context.Context, time.Time) (*scoring.BatchReport, error){
			func(ctx context.Context, ref time.Time) (*scoring.BatchReport, error) {
				return a.engine.IngestDaily(ctx, ref, rows)
			},
			a.engine.EvaluateWeekly,
			a.engine.EvaluateMonthly,
		} {
			report, err := step(ctx, date)
			if err != nil && !scoring.IsPolicyMisuse(err) {
				return err
			}
			fmt.Println(report)
		}
		return nil
	},
}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Rebuild the trophy set for a date range from stored results",
	Long: `Deletes every trophy in the range and re-runs the daily, weekly and
monthly evaluations from the stored daily results alone. Running it
twice over the same range yields the same trophy set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		fromStr, _ := cmd.Flags().GetString("from")
		from, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			return fmt.Errorf("invalid --from %q", fromStr)
		}
		toStr, _ := cmd.Flags().GetString("to")
		to, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			return fmt.Errorf("invalid --to %q", toStr)
		}
		if to.Before(from) {
			return fmt.Errorf("--to %s precedes --from %s", toStr, fromStr)
		}

		report, err := a.engine.Replay(context.Background(), from, to)
		if err != nil {
			return err
		}
		fmt.Println(report)
		return nil
	},
}

// =============================================================================
// SEEDING
// =============================================================================

var seedHolidaysCmd = &cobra.Command{
	Use:   "seed-holidays",
	Short: "Import a CSV holiday calendar (scope,date[,name] lines)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		path, _ := cmd.Flags().GetString("file")
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open holiday file: %w", err)
		}
		defer f.Close()

		holidays, err := calendar.ParseCSV(f)
		if err != nil {
			return err
		}
		ctx := context.Background()
		for _, h := range holidays {
			if err := a.store.SaveHoliday(ctx, h); err != nil {
				return err
			}
		}
		fmt.Printf("Imported %d holidays\n", len(holidays))
		return nil
	},
}

var seedTemplatesCmd = &cobra.Command{
	Use:   "seed-templates",
	Short: "Load the default message template catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := context.Background()
		for i, tpl := range defaultTemplates() {
			if tpl.ID == "" {
				tpl.ID = fmt.Sprintf("default-%02d", i+1)
			}
			if err := a.store.AddTemplate(ctx, tpl); err != nil {
				return err
			}
		}
		fmt.Println("Default templates loaded")
		return nil
	},
}

func defaultTemplates() []notify.Template {
	return []notify.Template{
		{ID: "daily-01", Category: notify.CategoryDaily, Body: "Good morning, team! Today is {date}. Let's hit those goals!"},
		{ID: "daily-02", Category: notify.CategoryDaily, Body: "New day, new chances. Boards update all day on {date}."},
		{ID: "daily-03", Category: notify.CategoryDaily, Body: "Rise and shine! Every sale counts today, {date}."},
		{ID: "achieve-01", Category: notify.CategoryAchievement, Body: "Congrats {seller}! You earned: {trophies} (+{points} pts)"},
		{ID: "achieve-02", Category: notify.CategoryAchievement, Body: "Outstanding, {seller}! New hardware: {trophies}. Total today: {points} pts"},
		{ID: "achieve-03", Category: notify.CategoryAchievement, Body: "{seller} is on fire! {trophies} in the bag (+{points} pts)"},
	}
}
