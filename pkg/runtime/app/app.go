package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/de-tools/linkmind/pkg/metrics"
	"github.com/de-tools/linkmind/pkg/models/domain"
	"github.com/de-tools/linkmind/pkg/services/actuation"
	"github.com/de-tools/linkmind/pkg/services/auditor"
	"github.com/de-tools/linkmind/pkg/services/config"
	"github.com/de-tools/linkmind/pkg/services/cycle"
	"github.com/de-tools/linkmind/pkg/services/detector"
	"github.com/de-tools/linkmind/pkg/services/intake"
	"github.com/de-tools/linkmind/pkg/services/ledger"
	"github.com/de-tools/linkmind/pkg/services/remediation"
	"github.com/de-tools/linkmind/pkg/services/rico"
	"github.com/de-tools/linkmind/pkg/services/roi"
	"github.com/de-tools/linkmind/pkg/services/workflow"
	"github.com/de-tools/linkmind/pkg/store/audit"
	"github.com/de-tools/linkmind/pkg/store/duckdb"
	"github.com/de-tools/linkmind/pkg/store/journal"
	"github.com/de-tools/linkmind/pkg/store/savings"
	"github.com/de-tools/linkmind/pkg/store/sqlite"
	runstore "github.com/de-tools/linkmind/pkg/store/workflow"
	"github.com/rs/zerolog"
)

// App is the fully wired engine shared by the CLI and the web server.
type App struct {
	Config     *config.Config
	ConfigPath string

	Ledger    *ledger.Ledger
	Docket    *rico.Docket
	Rates     *roi.RateBook
	Intake    *intake.Service
	Detector  *detector.Detector
	Auditor   *auditor.Auditor
	Cycles    *cycle.Controller
	Scheduler *workflow.DefaultController
	Metrics   *metrics.Metrics

	Journal journal.Store
	Trail   audit.Store
	Savings savings.Store
	Runs    runstore.Store

	Profile  *config.Profile
	Actuator actuation.Actuator

	closers []io.Closer
}

type Options struct {
	ConfigPath string
	// Actuator overrides the profile's actuator.
	Actuator actuation.Actuator
	Clock    func() time.Time
}

// New builds the engine from configuration and replays the offense journal into the ledger.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg, ConfigPath: opts.ConfigPath, Docket: rico.NewDocket(), Metrics: metrics.New()}
	if err := a.build(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, opts Options) error {
	cfg := a.Config
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	thresholds, err := cfg.LedgerThresholds()
	if err != nil {
		return err
	}
	if a.Ledger, err = ledger.New(thresholds); err != nil {
		return err
	}

	table, err := cfg.RateTable()
	if err != nil {
		return err
	}
	if a.Rates, err = roi.NewRateBook(table); err != nil {
		return err
	}

	aggSettings, err := cfg.AggregationSettings()
	if err != nil {
		return err
	}
	aggregator, err := rico.NewAggregator(aggSettings)
	if err != nil {
		return err
	}

	if err := a.openStores(ctx); err != nil {
		return err
	}

	a.Actuator = opts.Actuator
	if a.Actuator == nil {
		if a.Actuator, err = a.buildActuator(ctx); err != nil {
			return err
		}
	}
	executor, err := remediation.NewExecutor(a.Actuator, cfg.RemediationSettings())
	if err != nil {
		return err
	}

	a.Auditor = auditor.New(a.Trail, a.Savings, a.Ledger, clock)
	a.Intake = intake.NewService(a.Ledger, a.Journal, a.Metrics)
	a.Detector = detector.New(cfg.Detector)

	if a.Journal != nil {
		if _, err := cycle.Restore(ctx, a.Ledger, a.Journal, a.Trail, clock()); err != nil {
			return fmt.Errorf("failed to restore ledger: %w", err)
		}
		if _, err := cycle.ReserveCaseIDs(ctx, a.Docket, a.Trail); err != nil {
			return fmt.Errorf("failed to reserve case ids: %w", err)
		}
	}

	a.Cycles, err = cycle.NewController(cycle.Dependencies{
		Ledger:     a.Ledger,
		Docket:     a.Docket,
		Aggregator: aggregator,
		Quantifier: roi.NewQuantifier(a.Rates),
		Executor:   executor,
		Auditor:    a.Auditor,
		Runs:       a.Runs,
		Intake:     a.Intake,
		Metrics:    a.Metrics,
		Clock:      clock,
	})
	if err != nil {
		return err
	}
	a.Scheduler = workflow.NewController(a.Cycles)
	return nil
}

func (a *App) openStores(ctx context.Context) error {
	var (
		db  *sql.DB
		err error
	)
	switch a.Config.Store.Driver {
	case "memory":
		a.Trail = audit.NewMemoryStore()
		a.Savings = savings.NewMemoryStore()
		return nil
	case "sqlite":
		db, err = sqlite.NewDB(ctx, sqlite.Settings{DbPath: a.Config.Store.Path})
	default:
		db, err = duckdb.NewDB(duckdb.Settings{DbPath: a.Config.Store.Path})
	}
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", a.Config.Store.Driver, err)
	}
	a.closers = append(a.closers, db)

	if a.Journal, err = journal.NewStore(db); err != nil {
		return err
	}
	if a.Trail, err = audit.NewStore(db); err != nil {
		return err
	}
	if a.Savings, err = savings.NewStore(db); err != nil {
		return err
	}
	if a.Runs, err = runstore.NewStore(db); err != nil {
		return err
	}
	return nil
}

func (a *App) buildActuator(ctx context.Context) (actuation.Actuator, error) {
	profile, err := a.loadProfile(ctx)
	if err != nil {
		return nil, err
	}
	a.Profile = profile

	var act actuation.Actuator
	switch profile.Actuator {
	case "noop":
		act = actuation.NewRecorder()
	default:
		f, err := os.OpenFile(profile.ScriptPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open remediation script: %w", err)
		}
		a.closers = append(a.closers, f)
		act = actuation.NewScriptActuator(f)
	}
	if profile.RatePerSecond > 0 {
		act = actuation.Throttle(act, profile.RatePerSecond, profile.Burst)
	}

	zerolog.Ctx(ctx).Info().
		Str("profile", profile.Name).
		Str("actuator", profile.Actuator).
		Float64("rate_per_second", profile.RatePerSecond).
		Msg("actuation profile loaded")
	return act, nil
}

// loadProfile falls back to the default profile when no profiles file exists.
func (a *App) loadProfile(ctx context.Context) (*config.Profile, error) {
	path := a.Config.Remediation.ProfilesPath
	if path == "" {
		path = config.DefaultProfilesPath()
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		zerolog.Ctx(ctx).Debug().Str("path", path).Msg("no profiles file, using default profile")
		return config.DefaultProfile(), nil
	}

	registry, err := config.NewRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read profiles: %v", domain.ErrConfiguration, err)
	}
	profile, err := registry.GetProfile(ctx, a.Config.Remediation.Profile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	return profile, nil
}

// ReloadRates re-reads the rate table from the config file and swaps it in.
func (a *App) ReloadRates(ctx context.Context) (roi.RateTable, error) {
	if a.ConfigPath == "" {
		return roi.RateTable{}, fmt.Errorf("%w: no config file to reload from", domain.ErrConfiguration)
	}
	table, err := config.ReloadRates(a.ConfigPath)
	if err != nil {
		return roi.RateTable{}, err
	}
	if err := a.Rates.Replace(table); err != nil {
		return roi.RateTable{}, err
	}
	zerolog.Ctx(ctx).Info().Str("currency", table.Currency).Msg("rate table reloaded")
	return table, nil
}

// WatchRates keeps the rate table in sync with the config file until ctx is done.
func (a *App) WatchRates(ctx context.Context) error {
	return config.WatchRates(ctx, a.ConfigPath, a.Rates.Replace)
}

// StartScheduler starts the configured periodic cycle, if enabled.
func (a *App) StartScheduler(ctx context.Context) error {
	s := a.Config.Scheduler
	if !s.Enabled {
		return nil
	}
	return a.Scheduler.Init(ctx, []workflow.Schedule{{
		Name:     "default",
		Interval: s.Interval,
		Request:  domain.CycleRequest{Mode: domain.Mode(s.Mode)},
	}})
}

func (a *App) Close() error {
	if a.Scheduler != nil {
		a.Scheduler.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewLogger builds the process logger from the log section.
func NewLogger(cfg config.LogConfig, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
