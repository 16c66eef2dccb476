package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/de-tools/linkmind/pkg/models/domain"
	"github.com/de-tools/linkmind/pkg/services/detector"
	"github.com/de-tools/linkmind/pkg/services/ledger"
	"github.com/de-tools/linkmind/pkg/services/remediation"
	"github.com/de-tools/linkmind/pkg/services/rico"
	"github.com/de-tools/linkmind/pkg/services/roi"
	"github.com/spf13/viper"
)

const EnvPrefix = "LINKMIND"

type Config struct {
	Thresholds  ThresholdsConfig  `mapstructure:"thresholds"`
	Rates       RatesConfig       `mapstructure:"rates"`
	Aggregation AggregationConfig `mapstructure:"aggregation"`
	Remediation RemediationConfig `mapstructure:"remediation"`
	Detector    detector.Settings `mapstructure:"detector"`
	Store       StoreConfig       `mapstructure:"store"`
	Server      ServerConfig      `mapstructure:"server"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Log         LogConfig         `mapstructure:"log"`
}

type ThresholdsConfig struct {
	ObservationWindow   time.Duration      `mapstructure:"observation_window"`
	RedemptionPeriod    time.Duration      `mapstructure:"redemption_period"`
	RemediationCooldown time.Duration      `mapstructure:"remediation_cooldown"`
	ConvictionCount     int                `mapstructure:"conviction_count"`
	SeverityCutoff      map[string]float64 `mapstructure:"severity_cutoff"`
}

type RateConfig struct {
	PerUnit float64 `mapstructure:"per_unit"`
	Unit    string  `mapstructure:"unit"`
}

type RatesConfig struct {
	Currency string                `mapstructure:"currency"`
	Table    map[string]RateConfig `mapstructure:"table"`
}

type AggregationConfig struct {
	// Scopes lists grouping levels from the narrowest to the widest: node, site, region.
	Scopes           []string `mapstructure:"scopes"`
	MinDistinctKinds int      `mapstructure:"min_distinct_kinds"`
}

type RemediationConfig struct {
	ActionTimeout time.Duration `mapstructure:"action_timeout"`
	Parallelism   int           `mapstructure:"parallelism"`
	// Profile names the actuation profile in the profiles file.
	Profile      string `mapstructure:"profile"`
	ProfilesPath string `mapstructure:"profiles_path"`
}

type StoreConfig struct {
	// Driver is duckdb, sqlite or memory.
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type SchedulerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	Mode     string        `mapstructure:"mode"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	// Format is json or console.
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("aggregation.scopes", []string{"site", "region"})
	v.SetDefault("aggregation.min_distinct_kinds", 2)

	rs := remediation.DefaultSettings()
	v.SetDefault("remediation.action_timeout", rs.ActionTimeout)
	v.SetDefault("remediation.parallelism", rs.Parallelism)
	v.SetDefault("remediation.profile", "default")

	ds := detector.DefaultSettings()
	v.SetDefault("detector.safety_margin", ds.SafetyMargin)
	v.SetDefault("detector.hoarding_factor", ds.HoardingFactor)
	v.SetDefault("detector.hoarding_floor_mbps", ds.HoardingFloorMbps)
	v.SetDefault("detector.wide_channel_mhz", ds.WideChannelMHz)
	v.SetDefault("detector.narrow_channel_mhz", ds.NarrowChannelMHz)
	v.SetDefault("detector.spectrum_idle_mbps", ds.SpectrumIdleMbps)
	v.SetDefault("detector.zombie_idle_mbps", ds.ZombieIdleMbps)
	v.SetDefault("detector.default_port_power_w", ds.DefaultPortPowerW)

	v.SetDefault("store.driver", "duckdb")
	v.SetDefault("store.path", "linkmind.db")

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.interval", time.Hour)
	v.SetDefault("scheduler.mode", string(domain.ModeDryRun))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
	}
	return v
}

// LoadConfig reads the config file at path, applies LINKMIND_* environment overrides and
// validates the result. Thresholds and the rate table have no defaults and must be configured.
func LoadConfig(path string) (*Config, error) {
	v := newViper(path)
	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: failed to read config file: %v", domain.ErrConfiguration, err)
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", domain.ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section the engine consumes.
func (c *Config) Validate() error {
	if _, err := c.LedgerThresholds(); err != nil {
		return err
	}
	if _, err := c.RateTable(); err != nil {
		return err
	}
	if _, err := c.AggregationSettings(); err != nil {
		return err
	}
	if err := c.RemediationSettings().Validate(); err != nil {
		return err
	}
	switch c.Store.Driver {
	case "duckdb", "sqlite", "memory":
	default:
		return fmt.Errorf("%w: unknown store driver %q", domain.ErrConfiguration, c.Store.Driver)
	}
	if _, err := domain.ParseMode(c.Scheduler.Mode); err != nil {
		return fmt.Errorf("%w: scheduler: %v", domain.ErrConfiguration, err)
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("%w: scheduler interval must be positive", domain.ErrConfiguration)
	}
	return nil
}

func (c *Config) LedgerThresholds() (domain.Thresholds, error) {
	if c.Thresholds.ObservationWindow == 0 && c.Thresholds.RedemptionPeriod == 0 &&
		c.Thresholds.RemediationCooldown == 0 && c.Thresholds.ConvictionCount == 0 {
		return domain.Thresholds{}, fmt.Errorf("%w: thresholds section is required", domain.ErrConfiguration)
	}
	t := domain.Thresholds{
		ObservationWindow:   c.Thresholds.ObservationWindow,
		RedemptionPeriod:    c.Thresholds.RedemptionPeriod,
		RemediationCooldown: c.Thresholds.RemediationCooldown,
		ConvictionCount:     c.Thresholds.ConvictionCount,
	}
	if len(c.Thresholds.SeverityCutoff) > 0 {
		t.SeverityCutoff = make(map[domain.OffenseKind]float64, len(c.Thresholds.SeverityCutoff))
		for name, cutoff := range c.Thresholds.SeverityCutoff {
			kind, err := domain.ParseOffenseKind(name)
			if err != nil {
				return domain.Thresholds{}, fmt.Errorf("%w: severity cutoff: %v", domain.ErrConfiguration, err)
			}
			t.SeverityCutoff[kind] = cutoff
		}
	}
	if err := ledger.ValidateThresholds(t); err != nil {
		return domain.Thresholds{}, err
	}
	return t, nil
}

// RateTable requires a currency and at least one rate. Offense kinds left out of a configured
// table are unpriced.
func (c *Config) RateTable() (roi.RateTable, error) {
	if c.Rates.Currency == "" || len(c.Rates.Table) == 0 {
		return roi.RateTable{}, fmt.Errorf("%w: rates section with a currency and at least one rate is required",
			domain.ErrConfiguration)
	}
	table := roi.RateTable{
		Currency: c.Rates.Currency,
		Rates:    make(map[domain.OffenseKind]roi.Rate, len(c.Rates.Table)),
	}
	for name, r := range c.Rates.Table {
		kind, err := domain.ParseOffenseKind(name)
		if err != nil {
			return roi.RateTable{}, fmt.Errorf("%w: rates: %v", domain.ErrConfiguration, err)
		}
		table.Rates[kind] = roi.Rate{PerUnit: r.PerUnit, Unit: r.Unit}
	}
	if err := table.Validate(); err != nil {
		return roi.RateTable{}, err
	}
	return table, nil
}

func (c *Config) AggregationSettings() (rico.Settings, error) {
	s := rico.Settings{MinDistinctKinds: c.Aggregation.MinDistinctKinds}
	for _, name := range c.Aggregation.Scopes {
		level, err := domain.ParseScopeLevel(strings.TrimSpace(name))
		if err != nil {
			return rico.Settings{}, fmt.Errorf("%w: aggregation: %v", domain.ErrConfiguration, err)
		}
		s.Levels = append(s.Levels, level)
	}
	if err := s.Validate(); err != nil {
		return rico.Settings{}, err
	}
	return s, nil
}

func (c *Config) RemediationSettings() remediation.Settings {
	return remediation.Settings{
		ActionTimeout: c.Remediation.ActionTimeout,
		Parallelism:   c.Remediation.Parallelism,
	}
}
