package config

import (
	"context"
	"fmt"

	"github.com/de-tools/linkmind/pkg/models/domain"
	"github.com/de-tools/linkmind/pkg/services/roi"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ReloadRates re-reads the rate table from the config file.
func ReloadRates(path string) (roi.RateTable, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return roi.RateTable{}, err
	}
	return cfg.RateTable()
}

// WatchRates watches the config file and hands every valid rate table to apply. Invalid edits
// are logged and leave the current table in place. Other sections are read at startup only.
func WatchRates(ctx context.Context, path string, apply func(roi.RateTable) error) error {
	if path == "" {
		return fmt.Errorf("%w: no config file to watch", domain.ErrConfiguration)
	}
	logger := zerolog.Ctx(ctx).With().Str("config", path).Logger()

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: failed to read config file: %v", domain.ErrConfiguration, err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		if ctx.Err() != nil {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			logger.Error().Err(err).Msg("ignoring invalid config change")
			return
		}
		table, err := cfg.RateTable()
		if err == nil {
			err = apply(table)
		}
		if err != nil {
			logger.Error().Err(err).Msg("rate table not reloaded")
			return
		}
		logger.Info().Str("currency", table.Currency).Int("rates", len(table.Rates)).Msg("rate table reloaded")
	})
	v.WatchConfig()
	return nil
}
