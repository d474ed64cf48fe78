package app

import (
	"context"
	"fmt"
	"strings"

	"pishocker/internal/config"
	"pishocker/internal/pishock"
	"pishocker/internal/task/engine"
	"pishocker/internal/trigger"
	logx "pishocker/pkg/logx"
)

// validateConfig is installed on the config manager. It runs the field checks and
// then the full mapping, so a config that passes can always be applied.
func validateConfig(_ context.Context, cfg *config.Config) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if _, err := buildSettings(cfg); err != nil {
		return err
	}
	if _, err := mapTaskEngineConfig(cfg); err != nil {
		return err
	}
	_, err := buildClient(cfg)
	return err
}

// buildSettings turns the trigger and pishock sections into an immutable snapshot.
func buildSettings(cfg *config.Config) (trigger.Settings, error) {
	if cfg == nil {
		return trigger.Settings{}, fmt.Errorf("config is nil")
	}
	t := cfg.Trigger

	kind, err := pishock.ParseOp(t.Mode)
	if err != nil {
		return trigger.Settings{}, fmt.Errorf("trigger.mode: %w", err)
	}
	auth, err := mapAuth(cfg.PiShock)
	if err != nil {
		return trigger.Settings{}, err
	}

	var nicks map[string]string
	if len(t.Nicknames) > 0 {
		nicks = make(map[string]string, len(t.Nicknames))
		for id, n := range t.Nicknames {
			if n = strings.TrimSpace(n); n != "" {
				nicks[strings.TrimSpace(id)] = n
			}
		}
	}

	return trigger.Settings{
		Enabled:   t.IsEnabled(),
		Users:     trigger.ParseWatchList(t.Users),
		Nicknames: nicks,
		Operation: pishock.Operation{
			Kind:      kind,
			Intensity: t.IntensityValue(),
			Duration:  t.DurationValue(),
		},
		Warning: pishock.WarningWindow{
			Active:   t.WarningOn(),
			MinDelay: t.MinWarningValue(),
			MaxDelay: t.MaxWarningValue(),
		},
		Auth: auth,
	}, nil
}

func mapAuth(p config.PiShockConfig) (pishock.AuthMethod, error) {
	method, err := pishock.ParseMethod(p.Method)
	if err != nil {
		return nil, fmt.Errorf("pishock.method: %w", err)
	}
	if method == pishock.MethodIDKey {
		return pishock.IDKey{ID: strings.TrimSpace(p.ID), Key: p.Key}, nil
	}
	return pishock.APIShareCode{
		APIKey:    strings.TrimSpace(p.APIKey),
		ShareCode: strings.TrimSpace(p.ShareCode),
		Username:  strings.TrimSpace(p.Username),
	}, nil
}

// buildClient maps the pishock section to an HTTP client. extra options go last so
// callers can override endpoints.
func buildClient(cfg *config.Config, extra ...pishock.ClientOption) (*pishock.Client, error) {
	timeout, err := config.ParseDurationField("pishock.timeout", cfg.PiShock.Timeout)
	if err != nil {
		return nil, err
	}
	opts := append([]pishock.ClientOption{pishock.WithCORSProxy(cfg.PiShock.Proxy())}, extra...)
	return pishock.NewClient(timeout, opts...), nil
}

func mapTaskEngineConfig(cfg *config.Config) (engine.Config, error) {
	if cfg == nil {
		return engine.Config{}, nil
	}
	te := cfg.TaskEngine
	defTimeout, err := config.ParseDurationField("task_engine.default_timeout", te.DefaultTimeout)
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		Enabled:        te.IsEnabled(),
		Workers:        te.Workers,
		DefaultTimeout: defTimeout,
		HistorySize:    te.HistorySize,
	}, nil
}

func mapLogConfig(cfg *config.Config) logx.Config {
	l := cfg.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
		Discord: logx.DiscordConfig{
			Enabled:    l.Discord.Enabled,
			ChannelID:  strings.TrimSpace(l.Discord.ChannelID),
			MinLevel:   l.Discord.MinLevel,
			RatePerSec: l.Discord.RatePerSec,
		},
	}
}
