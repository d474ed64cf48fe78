package config

import (
	"errors"
	"fmt"
	"strings"

	"pishocker/internal/pishock"
	"pishocker/internal/trigger"
)

// Validate checks a parsed config (defaults already applied).
// Every problem is reported, joined into one error.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if strings.TrimSpace(cfg.Discord.Token) == "" {
		add("discord.token is required")
	}
	if id := strings.TrimSpace(cfg.Discord.OwnerUserID); id != "" {
		if err := trigger.ValidateWatchList(id); err != nil || strings.Contains(id, ",") {
			add("discord.owner_user_id: %s isn't a valid user id", id)
		}
	}

	if cfg.Logging.Discord.Enabled && strings.TrimSpace(cfg.Logging.Discord.ChannelID) == "" {
		add("logging.discord.channel_id is required when logging.discord.enabled is true")
	}

	if cfg.TaskEngine.Workers < 0 {
		add("task_engine.workers must be >= 0")
	}
	if cfg.TaskEngine.HistorySize < 0 {
		add("task_engine.history_size must be >= 0")
	}
	if _, err := ParseDurationField("task_engine.default_timeout", cfg.TaskEngine.DefaultTimeout); err != nil {
		errs = append(errs, err)
	}

	t := cfg.Trigger
	if err := trigger.ValidateWatchList(t.Users); err != nil {
		errs = append(errs, err)
	}
	for id := range t.Nicknames {
		if err := trigger.ValidateWatchList(id); err != nil {
			add("trigger.nicknames: %w", err)
		}
	}
	if _, err := pishock.ParseOp(t.Mode); err != nil {
		add("trigger.mode: %w", err)
	}
	checkRange := func(name string, v, lo, hi int) {
		if v < lo || v > hi {
			add("%s must be between %d and %d (got %d)", name, lo, hi, v)
		}
	}
	checkRange("trigger.intensity", t.IntensityValue(), 1, 100)
	checkRange("trigger.duration", t.DurationValue(), 1, 100)
	checkRange("trigger.min_warning", t.MinWarningValue(), 1, 60)
	checkRange("trigger.max_warning", t.MaxWarningValue(), 1, 60)

	p := cfg.PiShock
	method, err := pishock.ParseMethod(p.Method)
	if err != nil {
		add("pishock.method: %w", err)
	}
	// Credentials only matter once the trigger can fire.
	switch {
	case !t.IsEnabled():
	case method == pishock.MethodIDKey:
		if strings.TrimSpace(p.ID) == "" {
			add("pishock.id is required for %s", method)
		}
	case method == pishock.MethodAPIShareCode:
		if strings.TrimSpace(p.APIKey) == "" {
			add("pishock.api_key is required for %s", method)
		}
		if strings.TrimSpace(p.ShareCode) == "" {
			add("pishock.share_code is required for %s", method)
		}
		if strings.TrimSpace(p.Username) == "" {
			add("pishock.username is required for %s", method)
		}
	}
	if _, err := ParseDurationField("pishock.timeout", p.Timeout); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
