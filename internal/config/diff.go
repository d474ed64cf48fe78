package config

import (
	"reflect"
	"sort"
	"strings"

	logx "pishocker/pkg/logx"
)

// SummarizeConfigChange returns a sorted list of changed sections and safe
// structured attrs for logging. Secrets (tokens, keys, share codes) are never
// included; only whether they are set or changed.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 16)

	od, nd := oldCfg.Discord, newCfg.Discord
	if od.Token != nd.Token || od.OwnerUserID != nd.OwnerUserID || od.FocusChannelID != nd.FocusChannelID {
		changed = append(changed, "discord")
		attrs = append(attrs,
			logx.Bool("discord.token_changed", od.Token != nd.Token),
			logx.Bool("discord.owner_set", strings.TrimSpace(nd.OwnerUserID) != ""),
			logx.String("discord.focus_channel_id", nd.FocusChannelID),
		)
	}

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.discord_enabled", newCfg.Logging.Discord.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.TaskEngine, newCfg.TaskEngine) {
		changed = append(changed, "task_engine")
		attrs = append(attrs,
			logx.Bool("task_engine.enabled", newCfg.TaskEngine.IsEnabled()),
			logx.Int("task_engine.workers", newCfg.TaskEngine.Workers),
			logx.String("task_engine.default_timeout", strings.TrimSpace(newCfg.TaskEngine.DefaultTimeout)),
		)
	}

	if !reflect.DeepEqual(oldCfg.Trigger, newCfg.Trigger) {
		t := newCfg.Trigger
		changed = append(changed, "trigger")
		attrs = append(attrs,
			logx.Bool("trigger.enabled", t.IsEnabled()),
			logx.String("trigger.users", t.Users),
			logx.Int("trigger.nickname_count", len(t.Nicknames)),
			logx.String("trigger.mode", t.Mode),
			logx.Int("trigger.intensity", t.IntensityValue()),
			logx.Int("trigger.duration", t.DurationValue()),
			logx.Bool("trigger.warning", t.WarningOn()),
		)
	}

	op, np := oldCfg.PiShock, newCfg.PiShock
	if !reflect.DeepEqual(op, np) {
		changed = append(changed, "pishock")
		attrs = append(attrs,
			logx.String("pishock.method", np.Method),
			logx.Bool("pishock.credentials_changed", op.ID != np.ID || op.Key != np.Key || op.APIKey != np.APIKey || op.ShareCode != np.ShareCode || op.Username != np.Username),
			logx.String("pishock.cors_proxy", np.Proxy()),
			logx.String("pishock.timeout", strings.TrimSpace(np.Timeout)),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}
