package config

// Config is the on-disk configuration (YAML or JSON).
//
// Secrets (discord.token, pishock.key, pishock.api_key, pishock.share_code) may be
// written as ${ENV_VAR} references; they are expanded after .env is loaded.
type Config struct {
	Discord    DiscordConfig    `json:"discord"`
	Logging    LoggingConfig    `json:"logging"`
	TaskEngine TaskEngineConfig `json:"task_engine"`
	Trigger    TriggerConfig    `json:"trigger"`
	PiShock    PiShockConfig    `json:"pishock"`
}

type DiscordConfig struct {
	Token string `json:"token"`
	// OwnerUserID is the account whose messages mark a channel as "being read".
	OwnerUserID string `json:"owner_user_id,omitempty"`
	// FocusChannelID pins the focused channel. Takes precedence over owner tracking.
	FocusChannelID string `json:"focus_channel_id,omitempty"`
}

type LoggingConfig struct {
	Level   string         `json:"level"`
	Console bool           `json:"console"`
	File    LoggingFile    `json:"file"`
	Discord LoggingDiscord `json:"discord"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingDiscord struct {
	Enabled    bool   `json:"enabled"`
	ChannelID  string `json:"channel_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// TaskEngineConfig controls the dispatch executor.
//
// Defaults (when fields are omitted/zero):
//   - enabled: true
//   - workers: 8
//   - default_timeout: "0s" (disabled)
//   - history_size: 200
type TaskEngineConfig struct {
	Enabled *bool `json:"enabled,omitempty"`
	Workers int   `json:"workers,omitempty"`

	// DefaultTimeout is a Go duration string (e.g. "10s", "1m").
	DefaultTimeout string `json:"default_timeout,omitempty"`

	HistorySize int `json:"history_size,omitempty"`
}

// TriggerConfig holds the watch-list and the operation sent on a match.
type TriggerConfig struct {
	Enabled *bool `json:"enabled,omitempty"`

	// Users is a comma-separated list of user ids.
	Users string `json:"users"`
	// Nicknames overrides display names by user id.
	Nicknames map[string]string `json:"nicknames,omitempty"`

	// Mode is Shock, Vibration or Beep (letter codes s, v, b are accepted too).
	// Numbers are pointers so an explicit 0 reaches validation instead of the default.
	Mode      string `json:"mode,omitempty"`
	Intensity *int   `json:"intensity,omitempty"`
	Duration  *int   `json:"duration,omitempty"`

	Warning    *bool `json:"warning,omitempty"`
	MinWarning *int  `json:"min_warning,omitempty"`
	MaxWarning *int  `json:"max_warning,omitempty"`
}

// PiShockConfig selects the authentication method and its credentials.
type PiShockConfig struct {
	// Method is ID_KEY or API_SHARECODE.
	Method string `json:"method,omitempty"`

	ID  string `json:"id,omitempty"`
	Key string `json:"key,omitempty"`

	APIKey    string `json:"api_key,omitempty"`
	ShareCode string `json:"share_code,omitempty"`
	Username  string `json:"username,omitempty"`

	// CORSProxy is prefixed to the share-code endpoint. Set "" to call it directly.
	CORSProxy *string `json:"cors_proxy,omitempty"`
	// Timeout is a Go duration string applied to each HTTP request. "0s" keeps the client default.
	Timeout string `json:"timeout,omitempty"`
}

const (
	MethodIDKey        = "ID_KEY"
	MethodAPIShareCode = "API_SHARECODE"

	DefaultCORSProxy = "https://corsproxy.io/?url="

	DefaultMode       = "Shock"
	DefaultIntensity  = 1
	DefaultDuration   = 1
	DefaultMinWarning = 2
	DefaultMaxWarning = 5
	DefaultKey        = "none"
)

func (c TaskEngineConfig) IsEnabled() bool { return c.Enabled == nil || *c.Enabled }
func (c TriggerConfig) IsEnabled() bool    { return c.Enabled == nil || *c.Enabled }
func (c TriggerConfig) WarningOn() bool    { return c.Warning == nil || *c.Warning }

func (c TriggerConfig) IntensityValue() int  { return intOr(c.Intensity, DefaultIntensity) }
func (c TriggerConfig) DurationValue() int   { return intOr(c.Duration, DefaultDuration) }
func (c TriggerConfig) MinWarningValue() int { return intOr(c.MinWarning, DefaultMinWarning) }
func (c TriggerConfig) MaxWarningValue() int { return intOr(c.MaxWarning, DefaultMaxWarning) }

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func intPtr(v int) *int { return &v }

// Proxy returns the effective CORS relay prefix.
func (c PiShockConfig) Proxy() string {
	if c.CORSProxy == nil {
		return DefaultCORSProxy
	}
	return *c.CORSProxy
}

// ApplyDefaults fills omitted fields with their documented defaults.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	t := &cfg.Trigger
	if t.Mode == "" {
		t.Mode = DefaultMode
	}
	if t.Intensity == nil {
		t.Intensity = intPtr(DefaultIntensity)
	}
	if t.Duration == nil {
		t.Duration = intPtr(DefaultDuration)
	}
	if t.MinWarning == nil {
		t.MinWarning = intPtr(DefaultMinWarning)
	}
	if t.MaxWarning == nil {
		t.MaxWarning = intPtr(DefaultMaxWarning)
	}

	p := &cfg.PiShock
	if p.Method == "" {
		p.Method = MethodAPIShareCode
	}
	if p.Key == "" {
		p.Key = DefaultKey
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Discord.MinLevel == "" {
		cfg.Logging.Discord.MinLevel = "warn"
	}
	if cfg.Logging.Discord.RatePerSec <= 0 {
		cfg.Logging.Discord.RatePerSec = 1
	}
}
