package config

// Config is the root configuration for crexbot.
//
// Files may be JSON or YAML; YAML is coerced to JSON and both are decoded
// strictly (unknown fields rejected) so typos surface at load time.
// All durations are Go duration strings (e.g. "1s", "50s", "2m").
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Source    SourceConfig    `json:"source"`
	Engine    EngineConfig    `json:"engine"`
	Broadcast BroadcastConfig `json:"broadcast"`
	Discovery DiscoveryConfig `json:"discovery,omitempty"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// GroupLog is an optional chat ID (as string) receiving warning-level logs.
	GroupLog string `json:"group_log,omitempty"`
	// PollTimeout is the long-poll timeout, e.g. "10s".
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// SourceConfig points the scraper at the upstream cricket site.
type SourceConfig struct {
	BaseURL   string `json:"base_url,omitempty"`   // default: "https://crex.com"
	UserAgent string `json:"user_agent,omitempty"` // default: "Mozilla/5.0"
	Timeout   string `json:"timeout,omitempty"`    // HTTP timeout, default "10s"
}

// EngineConfig tunes the incremental update engine.
//
// Defaults (when fields are omitted/zero):
//   - poll_interval: "1s"
//   - odds_cooldown: "50s"
//   - resend_limit: 0 (unlimited full resend after an upstream reset)
type EngineConfig struct {
	PollInterval string `json:"poll_interval,omitempty"`
	OddsCooldown string `json:"odds_cooldown,omitempty"`
	ResendLimit  int    `json:"resend_limit,omitempty"`
}

// BroadcastConfig lists the destinations every update is fanned out to.
// Channels are chat IDs ("-100123...") or @usernames ("@my_channel").
type BroadcastConfig struct {
	Channels   []string `json:"channels"`
	RatePerSec int      `json:"rate_per_sec,omitempty"`
	// RetryMax is the number of re-attempts per destination after a failed
	// send. 0 means the built-in default.
	RetryMax int `json:"retry_max,omitempty"`
}

// DiscoveryConfig controls the optional live-match digest side job.
type DiscoveryConfig struct {
	Enabled bool `json:"enabled"`
	// Schedule is a cron spec (robfig/cron, 5-field or @every form).
	Schedule string `json:"schedule,omitempty"`
	// AuditRetention bounds stored audit entries, e.g. "720h". Empty disables pruning.
	AuditRetention string `json:"audit_retention,omitempty"`
}

// StorageConfig controls the optional audit persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./crexbot_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}
