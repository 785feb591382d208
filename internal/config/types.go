package config

// Config is the root of recurpay's config file (json, yaml or toml).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Storage   StorageConfig   `json:"storage"`

	// Notifier is optional. If omitted, alerts are disabled.
	Notifier *NotifierConfig `json:"notifier,omitempty"`
	Admin    AdminConfig     `json:"admin"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SchedulerConfig controls the tick trigger.
//
// Spec accepts:
//   - cron expressions ("*/5 * * * *", "@hourly", "@every 1m")
//   - Go durations ("30s", "5m") meaning a fixed interval
//   - "HH:MM" meaning an interval of hours and minutes
//
// Defaults (when fields are omitted/zero):
//   - enabled: true
//   - spec: "@every 1m"
//   - timezone: "Local"
type SchedulerConfig struct {
	Enabled *bool  `json:"enabled,omitempty"`
	Spec    string `json:"spec,omitempty"`

	// Timezone is an IANA name ("Europe/Moscow") used for cron evaluation and
	// for the calendar arithmetic of recurrence rules.
	Timezone string `json:"timezone,omitempty"`

	// RunOnStart runs one tick right after startup instead of waiting for the trigger.
	RunOnStart bool `json:"run_on_start,omitempty"`

	// RunLogRetain keeps at most this many rows in the run log (0 = keep all).
	RunLogRetain int `json:"run_log_retain,omitempty"`
}

// IsEnabled reports the effective enabled flag (default true).
func (c SchedulerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// StorageConfig selects the database backing definitions, occurrences and accounts.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./recurpay.db" }
//	"storage": { "driver": "postgres", "dsn_env": "RECURPAY_DSN" }
type StorageConfig struct {
	Driver string `json:"driver"`

	// Path is the sqlite database file.
	Path string `json:"path,omitempty"`

	// DSN is the postgres connection string. DSNEnv names an environment
	// variable holding it instead (takes precedence when set and non-empty).
	DSN    string `json:"dsn,omitempty"`
	DSNEnv string `json:"dsn_env,omitempty"`

	BusyTimeout  string `json:"busy_timeout,omitempty"` // sqlite
	MaxOpenConns int    `json:"max_open_conns,omitempty"`
}

// NotifierConfig controls failure alerts sent to a Telegram chat.
type NotifierConfig struct {
	Enabled bool `json:"enabled"`

	Token    string `json:"token,omitempty"`
	TokenEnv string `json:"token_env,omitempty"`
	ChatID   int64  `json:"chat_id"`
	ThreadID int    `json:"thread_id,omitempty"`

	Workers         int    `json:"workers,omitempty"`
	QueueSize       int    `json:"queue_size,omitempty"`
	RatePerSec      int    `json:"rate_per_sec,omitempty"`
	RetryMax        int    `json:"retry_max,omitempty"`
	RetryBase       string `json:"retry_base,omitempty"`
	RetryMaxDelay   string `json:"retry_max_delay,omitempty"`
	DedupWindow     string `json:"dedup_window,omitempty"`
	DedupMaxEntries int    `json:"dedup_max_entries,omitempty"`

	// PersistDedup stores suppression windows in the database so they survive restarts.
	PersistDedup bool `json:"persist_dedup,omitempty"`
}

// AdminConfig controls the operator HTTP API.
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:8089").
//   - Token is a bearer token (do not log). Non-loopback binds require it.
type AdminConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr,omitempty"`
	Token    string `json:"token,omitempty"`
	TokenEnv string `json:"token_env,omitempty"`

	// Pprof mounts /debug/pprof/ on the admin server.
	Pprof bool `json:"pprof,omitempty"`

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
}
