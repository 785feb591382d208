package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	logx "recurpay/pkg/logx"
)

const (
	DefaultSchedulerSpec = "@every 1m"
	DefaultAdminAddr     = "127.0.0.1:8089"
	DefaultSQLitePath    = "./recurpay.db"
)

// Validate checks the parts of cfg that can be checked without other packages.
// Scheduler specs are checked by the scheduler package.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error

	if !logx.ValidLevel(cfg.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}

	if _, err := cfg.Scheduler.Location(); err != nil {
		errs = append(errs, err)
	}
	if cfg.Scheduler.RunLogRetain < 0 {
		errs = append(errs, errors.New("scheduler.run_log_retain: must be >= 0"))
	}

	switch cfg.Storage.DriverName() {
	case "sqlite":
	case "postgres":
		if cfg.Storage.ResolveDSN() == "" {
			errs = append(errs, errors.New("storage.dsn: required for postgres (or set storage.dsn_env)"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unsupported %q (want sqlite or postgres)", cfg.Storage.Driver))
	}
	if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
		errs = append(errs, err)
	}

	if n := cfg.Notifier; n != nil && n.Enabled {
		if n.ResolveToken() == "" {
			errs = append(errs, errors.New("notifier.token: required when notifier.enabled"))
		}
		if n.ChatID == 0 {
			errs = append(errs, errors.New("notifier.chat_id: required when notifier.enabled"))
		}
		for path, raw := range map[string]string{
			"notifier.retry_base":      n.RetryBase,
			"notifier.retry_max_delay": n.RetryMaxDelay,
			"notifier.dedup_window":    n.DedupWindow,
		} {
			if _, err := ParseDurationField(path, raw); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if cfg.Admin.Enabled {
		addr := cfg.Admin.ListenAddr()
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			errs = append(errs, fmt.Errorf("admin.addr: %w", err))
		} else if !isLoopback(host) && cfg.Admin.ResolveToken() == "" {
			errs = append(errs, fmt.Errorf("admin.token: required when binding to non-loopback %q", addr))
		}
		if _, err := ParseDurationField("admin.read_timeout", cfg.Admin.ReadTimeout); err != nil {
			errs = append(errs, err)
		}
		if _, err := ParseDurationField("admin.write_timeout", cfg.Admin.WriteTimeout); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Location resolves Timezone; empty means time.Local.
func (c SchedulerConfig) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("scheduler.timezone: %w", err)
	}
	return loc, nil
}

// SpecOrDefault returns the trigger spec, falling back to DefaultSchedulerSpec.
func (c SchedulerConfig) SpecOrDefault() string {
	if s := strings.TrimSpace(c.Spec); s != "" {
		return s
	}
	return DefaultSchedulerSpec
}

// DriverName normalizes Driver; empty means sqlite.
func (c StorageConfig) DriverName() string {
	switch d := strings.ToLower(strings.TrimSpace(c.Driver)); d {
	case "", "sqlite", "sqlite3":
		return "sqlite"
	case "postgres", "postgresql", "pg":
		return "postgres"
	default:
		return d
	}
}

func (c StorageConfig) ResolveDSN() string {
	if env := strings.TrimSpace(c.DSNEnv); env != "" {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}
	return strings.TrimSpace(c.DSN)
}

func (c StorageConfig) SQLitePath() string {
	if p := strings.TrimSpace(c.Path); p != "" {
		return p
	}
	return DefaultSQLitePath
}

func (c NotifierConfig) ResolveToken() string {
	return resolveSecret(c.Token, c.TokenEnv)
}

func (c AdminConfig) ResolveToken() string {
	return resolveSecret(c.Token, c.TokenEnv)
}

func (c AdminConfig) ListenAddr() string {
	if a := strings.TrimSpace(c.Addr); a != "" {
		return a
	}
	return DefaultAdminAddr
}

func resolveSecret(literal, env string) string {
	if env = strings.TrimSpace(env); env != "" {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}
	return strings.TrimSpace(literal)
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
