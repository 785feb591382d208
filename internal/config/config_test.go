package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDecodeFormats(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		path string
		data string
	}{
		{
			name: "json",
			path: "c.json",
			data: `{"scheduler":{"spec":"@every 30s","timezone":"UTC"},"storage":{"driver":"sqlite","path":"x.db"}}`,
		},
		{
			name: "yaml",
			path: "c.yaml",
			data: "scheduler:\n  spec: \"@every 30s\"\n  timezone: UTC\nstorage:\n  driver: sqlite\n  path: x.db\n",
		},
		{
			name: "toml",
			path: "c.toml",
			data: "[scheduler]\nspec = \"@every 30s\"\ntimezone = \"UTC\"\n\n[storage]\ndriver = \"sqlite\"\npath = \"x.db\"\n",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := Decode(tt.path, []byte(tt.data))
			if err != nil {
				t.Fatalf("Decode error: %v", err)
			}
			if cfg.Scheduler.Spec != "@every 30s" || cfg.Scheduler.Timezone != "UTC" {
				t.Fatalf("scheduler = %+v", cfg.Scheduler)
			}
			if cfg.Storage.SQLitePath() != "x.db" {
				t.Fatalf("storage path = %q", cfg.Storage.SQLitePath())
			}
		})
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct{ path, data string }{
		{"c.json", `{"schedular":{}}`},
		{"c.yaml", "storage:\n  drvier: sqlite\n"},
		{"c.toml", "[admin]\nenabeld = true\n"},
	} {
		if _, err := Decode(tc.path, []byte(tc.data)); err == nil {
			t.Fatalf("Decode(%s) expected unknown field error", tc.path)
		}
	}
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	t.Parallel()
	_, err := Decode("c.json", []byte(`{} {}`))
	if err == nil || !strings.Contains(err.Error(), "trailing") {
		t.Fatalf("expected trailing data error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	ok := &Config{Storage: StorageConfig{Driver: "sqlite"}}
	if err := Validate(ok); err != nil {
		t.Fatalf("Validate(ok) = %v", err)
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{name: "level", cfg: Config{Logging: LoggingConfig{Level: "loud"}}, want: "logging.level"},
		{name: "timezone", cfg: Config{Scheduler: SchedulerConfig{Timezone: "Mars/Olympus"}}, want: "scheduler.timezone"},
		{name: "driver", cfg: Config{Storage: StorageConfig{Driver: "mysql"}}, want: "storage.driver"},
		{name: "postgres dsn", cfg: Config{Storage: StorageConfig{Driver: "postgres"}}, want: "storage.dsn"},
		{name: "notifier token", cfg: Config{Notifier: &NotifierConfig{Enabled: true, ChatID: 1}}, want: "notifier.token"},
		{name: "notifier duration", cfg: Config{Notifier: &NotifierConfig{Enabled: true, Token: "t", ChatID: 1, RetryBase: "soon"}}, want: "notifier.retry_base"},
		{name: "admin public", cfg: Config{Admin: AdminConfig{Enabled: true, Addr: "0.0.0.0:8089"}}, want: "admin.token"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(&tt.cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestStorageDSNFromEnv(t *testing.T) {
	t.Setenv("RECURPAY_TEST_DSN", "postgres://u:p@db/recurpay")
	c := StorageConfig{Driver: "pg", DSN: "ignored", DSNEnv: "RECURPAY_TEST_DSN"}
	if c.DriverName() != "postgres" {
		t.Fatalf("DriverName = %q", c.DriverName())
	}
	if got := c.ResolveDSN(); got != "postgres://u:p@db/recurpay" {
		t.Fatalf("ResolveDSN = %q", got)
	}
}

func TestSchedulerDefaults(t *testing.T) {
	t.Parallel()
	var c SchedulerConfig
	if !c.IsEnabled() {
		t.Fatal("scheduler should default to enabled")
	}
	if c.SpecOrDefault() != DefaultSchedulerSpec {
		t.Fatalf("SpecOrDefault = %q", c.SpecOrDefault())
	}
	loc, err := c.Location()
	if err != nil || loc != time.Local {
		t.Fatalf("Location = %v, %v", loc, err)
	}
}

func TestSummarizeConfigChangeHidesSecrets(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{}
	newCfg := &Config{Admin: AdminConfig{Enabled: true, Token: "s3cret"}}
	changed, _ := SummarizeConfigChange(oldCfg, newCfg)
	if len(changed) != 1 || changed[0] != "admin" {
		t.Fatalf("changed = %v", changed)
	}
}

func TestWatchPublishesValidatedReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recurpay.yaml")
	if err := os.WriteFile(path, []byte("scheduler:\n  spec: \"@every 1m\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewConfigManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	m.SetValidator(func(_ context.Context, cfg *Config) error { return Validate(cfg) })
	ch := m.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Watch(ctx) }()

	// Give the watcher a moment to register before writing.
	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(path, []byte("scheduler:\n  spec: \"@every 5m\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-ch:
		if cfg.Scheduler.Spec != "@every 5m" {
			t.Fatalf("published spec = %q", cfg.Scheduler.Spec)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
	if got := m.Get().Scheduler.Spec; got != "@every 5m" {
		t.Fatalf("Get().Scheduler.Spec = %q", got)
	}
}

func TestWatchBackoffBounds(t *testing.T) {
	b := newBackoff(100*time.Millisecond, 400*time.Millisecond)
	for i, base := range []time.Duration{100, 200, 400, 400} {
		base *= time.Millisecond
		got := b.next()
		if got < base || got > base+base/2 {
			t.Fatalf("step %d: wait %v outside [%v, %v]", i, got, base, base+base/2)
		}
	}
	b.reset()
	if got := b.next(); got > 150*time.Millisecond {
		t.Fatalf("after reset: wait %v, want <= 150ms", got)
	}
}
