package app

import (
	"time"

	"recurpay/internal/admin"
	"recurpay/internal/config"
	"recurpay/internal/notify"
	"recurpay/internal/scheduler"
	"recurpay/internal/storage"
	logx "recurpay/pkg/logx"
)

func loggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func storageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	busy, err := config.ParseDurationField("storage.busy_timeout", sc.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:       sc.DriverName(),
		Path:         sc.SQLitePath(),
		DSN:          sc.ResolveDSN(),
		BusyTimeout:  busy,
		MaxOpenConns: sc.MaxOpenConns,
	}, nil
}

func schedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		Enabled:      cfg.Scheduler.IsEnabled(),
		Spec:         cfg.Scheduler.SpecOrDefault(),
		Location:     loc,
		RunOnStart:   cfg.Scheduler.RunOnStart,
		RunLogRetain: cfg.Scheduler.RunLogRetain,
	}, nil
}

func notifierConfig(cfg *config.Config) (notify.Config, error) {
	n := cfg.Notifier
	if n == nil {
		return notify.Config{}, nil
	}
	retryBase, err := config.ParseDurationField("notifier.retry_base", n.RetryBase)
	if err != nil {
		return notify.Config{}, err
	}
	retryMax, err := config.ParseDurationField("notifier.retry_max_delay", n.RetryMaxDelay)
	if err != nil {
		return notify.Config{}, err
	}
	dedup, err := config.ParseDurationOrDefault("notifier.dedup_window", n.DedupWindow, 10*time.Minute)
	if err != nil {
		return notify.Config{}, err
	}
	return notify.Config{
		Enabled:         n.Enabled,
		Workers:         n.Workers,
		QueueSize:       n.QueueSize,
		RatePerSec:      n.RatePerSec,
		RetryMax:        n.RetryMax,
		RetryBase:       retryBase,
		RetryMaxDelay:   retryMax,
		DedupWindow:     dedup,
		DedupMaxEntries: n.DedupMaxEntries,
		PersistDedup:    n.PersistDedup,
	}, nil
}

// telegramTarget is what the alert sender is built from.
type telegramTarget struct {
	token    string
	chatID   int64
	threadID int
}

func notifierTarget(cfg *config.Config) telegramTarget {
	n := cfg.Notifier
	if n == nil || !n.Enabled {
		return telegramTarget{}
	}
	return telegramTarget{token: n.ResolveToken(), chatID: n.ChatID, threadID: n.ThreadID}
}

func newSender(t telegramTarget) (notify.Sender, error) {
	if t.token == "" {
		return nil, nil
	}
	return notify.NewTelegramSender(t.token, t.chatID, t.threadID)
}

func adminConfig(cfg *config.Config) (admin.Config, error) {
	a := cfg.Admin
	rt, err := config.ParseDurationOrDefault("admin.read_timeout", a.ReadTimeout, 10*time.Second)
	if err != nil {
		return admin.Config{}, err
	}
	wt, err := config.ParseDurationOrDefault("admin.write_timeout", a.WriteTimeout, 60*time.Second)
	if err != nil {
		return admin.Config{}, err
	}
	return admin.Config{
		Enabled:      a.Enabled,
		Addr:         a.ListenAddr(),
		Token:        a.ResolveToken(),
		Pprof:        a.Pprof,
		ReadTimeout:  rt,
		WriteTimeout: wt,
	}, nil
}
