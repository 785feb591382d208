package config

import (
	"strings"

	logx "recurpay/pkg/logx"
)

// SummarizeConfigChange lists changed sections plus safe log attrs.
// Secrets (tokens, DSNs) are reported only as "*_set" booleans.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	var (
		changed []string
		attrs   []logx.Field
	)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	oldSched, newSched := oldCfg.Scheduler, newCfg.Scheduler
	if oldSched.IsEnabled() != newSched.IsEnabled() || oldSched.SpecOrDefault() != newSched.SpecOrDefault() ||
		strings.TrimSpace(oldSched.Timezone) != strings.TrimSpace(newSched.Timezone) ||
		oldSched.RunLogRetain != newSched.RunLogRetain {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Bool("scheduler.enabled", newSched.IsEnabled()),
			logx.String("scheduler.spec", newSched.SpecOrDefault()),
			logx.String("scheduler.timezone", newSched.Timezone),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		// Storage is opened once; a change only takes effect after restart.
		changed = append(changed, "storage(restart)")
		attrs = append(attrs, logx.String("storage.driver", newCfg.Storage.DriverName()))
	}

	var on, nn NotifierConfig
	if oldCfg.Notifier != nil {
		on = *oldCfg.Notifier
	}
	if newCfg.Notifier != nil {
		nn = *newCfg.Notifier
	}
	if on != nn {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.Bool("notifier.enabled", nn.Enabled),
			logx.Bool("notifier.token_set", nn.ResolveToken() != ""),
		)
	}

	if oldCfg.Admin != newCfg.Admin {
		changed = append(changed, "admin")
		attrs = append(attrs,
			logx.Bool("admin.enabled", newCfg.Admin.Enabled),
			logx.String("admin.addr", newCfg.Admin.ListenAddr()),
			logx.Bool("admin.token_set", newCfg.Admin.ResolveToken() != ""),
		)
	}

	return changed, attrs
}
