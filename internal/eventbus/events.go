package eventbus

import "time"

const (
	RecurringApplied   = "recurring.applied"
	RecurringSkipped   = "recurring.skipped"
	RecurringFailed    = "recurring.failed"
	SchedulerTick      = "scheduler.tick"
	SchedulerTickFail  = "scheduler.tick_failed"
	ConfigReloaded     = "config.reloaded"
	NotifySent         = "notify.sent"
	NotifyDropped      = "notify.dropped"
	NotifyDeliveryFail = "notify.failed"
)

// ItemEvent describes the outcome of processing one definition.
type ItemEvent struct {
	DefinitionID string    `json:"definition_id"`
	Outcome      string    `json:"outcome"`
	Reason       string    `json:"reason,omitempty"`
	OccurrenceID string    `json:"occurrence_id,omitempty"`
	Amount       string    `json:"amount,omitempty"`
	At           time.Time `json:"at"`
	Error        string    `json:"error,omitempty"`
}

// TickEvent summarizes one scheduler tick.
type TickEvent struct {
	Trigger  string        `json:"trigger"`
	Due      int           `json:"due"`
	Applied  int           `json:"applied"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// NotificationEvent reports what happened to an alert.
type NotificationEvent struct {
	Key   string    `json:"key"`
	At    time.Time `json:"at"`
	Error string    `json:"error,omitempty"`
}
