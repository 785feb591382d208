package notify

import (
	"context"
	"time"
)

// Config controls the pipeline. Zero fields get defaults in Apply.
type Config struct {
	Enabled         bool
	Workers         int
	QueueSize       int
	RatePerSec      int
	RetryMax        int
	RetryBase       time.Duration
	RetryMaxDelay   time.Duration
	DedupWindow     time.Duration
	DedupMaxEntries int
	PersistDedup    bool
}

type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityCritical
)

func (s Severity) prefix() string {
	switch s {
	case SeverityCritical:
		return "🚨 "
	case SeverityWarn:
		return "⚠️ "
	default:
		return ""
	}
}

// Message is one alert. Messages with the same Key are deduplicated; an
// empty Key dedups on the text itself.
type Message struct {
	Key      string
	Severity Severity
	Text     string
}

// Sender delivers rendered text. TelegramSender is the production one.
type Sender interface {
	Send(ctx context.Context, text string) error
}

type SenderFunc func(ctx context.Context, text string) error

func (f SenderFunc) Send(ctx context.Context, text string) error { return f(ctx, text) }

// DedupStore persists suppression windows. storage.DB implements it.
type DedupStore interface {
	GetDedup(ctx context.Context, key string) (time.Time, bool, error)
	PutDedup(ctx context.Context, key string, until time.Time) error
}

// HistoryItem is a delivered alert, kept in memory for the admin API.
type HistoryItem struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
}
