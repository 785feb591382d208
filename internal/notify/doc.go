// Package notify delivers operator alerts (failed items, failed ticks) to a
// Telegram chat.
//
// Alerts go through an async pipeline: a bounded queue drained by a small
// worker pool, a token-bucket rate limit, retries with jittered exponential
// backoff, and a dedup window so a definition failing on every tick does not
// flood the chat. Dedup windows can be persisted to survive restarts.
package notify
