// Package scheduler triggers processing ticks.
//
// A tick lists the definitions due at the tick's instant and hands them to
// the processor one by one. Ticks may overlap (a manual run during a cron run,
// or a slow tick): correctness comes from the processor's per-item
// transaction, not from the scheduler.
package scheduler
