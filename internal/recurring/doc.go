// Package recurring materializes due recurring payments into occurrences and
// account balance changes, and manages the lifecycle of their definitions.
//
// The database transaction is the only synchronization primitive: every due
// definition is processed in its own transaction, re-read inside it, and its
// schedule is advanced with a compare-and-set on the next occurrence instant.
// Two overlapping ticks therefore produce at most one occurrence per due
// instant.
//
// Storage is reached through the Store and Tx ports; internal/storage
// implements them over database/sql.
package recurring
