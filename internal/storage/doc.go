// Package storage persists recurring definitions, occurrences, accounts and
// the scheduler run log in SQLite (modernc.org/sqlite) or PostgreSQL (lib/pq).
//
// Schemas live in migrations/<dialect> and are applied with golang-migrate on
// Open. Instants are stored as unix milliseconds, money as exact decimals
// (TEXT on SQLite, NUMERIC on PostgreSQL).
package storage
