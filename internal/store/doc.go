// Package store persists users and calendar OAuth settings.
//
// Production deployments use Postgres through the pgx database/sql driver.
// The embedded SQLite driver (modernc.org/sqlite) serves local development
// and tests. Queries are written once with "?" placeholders and rebound for
// Postgres.
//
// At most one calendar_settings row per provider is active. Storing a new
// connection deactivates the previous rows in the same transaction, so the
// full connection history is kept.
//
// When an encryption key is configured, access and refresh tokens are sealed
// with AES-256-GCM before they reach the database.
package store
