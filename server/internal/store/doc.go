// Package store persists session summaries.
//
// Payloads are kept byte for byte as submitted; validation happens when the
// dashboard is built, so a bad client can never block a save. Two backends
// implement Store:
//
//   - Memory: RWMutex-guarded slice with optional retention eviction (Run).
//     Used for development and tests.
//   - Postgres: database/sql over the pgx stdlib driver. The schema is
//     embedded and applied with goose on Open.
package store
