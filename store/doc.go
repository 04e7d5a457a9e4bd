// Package store is the PostgreSQL backing for games and accounts: a pgx pool,
// the embedded golang-migrate schema, and repositories implementing
// session.Persistence and auth.UserRepository.
package store
