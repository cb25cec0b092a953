// Package pgstore is a PostgreSQL [goAccess.Store] over database/sql with the
// pgx stdlib driver.
//
// Backup code hashes live in their own table so a one-time use is a single
// DELETE. Failure accounting locks the user row with SELECT ... FOR UPDATE
// and applies [goAccess.ApplyMFAFailure] inside the same transaction, so
// concurrent failures against one user are serialized by Postgres.
package pgstore
