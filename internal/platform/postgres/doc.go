// Package postgres provides PostgreSQL implementations of the task and
// notification stores defined in internal/store, plus the embedded goose
// migrations for the schema. Queries go through database/sql with the pgx
// stdlib driver; pgconn error codes are mapped to store errors.
package postgres
