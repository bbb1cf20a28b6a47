// Package postgres provides PostgreSQL-specific implementations for the data
// storage interfaces (repositories) defined in the internal/store package,
// as well as the job engine's persistence contract from internal/queue.
// It handles the details of query execution and data mapping between domain
// entities and database records.
package postgres
