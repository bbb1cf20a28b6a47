// Package store defines the persistence contracts for the learning
// entities the job handlers operate on: enrollments, certificates, and
// video assets. Implementations live under internal/platform/postgres;
// the interfaces here keep handler logic independent of the database.
// Job and delivery persistence carry their own contracts in
// internal/queue and internal/delivery.
package store
