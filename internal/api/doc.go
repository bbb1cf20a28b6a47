// Package api contains the HTTP interface of the job subsystem: enqueue
// and job status endpoints, delivery provider webhooks, the dashboard
// query surface and queue management actions. Handlers translate between
// HTTP and the internal packages; they hold no business logic of their own.
package api
