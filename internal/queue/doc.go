// Package queue implements the asynchronous job engine: the job lifecycle
// state machine, the persistence contract for job records, per-queue worker
// pools with bounded concurrency, retry with exponential backoff, and
// heartbeat-based stall detection. The Manager type is the single entry
// point the rest of the application wires against.
package queue
