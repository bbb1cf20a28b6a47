// Package dashboard computes the operator-facing health view of the job
// engine: per-queue statistics and health classification, a system-wide
// health score, and a bounded feed of recent alerts driven by job
// lifecycle events. It owns no state of its own beyond the alert feed;
// everything else is derived from job store statistics on demand.
package dashboard
