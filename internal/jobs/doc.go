// Package jobs holds the domain job handlers: certificate generation,
// single and bulk email dispatch, video transcoding kickoff, and scheduled
// analytics aggregation. Handlers are pure orchestration over injected
// collaborators (entity stores, external providers, the delivery tracker)
// and are idempotent on retry: each re-checks whether its target artifact
// already exists before doing expensive work.
package jobs
