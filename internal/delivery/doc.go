// Package delivery tracks the end-to-end outcome of dispatched messages
// (emails, certificate sends) past the job's own lifecycle. A job can
// complete at the queue level while its message later bounces; the tracker
// merges the internal job outcome stream with asynchronous provider
// webhooks using the provider-assigned message id as the correlation key.
package delivery
