package jobs

import (
	"time"

	"github.com/lumenlearn/lumen-api/internal/queue"
)

// Queue names. Each queue carries one family of job types with its own
// concurrency bound and retry defaults.
const (
	QueueCertificates = "certificates"
	QueueEmails       = "emails"
	QueueVideos       = "videos"
	QueueAnalytics    = "analytics"
)

// Job type discriminators. Unknown types are rejected at enqueue time.
const (
	TypeGenerateCertificate = "generate_certificate"
	TypeSendEmail           = "send_email"
	TypeSendBulkEmail       = "send_bulk_email"
	TypeTranscodeVideo      = "transcode_video"
	TypeAggregateAnalytics  = "aggregate_analytics"
)

// Job priorities, lower value wins.
const (
	PriorityUrgent = 1
	PriorityHigh   = 3
	PriorityNormal = 5
	PriorityLow    = 10
)

// QueueConfigs returns the queue definitions the engine runs with.
// Certificates and emails tolerate more attempts because their failures
// are mostly transient provider errors; analytics is low priority and
// single-threaded so daily windows never aggregate concurrently within
// one instance.
func QueueConfigs() []queue.QueueConfig {
	return []queue.QueueConfig{
		{
			Name:               QueueCertificates,
			Concurrency:        2,
			DefaultPriority:    PriorityHigh,
			DefaultMaxAttempts: 3,
			DefaultBackoff: queue.BackoffPolicy{
				Type:      queue.BackoffExponential,
				BaseDelay: 5 * time.Second,
				MaxDelay:  5 * time.Minute,
			},
		},
		{
			Name:               QueueEmails,
			Concurrency:        5,
			DefaultPriority:    PriorityNormal,
			DefaultMaxAttempts: 5,
			DefaultBackoff: queue.BackoffPolicy{
				Type:      queue.BackoffExponential,
				BaseDelay: 10 * time.Second,
				MaxDelay:  10 * time.Minute,
			},
		},
		{
			Name:               QueueVideos,
			Concurrency:        2,
			DefaultPriority:    PriorityNormal,
			DefaultMaxAttempts: 3,
			DefaultBackoff: queue.BackoffPolicy{
				Type:      queue.BackoffExponential,
				BaseDelay: 30 * time.Second,
				MaxDelay:  15 * time.Minute,
			},
		},
		{
			Name:               QueueAnalytics,
			Concurrency:        1,
			DefaultPriority:    PriorityLow,
			DefaultMaxAttempts: 3,
			DefaultBackoff: queue.BackoffPolicy{
				Type:      queue.BackoffExponential,
				BaseDelay: time.Minute,
				MaxDelay:  30 * time.Minute,
			},
		},
	}
}

// RegisterAll wires every handler into the registry under its type
// discriminator.
func RegisterAll(
	r *queue.Registry,
	certificates *CertificateHandler,
	emails *EmailHandler,
	bulkEmails *BulkEmailHandler,
	videos *VideoHandler,
	analytics *AnalyticsHandler,
) {
	queue.RegisterHandler(r, TypeGenerateCertificate, certificates.Handle)
	queue.RegisterHandler(r, TypeSendEmail, emails.Handle)
	queue.RegisterHandler(r, TypeSendBulkEmail, bulkEmails.Handle)
	queue.RegisterHandler(r, TypeTranscodeVideo, videos.Handle)
	queue.RegisterHandler(r, TypeAggregateAnalytics, analytics.Handle)
}
