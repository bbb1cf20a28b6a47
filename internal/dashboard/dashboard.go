package dashboard

import (
	"time"

	"github.com/google/uuid"

	"github.com/lumenlearn/lumen-api/internal/queue"
)

// Health classifies a queue's operational condition.
type Health string

// Possible health classifications
const (
	HealthHealthy Health = "healthy"
	HealthWarning Health = "warning"
	HealthError   Health = "error"
)

// AlertSeverity grades an alert.
type AlertSeverity string

// Possible alert severities
const (
	SeverityWarning AlertSeverity = "warning"
	SeverityError   AlertSeverity = "error"
)

// QueueHealth is one queue's statistics with its health classification.
type QueueHealth struct {
	queue.QueueStats
	Health Health `json:"health"`
}

// Alert is one entry in the recent-alerts feed.
type Alert struct {
	ID        uuid.UUID     `json:"id"`
	Severity  AlertSeverity `json:"severity"`
	QueueName string        `json:"queue_name"`
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
}

// Overview is the system-wide summary.
type Overview struct {
	TotalQueues   int `json:"total_queues"`
	HealthyQueues int `json:"healthy_queues"`

	// OverallHealthScore is healthy queues over total queues, 1.0 when no
	// queues are registered.
	OverallHealthScore float64 `json:"overall_health_score"`

	// TotalDepth is waiting plus active across all queues.
	TotalDepth int `json:"total_depth"`

	GeneratedAt time.Time `json:"generated_at"`
}

// Snapshot is one full dashboard view.
type Snapshot struct {
	Overview Overview      `json:"overview"`
	Queues   []QueueHealth `json:"queues"`
	Alerts   []Alert       `json:"alerts"`
}
