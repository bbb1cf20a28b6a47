package dashboard

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/lumenlearn/lumen-api/internal/events"
)

// alertRing is a bounded, newest-first alert buffer. When full, the oldest
// alert is dropped.
type alertRing struct {
	mu     sync.Mutex
	alerts []Alert
	max    int
}

func newAlertRing(max int) *alertRing {
	if max <= 0 {
		max = 1
	}
	return &alertRing{max: max}
}

func (r *alertRing) add(alert Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.alerts = append(r.alerts, alert)
	if len(r.alerts) > r.max {
		r.alerts = r.alerts[len(r.alerts)-r.max:]
	}
}

// list returns the alerts newest first.
func (r *alertRing) list() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Alert, len(r.alerts))
	for i, a := range r.alerts {
		out[len(r.alerts)-1-i] = a
	}
	return out
}

var _ events.EventHandler = (*Aggregator)(nil)

// HandleEvent feeds job lifecycle events into the alert ring. Terminal
// failures are errors; stalls are warnings; routine completions and
// retries produce no alert. Registered with the engine's event emitter at
// startup.
func (a *Aggregator) HandleEvent(_ context.Context, event *events.JobEvent) error {
	switch event.Type {
	case events.JobEventFailed:
		a.alerts.add(Alert{
			ID:        uuid.New(),
			Severity:  SeverityError,
			QueueName: event.QueueName,
			Message:   fmt.Sprintf("job %s (%s) failed permanently: %s", event.JobID, event.JobType, event.Error),
			Timestamp: event.OccurredAt,
		})
	case events.JobEventStalled:
		a.alerts.add(Alert{
			ID:        uuid.New(),
			Severity:  SeverityWarning,
			QueueName: event.QueueName,
			Message:   fmt.Sprintf("job %s (%s) stalled and was requeued", event.JobID, event.JobType),
			Timestamp: event.OccurredAt,
		})
	case events.JobEventCancelled:
		a.alerts.add(Alert{
			ID:        uuid.New(),
			Severity:  SeverityWarning,
			QueueName: event.QueueName,
			Message:   fmt.Sprintf("job %s (%s) was cancelled", event.JobID, event.JobType),
			Timestamp: event.OccurredAt,
		})
	}
	return nil
}
