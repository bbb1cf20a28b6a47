package delivery

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/lumenlearn/lumen-api/internal/store"
)

// Store persists delivery status records. The tracker owns all state
// transitions; implementations are storage only.
type Store interface {
	// Create persists a new record. Fails with store.ErrDuplicate when a
	// record for the job already exists.
	Create(ctx context.Context, ds *DeliveryStatus) error

	// Update overwrites the record for ds.JobID.
	Update(ctx context.Context, ds *DeliveryStatus) error

	// GetByJobID retrieves the record for a job.
	GetByJobID(ctx context.Context, jobID uuid.UUID) (*DeliveryStatus, error)

	// GetByMessageID retrieves the record correlated to a provider-assigned
	// message id.
	GetByMessageID(ctx context.Context, externalMessageID string) (*DeliveryStatus, error)
}

// MemoryStore is a mutex-guarded in-memory Store for tests and local
// development.
type MemoryStore struct {
	mu        sync.Mutex
	byJob     map[uuid.UUID]*DeliveryStatus
	byMessage map[string]uuid.UUID
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory delivery store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byJob:     make(map[uuid.UUID]*DeliveryStatus),
		byMessage: make(map[string]uuid.UUID),
	}
}

func cloneStatus(ds *DeliveryStatus) *DeliveryStatus {
	c := *ds
	if ds.LastAttemptAt != nil {
		t := *ds.LastAttemptAt
		c.LastAttemptAt = &t
	}
	if ds.DeliveredAt != nil {
		t := *ds.DeliveredAt
		c.DeliveredAt = &t
	}
	if ds.BouncedAt != nil {
		t := *ds.BouncedAt
		c.BouncedAt = &t
	}
	if ds.ComplainedAt != nil {
		t := *ds.ComplainedAt
		c.ComplainedAt = &t
	}
	return &c
}

// Create persists a new delivery record.
func (s *MemoryStore) Create(_ context.Context, ds *DeliveryStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byJob[ds.JobID]; exists {
		return store.ErrDuplicate
	}

	s.byJob[ds.JobID] = cloneStatus(ds)
	if ds.ExternalMessageID != "" {
		s.byMessage[ds.ExternalMessageID] = ds.JobID
	}
	return nil
}

// Update overwrites the record for ds.JobID.
func (s *MemoryStore) Update(_ context.Context, ds *DeliveryStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, exists := s.byJob[ds.JobID]
	if !exists {
		return store.ErrDeliveryNotFound
	}

	if old.ExternalMessageID != "" && old.ExternalMessageID != ds.ExternalMessageID {
		delete(s.byMessage, old.ExternalMessageID)
	}
	s.byJob[ds.JobID] = cloneStatus(ds)
	if ds.ExternalMessageID != "" {
		s.byMessage[ds.ExternalMessageID] = ds.JobID
	}
	return nil
}

// GetByJobID retrieves the record for a job.
func (s *MemoryStore) GetByJobID(_ context.Context, jobID uuid.UUID) (*DeliveryStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds, ok := s.byJob[jobID]
	if !ok {
		return nil, store.ErrDeliveryNotFound
	}
	return cloneStatus(ds), nil
}

// GetByMessageID retrieves the record correlated to a message id.
func (s *MemoryStore) GetByMessageID(_ context.Context, externalMessageID string) (*DeliveryStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobID, ok := s.byMessage[externalMessageID]
	if !ok {
		return nil, store.ErrDeliveryNotFound
	}
	return cloneStatus(s.byJob[jobID]), nil
}
