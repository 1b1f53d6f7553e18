package simengine

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ognjhunt/blueprintxr/internal/domain"
)

// Descriptor is what the engine keeps on the device for a persisted anchor.
type Descriptor struct {
	ID          uuid.UUID   `json:"id"`
	Pose        domain.Pose `json:"pose"`
	PersistedAt time.Time   `json:"persisted_at"`
}

// DescriptorStore holds device-local persisted anchor descriptors.
// Load and Delete return domain.ErrPersistedAnchorNotFound for unknown ids.
type DescriptorStore interface {
	Save(d Descriptor) error
	Load(id uuid.UUID) (Descriptor, error)
	List() ([]uuid.UUID, error)
	Delete(id uuid.UUID) error
}

type memoryDescriptors struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]Descriptor
}

// NewMemoryDescriptors returns a DescriptorStore that forgets everything on restart.
func NewMemoryDescriptors() DescriptorStore {
	return &memoryDescriptors{entries: make(map[uuid.UUID]Descriptor)}
}

func (m *memoryDescriptors) Save(d Descriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[d.ID] = d
	return nil
}

func (m *memoryDescriptors) Load(id uuid.UUID) (Descriptor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.entries[id]
	if !ok {
		return Descriptor{}, domain.ErrPersistedAnchorNotFound
	}
	return d, nil
}

func (m *memoryDescriptors) List() ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return slices.Compare(a[:], b[:]) })
	return ids, nil
}

func (m *memoryDescriptors) Delete(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return domain.ErrPersistedAnchorNotFound
	}
	delete(m.entries, id)
	return nil
}
