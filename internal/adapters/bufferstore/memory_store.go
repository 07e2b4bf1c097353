package bufferstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/ghalamif/FactoryBatch/internal/domain"
	"github.com/ghalamif/FactoryBatch/internal/ports"
)

// MemoryStore keeps records in process memory. Scan order is insertion order.
type MemoryStore struct {
	mu      sync.RWMutex
	records []domain.BufferRecord
	keys    map[recordKey]struct{}
}

type recordKey struct{ id, ts string }

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[recordKey]struct{})}
}

func (m *MemoryStore) Put(ctx context.Context, rec *domain.BufferRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	k := recordKey{rec.ID, rec.Timestamp}
	if _, ok := m.keys[k]; ok {
		return fmt.Errorf("%w: id=%s timestamp=%s", ErrDuplicateRecord, rec.ID, rec.Timestamp)
	}
	m.keys[k] = struct{}{}
	m.records = append(m.records, *rec)
	return nil
}

func (m *MemoryStore) Scan(ctx context.Context, fn func(rec *domain.BufferRecord) error) error {
	m.mu.RLock()
	snapshot := make([]domain.BufferRecord, len(m.records))
	copy(snapshot, m.records)
	m.mu.RUnlock()

	for i := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(&snapshot[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

var _ ports.BufferStore = (*MemoryStore)(nil)
