package ports

import (
	"context"

	"github.com/ghalamif/FactoryBatch/internal/domain"
)

// BufferStore is the append-only keyed store shared by every ingestion and
// extraction invocation. Records are never updated or deleted through it.
// (id, timestamp) is unique: Put of an existing pair leaves the stored record
// untouched and returns an error wrapping bufferstore.ErrDuplicateRecord.
type BufferStore interface {
	Put(ctx context.Context, rec *domain.BufferRecord) error
	Scan(ctx context.Context, fn func(rec *domain.BufferRecord) error) error
}

// RangeScanner is implemented by stores that can narrow a read to a time
// window natively. Implementations must yield every record inside w and may
// yield records outside it; callers always filter again.
type RangeScanner interface {
	ScanRange(ctx context.Context, w domain.TimeWindow, fn func(rec *domain.BufferRecord) error) error
}
