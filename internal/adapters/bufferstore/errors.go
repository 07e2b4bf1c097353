package bufferstore

import "errors"

// ErrDuplicateRecord is returned when a write would overwrite an existing
// (id, timestamp) pair. The buffer is append-only.
var ErrDuplicateRecord = errors.New("bufferstore: record already exists")
