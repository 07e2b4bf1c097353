package bufferstore

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/ghalamif/FactoryBatch/internal/domain"
	"github.com/ghalamif/FactoryBatch/internal/ports"
)

const recordHeaderLen = 12

// ErrStoreLocked is returned when another process already has the buffer log
// open.
var ErrStoreLocked = errors.New("bufferstore: buffer log is in use by another process")

// FileStore is a single-node buffer store: an append-only log of framed JSON
// records. It is meant for local runs and edge deployments without a managed
// table. One process at a time owns the log; the owner holds an exclusive
// lock on buffer.log.lock until Close.
type FileStore struct {
	mu         sync.Mutex
	lock       *flock.Flock
	path       string
	file       *os.File
	writer     *bufio.Writer
	seq        uint64
	sizeBytes  int64
	keys       map[recordKey]struct{}
	syncWrites bool
}

// FileStoreStats exposes log metadata.
type FileStoreStats struct {
	Records   uint64
	SizeBytes int64
}

// NewFileStore opens (or creates) buffer.log under dir. When syncWrites is set
// every Put is fsynced before returning.
func NewFileStore(dir string, syncWrites bool) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "buffer.log")

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrStoreLocked, path)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	s := &FileStore{
		lock:       lock,
		path:       path,
		keys:       make(map[recordKey]struct{}),
		file:       f,
		writer:     bufio.NewWriterSize(f, 64<<10),
		syncWrites: syncWrites,
	}
	if err := s.recover(); err != nil {
		_ = f.Close()
		_ = lock.Unlock()
		return nil, err
	}
	return s, nil
}

// recover scans the log, indexing whole frames and cutting off a torn tail
// left by a crash mid-append. The exclusive lock guarantees no other writer
// is mid-append while the tail is inspected.
func (s *FileStore) recover() error {
	stat, err := s.file.Stat()
	if err != nil {
		return err
	}
	if stat.Size() == 0 {
		return nil
	}

	rf, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer rf.Close()

	reader := bufio.NewReader(rf)
	var (
		offset int64
		lastID uint64
	)

	for {
		var hdr [recordHeaderLen]byte
		if _, err := io.ReadFull(reader, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return fmt.Errorf("buffer log scan header: %w", err)
		}
		id := binary.BigEndian.Uint64(hdr[0:8])
		length := binary.BigEndian.Uint32(hdr[8:12])

		body := make([]byte, length)
		if _, err := io.ReadFull(reader, body); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return fmt.Errorf("buffer log scan body: %w", err)
		}
		var rec domain.BufferRecord
		if err := json.Unmarshal(body, &rec); err != nil {
			return fmt.Errorf("corrupt buffer log entry %d: %w", id, err)
		}
		s.keys[recordKey{rec.ID, rec.Timestamp}] = struct{}{}
		offset += recordHeaderLen + int64(length)
		lastID = id
	}

	if offset != stat.Size() {
		if err := s.file.Truncate(offset); err != nil {
			return err
		}
	}
	if _, err := s.file.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	s.sizeBytes = offset
	s.seq = lastID
	return nil
}

func (s *FileStore) Put(ctx context.Context, rec *domain.BufferRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := recordKey{rec.ID, rec.Timestamp}
	if _, ok := s.keys[k]; ok {
		return fmt.Errorf("%w: id=%s timestamp=%s", ErrDuplicateRecord, rec.ID, rec.Timestamp)
	}

	id := s.seq + 1

	// entry format: [8 bytes seq][4 bytes len][len bytes json]
	var hdr [recordHeaderLen]byte
	binary.BigEndian.PutUint64(hdr[0:8], id)
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(b)))

	if _, err := s.writer.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := s.writer.Write(b); err != nil {
		return err
	}
	if err := s.writer.Flush(); err != nil {
		return err
	}
	if s.syncWrites {
		if err := s.file.Sync(); err != nil {
			return err
		}
	}

	s.seq = id
	s.sizeBytes += int64(len(b) + len(hdr))
	s.keys[k] = struct{}{}
	return nil
}

// Scan reads the log from the beginning. The lock is held for the whole scan
// so writers wait until the snapshot is read.
func (s *FileStore) Scan(ctx context.Context, fn func(rec *domain.BufferRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writer.Flush(); err != nil {
		return err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var hdr [recordHeaderLen]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("buffer log truncated header: %w", err)
		}
		l := binary.BigEndian.Uint32(hdr[8:12])

		b := make([]byte, l)
		if _, err := io.ReadFull(r, b); err != nil {
			return fmt.Errorf("corrupt buffer log: %w", err)
		}

		var rec domain.BufferRecord
		if err := json.Unmarshal(b, &rec); err != nil {
			return fmt.Errorf("corrupt buffer log entry %d: %w", binary.BigEndian.Uint64(hdr[0:8]), err)
		}
		if err := fn(&rec); err != nil {
			return err
		}
	}
}

func (s *FileStore) Stats() FileStoreStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return FileStoreStats{Records: s.seq, SizeBytes: s.sizeBytes}
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(s.writer.Flush(), s.file.Close(), s.lock.Unlock())
}

var _ ports.BufferStore = (*FileStore)(nil)
