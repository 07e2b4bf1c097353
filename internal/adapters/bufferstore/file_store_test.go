package bufferstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ghalamif/FactoryBatch/internal/domain"
)

func TestFileStorePutScanAndReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewFileStore(dir, false)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if err := s.Put(ctx, sampleRecord("id-1", "2024-01-01T10:15:00Z")); err != nil {
		t.Fatalf("put record 1: %v", err)
	}
	if err := s.Put(ctx, sampleRecord("id-2", "2024-01-01T10:16:00Z")); err != nil {
		t.Fatalf("put record 2: %v", err)
	}

	var scanned []string
	if err := s.Scan(ctx, func(rec *domain.BufferRecord) error {
		scanned = append(scanned, rec.ID)
		if got := domain.FormatDecimal(rec.Message.Temperature.Decimal); got != "72.34" {
			t.Fatalf("expected temperature 72.34, got %s", got)
		}
		return nil
	}); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(scanned) != 2 || scanned[0] != "id-1" || scanned[1] != "id-2" {
		t.Fatalf("unexpected scan order: %v", scanned)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	// Reopen and ensure the record count survives.
	s2, err := NewFileStore(dir, true)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}

	stats := s2.Stats()
	if stats.Records != 2 {
		t.Fatalf("expected 2 records after reopen, got %d", stats.Records)
	}
	sizeBefore := stats.SizeBytes

	if err := s2.Close(); err != nil {
		t.Fatalf("close store2: %v", err)
	}

	// A torn tail from a crash mid-append is cut off on open.
	path := filepath.Join(dir, "buffer.log")
	if err := appendGarbage(path); err != nil {
		t.Fatalf("append garbage: %v", err)
	}

	s3, err := NewFileStore(dir, false)
	if err != nil {
		t.Fatalf("reopen after garbage: %v", err)
	}
	defer s3.Close()

	if got := s3.Stats().SizeBytes; got != sizeBefore {
		t.Fatalf("expected torn tail to be truncated to %d bytes, got %d", sizeBefore, got)
	}
	if err := s3.Put(ctx, sampleRecord("id-3", "2024-01-01T10:17:00Z")); err != nil {
		t.Fatalf("put after recovery: %v", err)
	}

	count := 0
	if err := s3.Scan(ctx, func(*domain.BufferRecord) error { count++; return nil }); err != nil {
		t.Fatalf("scan after recovery: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 records after recovery, got %d", count)
	}
}

func TestFileStoreRespectsCancelledContext(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), false)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Put(ctx, sampleRecord("id-1", "2024-01-01T10:15:00Z")); err == nil {
		t.Fatalf("expected put to fail on cancelled context")
	}
}

func TestFileStoreRejectsDuplicatesAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewFileStore(dir, false)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := s.Put(ctx, sampleRecord("id-1", "2024-01-01T10:15:00Z")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(ctx, sampleRecord("id-1", "2024-01-01T10:15:00Z")); !errors.Is(err, ErrDuplicateRecord) {
		t.Fatalf("expected ErrDuplicateRecord, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := NewFileStore(dir, false)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if err := s2.Put(ctx, sampleRecord("id-1", "2024-01-01T10:15:00Z")); !errors.Is(err, ErrDuplicateRecord) {
		t.Fatalf("expected ErrDuplicateRecord after reopen, got %v", err)
	}
	if err := s2.Put(ctx, sampleRecord("id-1", "2024-01-01T10:16:00Z")); err != nil {
		t.Fatalf("same id with another timestamp is a new record: %v", err)
	}
	if got := s2.Stats().Records; got != 2 {
		t.Fatalf("expected 2 records, got %d", got)
	}
}

func TestFileStoreHasSingleOwner(t *testing.T) {
	dir := t.TempDir()

	s, err := NewFileStore(dir, false)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := NewFileStore(dir, false); !errors.Is(err, ErrStoreLocked) {
		t.Fatalf("expected ErrStoreLocked while the log is open, got %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	s2, err := NewFileStore(dir, false)
	if err != nil {
		t.Fatalf("reopen after close: %v", err)
	}
	_ = s2.Close()
}

func appendGarbage(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write([]byte{0xFF, 0xAA})
	return err
}
