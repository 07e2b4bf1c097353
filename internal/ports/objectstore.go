package ports

import "context"

// ObjectStore receives exported files. Put must be a single atomic write:
// readers either see the previous object or the complete new one.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Name() string
}
