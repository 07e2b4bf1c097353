package ports

import "context"

// Catalog is the schema-discovery collaborator that scans exported files.
type Catalog interface {
	Refresh(ctx context.Context) error
	Name() string
}
