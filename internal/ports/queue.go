package ports

import "github.com/ghalamif/FactoryBatch/internal/domain"

type EventQueue interface {
	Enqueue(ev *domain.Event) bool
	DequeueBatch(max int) []*domain.Event
	Len() int
}
