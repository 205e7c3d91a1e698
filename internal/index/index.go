package index

import "github.com/starford/ansuz/internal/models"

// Store defines the index operations the rest of Ansuz depends on.
// Consumers should depend on this interface rather than the concrete *DB
// type to facilitate testing with fakes.
type Store interface {
	Upsert(e Entry, body string) error
	Remove(path string) error
	AllSignals() (map[string]models.Signal, error)
	Search(q Query) ([]Hit, int, error)
	ListTags() ([]TagCount, error)
	ListByTag(tag string, limit, offset int) ([]Hit, int, error)
	Commit() error
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
