// Package kb orchestrates per-knowledge-base ingestion: each source is
// registered in the store, fetched through its adapter, and uploaded or
// incrementally updated.
package kb

import (
	"context"
	"fmt"

	"github.com/bioindex/kbsync/internal/model"
)

// Source fetches and parses one external knowledge base. Implementations
// expand and deduplicate their statements before returning, so the
// manager receives single-evidence, self-deduplicated batches.
type Source interface {
	// ShortName is the registration key in the store.
	ShortName() string
	// FullName is the human-readable knowledge base name.
	FullName() string
	// SourceAPI identifies the reader/processor that produced the content.
	SourceAPI() string
	// Statements fetches the current full upstream statement set.
	Statements(ctx context.Context) ([]*model.Statement, error)
}

// Registry holds the configured sources in registration order. Sources
// are registered explicitly at startup; lookup is by short name.
type Registry struct {
	ordered []Source
	byName  map[string]Source
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Source)}
}

// Register adds a source; registering the same short name twice is a
// configuration error.
func (r *Registry) Register(src Source) error {
	name := src.ShortName()
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("source %q registered twice", name)
	}
	r.byName[name] = src
	r.ordered = append(r.ordered, src)
	return nil
}

// Get looks up a source by short name
func (r *Registry) Get(name string) (Source, bool) {
	src, ok := r.byName[name]
	return src, ok
}

// All returns every source in registration order
func (r *Registry) All() []Source {
	out := make([]Source, len(r.ordered))
	copy(out, r.ordered)
	return out
}
