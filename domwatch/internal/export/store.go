package export

import (
	"context"

	"github.com/hazyhaar/cvwatch/domwatch/mutation"
	"github.com/hazyhaar/cvwatch/store"
)

// Store saves artifacts as crawl instances, with their events, in the
// collection named by the options.
type Store struct {
	store *store.Store
	opts  store.ImportOptions
}

// NewStore returns an exporter into s.
func NewStore(s *store.Store, opts store.ImportOptions) *Store {
	return &Store{store: s, opts: opts}
}

func (e *Store) Export(ctx context.Context, name string, a mutation.Artifact) error {
	_, _, err := e.store.SaveArtifact(ctx, name, "", a, e.opts)
	return err
}
