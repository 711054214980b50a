// Package registry resolves stored indexer definitions into live
// adapter instances. Adapters are constructed lazily and cached until
// the definition changes.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/gatherr/gatherr/internal/database"
	"github.com/gatherr/gatherr/internal/indexer"
	"github.com/gatherr/gatherr/internal/indexer/mock"
	"github.com/gatherr/gatherr/internal/indexer/newznab"
	"github.com/gatherr/gatherr/internal/indexer/types"
)

// Factory builds an adapter for one definition.
type Factory func(def *types.IndexerDefinition, logger zerolog.Logger) (indexer.Indexer, error)

// Registry maps stored definitions to adapter instances. The adapter
// implementation is chosen by the "implementation" key in the
// definition's protocol settings, defaulting to newznab.
type Registry struct {
	store     *database.Store
	factories map[string]Factory
	logger    zerolog.Logger

	mu    sync.Mutex
	cache map[int64]indexer.Indexer
}

func New(store *database.Store, logger zerolog.Logger) *Registry {
	r := &Registry{
		store:     store,
		factories: make(map[string]Factory),
		logger:    logger.With().Str("component", "indexer-registry").Logger(),
		cache:     make(map[int64]indexer.Indexer),
	}
	r.RegisterFactory("newznab", func(def *types.IndexerDefinition, logger zerolog.Logger) (indexer.Indexer, error) {
		return newznab.New(def, logger)
	})
	r.RegisterFactory("mock", func(def *types.IndexerDefinition, _ zerolog.Logger) (indexer.Indexer, error) {
		return mock.FromDefinition(def), nil
	})
	return r
}

// RegisterFactory adds or replaces the factory for an implementation
// name.
func (r *Registry) RegisterFactory(name string, factory Factory) {
	r.factories[name] = factory
}

// GetClient returns the adapter for a configured indexer, building it
// on first use.
func (r *Registry) GetClient(ctx context.Context, id int64) (indexer.Indexer, error) {
	r.mu.Lock()
	if client, ok := r.cache[id]; ok {
		r.mu.Unlock()
		return client, nil
	}
	r.mu.Unlock()

	def, err := r.store.GetIndexer(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load indexer %d: %w", id, err)
	}

	client, err := r.build(def)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[id] = client
	r.mu.Unlock()
	return client, nil
}

// ActiveIndexers returns adapters for every definition with automatic
// search enabled. Definitions that fail to build are skipped with a
// warning rather than failing the whole sweep.
func (r *Registry) ActiveIndexers(ctx context.Context) ([]indexer.Indexer, error) {
	defs, err := r.store.ListIndexers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexers: %w", err)
	}

	clients := make([]indexer.Indexer, 0, len(defs))
	for _, def := range defs {
		if !def.AutomaticEnabled {
			continue
		}
		client, err := r.GetClient(ctx, def.ID)
		if err != nil {
			r.logger.Warn().Err(err).Int64("indexerId", def.ID).Str("name", def.Name).
				Msg("Skipping indexer that failed to build")
			continue
		}
		clients = append(clients, client)
	}
	return clients, nil
}

// Invalidate drops the cached adapter for a definition, forcing a
// rebuild on next use. Call after updating or deleting the definition.
func (r *Registry) Invalidate(id int64) {
	r.mu.Lock()
	delete(r.cache, id)
	r.mu.Unlock()
}

func (r *Registry) build(def *types.IndexerDefinition) (indexer.Indexer, error) {
	impl := implementationName(def)
	factory, ok := r.factories[impl]
	if !ok {
		return nil, fmt.Errorf("indexer %q uses unknown implementation %q", def.Name, impl)
	}
	client, err := factory(def, r.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build indexer %q: %w", def.Name, err)
	}
	return client, nil
}

func implementationName(def *types.IndexerDefinition) string {
	if len(def.ProtocolSettings) > 0 {
		var settings struct {
			Implementation string `json:"implementation"`
		}
		if err := json.Unmarshal(def.ProtocolSettings, &settings); err == nil && settings.Implementation != "" {
			return settings.Implementation
		}
	}
	return "newznab"
}
