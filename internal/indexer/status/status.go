// Package status tracks per-indexer health: consecutive failures,
// exponential backoff windows, and the enabled/priority overrides
// that the search pipeline consults before dispatching.
package status

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gatherr/gatherr/internal/database"
	"github.com/gatherr/gatherr/internal/indexer"
)

// DefaultPriority is assigned to indexers without an explicit override.
const DefaultPriority = 25

// Store persists status rows. *database.Store satisfies this.
type Store interface {
	GetIndexerStatus(ctx context.Context, indexerID int64) (*database.IndexerStatusRecord, error)
	UpsertIndexerStatus(ctx context.Context, rec *database.IndexerStatusRecord) error
}

// BackoffConfig controls when and how long failing indexers are benched.
type BackoffConfig struct {
	// FailureThreshold is the number of consecutive failures before
	// backoff starts.
	FailureThreshold int
	// InitialBackoff is the first backoff window.
	InitialBackoff time.Duration
	// BackoffMultiplier grows the window on each further failure.
	BackoffMultiplier float64
	// MaxBackoff caps the window.
	MaxBackoff time.Duration
}

// DefaultBackoffConfig returns the standard backoff schedule:
// three strikes, then 5m doubling up to 3h.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		FailureThreshold:  3,
		InitialBackoff:    5 * time.Minute,
		BackoffMultiplier: 2.0,
		MaxBackoff:        3 * time.Hour,
	}
}

// Service mediates all reads and writes of indexer health state.
type Service struct {
	store       Store
	config      BackoffConfig
	logger      zerolog.Logger
	broadcaster indexer.Broadcaster

	now func() time.Time

	// Serializes read-modify-write cycles per indexer.
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewService creates a status service over the given store.
func NewService(store Store, config BackoffConfig, logger zerolog.Logger) *Service {
	return &Service{
		store:       store,
		config:      config,
		logger:      logger.With().Str("component", "indexer-status").Logger(),
		broadcaster: indexer.NopBroadcaster{},
		now:         time.Now,
		locks:       make(map[int64]*sync.Mutex),
	}
}

// SetClock overrides the time source. For tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetBroadcaster sets the event broadcaster notified on health
// transitions. Optional.
func (s *Service) SetBroadcaster(b indexer.Broadcaster) {
	if b != nil {
		s.broadcaster = b
	}
}

func (s *Service) lockFor(indexerID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[indexerID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[indexerID] = l
	}
	return l
}

// GetStatus returns the status row for an indexer, creating a default
// enabled row on first access.
func (s *Service) GetStatus(ctx context.Context, indexerID int64) (*database.IndexerStatusRecord, error) {
	rec, err := s.store.GetIndexerStatus(ctx, indexerID)
	if errors.Is(err, database.ErrNotFound) {
		rec = &database.IndexerStatusRecord{
			IndexerID: indexerID,
			IsEnabled: true,
			Priority:  DefaultPriority,
		}
		if err := s.store.UpsertIndexerStatus(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to initialize indexer status: %w", err)
		}
		return rec, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// CanUse reports whether an indexer is enabled and outside any backoff
// window.
func (s *Service) CanUse(ctx context.Context, indexerID int64) (bool, error) {
	rec, err := s.GetStatus(ctx, indexerID)
	if err != nil {
		return false, err
	}
	if !rec.IsEnabled {
		return false, nil
	}
	if rec.BackoffUntil != nil && s.now().Before(*rec.BackoffUntil) {
		return false, nil
	}
	return true, nil
}

// RecordSuccess clears failure state and stamps the last success time.
func (s *Service) RecordSuccess(ctx context.Context, indexerID int64) error {
	l := s.lockFor(indexerID)
	l.Lock()
	defer l.Unlock()

	rec, err := s.GetStatus(ctx, indexerID)
	if err != nil {
		return err
	}

	recovered := rec.ConsecutiveFailures > 0 || rec.BackoffUntil != nil

	now := s.now()
	rec.ConsecutiveFailures = 0
	rec.BackoffUntil = nil
	rec.LastSuccessAt = &now

	if err := s.store.UpsertIndexerStatus(ctx, rec); err != nil {
		return err
	}

	if recovered {
		s.broadcaster.Broadcast(indexer.EventIndexerStatus, indexer.IndexerStatusPayload{
			IndexerID: indexerID,
			Status:    "healthy",
			Message:   "recovered after failures",
		})
	}
	return nil
}

// RecordFailure increments the failure counter and, once the threshold
// is reached, schedules an exponentially growing backoff window.
func (s *Service) RecordFailure(ctx context.Context, indexerID int64, cause error) error {
	l := s.lockFor(indexerID)
	l.Lock()
	defer l.Unlock()

	rec, err := s.GetStatus(ctx, indexerID)
	if err != nil {
		return err
	}

	now := s.now()
	rec.ConsecutiveFailures++
	rec.LastFailureAt = &now

	var backedOff bool
	if rec.ConsecutiveFailures >= s.config.FailureThreshold {
		backoff := s.backoffFor(rec.ConsecutiveFailures)
		until := now.Add(backoff)
		rec.BackoffUntil = &until
		backedOff = true

		s.logger.Warn().
			Int64("indexer_id", indexerID).
			Int("consecutive_failures", rec.ConsecutiveFailures).
			Dur("backoff", backoff).
			AnErr("cause", cause).
			Msg("Indexer entering backoff")
	}

	if err := s.store.UpsertIndexerStatus(ctx, rec); err != nil {
		return err
	}

	if backedOff {
		s.broadcaster.Broadcast(indexer.EventIndexerStatus, indexer.IndexerStatusPayload{
			IndexerID: indexerID,
			Status:    "warning",
			Message:   fmt.Sprintf("backing off after %d consecutive failures", rec.ConsecutiveFailures),
		})
	}
	return nil
}

// backoffFor computes the window for the given consecutive failure
// count, doubling past the threshold and capping at MaxBackoff.
func (s *Service) backoffFor(failures int) time.Duration {
	backoff := s.config.InitialBackoff
	for i := s.config.FailureThreshold; i < failures; i++ {
		backoff = time.Duration(float64(backoff) * s.config.BackoffMultiplier)
		if backoff >= s.config.MaxBackoff {
			return s.config.MaxBackoff
		}
	}
	if backoff > s.config.MaxBackoff {
		return s.config.MaxBackoff
	}
	return backoff
}

// SetEnabled toggles an indexer on or off.
func (s *Service) SetEnabled(ctx context.Context, indexerID int64, enabled bool) error {
	l := s.lockFor(indexerID)
	l.Lock()
	defer l.Unlock()

	rec, err := s.GetStatus(ctx, indexerID)
	if err != nil {
		return err
	}
	changed := rec.IsEnabled != enabled
	rec.IsEnabled = enabled
	if err := s.store.UpsertIndexerStatus(ctx, rec); err != nil {
		return err
	}

	if changed {
		st := "healthy"
		if !enabled {
			st = "disabled"
		}
		s.broadcaster.Broadcast(indexer.EventIndexerStatus, indexer.IndexerStatusPayload{
			IndexerID: indexerID,
			Status:    st,
		})
	}
	return nil
}

// SetPriority sets the search ordering priority (lower runs first).
func (s *Service) SetPriority(ctx context.Context, indexerID int64, priority int) error {
	l := s.lockFor(indexerID)
	l.Lock()
	defer l.Unlock()

	rec, err := s.GetStatus(ctx, indexerID)
	if err != nil {
		return err
	}
	rec.Priority = priority
	return s.store.UpsertIndexerStatus(ctx, rec)
}

// ClearBackoff manually lifts a backoff window and resets the failure
// counter.
func (s *Service) ClearBackoff(ctx context.Context, indexerID int64) error {
	l := s.lockFor(indexerID)
	l.Lock()
	defer l.Unlock()

	rec, err := s.GetStatus(ctx, indexerID)
	if err != nil {
		return err
	}
	rec.ConsecutiveFailures = 0
	rec.BackoffUntil = nil
	return s.store.UpsertIndexerStatus(ctx, rec)
}
