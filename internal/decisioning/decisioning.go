// Package decisioning decides whether a candidate release should be
// grabbed for a library entity, comparing it against the files the
// entity already has under its active quality profile.
package decisioning

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gatherr/gatherr/internal/indexer/dedupe"
	"github.com/gatherr/gatherr/internal/indexer/types"
	"github.com/gatherr/gatherr/internal/quality"
	"github.com/gatherr/gatherr/internal/release"
)

// Upgrade status values carried on every decision.
const (
	StatusNew       = "new"
	StatusUpgrade   = "upgrade"
	StatusSidegrade = "sidegrade"
	StatusDowngrade = "downgrade"
	StatusDuplicate = "duplicate"
	StatusRejected  = "rejected"
)

// Rejection types for non-accepted decisions.
const (
	RejectionBelowMinScore = "below_min_score"
	RejectionNotAnUpgrade  = "not_an_upgrade"
	RejectionDuplicate     = "duplicate"
)

// ExistingFile describes one file the entity already has. The release
// title is the original name the file was imported under.
type ExistingFile struct {
	ReleaseTitle string `json:"releaseTitle"`
	Score        int    `json:"score"`
}

// EntityState is the library's view of the target entity: its active
// profile and current files.
type EntityState struct {
	ProfileID string
	Files     []ExistingFile
}

// Library resolves the current state of the entity a release targets.
// A state with no files means the entity is wanted and empty.
type Library interface {
	MovieState(ctx context.Context, movieID int64) (EntityState, error)
	SeasonState(ctx context.Context, seriesID int64, season int) (EntityState, error)
	EpisodeState(ctx context.Context, episodeID int64) (EntityState, error)
	SeriesState(ctx context.Context, seriesID int64) (EntityState, error)
}

// Options adjusts a single evaluation.
type Options struct {
	// Force accepts the release regardless of the comparison outcome,
	// recording what was overridden.
	Force bool
}

// Decision is the evaluation result. CandidateScore is always set;
// ExistingScore only when the entity has files.
type Decision struct {
	Accepted       bool   `json:"accepted"`
	IsUpgrade      bool   `json:"isUpgrade"`
	UpgradeStatus  string `json:"upgradeStatus"`
	Reason         string `json:"reason,omitempty"`
	CandidateScore int    `json:"candidateScore"`
	ExistingScore  *int   `json:"existingScore,omitempty"`
	RejectionType  string `json:"rejectionType,omitempty"`
}

type Service struct {
	library  Library
	profiles *quality.Registry
	logger   zerolog.Logger
}

func NewService(library Library, profiles *quality.Registry, logger zerolog.Logger) *Service {
	return &Service{
		library:  library,
		profiles: profiles,
		logger:   logger.With().Str("component", "decisioning").Logger(),
	}
}

func (s *Service) EvaluateForMovie(ctx context.Context, movieID int64, rel types.ReleaseResult, opts Options) (Decision, error) {
	state, err := s.library.MovieState(ctx, movieID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to load movie state: %w", err)
	}
	return s.evaluate(state, rel, opts), nil
}

func (s *Service) EvaluateForSeason(ctx context.Context, seriesID int64, season int, rel types.ReleaseResult, opts Options) (Decision, error) {
	state, err := s.library.SeasonState(ctx, seriesID, season)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to load season state: %w", err)
	}
	return s.evaluate(state, rel, opts), nil
}

func (s *Service) EvaluateForEpisode(ctx context.Context, episodeID int64, rel types.ReleaseResult, opts Options) (Decision, error) {
	state, err := s.library.EpisodeState(ctx, episodeID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to load episode state: %w", err)
	}
	return s.evaluate(state, rel, opts), nil
}

func (s *Service) EvaluateForSeries(ctx context.Context, seriesID int64, rel types.ReleaseResult, opts Options) (Decision, error) {
	state, err := s.library.SeriesState(ctx, seriesID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to load series state: %w", err)
	}
	return s.evaluate(state, rel, opts), nil
}

// evaluate scores the candidate with the entity's profile and compares
// it against the worst existing file. Multi-file entities (seasons,
// series) upgrade when the candidate improves on their weakest file.
func (s *Service) evaluate(state EntityState, rel types.ReleaseResult, opts Options) Decision {
	profile := s.profiles.GetOrDefault(state.ProfileID)
	parsed := release.ParseRelease(rel.Title)
	candidateScore := profile.Score(parsed)

	decision := Decision{CandidateScore: candidateScore}

	if profile.MinScore > 0 && candidateScore < profile.MinScore {
		decision.UpgradeStatus = StatusRejected
		decision.RejectionType = RejectionBelowMinScore
		decision.Reason = fmt.Sprintf("score %d below profile minimum %d", candidateScore, profile.MinScore)
		return s.applyForce(decision, opts)
	}

	if len(state.Files) == 0 {
		decision.Accepted = true
		decision.UpgradeStatus = StatusNew
		return decision
	}

	existingScore := state.Files[0].Score
	for _, f := range state.Files[1:] {
		if f.Score < existingScore {
			existingScore = f.Score
		}
	}
	decision.ExistingScore = &existingScore

	candidateKey := dedupe.ReleaseKey(rel, parsed)
	for _, f := range state.Files {
		existingParsed := release.ParseRelease(f.ReleaseTitle)
		if dedupe.ReleaseKey(types.ReleaseResult{Title: f.ReleaseTitle}, existingParsed) == candidateKey {
			decision.UpgradeStatus = StatusDuplicate
			decision.RejectionType = RejectionDuplicate
			decision.Reason = "release matches an existing file"
			return s.applyForce(decision, opts)
		}
	}

	switch {
	case candidateScore > existingScore:
		decision.Accepted = true
		decision.IsUpgrade = true
		decision.UpgradeStatus = StatusUpgrade
		decision.Reason = fmt.Sprintf("score %d improves on existing %d", candidateScore, existingScore)
	case candidateScore == existingScore:
		decision.UpgradeStatus = StatusSidegrade
		decision.RejectionType = RejectionNotAnUpgrade
		decision.Reason = fmt.Sprintf("score %d equals existing %d", candidateScore, existingScore)
		decision = s.applyForce(decision, opts)
	default:
		decision.UpgradeStatus = StatusDowngrade
		decision.RejectionType = RejectionNotAnUpgrade
		decision.Reason = fmt.Sprintf("score %d below existing %d", candidateScore, existingScore)
		decision = s.applyForce(decision, opts)
	}

	s.logger.Debug().
		Str("title", rel.Title).
		Str("status", decision.UpgradeStatus).
		Int("candidateScore", candidateScore).
		Int("existingScore", existingScore).
		Bool("accepted", decision.Accepted).
		Msg("Release evaluated")

	return decision
}

// applyForce converts a rejection into an accepted decision when the
// caller forces it, keeping the original status for auditing.
func (s *Service) applyForce(decision Decision, opts Options) Decision {
	if !opts.Force {
		return decision
	}
	decision.Accepted = true
	decision.RejectionType = ""
	decision.Reason = fmt.Sprintf("forced despite %s: %s", decision.UpgradeStatus, decision.Reason)
	return decision
}
