// Package grab dispatches accepted releases to download clients and
// records the resulting queue entries.
package grab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gatherr/gatherr/internal/database"
	"github.com/gatherr/gatherr/internal/decisioning"
	"github.com/gatherr/gatherr/internal/downloader"
	"github.com/gatherr/gatherr/internal/indexer"
	"github.com/gatherr/gatherr/internal/indexer/ratelimit"
	"github.com/gatherr/gatherr/internal/indexer/status"
	"github.com/gatherr/gatherr/internal/indexer/types"
)

var (
	ErrInvalidRequest    = errors.New("invalid grab request")
	ErrCategoryMismatch  = errors.New("release categories do not match media type")
	ErrGrabLimitExceeded = errors.New("grab limit exceeded for indexer")
	ErrResolutionFailed  = errors.New("failed to resolve download url")
	ErrGrabInProgress    = errors.New("a grab for this item is already in progress")
)

// UpgradeRejectedError carries the decision that blocked the grab so
// callers can surface the scores involved.
type UpgradeRejectedError struct {
	Decision decisioning.Decision
}

func (e *UpgradeRejectedError) Error() string {
	return fmt.Sprintf("release rejected: %s", e.Decision.Reason)
}

// Media type values accepted on a grab request.
const (
	MediaTypeMovie   = "movie"
	MediaTypeEpisode = "episode"
	MediaTypeSeason  = "season"
	MediaTypeSeries  = "series"
)

// Request asks for one release to be sent to a download client.
// Exactly one of DownloadURL, MagnetURL, StreamURL must be set.
type Request struct {
	Title       string         `json:"title"`
	DownloadURL string         `json:"downloadUrl,omitempty"`
	MagnetURL   string         `json:"magnetUrl,omitempty"`
	StreamURL   string         `json:"streamUrl,omitempty"`
	InfoHash    string         `json:"infoHash,omitempty"`
	IndexerID   int64          `json:"indexerId,omitempty"`
	Protocol    types.Protocol `json:"protocol"`
	Categories  []int          `json:"categories,omitempty"`

	MediaType    string `json:"mediaType"`
	MediaID      int64  `json:"mediaId"`
	SeasonNumber int    `json:"seasonNumber,omitempty"`

	IsAutomatic bool `json:"isAutomatic,omitempty"`
	Force       bool `json:"force,omitempty"`
	Paused      bool `json:"paused,omitempty"`
	Priority    int  `json:"priority,omitempty"`
}

// Response reports the dispatched download.
type Response struct {
	QueueID      string `json:"queueId"`
	Hash         string `json:"hash"`
	ClientID     int64  `json:"clientId,omitempty"`
	ClientName   string `json:"clientName,omitempty"`
	Category     string `json:"category"`
	WasDuplicate bool   `json:"wasDuplicate"`
	IsUpgrade    bool   `json:"isUpgrade"`
}

// QueueEntry is the core's record of a dispatched download.
type QueueEntry struct {
	ID         string         `json:"id"`
	Hash       string         `json:"hash"`
	Title      string         `json:"title"`
	Protocol   types.Protocol `json:"protocol"`
	IndexerID  int64          `json:"indexerId,omitempty"`
	ClientID   int64          `json:"clientId,omitempty"`
	ClientName string         `json:"clientName,omitempty"`
	Category   string         `json:"category"`
	AddedAt    time.Time      `json:"addedAt"`
}

// IndexerProvider resolves a configured indexer adapter by id, used to
// dereference torrent links through the indexer's own session.
type IndexerProvider interface {
	GetClient(ctx context.Context, id int64) (indexer.Indexer, error)
}

// Service is the download dispatcher.
type Service struct {
	store       *database.Store
	clients     *downloader.Registry
	indexers    IndexerProvider
	status      *status.Service
	limiter     *ratelimit.Limiter
	decisions   *decisioning.Service
	broadcaster indexer.Broadcaster
	locks       *decisioning.GrabLock
	logger      zerolog.Logger

	streamDir string

	mu    sync.Mutex
	queue []QueueEntry
}

func NewService(store *database.Store, clients *downloader.Registry, logger zerolog.Logger) *Service {
	return &Service{
		store:       store,
		clients:     clients,
		broadcaster: indexer.NopBroadcaster{},
		locks:       decisioning.NewGrabLock(),
		logger:      logger.With().Str("component", "grab").Logger(),
	}
}

func (s *Service) SetIndexerProvider(p IndexerProvider)      { s.indexers = p }
func (s *Service) SetStatusService(svc *status.Service)      { s.status = svc }
func (s *Service) SetRateLimiter(l *ratelimit.Limiter)       { s.limiter = l }
func (s *Service) SetDecisionService(d *decisioning.Service) { s.decisions = d }
func (s *Service) SetBroadcaster(b indexer.Broadcaster)      { s.broadcaster = b }
func (s *Service) SetStreamDir(dir string)                   { s.streamDir = dir }

// Grab validates the request, gates it through the decision service,
// resolves the payload, and hands it to the protocol's download
// client. Failures leave no queue entry behind.
func (s *Service) Grab(ctx context.Context, req Request) (*Response, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	lockKey := decisioning.GrabKey(req.MediaType, req.MediaID, req.SeasonNumber)
	if !s.locks.TryAcquire(lockKey) {
		return nil, ErrGrabInProgress
	}
	defer s.locks.Release(lockKey)

	s.broadcaster.Broadcast(indexer.EventGrabStarted, indexer.GrabStartedPayload{
		Title:     req.Title,
		IndexerID: req.IndexerID,
		Protocol:  string(req.Protocol),
	})

	if s.limiter != nil && req.IndexerID > 0 && !s.limiter.CheckGrab(req.IndexerID) {
		s.completeGrab(req, nil, ErrGrabLimitExceeded.Error())
		return nil, ErrGrabLimitExceeded
	}

	isUpgrade, err := s.decide(ctx, req)
	if err != nil {
		s.completeGrab(req, nil, err.Error())
		return nil, err
	}

	var resp *Response
	switch req.Protocol {
	case types.ProtocolStreaming:
		resp, err = s.dispatchStream(ctx, req)
	default:
		resp, err = s.dispatchClient(ctx, req)
	}
	if err != nil {
		s.recordFailure(ctx, req.IndexerID, err)
		s.completeGrab(req, nil, err.Error())
		return nil, err
	}
	resp.IsUpgrade = isUpgrade

	if s.limiter != nil && req.IndexerID > 0 {
		s.limiter.RecordGrab(req.IndexerID)
	}
	s.recordSuccess(ctx, req.IndexerID)
	s.appendHistory(ctx, req, resp)
	s.completeGrab(req, resp, "")

	s.logger.Info().
		Str("title", req.Title).
		Str("queueId", resp.QueueID).
		Str("hash", resp.Hash).
		Str("clientName", resp.ClientName).
		Bool("wasDuplicate", resp.WasDuplicate).
		Msg("Release grabbed")

	return resp, nil
}

// validate enforces the structural requirements before any side
// effects happen.
func (s *Service) validate(req Request) error {
	if req.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidRequest)
	}
	switch req.Protocol {
	case types.ProtocolStreaming:
		if req.StreamURL == "" {
			return fmt.Errorf("%w: streaming grab requires a stream url", ErrInvalidRequest)
		}
	case types.ProtocolTorrent, types.ProtocolUsenet:
		if req.DownloadURL == "" && req.MagnetURL == "" {
			return fmt.Errorf("%w: a download or magnet url is required", ErrInvalidRequest)
		}
	default:
		return fmt.Errorf("%w: unknown protocol %q", ErrInvalidRequest, req.Protocol)
	}

	switch req.MediaType {
	case MediaTypeMovie, MediaTypeEpisode, MediaTypeSeries:
		if req.MediaID <= 0 {
			return fmt.Errorf("%w: media id is required", ErrInvalidRequest)
		}
	case MediaTypeSeason:
		if req.MediaID <= 0 || req.SeasonNumber <= 0 {
			return fmt.Errorf("%w: series id and season number are required", ErrInvalidRequest)
		}
	default:
		return fmt.Errorf("%w: unknown media type %q", ErrInvalidRequest, req.MediaType)
	}

	if len(req.Categories) > 0 {
		contentType := indexer.GetCategoryContentType(req.Categories[0])
		movie := req.MediaType == MediaTypeMovie
		if movie && contentType == indexer.ContentTypeTV ||
			!movie && contentType == indexer.ContentTypeMovie {
			return fmt.Errorf("%w: %s release for %s target", ErrCategoryMismatch, contentType, req.MediaType)
		}
	}
	return nil
}

// decide runs the upgrade gate for the target entity. A rejection
// fails the grab unless forced; force is passed through so the
// decision records what was overridden.
func (s *Service) decide(ctx context.Context, req Request) (bool, error) {
	if s.decisions == nil {
		return false, nil
	}

	rel := types.ReleaseResult{
		Title:       req.Title,
		Protocol:    req.Protocol,
		DownloadURL: req.DownloadURL,
		MagnetURL:   req.MagnetURL,
		StreamURL:   req.StreamURL,
		InfoHash:    req.InfoHash,
	}
	opts := decisioning.Options{Force: req.Force}

	var decision decisioning.Decision
	var err error
	switch req.MediaType {
	case MediaTypeMovie:
		decision, err = s.decisions.EvaluateForMovie(ctx, req.MediaID, rel, opts)
	case MediaTypeEpisode:
		decision, err = s.decisions.EvaluateForEpisode(ctx, req.MediaID, rel, opts)
	case MediaTypeSeason:
		decision, err = s.decisions.EvaluateForSeason(ctx, req.MediaID, req.SeasonNumber, rel, opts)
	case MediaTypeSeries:
		decision, err = s.decisions.EvaluateForSeries(ctx, req.MediaID, rel, opts)
	}
	if err != nil {
		return false, fmt.Errorf("failed to evaluate release: %w", err)
	}
	if !decision.Accepted {
		return false, &UpgradeRejectedError{Decision: decision}
	}
	return decision.IsUpgrade, nil
}

// dispatchClient resolves the payload and sends it to the first
// client registered for the protocol.
func (s *Service) dispatchClient(ctx context.Context, req Request) (*Response, error) {
	client, err := s.clients.ClientForProtocol(req.Protocol)
	if err != nil {
		return nil, err
	}

	payload, err := s.resolvePayload(ctx, req)
	if err != nil {
		return nil, err
	}

	add := downloader.AddRequest{
		MagnetURI:   payload.magnetURI,
		TorrentFile: payload.torrentFile,
		InfoHash:    payload.infoHash,
		DownloadURL: payload.downloadURL,
		Title:       req.Title,
		Category:    s.category(req),
		Paused:      req.Paused,
		Priority:    req.Priority,
	}
	if def := s.indexerDefinition(ctx, req.IndexerID); def != nil {
		add.SeedRatioLimit = def.SeedRatio
		add.SeedTimeLimit = def.SeedTime
	}

	wasDuplicate := false
	hash, err := client.AddDownload(ctx, add)
	if err != nil {
		dup, ok := downloader.IsDuplicateError(err)
		if !ok {
			return nil, fmt.Errorf("failed to add download: %w", err)
		}
		hash = dup.Hash
		wasDuplicate = true
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// Best available identifier: the release info hash, then the
	// client's hash, then the payload itself.
	key := payload.infoHash
	if key == "" {
		key = hash
	}
	if key == "" {
		if key = payload.magnetURI; key == "" {
			key = payload.downloadURL
		}
	}

	resp := &Response{
		QueueID:      uuid.NewString(),
		Hash:         key,
		ClientID:     client.ID(),
		ClientName:   client.Name(),
		Category:     add.Category,
		WasDuplicate: wasDuplicate,
	}
	s.enqueue(QueueEntry{
		ID:         resp.QueueID,
		Hash:       key,
		Title:      req.Title,
		Protocol:   req.Protocol,
		IndexerID:  req.IndexerID,
		ClientID:   client.ID(),
		ClientName: client.Name(),
		Category:   add.Category,
		AddedAt:    time.Now(),
	})
	return resp, nil
}

// dispatchStream bypasses the download clients: it writes a .strm
// pointer file the library consumer resolves at playback, and records
// the grab as if the import had already happened.
func (s *Service) dispatchStream(ctx context.Context, req Request) (*Response, error) {
	dir := s.streamDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, sanitizeFilename(req.Title)+".strm")
	if err := os.WriteFile(path, []byte(req.StreamURL+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write stream file: %w", err)
	}

	resp := &Response{
		QueueID:  uuid.NewString(),
		Hash:     req.StreamURL,
		Category: s.category(req),
	}
	s.enqueue(QueueEntry{
		ID:        resp.QueueID,
		Hash:      req.StreamURL,
		Title:     req.Title,
		Protocol:  types.ProtocolStreaming,
		IndexerID: req.IndexerID,
		Category:  resp.Category,
		AddedAt:   time.Now(),
	})

	s.logger.Info().Str("path", path).Str("title", req.Title).Msg("Stream pointer written")
	return resp, nil
}

func (s *Service) category(req Request) string {
	if req.MediaType == MediaTypeMovie {
		return "movies"
	}
	return "tv"
}

func (s *Service) indexerDefinition(ctx context.Context, indexerID int64) *types.IndexerDefinition {
	if s.indexers == nil || indexerID <= 0 {
		return nil
	}
	ix, err := s.indexers.GetClient(ctx, indexerID)
	if err != nil {
		return nil
	}
	return ix.Definition()
}

// Queue returns a snapshot of the entries registered so far, oldest
// first.
func (s *Service) Queue() []QueueEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]QueueEntry, len(s.queue))
	copy(out, s.queue)
	return out
}

func (s *Service) enqueue(entry QueueEntry) {
	s.mu.Lock()
	s.queue = append(s.queue, entry)
	s.mu.Unlock()
}

func (s *Service) recordSuccess(ctx context.Context, indexerID int64) {
	if s.status == nil || indexerID <= 0 {
		return
	}
	if err := s.status.RecordSuccess(ctx, indexerID); err != nil {
		s.logger.Warn().Err(err).Int64("indexerId", indexerID).Msg("Failed to record grab success")
	}
}

func (s *Service) recordFailure(ctx context.Context, indexerID int64, cause error) {
	if s.status == nil || indexerID <= 0 {
		return
	}
	if err := s.status.RecordFailure(ctx, indexerID, cause); err != nil {
		s.logger.Warn().Err(err).Int64("indexerId", indexerID).Msg("Failed to record grab failure")
	}
}

func (s *Service) appendHistory(ctx context.Context, req Request, resp *Response) {
	if s.store == nil || req.IndexerID <= 0 {
		return
	}
	data, _ := json.Marshal(map[string]any{
		"title":        req.Title,
		"queueId":      resp.QueueID,
		"hash":         resp.Hash,
		"clientId":     resp.ClientID,
		"clientName":   resp.ClientName,
		"mediaType":    req.MediaType,
		"mediaId":      req.MediaID,
		"wasDuplicate": resp.WasDuplicate,
	})
	err := s.store.AppendHistory(ctx, &database.HistoryEvent{
		IndexerID:  req.IndexerID,
		EventType:  database.HistoryEventGrab,
		Successful: true,
		Data:       string(data),
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to record grab history")
	}
}

func (s *Service) completeGrab(req Request, resp *Response, errMsg string) {
	payload := indexer.GrabCompletedPayload{
		Title:     req.Title,
		IndexerID: req.IndexerID,
		Success:   resp != nil,
		Error:     errMsg,
	}
	if resp != nil {
		payload.DownloadID = resp.QueueID
		payload.ClientName = resp.ClientName
	}
	s.broadcaster.Broadcast(indexer.EventGrabCompleted, payload)
}

var unsafeFilenamePattern = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

func sanitizeFilename(name string) string {
	clean := unsafeFilenamePattern.ReplaceAllString(name, "_")
	clean = strings.Trim(clean, " .")
	if clean == "" {
		clean = "release"
	}
	return clean
}
