// Package pipeline runs the per-category refresh: fetch, extract, enrich,
// normalize, replace the snapshot, detect new postings and notify.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/jobalert-crawler/internal/extractor"
	"github.com/JakeFAU/jobalert-crawler/internal/metrics"
	"github.com/JakeFAU/jobalert-crawler/internal/notify"
	"github.com/JakeFAU/jobalert-crawler/internal/posting"
)

const (
	defaultParallelCategories = 4
	archiveTimeFormat         = "20060102T150405Z"
)

// Enricher merges detail page data into postings.
type Enricher interface {
	Enrich(ctx context.Context, shape posting.Shape, postings []posting.Posting) []posting.Posting
}

// Tracker detects postings that are new since the last refresh.
type Tracker interface {
	DetectNew(ctx context.Context, category string, fresh []posting.Posting) ([]posting.Posting, error)
}

// Notifier fans new postings out to subscribers.
type Notifier interface {
	Notify(ctx context.Context, category string, postings []posting.Posting) notify.Summary
}

// Config controls the refresh pipeline.
type Config struct {
	Sources            []posting.Source
	ParallelCategories int
	EventTopic         string
}

// Deps bundles the collaborators of a Service. Archive and Publisher are
// optional.
type Deps struct {
	Fetcher   posting.Fetcher
	Enricher  Enricher
	Store     posting.SnapshotStore
	Tracker   Tracker
	Notifier  Notifier
	Archive   posting.BlobStore
	Publisher posting.Publisher
	Hasher    posting.Hasher
	IDs       posting.IDGenerator
	Clock     posting.Clock
}

// Result reports the outcome of one category refresh.
type Result struct {
	Category    string `json:"category"`
	Success     bool   `json:"success"`
	Count       int    `json:"count"`
	NewCount    int    `json:"newCount"`
	SnapshotURI string `json:"snapshotUri,omitempty"`
	Error       string `json:"error,omitempty"`

	err error
}

// Err returns the failure cause, if any.
func (r Result) Err() error {
	return r.err
}

// Event is published after every successful refresh.
type Event struct {
	Category    string    `json:"category"`
	Count       int       `json:"count"`
	NewCount    int       `json:"new_count"`
	CycleID     string    `json:"cycle_id"`
	SnapshotURI string    `json:"snapshot_uri,omitempty"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// Service drives category refreshes and serves snapshot reads.
type Service struct {
	cfg     Config
	deps    Deps
	sources map[string]posting.Source
	order   []string
	logger  *zap.Logger
}

// New constructs a Service.
func New(cfg Config, deps Deps, logger *zap.Logger) (*Service, error) {
	if deps.Fetcher == nil || deps.Store == nil || deps.Tracker == nil {
		return nil, fmt.Errorf("fetcher, store and tracker are required")
	}
	if deps.Clock == nil || deps.IDs == nil {
		return nil, fmt.Errorf("clock and id generator are required")
	}
	if cfg.ParallelCategories <= 0 {
		cfg.ParallelCategories = defaultParallelCategories
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		cfg:     cfg,
		deps:    deps,
		sources: make(map[string]posting.Source, len(cfg.Sources)),
		logger:  logger,
	}
	for _, src := range cfg.Sources {
		if _, dup := s.sources[src.Category]; dup {
			return nil, fmt.Errorf("duplicate category %q", src.Category)
		}
		s.sources[src.Category] = src
		s.order = append(s.order, src.Category)
	}
	return s, nil
}

// Categories returns the configured category tags in configuration order.
func (s *Service) Categories() []string {
	return append([]string(nil), s.order...)
}

// RefreshCategory runs one pipeline pass for category.
func (s *Service) RefreshCategory(ctx context.Context, category string) Result {
	cycleID, err := s.deps.IDs.NewID()
	if err != nil {
		return failure(category, err)
	}
	return s.refresh(ctx, category, cycleID)
}

// RefreshAll refreshes every configured category with bounded parallelism.
// A failing category never stops the others. Results follow Categories order.
func (s *Service) RefreshAll(ctx context.Context) []Result {
	cycleID, err := s.deps.IDs.NewID()
	if err != nil {
		s.logger.Error("generate cycle id failed", zap.Error(err))
		cycleID = s.deps.Clock.Now().Format(archiveTimeFormat)
	}
	start := s.deps.Clock.Now()
	s.logger.Info("refresh cycle started", zap.String("cycle_id", cycleID), zap.Int("categories", len(s.order)))

	results := make([]Result, len(s.order))
	var g errgroup.Group
	g.SetLimit(s.cfg.ParallelCategories)
	for i, category := range s.order {
		g.Go(func() error {
			results[i] = s.refresh(ctx, category, cycleID)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	s.logger.Info("refresh cycle finished",
		zap.String("cycle_id", cycleID),
		zap.Int("failed", failed),
		zap.Duration("duration", s.deps.Clock.Now().Sub(start)),
	)
	return results
}

// ReadCategory returns a page of the category snapshot, refreshing the
// category first when no snapshot exists yet.
func (s *Service) ReadCategory(ctx context.Context, category string, offset, limit int) (posting.Page, error) {
	if _, ok := s.sources[category]; !ok {
		return posting.Page{}, fmt.Errorf("%w: %s", posting.ErrUnknownCategory, category)
	}
	offset, limit = posting.ClampPage(offset, limit)

	exists, err := s.deps.Store.Exists(ctx, category)
	if err != nil {
		return posting.Page{}, errors.Join(posting.ErrStore, fmt.Errorf("check snapshot: %w", err))
	}
	if !exists {
		s.logger.Info("snapshot missing, refreshing on demand", zap.String("category", category))
		if res := s.RefreshCategory(ctx, category); !res.Success {
			return posting.Page{}, fmt.Errorf("refresh %s: %w", category, res.Err())
		}
	}
	page, err := s.deps.Store.Read(ctx, category, offset, limit)
	if err != nil {
		return posting.Page{}, errors.Join(posting.ErrStore, fmt.Errorf("read snapshot: %w", err))
	}
	return page, nil
}

func (s *Service) refresh(ctx context.Context, category, cycleID string) Result {
	start := time.Now()
	res := s.runPipeline(ctx, category, cycleID)
	outcome := "ok"
	if !res.Success {
		outcome = "error"
		s.logger.Error("category refresh failed",
			zap.String("category", category),
			zap.String("cycle_id", cycleID),
			zap.Error(res.err),
		)
	}
	metrics.ObserveRefresh(category, outcome, time.Since(start))
	return res
}

func (s *Service) runPipeline(ctx context.Context, category, cycleID string) Result {
	src, ok := s.sources[category]
	if !ok {
		return failure(category, fmt.Errorf("%w: %s", posting.ErrUnknownCategory, category))
	}
	logger := s.logger.With(zap.String("category", category), zap.String("cycle_id", cycleID))

	body, err := s.deps.Fetcher.Fetch(ctx, src.URL)
	if err != nil {
		return failure(category, fmt.Errorf("fetch listing: %w", err))
	}
	raw, err := extractor.Extract(src.Shape, body)
	if err != nil {
		return failure(category, fmt.Errorf("extract listing: %w", err))
	}
	// Required fields and identities come from the listing row alone, so
	// incomplete and duplicate rows are dropped before any detail fetch.
	postings := posting.Normalize(src.Shape, raw)
	logger.Debug("listing normalized", zap.Int("extracted", len(raw)), zap.Int("accepted", len(postings)))
	if s.deps.Enricher != nil {
		postings = s.deps.Enricher.Enrich(ctx, src.Shape, postings)
	}

	if err := s.deps.Store.Replace(ctx, category, postings); err != nil {
		return failure(category, errors.Join(posting.ErrStore, fmt.Errorf("replace snapshot: %w", err)))
	}
	uri := s.archive(ctx, logger, category, postings)

	fresh, err := s.deps.Tracker.DetectNew(ctx, category, postings)
	if err != nil {
		return failure(category, errors.Join(posting.ErrStore, fmt.Errorf("detect new postings: %w", err)))
	}
	metrics.ObserveNewPostings(category, len(fresh))
	if len(fresh) > 0 && s.deps.Notifier != nil {
		s.deps.Notifier.Notify(ctx, category, fresh)
	}

	s.publish(ctx, logger, Event{
		Category:    category,
		Count:       len(postings),
		NewCount:    len(fresh),
		CycleID:     cycleID,
		SnapshotURI: uri,
		RefreshedAt: s.deps.Clock.Now(),
	})
	logger.Info("category refreshed", zap.Int("count", len(postings)), zap.Int("new", len(fresh)))
	return Result{
		Category:    category,
		Success:     true,
		Count:       len(postings),
		NewCount:    len(fresh),
		SnapshotURI: uri,
	}
}

// archive stores the accepted snapshot as <category>/<timestamp>-<digest>.json.
// Failures are logged only.
func (s *Service) archive(ctx context.Context, logger *zap.Logger, category string, postings []posting.Posting) string {
	if s.deps.Archive == nil {
		return ""
	}
	data, err := json.Marshal(postings)
	if err != nil {
		logger.Warn("marshal archive failed", zap.Error(err))
		return ""
	}
	digest := "nohash"
	if s.deps.Hasher != nil {
		if digest, err = s.deps.Hasher.Hash(data); err != nil {
			logger.Warn("hash archive failed", zap.Error(err))
			return ""
		}
	}
	name := fmt.Sprintf("%s/%s-%s.json", category, s.deps.Clock.Now().UTC().Format(archiveTimeFormat), digest)
	uri, err := s.deps.Archive.PutObject(ctx, name, "application/json", bytes.NewReader(data))
	if err != nil {
		logger.Warn("archive snapshot failed", zap.String("path", name), zap.Error(err))
		return ""
	}
	return uri
}

func (s *Service) publish(ctx context.Context, logger *zap.Logger, event Event) {
	if s.deps.Publisher == nil {
		return
	}
	if _, err := s.deps.Publisher.Publish(ctx, s.cfg.EventTopic, event); err != nil {
		logger.Warn("publish refresh event failed", zap.Error(err))
	}
}

func failure(category string, err error) Result {
	return Result{Category: category, Error: err.Error(), err: err}
}
