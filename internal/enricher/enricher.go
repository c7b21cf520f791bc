// Package enricher fetches each posting's detail page and merges the links
// or education details found there.
package enricher

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/jobalert-crawler/internal/extractor"
	"github.com/JakeFAU/jobalert-crawler/internal/posting"
)

// DefaultConcurrency caps in-flight detail fetches per batch.
const DefaultConcurrency = 20

// Config controls enrichment.
type Config struct {
	Concurrency int
}

// Enricher merges detail page data into postings.
type Enricher struct {
	fetcher     posting.Fetcher
	concurrency int
	logger      *zap.Logger
}

// New constructs an Enricher.
func New(cfg Config, fetcher posting.Fetcher, logger *zap.Logger) *Enricher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{
		fetcher:     fetcher,
		concurrency: cfg.Concurrency,
		logger:      logger,
	}
}

// Enrich returns a copy of postings with detail data merged in. The output
// keeps the input order and length; a posting whose detail page cannot be
// fetched or parsed is returned unchanged.
func (e *Enricher) Enrich(ctx context.Context, shape posting.Shape, postings []posting.Posting) []posting.Posting {
	out := make([]posting.Posting, len(postings))
	copy(out, postings)

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i := range out {
		if out[i].Link == "" {
			continue
		}
		g.Go(func() error {
			out[i] = e.enrichOne(ctx, shape, out[i])
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (e *Enricher) enrichOne(ctx context.Context, shape posting.Shape, p posting.Posting) posting.Posting {
	body, err := e.fetcher.Fetch(ctx, p.Link)
	if err != nil {
		e.logger.Debug("detail fetch failed", zap.String("url", p.Link), zap.Error(err))
		return p
	}

	if shape == posting.ShapeEducation {
		details, err := extractor.ParseEducationDetail(body)
		if err != nil {
			e.logger.Debug("education detail parse failed", zap.String("url", p.Link), zap.Error(err))
			return p
		}
		p.Education = &details
		return p
	}

	links, err := extractor.ParseDetailLinks(body)
	if err != nil {
		e.logger.Debug("detail parse failed", zap.String("url", p.Link), zap.Error(err))
		return p
	}
	return links.Apply(p)
}
