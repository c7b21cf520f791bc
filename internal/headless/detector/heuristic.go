// Package detector decides when a listing page fetched over plain HTTP must be
// re-rendered in a headless browser, and provides a fetcher that does so.
package detector

import (
	"bytes"
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobalert-crawler/internal/posting"
)

const (
	defaultThreshold  = 2048
	scriptCoveragePct = 25
)

var spaMarkers = [][]byte{
	[]byte("__next"),
	[]byte(`id="root"`),
	[]byte(`id="app"`),
	[]byte("data-reactroot"),
}

// Heuristic implements rule-based promotion. A body is promoted when it is
// empty, is small and mostly script, carries a SPA mount point, or lacks every
// configured content marker.
type Heuristic struct {
	BodyLengthThreshold int
	ContentMarkers      [][]byte
}

// NewHeuristic creates a detector. markers are substrings a fully rendered
// page is expected to contain, e.g. the listing table class.
func NewHeuristic(threshold int, markers ...string) *Heuristic {
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	h := &Heuristic{BodyLengthThreshold: threshold}
	for _, m := range markers {
		if m != "" {
			h.ContentMarkers = append(h.ContentMarkers, []byte(m))
		}
	}
	return h
}

// ShouldPromote decides whether body needs a headless render.
func (h *Heuristic) ShouldPromote(body []byte) bool {
	if len(bytes.TrimSpace(body)) == 0 {
		return true
	}
	if len(h.ContentMarkers) > 0 && !containsAny(body, h.ContentMarkers) {
		return true
	}
	if len(body) < h.BodyLengthThreshold && scriptCoverage(body) >= scriptCoveragePct {
		return true
	}
	return containsAny(body, spaMarkers)
}

func containsAny(body []byte, markers [][]byte) bool {
	for _, m := range markers {
		if bytes.Contains(body, m) {
			return true
		}
	}
	return false
}

// scriptCoverage returns the share of body, in percent, spanned by script
// elements. An unterminated element extends to the end of the document.
func scriptCoverage(body []byte) int {
	lower := bytes.ToLower(body)
	open, closing := []byte("<script"), []byte("</script>")
	covered := 0
	rest := lower
	for {
		start := bytes.Index(rest, open)
		if start < 0 {
			break
		}
		rest = rest[start:]
		end := bytes.Index(rest, closing)
		if end < 0 {
			covered += len(rest)
			break
		}
		end += len(closing)
		covered += end
		rest = rest[end:]
	}
	return covered * 100 / len(lower)
}

// Fetcher fetches with a static retriever and re-renders pages the heuristic
// flags. A failed render falls back to the static body.
type Fetcher struct {
	static   posting.Fetcher
	headless posting.Fetcher
	detector *Heuristic
	logger   *zap.Logger
}

// NewFetcher composes the two retrievers.
func NewFetcher(static, headless posting.Fetcher, detector *Heuristic, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{static: static, headless: headless, detector: detector, logger: logger.Named("promote")}
}

// Fetch implements posting.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	body, err := f.static.Fetch(ctx, url)
	if err != nil {
		return nil, err //nolint:wrapcheck // already carries posting.ErrFetch
	}
	if !f.detector.ShouldPromote(body) {
		return body, nil
	}
	f.logger.Debug("promoting to headless", zap.String("url", url))
	rendered, err := f.headless.Fetch(ctx, url)
	if err != nil {
		f.logger.Warn("headless render failed, using static body", zap.String("url", url), zap.Error(err))
		return body, nil
	}
	return rendered, nil
}
