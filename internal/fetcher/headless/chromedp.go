// Package headless renders source pages in headless Chrome for listings that
// only populate their tables from JavaScript.
package headless

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobalert-crawler/internal/metrics"
	"github.com/JakeFAU/jobalert-crawler/internal/posting"
)

const defaultNavigationTimeout = 45 * time.Second

// Config controls the behavior of the headless fetcher.
type Config struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
	SettleDelay       time.Duration
}

// Fetcher implements posting.Fetcher using chromedp.
type Fetcher struct {
	cfg         Config
	slots       chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
	logger      *zap.Logger
}

// NewChromedp creates a headless fetcher. The browser is launched lazily on
// the first Fetch.
func NewChromedp(cfg Config, logger *zap.Logger) (*Fetcher, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var slots chan struct{}
	if cfg.MaxParallel > 0 {
		slots = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		cfg:         cfg,
		slots:       slots,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		logger:      logger.Named("headless"),
	}, nil
}

// Close shuts the browser down.
func (f *Fetcher) Close() {
	f.allocCancel()
}

// Fetch navigates to url and returns the rendered document.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := f.acquire(ctx); err != nil {
		return nil, errors.Join(posting.ErrFetch, err)
	}
	defer f.release()

	taskCtx, taskCancel := chromedp.NewContext(f.allocator)
	defer taskCancel()
	taskCtx, cancel := context.WithTimeout(taskCtx, f.cfg.NavigationTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	meta := &responseMeta{}
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	html, err := f.render(taskCtx, url)
	if err != nil {
		metrics.ObserveFetch(url, "error", 0)
		f.logger.Debug("render failed", zap.String("url", url), zap.Error(err))
		return nil, errors.Join(posting.ErrFetch, err)
	}
	status := meta.statusOr(http.StatusOK)
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		metrics.ObserveFetch(url, http.StatusText(status), 0)
		return nil, fmt.Errorf("%w: unexpected status %d for %s", posting.ErrFetch, status, url)
	}
	metrics.ObserveFetch(url, "ok", len(html))
	return []byte(html), nil
}

func (f *Fetcher) render(ctx context.Context, url string) (string, error) {
	var html string
	actions := []chromedp.Action{
		f.networkSetupAction(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if f.cfg.SettleDelay > 0 {
		actions = append(actions, chromedp.Sleep(f.cfg.SettleDelay))
	}
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, nil
}

func (f *Fetcher) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (f *Fetcher) acquire(ctx context.Context) error {
	if f.slots == nil {
		return nil
	}
	select {
	case f.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (f *Fetcher) release() {
	if f.slots == nil {
		return
	}
	select {
	case <-f.slots:
	default:
	}
}

// responseMeta records the status of the main document response.
type responseMeta struct {
	mu     sync.Mutex
	status int
}

func (m *responseMeta) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == 0 {
		m.status = int(resp.Response.Status)
	}
}

func (m *responseMeta) statusOr(fallback int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == 0 {
		return fallback
	}
	return m.status
}
