// Package collyfetcher implements the page retriever using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobalert-crawler/internal/metrics"
	"github.com/JakeFAU/jobalert-crawler/internal/posting"
)

// DefaultUserAgents is the client-identification pool a retriever picks from.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/101.0.4951.67 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:101.0) Gecko/20100101 Firefox/101.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.1 Safari/605.1.15",
	"Mozilla/5.0 (Linux; Android 10; SM-G973F) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/101.0.4951.67 Mobile Safari/537.36",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 15_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.0 Mobile/15E148 Safari/604.1",
}

const defaultTimeout = 10 * time.Second

// Config controls collector behavior.
type Config struct {
	Timeout      time.Duration
	UserAgents   []string
	MaxIdleConns int
}

// Limiter delays a fetch until the target host may be contacted again.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// Retriever implements posting.Fetcher using the Colly collector.
type Retriever struct {
	cfg           Config
	userAgent     string
	limiter       Limiter
	baseCollector *colly.Collector
	logger        *zap.Logger
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

type fetchResult struct {
	status int
	body   []byte
}

// New builds a Retriever. The User-Agent is chosen once per instance. limiter
// may be nil.
func New(cfg Config, limiter Limiter, logger *zap.Logger) *Retriever {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if len(cfg.UserAgents) == 0 {
		cfg.UserAgents = DefaultUserAgents
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	c.ParseHTTPErrorResponse = true
	c.WithTransport(newHTTPTransport(cfg.MaxIdleConns))
	c.SetRequestTimeout(cfg.Timeout)

	ua := cfg.UserAgents[rand.IntN(len(cfg.UserAgents))]
	logger.Debug("retriever initialized", zap.String("user_agent", ua), zap.Duration("timeout", cfg.Timeout))

	return &Retriever{
		cfg:           cfg,
		userAgent:     ua,
		limiter:       limiter,
		baseCollector: c,
		logger:        logger,
	}
}

// UserAgent returns the header value this instance sends.
func (r *Retriever) UserAgent() string {
	return r.userAgent
}

// Fetch executes a single HTTP GET and returns the body of a 2xx response.
func (r *Retriever) Fetch(ctx context.Context, url string) ([]byte, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx, url); err != nil {
			return nil, errors.Join(posting.ErrFetch, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	var (
		result   fetchResult
		fetchErr error
	)
	collector := r.buildCollector(ctx, &result, &fetchErr)
	if err := r.runCollector(ctx, collector, url, &fetchErr); err != nil {
		metrics.ObserveFetch(url, "error", 0)
		r.logger.Debug("fetch failed", zap.String("url", url), zap.Error(err))
		return nil, errors.Join(posting.ErrFetch, err)
	}
	if result.status < http.StatusOK || result.status >= http.StatusMultipleChoices {
		metrics.ObserveFetch(url, http.StatusText(result.status), 0)
		return nil, fmt.Errorf("%w: unexpected status %d for %s", posting.ErrFetch, result.status, url)
	}
	metrics.ObserveFetch(url, "ok", len(result.body))
	return result.body, nil
}

func (r *Retriever) buildCollector(ctx context.Context, result *fetchResult, fetchErr *error) *colly.Collector {
	collector := r.baseCollector.Clone()
	collector.UserAgent = r.userAgent
	collector.Context = ctx
	r.configureCollectorHooks(collector, result, fetchErr)
	return collector
}

func (r *Retriever) configureCollectorHooks(hooks collectorHooks, result *fetchResult, fetchErr *error) {
	hooks.OnRequest(func(req *colly.Request) {
		req.Headers.Set("Accept", "text/html,application/xhtml+xml")
		req.Headers.Set("Connection", "keep-alive")
	})

	hooks.OnResponse(func(resp *colly.Response) {
		*result = fetchResult{
			status: resp.StatusCode,
			body:   append([]byte(nil), resp.Body...),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (r *Retriever) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport(maxIdle int) *http.Transport {
	if maxIdle <= 0 {
		maxIdle = 100
	}
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          maxIdle,
		MaxIdleConnsPerHost:   maxIdle,
		IdleConnTimeout:       90 * time.Second,
	}
}
