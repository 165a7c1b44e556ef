// Package collyfetch implements fetch.Fetcher using gocolly.
package collyfetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"promptharvest/internal/fetch"
)

// Config controls collector behavior.
type Config struct {
	// Timeout bounds one request end to end.
	Timeout time.Duration
	// RespectRobots enables colly's robots.txt handling.
	RespectRobots bool
}

// Fetcher executes single HTTP GETs through a Colly collector, rotating the
// User-Agent per request.
type Fetcher struct {
	cfg           Config
	agents        *fetch.UserAgentPool
	baseCollector *colly.Collector
}

// New builds a Fetcher. agents may be nil to disable rotation.
func New(cfg Config, agents *fetch.UserAgentPool) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = !cfg.RespectRobots
	c.WithTransport(newHTTPTransport())
	return &Fetcher{
		cfg:           cfg,
		agents:        agents,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET using Colly.
func (f *Fetcher) Fetch(ctx context.Context, req fetch.Request) (fetch.Response, error) {
	var (
		result   fetch.Response
		fetchErr error
	)
	start := time.Now()

	collector := f.baseCollector.Clone()
	collector.SetRequestTimeout(f.cfg.Timeout)
	if f.agents != nil {
		collector.UserAgent = f.agents.Next()
	}

	collector.OnRequest(func(r *colly.Request) {
		for key, values := range req.Headers {
			for _, v := range values {
				r.Headers.Add(key, v)
			}
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		result = fetch.Response{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Latency:    time.Since(start),
		}
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(req.URL)
	}()

	select {
	case <-ctx.Done():
		return fetch.Response{}, fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fetch.Response{}, fmt.Errorf("colly visit failed: %w", err)
		}
		if fetchErr != nil {
			return fetch.Response{}, fmt.Errorf("colly response failed: %w", fetchErr)
		}
		return result, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
