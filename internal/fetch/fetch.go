// Package fetch defines the page retrieval contract shared by the HTTP and
// headless implementations, plus the fallback chain the workers use.
package fetch

import (
	"context"
	"net/http"
	"time"
)

// Request describes one page to retrieve.
type Request struct {
	// URL is the absolute page URL.
	URL string
	// Headers are extra request headers; the fetcher supplies User-Agent.
	Headers http.Header
}

// Response is the outcome of a successful retrieval.
type Response struct {
	// URL is the final URL after redirects.
	URL string
	// StatusCode is the HTTP status of the document response.
	StatusCode int
	// Headers are the response headers.
	Headers http.Header
	// Body is the raw document.
	Body []byte
	// Latency is wall time for the retrieval.
	Latency time.Duration
	// Rendered reports whether a browser produced the body.
	Rendered bool
}

// Fetcher retrieves a single page. Implementations must honor ctx and be
// safe for concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (Response, error)
}
