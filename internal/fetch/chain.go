package fetch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Chain tries an ordered list of fetchers until one succeeds. The usual
// arrangement is the plain HTTP fetcher first with the headless renderer as
// fallback for pages that resist it.
type Chain struct {
	fetchers []Fetcher
	promoter *Promoter
	logger   *zap.Logger
}

// NewChain builds a Chain over the given fetchers, tried in order.
func NewChain(logger *zap.Logger, fetchers ...Fetcher) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{fetchers: fetchers, logger: logger}
}

// WithPromoter enables render promotion: when an earlier fetcher succeeds
// but the body looks like a script shell, the next fetcher runs anyway and
// its result is preferred. The plain response is kept if rendering fails.
func (c *Chain) WithPromoter(p *Promoter) *Chain {
	c.promoter = p
	return c
}

// Fetch runs the chain. It returns the first success, stops immediately on
// context cancellation, and otherwise joins the per-fetcher errors.
func (c *Chain) Fetch(ctx context.Context, req Request) (Response, error) {
	if len(c.fetchers) == 0 {
		return Response{}, errors.New("no fetchers configured")
	}

	var errs []error
	for i, f := range c.fetchers {
		resp, err := f.Fetch(ctx, req)
		if err == nil {
			if c.promoter != nil && i < len(c.fetchers)-1 && c.promoter.ShouldPromote(resp) {
				c.logger.Debug("promoting to renderer", zap.String("url", req.URL))
				rendered, rerr := c.fetchers[i+1].Fetch(ctx, req)
				if rerr == nil {
					return rendered, nil
				}
				c.logger.Debug("render promotion failed, keeping plain response",
					zap.String("url", req.URL),
					zap.Error(rerr),
				)
			}
			return resp, nil
		}
		if ctx.Err() != nil {
			return Response{}, fmt.Errorf("fetch chain canceled: %w", ctx.Err())
		}
		errs = append(errs, err)
		if i < len(c.fetchers)-1 {
			c.logger.Debug("fetcher failed, falling back",
				zap.String("url", req.URL),
				zap.Int("fetcher", i),
				zap.Error(err),
			)
		}
	}
	return Response{}, fmt.Errorf("all fetchers failed: %w", errors.Join(errs...))
}
