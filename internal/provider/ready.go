package provider

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

const readyTimeout = 10 * time.Second

// EnsureReady probes every provider concurrently and fails fast on the
// first unreachable one. Run once at startup so a misconfigured gateway
// or a stopped local instance is caught before serving traffic.
func EnsureReady(ctx context.Context, providers []Provider) error {
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)
	for _, p := range providers {
		g.Go(func() error {
			if err := p.Ping(gCtx); err != nil {
				return fmt.Errorf("provider %s (%s) not ready: %w", p.Strategy(), p.Model(), err)
			}
			return nil
		})
	}
	return g.Wait()
}
