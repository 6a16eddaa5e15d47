package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Inspector dumps what every source holds for a user.
type Inspector struct {
	sources []DocumentSource
	timeout time.Duration
}

func NewInspector(sources []DocumentSource, timeout time.Duration) *Inspector {
	return &Inspector{sources: sources, timeout: timeout}
}

// Inspect returns the raw document per source name. Sources that miss or
// cannot be reached are absent from the result.
func (i *Inspector) Inspect(ctx context.Context, userID string) map[string]map[string]interface{} {
	var (
		mu  sync.Mutex
		out = make(map[string]map[string]interface{}, len(i.sources))
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, src := range i.sources {
		src := src
		g.Go(func() error {
			qctx, cancel := withTimeout(gctx, i.timeout)
			defer cancel()
			doc, err := src.FindUserDocument(qctx, userID)
			if err != nil {
				return nil
			}
			mu.Lock()
			out[src.Name()] = doc
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}
