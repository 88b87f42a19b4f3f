package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"cinestream/internal/metrics"
	"cinestream/pkg/types"
)

// ErrAllSourcesFailed is returned when every discovery source errored and
// nothing at all could be offered.
var ErrAllSourcesFailed = errors.New("all discovery sources failed")

// Provider is one upstream torrent index.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]types.Candidate, error)
}

// Aggregator fans a query out to every provider concurrently, merges the
// results, and dedupes by info hash. A slow or broken source never blocks
// the others past the per-source timeout.
type Aggregator struct {
	Providers []Provider
	Timeout   time.Duration // per source
}

func (a *Aggregator) Search(ctx context.Context, query string) ([]types.Candidate, error) {
	if len(a.Providers) == 0 {
		return nil, ErrAllSourcesFailed
	}
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = 12 * time.Second
	}

	type sourceResult struct {
		name  string
		items []types.Candidate
		err   error
	}
	results := make([]sourceResult, len(a.Providers))

	var wg sync.WaitGroup
	for i, p := range a.Providers {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()
			sctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			start := time.Now()
			items, err := p.Search(sctx, query)
			outcome := "ok"
			if err != nil {
				outcome = "error"
				log.Printf("[search] source=%s failed after %s: %v",
					p.Name(), time.Since(start).Truncate(time.Millisecond), err)
			} else {
				log.Printf("[search] source=%s results=%d in %s",
					p.Name(), len(items), time.Since(start).Truncate(time.Millisecond))
			}
			metrics.SearchRequestsTotal.WithLabelValues(p.Name(), outcome).Inc()
			results[i] = sourceResult{name: p.Name(), items: items, err: err}
		}(i, p)
	}
	wg.Wait()

	var merged []types.Candidate
	var failed []string
	for _, r := range results {
		if r.err != nil {
			failed = append(failed, r.name)
			continue
		}
		merged = append(merged, r.items...)
	}
	if len(failed) == len(a.Providers) {
		return nil, fmt.Errorf("%w: %s", ErrAllSourcesFailed, strings.Join(failed, ", "))
	}

	merged = dedupe(merged)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Seeders > merged[j].Seeders })
	return merged, nil
}

// dedupe keeps one candidate per info hash, preferring the one reporting
// more seeders. Candidates without a hash are deduped by exact name
// instead, so sources that only hand out .torrent links still collapse.
func dedupe(in []types.Candidate) []types.Candidate {
	out := make([]types.Candidate, 0, len(in))
	byHash := make(map[string]int)
	byName := make(map[string]int)
	for _, c := range in {
		key, index := strings.ToLower(c.InfoHash), byHash
		if key == "" {
			key, index = c.Name, byName
		}
		if at, seen := index[key]; seen {
			if c.Seeders > out[at].Seeders {
				out[at] = c
			}
			continue
		}
		index[key] = len(out)
		out = append(out, c)
	}
	return out
}
