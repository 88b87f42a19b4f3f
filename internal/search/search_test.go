package search

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"cinestream/pkg/types"
)

type fakeProvider struct {
	name  string
	items []types.Candidate
	err   error
	delay time.Duration
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Search(ctx context.Context, query string) ([]types.Candidate, error) {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.items, nil
}

func TestSearchMergesAndSortsBySeeders(t *testing.T) {
	agg := &Aggregator{Providers: []Provider{
		&fakeProvider{name: "a", items: []types.Candidate{
			{Name: "low", InfoHash: "aaa", Seeders: 3},
		}},
		&fakeProvider{name: "b", items: []types.Candidate{
			{Name: "high", InfoHash: "bbb", Seeders: 90},
			{Name: "mid", InfoHash: "ccc", Seeders: 40},
		}},
	}}

	got, err := agg.Search(context.Background(), "sintel")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d results", len(got))
	}
	if got[0].Name != "high" || got[1].Name != "mid" || got[2].Name != "low" {
		t.Fatalf("wrong order: %s, %s, %s", got[0].Name, got[1].Name, got[2].Name)
	}
}

func TestSearchDedupesByHashKeepingMoreSeeders(t *testing.T) {
	agg := &Aggregator{Providers: []Provider{
		&fakeProvider{name: "a", items: []types.Candidate{
			{Name: "stale", InfoHash: "AAA111", Seeders: 5, Source: "a"},
		}},
		&fakeProvider{name: "b", items: []types.Candidate{
			{Name: "fresh", InfoHash: "aaa111", Seeders: 50, Source: "b"},
			{Name: "no-hash", Seeders: 2},
			{Name: "distinct", Seeders: 1},
		}},
	}}

	got, err := agg.Search(context.Background(), "sintel")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d results, want 3", len(got))
	}
	if got[0].Name != "fresh" || got[0].Source != "b" {
		t.Fatalf("dedupe kept %q from %q", got[0].Name, got[0].Source)
	}
}

func TestSearchDedupesHashlessByExactName(t *testing.T) {
	agg := &Aggregator{Providers: []Provider{
		&fakeProvider{name: "a", items: []types.Candidate{
			{Name: "Sintel 2010 1080p", Seeders: 4, Source: "a"},
		}},
		&fakeProvider{name: "b", items: []types.Candidate{
			{Name: "Sintel 2010 1080p", Seeders: 30, Source: "b"},
			{Name: "Sintel 2010 720p", Seeders: 8, Source: "b"},
		}},
	}}

	got, err := agg.Search(context.Background(), "sintel")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if got[0].Name != "Sintel 2010 1080p" || got[0].Seeders != 30 || got[0].Source != "b" {
		t.Fatalf("name dedupe kept %+v", got[0])
	}
}

func TestSearchPartialFailureStillReturns(t *testing.T) {
	agg := &Aggregator{Providers: []Provider{
		&fakeProvider{name: "dead", err: errors.New("connection refused")},
		&fakeProvider{name: "alive", items: []types.Candidate{{Name: "r", InfoHash: "x", Seeders: 1}}},
	}}

	got, err := agg.Search(context.Background(), "sintel")
	if err != nil {
		t.Fatalf("Search with one live source: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d results", len(got))
	}
}

func TestSearchAllSourcesFailed(t *testing.T) {
	agg := &Aggregator{Providers: []Provider{
		&fakeProvider{name: "one", err: errors.New("boom")},
		&fakeProvider{name: "two", err: errors.New("bust")},
	}}

	_, err := agg.Search(context.Background(), "sintel")
	if !errors.Is(err, ErrAllSourcesFailed) {
		t.Fatalf("got %v, want ErrAllSourcesFailed", err)
	}
	for _, name := range []string{"one", "two"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not name source %s", err, name)
		}
	}
}

func TestSearchSlowSourceIsCutOff(t *testing.T) {
	agg := &Aggregator{
		Timeout: 20 * time.Millisecond,
		Providers: []Provider{
			&fakeProvider{name: "slow", delay: 5 * time.Second,
				items: []types.Candidate{{Name: "late", Seeders: 99}}},
			&fakeProvider{name: "fast", items: []types.Candidate{{Name: "r", InfoHash: "x", Seeders: 1}}},
		},
	}

	start := time.Now()
	got, err := agg.Search(context.Background(), "sintel")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("slow source blocked for %s", elapsed)
	}
	if len(got) != 1 || got[0].Name != "r" {
		t.Fatalf("unexpected results: %+v", got)
	}
}

func TestSearchNoProviders(t *testing.T) {
	agg := &Aggregator{}
	if _, err := agg.Search(context.Background(), "q"); !errors.Is(err, ErrAllSourcesFailed) {
		t.Fatalf("got %v, want ErrAllSourcesFailed", err)
	}
}
