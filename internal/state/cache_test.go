package state

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSuggestionCacheRefreshAndTTL(t *testing.T) {
	c := NewSuggestionCache(time.Minute)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	var calls atomic.Int32
	refresh := func(ctx context.Context) ([]string, error) {
		calls.Add(1)
		return []string{"plex", "grafana"}, nil
	}

	got := c.GetOrRefresh(context.Background(), "containers", refresh)
	if want := []string{"plex", "grafana"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("GetOrRefresh = %v, want %v", got, want)
	}
	if calls.Load() != 1 {
		t.Fatalf("refresh called %d times, want 1", calls.Load())
	}

	// Within TTL: served from cache.
	now = now.Add(30 * time.Second)
	c.GetOrRefresh(context.Background(), "containers", refresh)
	if calls.Load() != 1 {
		t.Errorf("fresh entry still triggered a refresh (calls = %d)", calls.Load())
	}

	// Past TTL: refetched.
	now = now.Add(2 * time.Minute)
	c.GetOrRefresh(context.Background(), "containers", refresh)
	if calls.Load() != 2 {
		t.Errorf("stale entry not refreshed (calls = %d)", calls.Load())
	}
}

// Concurrent callers hitting a cold key must produce exactly one
// collaborator call.
func TestSuggestionCacheCoalescesRefresh(t *testing.T) {
	c := NewSuggestionCache(time.Minute)

	var calls atomic.Int32
	release := make(chan struct{})
	refresh := func(ctx context.Context) ([]string, error) {
		calls.Add(1)
		<-release
		return []string{"ubuntu.iso"}, nil
	}

	const workers = 8
	var wg sync.WaitGroup
	results := make([][]string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.GetOrRefresh(context.Background(), "torrents", refresh)
		}(i)
	}

	time.Sleep(50 * time.Millisecond) // let the workers pile up
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("refresh called %d times, want 1", calls.Load())
	}
	for i, got := range results {
		if !reflect.DeepEqual(got, []string{"ubuntu.iso"}) {
			t.Errorf("worker %d got %v", i, got)
		}
	}
}

func TestSuggestionCacheFailedRefresh(t *testing.T) {
	c := NewSuggestionCache(time.Minute)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	ok := func(ctx context.Context) ([]string, error) { return []string{"plex"}, nil }
	fail := func(ctx context.Context) ([]string, error) { return nil, errors.New("docker down") }

	c.GetOrRefresh(context.Background(), "containers", ok)
	now = now.Add(2 * time.Minute)

	if got := c.GetOrRefresh(context.Background(), "containers", fail); got != nil {
		t.Errorf("failed refresh returned %v, want nil", got)
	}
	// The stale entry survives for Suggest to use.
	if got := c.Cached("containers"); !reflect.DeepEqual(got, []string{"plex"}) {
		t.Errorf("Cached after failed refresh = %v, want [plex]", got)
	}
}

func TestSuggestRanking(t *testing.T) {
	c := NewSuggestionCache(time.Minute)
	c.store("containers", []string{"grafana", "plex", "postgres", "caddy-proxy"})

	tests := []struct {
		query string
		limit int
		want  []string
	}{
		{"p", 10, []string{"plex", "postgres", "caddy-proxy"}}, // prefix before substring
		{"GRAF", 10, []string{"grafana"}},                      // case-insensitive
		{"", 2, []string{"caddy-proxy", "grafana"}},            // empty query: sorted, capped
		{"zzz", 10, nil},
		{"p", 0, nil},
	}
	for _, tc := range tests {
		if got := c.Suggest("containers", tc.query, tc.limit); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("Suggest(%q, %d) = %v, want %v", tc.query, tc.limit, got, tc.want)
		}
	}

	if got := c.Suggest("torrents", "x", 5); got != nil {
		t.Errorf("Suggest on empty key = %v, want nil", got)
	}
}

func TestMagnetCache(t *testing.T) {
	m := NewMagnetCache()
	pick := m.Put("Ubuntu ISO", "magnet:?xt=urn:btih:abc")
	if len(pick) != 8 {
		t.Errorf("pick token %q, want 8 hex chars", pick)
	}

	got, ok := m.Get(pick)
	if !ok {
		t.Fatal("stored magnet not found")
	}
	if got.Name != "Ubuntu ISO" || got.URI != "magnet:?xt=urn:btih:abc" {
		t.Errorf("Get = %+v", got)
	}

	if _, ok := m.Get("ffffffff"); ok {
		t.Error("lookup of unknown pick succeeded")
	}
}
