package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestHN(t *testing.T) *HackerNewsClient {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/topstories.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[101, 102, 103, 104]`)
	})
	mux.HandleFunc("/item/101.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"title":"Go 1.26 released","url":"https://go.dev/blog","score":512,"descendants":230}`)
	})
	mux.HandleFunc("/item/102.json", func(w http.ResponseWriter, r *http.Request) {
		// Ask HN post without a URL.
		fmt.Fprint(w, `{"title":"Ask HN: <best> editor?","score":99,"descendants":412}`)
	})
	mux.HandleFunc("/item/103.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `null`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &HackerNewsClient{baseURL: srv.URL, http: srv.Client()}
}

func TestHackerNewsTopStories(t *testing.T) {
	c := newTestHN(t)

	stories, err := c.TopStories(context.Background(), 3)
	if err != nil {
		t.Fatalf("TopStories: %v", err)
	}
	if len(stories) != 2 {
		t.Fatalf("got %d stories, want 2 (null item skipped)", len(stories))
	}
	if stories[0].Title != "Go 1.26 released" || stories[0].Score != 512 {
		t.Errorf("story 0 = %+v", stories[0])
	}
	if want := "https://news.ycombinator.com/item?id=102"; stories[1].URL != want {
		t.Errorf("fallback URL = %q, want %q", stories[1].URL, want)
	}
}

func TestHackerNewsDigest(t *testing.T) {
	c := newTestHN(t)

	digest, err := c.Digest(context.Background(), 3)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if !strings.Contains(digest, "Go 1.26 released") {
		t.Errorf("digest missing story title:\n%s", digest)
	}
	if !strings.Contains(digest, "512 points") || !strings.Contains(digest, "230 comments") {
		t.Errorf("digest missing score/comments:\n%s", digest)
	}
	if strings.Contains(digest, "<best>") {
		t.Errorf("title not HTML-escaped:\n%s", digest)
	}
}
