package remote

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newTestQbt(t *testing.T, handler http.Handler) *QbtClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	jar, _ := cookiejar.New(nil)
	return &QbtClient{
		baseURL: srv.URL,
		user:    "admin",
		pass:    "secret",
		http:    &http.Client{Jar: jar},
	}
}

func TestQbtListLogsInFirst(t *testing.T) {
	var loggedIn atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("username") != "admin" || r.FormValue("password") != "secret" {
			w.Write([]byte("Fails."))
			return
		}
		loggedIn.Store(true)
		w.Write([]byte("Ok."))
	})
	mux.HandleFunc("/api/v2/torrents/info", func(w http.ResponseWriter, r *http.Request) {
		if !loggedIn.Load() {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte(`[
			{"hash":"aaa","name":"ubuntu.iso","state":"downloading","progress":0.5,"amount_left":500,"size":1000,"completed":500},
			{"hash":"bbb","name":"fedora.iso","state":"stalledUP","progress":1.0,"amount_left":0,"size":2000,"completed":2000}
		]`))
	})

	c := newTestQbt(t, mux)
	torrents, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(torrents) != 2 {
		t.Fatalf("got %d torrents", len(torrents))
	}
	if torrents[0].Complete() {
		t.Error("half-done torrent reported complete")
	}
	if !torrents[1].Complete() {
		t.Error("finished torrent not reported complete")
	}

	names, err := c.Names(context.Background())
	if err != nil {
		t.Fatalf("Names: %v", err)
	}
	if len(names) != 2 || names[0] != "ubuntu.iso" {
		t.Errorf("Names = %v", names)
	}
}

func TestQbtLoginRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Fails."))
	})

	c := newTestQbt(t, mux)
	if _, err := c.List(context.Background()); err == nil {
		t.Fatal("List succeeded despite rejected login")
	}
}

func TestQbtRetriesOnceOnExpiredSession(t *testing.T) {
	var logins atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/auth/login", func(w http.ResponseWriter, r *http.Request) {
		logins.Add(1)
		w.Write([]byte("Ok."))
	})
	mux.HandleFunc("/api/v2/torrents/info", func(w http.ResponseWriter, r *http.Request) {
		// First data call hits an expired session.
		if logins.Load() < 2 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte(`[]`))
	})

	c := newTestQbt(t, mux)
	if _, err := c.List(context.Background()); err != nil {
		t.Fatalf("List: %v", err)
	}
	if logins.Load() != 2 {
		t.Errorf("logged in %d times, want 2", logins.Load())
	}
}

func TestQbtAddSendsForm(t *testing.T) {
	var gotURLs, gotPath string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Ok."))
	})
	mux.HandleFunc("/api/v2/torrents/add", func(w http.ResponseWriter, r *http.Request) {
		gotURLs = r.FormValue("urls")
		gotPath = r.FormValue("savepath")
	})

	c := newTestQbt(t, mux)
	if err := c.Add(context.Background(), "magnet:?xt=urn:btih:abc", "/srv/media"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if gotURLs != "magnet:?xt=urn:btih:abc" {
		t.Errorf("urls = %q", gotURLs)
	}
	if gotPath != "/srv/media" {
		t.Errorf("savepath = %q", gotPath)
	}
}
