package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestPirateBay(t *testing.T, body string) *PirateBayClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got == "" {
			t.Errorf("missing query parameter, URL %s", r.URL)
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return &PirateBayClient{baseURL: srv.URL, http: srv.Client()}
}

func TestPirateBaySearch(t *testing.T) {
	c := newTestPirateBay(t, `[
		{"name":"Ubuntu 26.04 ISO","info_hash":"ABCDEF0123456789ABCDEF0123456789ABCDEF01","seeders":"420","size":"3000000000"},
		{"name":"Fedora 44","info_hash":"1111111111111111111111111111111111111111","seeders":"7","size":"2000000000"}
	]`)

	results, err := c.Search(context.Background(), "linux iso", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	r := results[0]
	if r.Name != "Ubuntu 26.04 ISO" || r.Seeders != 420 || r.Size != 3000000000 {
		t.Errorf("result 0 = %+v", r)
	}

	magnet := r.Magnet()
	if !strings.HasPrefix(magnet, "magnet:?xt=urn:btih:ABCDEF0123456789ABCDEF0123456789ABCDEF01") {
		t.Errorf("magnet = %q", magnet)
	}
	if !strings.Contains(magnet, "dn=Ubuntu+26.04+ISO") {
		t.Errorf("magnet missing display name: %q", magnet)
	}
}

func TestPirateBaySearchNoResults(t *testing.T) {
	// The API answers with a placeholder row instead of an empty array.
	c := newTestPirateBay(t, `[{"name":"No results returned","info_hash":"0000000000000000000000000000000000000000","seeders":"0","size":"0"}]`)

	results, err := c.Search(context.Background(), "zzzzz", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("placeholder row surfaced as a result: %v", results)
	}
}

func TestPirateBaySearchLimit(t *testing.T) {
	var rows []string
	for i := 0; i < 10; i++ {
		rows = append(rows, fmt.Sprintf(
			`{"name":"t%d","info_hash":"%040d","seeders":"1","size":"1"}`, i, i+1))
	}
	c := newTestPirateBay(t, "["+strings.Join(rows, ",")+"]")

	results, err := c.Search(context.Background(), "t", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("limit ignored: got %d results", len(results))
	}
}
