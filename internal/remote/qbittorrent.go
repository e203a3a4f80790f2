// Package remote holds the external collaborators the bot talks to:
// the qBittorrent WebUI, the Docker Engine API, public digest sources and
// the local host. Every call takes a context and respects its deadline;
// errors come back typed enough for the gateway to classify but carry no
// retry logic of their own.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
)

// Torrent is one entry from the qBittorrent torrent list.
type Torrent struct {
	Hash       string  `json:"hash"`
	Name       string  `json:"name"`
	State      string  `json:"state"`
	Progress   float64 `json:"progress"`
	AmountLeft int64   `json:"amount_left"`
	Size       int64   `json:"size"`
	Completed  int64   `json:"completed"`
	DlSpeed    int64   `json:"dlspeed"`
	ETA        int64   `json:"eta"`
}

// Complete reports whether the torrent finished downloading.
func (t Torrent) Complete() bool {
	return t.AmountLeft == 0 || t.Progress >= 0.9999
}

// QbtClient talks to the qBittorrent WebUI API (v2). The session cookie
// is acquired lazily and re-acquired once on a 403.
type QbtClient struct {
	baseURL string
	user    string
	pass    string
	http    *http.Client

	mu       sync.Mutex
	loggedIn bool
}

// NewQbtClient creates a client for http://host:port.
func NewQbtClient(host string, port int, user, pass string) *QbtClient {
	jar, _ := cookiejar.New(nil)
	return &QbtClient{
		baseURL: fmt.Sprintf("http://%s:%d", host, port),
		user:    user,
		pass:    pass,
		http:    &http.Client{Jar: jar},
	}
}

// List returns all torrents.
func (c *QbtClient) List(ctx context.Context) ([]Torrent, error) {
	body, err := c.get(ctx, "/api/v2/torrents/info")
	if err != nil {
		return nil, err
	}
	var torrents []Torrent
	if err := json.Unmarshal(body, &torrents); err != nil {
		return nil, fmt.Errorf("qbittorrent: decode torrent list: %w", err)
	}
	return torrents, nil
}

// Names returns the torrent names, for the suggestion cache.
func (c *QbtClient) Names(ctx context.Context) ([]string, error) {
	torrents, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(torrents))
	for _, t := range torrents {
		names = append(names, t.Name)
	}
	return names, nil
}

// Add submits a magnet link or torrent URL, with an optional save path.
func (c *QbtClient) Add(ctx context.Context, uri, savePath string) error {
	form := url.Values{"urls": {uri}}
	if savePath != "" {
		form.Set("savepath", savePath)
	}
	_, err := c.post(ctx, "/api/v2/torrents/add", form)
	return err
}

// Pause pauses the given torrents.
func (c *QbtClient) Pause(ctx context.Context, hashes []string) error {
	_, err := c.post(ctx, "/api/v2/torrents/stop", url.Values{"hashes": {strings.Join(hashes, "|")}})
	return err
}

// Resume resumes the given torrents.
func (c *QbtClient) Resume(ctx context.Context, hashes []string) error {
	_, err := c.post(ctx, "/api/v2/torrents/start", url.Values{"hashes": {strings.Join(hashes, "|")}})
	return err
}

// Delete removes the given torrents, optionally with their files.
func (c *QbtClient) Delete(ctx context.Context, hashes []string, deleteFiles bool) error {
	form := url.Values{
		"hashes":      {strings.Join(hashes, "|")},
		"deleteFiles": {fmt.Sprintf("%t", deleteFiles)},
	}
	_, err := c.post(ctx, "/api/v2/torrents/delete", form)
	return err
}

// --- Internal ---

func (c *QbtClient) login(ctx context.Context) error {
	form := url.Values{"username": {c.user}, "password": {c.pass}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("qbittorrent: login: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != "Ok." {
		return fmt.Errorf("qbittorrent: login rejected (status %d)", resp.StatusCode)
	}
	c.loggedIn = true
	return nil
}

func (c *QbtClient) get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *QbtClient) post(ctx context.Context, path string, form url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, form)
}

func (c *QbtClient) do(ctx context.Context, method, path string, form url.Values) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loggedIn {
		if err := c.login(ctx); err != nil {
			return nil, err
		}
	}

	body, status, err := c.roundTrip(ctx, method, path, form)
	if err != nil {
		return nil, err
	}
	if status == http.StatusForbidden {
		// Session expired; log in once more and retry.
		c.loggedIn = false
		if err := c.login(ctx); err != nil {
			return nil, err
		}
		body, status, err = c.roundTrip(ctx, method, path, form)
		if err != nil {
			return nil, err
		}
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("qbittorrent: %s %s: status %d", method, path, status)
	}
	return body, nil
}

func (c *QbtClient) roundTrip(ctx context.Context, method, path string, form url.Values) ([]byte, int, error) {
	var reader io.Reader
	if form != nil {
		reader = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("qbittorrent: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("qbittorrent: read response: %w", err)
	}
	return body, resp.StatusCode, nil
}
