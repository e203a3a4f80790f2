// Package notify runs the background notification jobs: a short-interval
// poller that diffs torrent state and announces completions, and
// fixed-time digest triggers (game offers, Hacker News). Each job is
// independently supervised; a failing cycle is logged and the job carries
// on at its next scheduled tick.
package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/teleops/internal/bus"
	"github.com/nextlevelbuilder/teleops/internal/state"
)

// TorrentState is one tracked torrent as seen by a poll cycle.
type TorrentState struct {
	Name       string
	Complete   bool
	Size       int64
	Downloaded int64
}

// TorrentFetcher returns the current torrents keyed by info-hash.
type TorrentFetcher func(ctx context.Context) (map[string]TorrentState, error)

const (
	stateCompleted   = "completed"
	stateDownloading = "downloading"
)

// Poller watches torrent completion. One notification per completion
// transition per subscribed chat; repeated polls of an already-completed
// torrent stay silent.
type Poller struct {
	interval time.Duration
	timeout  time.Duration
	fetch    TorrentFetcher
	store    *state.Store
	bus      *bus.Bus
}

// NewPoller creates a completion poller. timeout bounds each fetch.
func NewPoller(interval, timeout time.Duration, fetch TorrentFetcher, store *state.Store, b *bus.Bus) *Poller {
	return &Poller{
		interval: interval,
		timeout:  timeout,
		fetch:    fetch,
		store:    store,
		bus:      b,
	}
}

// Run polls until ctx is cancelled. Call in its own goroutine.
func (p *Poller) Run(ctx context.Context) {
	slog.Info("torrent completion poller started", "interval", p.interval)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("torrent completion poller stopped")
			return
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

// cycle runs one poll. Panics and fetch errors are contained here so the
// loop in Run never dies.
func (p *Poller) cycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("poll cycle panic", "feed", state.FeedTorrentComplete, "panic", r)
		}
	}()

	subs := p.store.Subscribers(state.FeedTorrentComplete)
	if len(subs) == 0 {
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	torrents, err := p.fetch(fetchCtx)
	if err != nil {
		// Snapshot stays untouched; next cycle retries.
		slog.Warn("torrent poll fetch failed", "error", err)
		return
	}

	current := make(map[string]string, len(torrents))
	for hash, t := range torrents {
		if t.Complete {
			current[hash] = stateCompleted
		} else {
			current[hash] = stateDownloading
		}
	}

	completed := p.store.DiffAndUpdate(state.FeedTorrentComplete, current, stateCompleted)
	for _, hash := range completed {
		msg := formatCompletion(torrents[hash])
		for _, chatID := range subs {
			p.bus.Publish(bus.Notification{
				Feed:    string(state.FeedTorrentComplete),
				ChatID:  chatID,
				Content: msg,
			})
		}
		slog.Info("torrent completed", "hash", hash, "name", torrents[hash].Name, "chats", len(subs))
	}
}

func formatCompletion(t TorrentState) string {
	name := t.Name
	if name == "" {
		name = "<unknown>"
	}
	msg := fmt.Sprintf("✅ Torrent completed: <b>%s</b>", html.EscapeString(name))
	if t.Size > 0 {
		msg += fmt.Sprintf(" (<code>%s/%s</code>)", fmtBytes(t.Downloaded), fmtBytes(t.Size))
	}
	return msg
}

// fmtBytes renders a compact decimal size (1.2 GB).
func fmtBytes(n int64) string {
	units := []string{"B", "KB", "MB", "GB", "TB"}
	f := float64(n)
	i := 0
	for f >= 1000 && i < len(units)-1 {
		f /= 1000
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d %s", n, units[0])
	}
	return fmt.Sprintf("%.1f %s", f, units[i])
}
