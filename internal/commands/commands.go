// Package commands registers the bot's command set against the gateway
// registry. Handlers format replies as Telegram HTML; they talk to the
// external collaborators through the remote package and never reach into
// the transport.
package commands

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/nextlevelbuilder/teleops/internal/auth"
	"github.com/nextlevelbuilder/teleops/internal/config"
	"github.com/nextlevelbuilder/teleops/internal/gateway"
	"github.com/nextlevelbuilder/teleops/internal/remote"
	"github.com/nextlevelbuilder/teleops/internal/state"
)

// Command groups, in help order.
const (
	groupInfo          = "Info"
	groupSystem        = "System"
	groupDocker        = "Docker"
	groupTorrents      = "Torrents"
	groupNotifications = "Notifications"
)

// Deps carries everything the handlers need. All fields are required
// unless noted.
type Deps struct {
	Cfg     *config.Config
	Store   *state.Store
	Auth    *auth.Service
	Cache   *state.SuggestionCache
	Magnets *state.MagnetCache

	Qbt    *remote.QbtClient
	Docker *remote.DockerClient
	HN     *remote.HackerNewsClient
	Epic   *remote.EpicClient
	Pirate *remote.PirateBayClient
	Sys    *remote.SysInfo

	Version   string
	StartedAt time.Time
}

// RegisterAll wires every command into reg. Panics on a duplicate name,
// which is a programming error in the static set below.
func RegisterAll(reg *gateway.Registry, d *Deps) {
	d.registerInfo(reg)
	d.registerSystem(reg)
	d.registerDocker(reg)
	d.registerTorrents(reg)
	d.registerFeeds(reg)
}

// --- Shared helpers ---

// usageReply builds the reply for a command invoked without its required
// argument: the usage line plus up to a handful of suggestions from the
// matching cache. Best effort; an empty cache just yields the usage line.
func (d *Deps) usageReply(ctx context.Context, cmd *gateway.Command, query string) string {
	reply := "Usage: " + cmd.Usage
	names := d.suggestions(ctx, cmd.Suggest)
	if len(names) == 0 {
		return reply
	}
	matches := d.Cache.Suggest(string(cmd.Suggest), query, 5)
	if len(matches) == 0 {
		return reply
	}
	var b strings.Builder
	b.WriteString(reply + "\n\nDid you mean:\n")
	for _, name := range matches {
		b.WriteString(fmt.Sprintf("• <code>%s</code>\n", html.EscapeString(name)))
	}
	return strings.TrimRight(b.String(), "\n")
}

// suggestions returns the (possibly refreshed) name list for a suggest
// kind, or nil when the command has none.
func (d *Deps) suggestions(ctx context.Context, kind gateway.SuggestKind) []string {
	switch kind {
	case gateway.SuggestContainers:
		return d.Cache.GetOrRefresh(ctx, string(kind), d.Docker.Names)
	case gateway.SuggestTorrents:
		return d.Cache.GetOrRefresh(ctx, string(kind), d.Qbt.Names)
	default:
		return nil
	}
}

// resolveTorrent maps a user-typed name fragment to exactly one torrent.
// The second result is a reply to send when resolution fails.
func (d *Deps) resolveTorrent(ctx context.Context, fragment string) (remote.Torrent, string, error) {
	torrents, err := d.Qbt.List(ctx)
	if err != nil {
		return remote.Torrent{}, "", err
	}

	frag := strings.ToLower(fragment)
	var matches []remote.Torrent
	for _, t := range torrents {
		if strings.Contains(strings.ToLower(t.Name), frag) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return remote.Torrent{}, fmt.Sprintf("No torrent matches <code>%s</code>.", html.EscapeString(fragment)), nil
	case 1:
		return matches[0], "", nil
	default:
		var b strings.Builder
		b.WriteString(fmt.Sprintf("%d torrents match, be more specific:\n", len(matches)))
		for i, t := range matches {
			if i == 5 {
				b.WriteString("…\n")
				break
			}
			b.WriteString(fmt.Sprintf("• <code>%s</code>\n", html.EscapeString(t.Name)))
		}
		return remote.Torrent{}, strings.TrimRight(b.String(), "\n"), nil
	}
}

// fmtSize renders a compact decimal byte count.
func fmtSize(n int64) string {
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

// fmtDuration renders a duration as "3d 4h 12m".
func fmtDuration(dur time.Duration) string {
	secs := int64(dur.Seconds())
	d := secs / 86400
	h := secs % 86400 / 3600
	m := secs % 3600 / 60
	if d > 0 {
		return fmt.Sprintf("%dd %dh %dm", d, h, m)
	}
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
