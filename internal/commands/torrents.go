package commands

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/nextlevelbuilder/teleops/internal/gateway"
	"github.com/nextlevelbuilder/teleops/internal/state"
)

func (d *Deps) registerTorrents(reg *gateway.Registry) {
	reg.MustRegister(&gateway.Command{
		Name: "tsearch", Group: groupTorrents,
		Usage: "/tsearch <query>", Description: "search torrents",
		Handler: d.cmdTSearch,
	})
	reg.MustRegister(&gateway.Command{
		Name: "tadd", Group: groupTorrents,
		Usage: "/tadd <magnet|pick>", Description: "add a torrent by magnet link or search pick",
		Handler: d.cmdTAdd,
	})
	reg.MustRegister(&gateway.Command{
		Name: "tstatus", Aliases: []string{"torrents"}, Group: groupTorrents,
		Usage: "/tstatus [name]", Description: "torrent download status",
		Suggest: gateway.SuggestTorrents,
		Handler: d.cmdTStatus,
	})

	tstop := &gateway.Command{
		Name: "tstop", Group: groupTorrents,
		Usage: "/tstop <name>", Description: "pause a torrent",
		Suggest: gateway.SuggestTorrents,
	}
	tstop.Handler = func(ctx context.Context, req gateway.Request) (string, error) {
		if req.Raw == "" {
			return d.usageReply(ctx, tstop, ""), nil
		}
		return d.torrentAction(ctx, req.Raw, "⏸ Paused", d.Qbt.Pause)
	}
	reg.MustRegister(tstop)

	tstart := &gateway.Command{
		Name: "tstart", Group: groupTorrents,
		Usage: "/tstart <name>", Description: "resume a torrent",
		Suggest: gateway.SuggestTorrents,
	}
	tstart.Handler = func(ctx context.Context, req gateway.Request) (string, error) {
		if req.Raw == "" {
			return d.usageReply(ctx, tstart, ""), nil
		}
		return d.torrentAction(ctx, req.Raw, "▶️ Resumed", d.Qbt.Resume)
	}
	reg.MustRegister(tstart)

	tdelete := &gateway.Command{
		Name: "tdelete", Group: groupTorrents,
		Usage: "/tdelete <name> [--files]", Description: "delete a torrent (sensitive)",
		Elevated: true,
		Suggest:  gateway.SuggestTorrents,
	}
	tdelete.Handler = func(ctx context.Context, req gateway.Request) (string, error) {
		if req.Raw == "" {
			return d.usageReply(ctx, tdelete, ""), nil
		}
		return d.cmdTDelete(ctx, req)
	}
	reg.MustRegister(tdelete)

	reg.MustRegister(&gateway.Command{
		Name: "subscribe", Group: groupNotifications,
		Usage: "/subscribe [on|off|status]", Description: "torrent completion notifications",
		Handler: d.cmdSubscribe,
	})
}

func (d *Deps) cmdSubscribe(ctx context.Context, req gateway.Request) (string, error) {
	var on bool
	switch strings.ToLower(req.Raw) {
	case "":
		on = d.Store.ToggleSubscription(state.FeedTorrentComplete, req.ChatID)
	case "on":
		d.Store.SetSubscription(state.FeedTorrentComplete, req.ChatID, true)
		on = true
	case "off":
		d.Store.SetSubscription(state.FeedTorrentComplete, req.ChatID, false)
	case "status":
		if d.Store.IsSubscribed(state.FeedTorrentComplete, req.ChatID) {
			return "🔔 This chat is subscribed to torrent completion notifications.", nil
		}
		return "🔕 This chat is not subscribed to torrent completion notifications.", nil
	default:
		return "Usage: /subscribe [on|off|status]", nil
	}
	if on {
		return "🔔 Subscribed to torrent completion notifications.", nil
	}
	return "🔕 Unsubscribed from torrent completion notifications.", nil
}

func (d *Deps) cmdTSearch(ctx context.Context, req gateway.Request) (string, error) {
	if req.Raw == "" {
		return "Usage: /tsearch <query>", nil
	}
	results, err := d.Pirate.Search(ctx, req.Raw, 5)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return fmt.Sprintf("No results for <code>%s</code>.", html.EscapeString(req.Raw)), nil
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("<b>Results for %s</b>\n", html.EscapeString(req.Raw)))
	for i, r := range results {
		pick := d.Magnets.Put(r.Name, r.Magnet())
		b.WriteString(fmt.Sprintf("\n%d. <code>%s</code>\n   %s, %d seeders → /tadd %s",
			i+1, html.EscapeString(r.Name), fmtSize(r.Size), r.Seeders, pick))
	}
	return b.String(), nil
}

func (d *Deps) cmdTAdd(ctx context.Context, req gateway.Request) (string, error) {
	if len(req.Args) == 0 {
		return "Usage: /tadd <magnet|pick>", nil
	}

	arg := req.Args[0]
	uri := arg
	name := ""
	if !strings.HasPrefix(arg, "magnet:") {
		m, ok := d.Magnets.Get(arg)
		if !ok {
			return fmt.Sprintf("Unknown pick <code>%s</code>. Picks expire; run /tsearch again.", html.EscapeString(arg)), nil
		}
		uri, name = m.URI, m.Name
	}

	if err := d.Qbt.Add(ctx, uri, ""); err != nil {
		return "", err
	}
	d.Cache.Invalidate(string(gateway.SuggestTorrents))
	if name != "" {
		return fmt.Sprintf("⬇️ Added <b>%s</b>.", html.EscapeString(name)), nil
	}
	return "⬇️ Torrent added.", nil
}

func (d *Deps) cmdTStatus(ctx context.Context, req gateway.Request) (string, error) {
	torrents, err := d.Qbt.List(ctx)
	if err != nil {
		return "", err
	}

	frag := strings.ToLower(req.Raw)
	var b strings.Builder
	shown := 0
	for _, t := range torrents {
		if frag != "" && !strings.Contains(strings.ToLower(t.Name), frag) {
			continue
		}
		icon := "⬇️"
		if t.Complete() {
			icon = "✅"
		}
		b.WriteString(fmt.Sprintf("%s <code>%s</code>\n   %.0f%% of %s [%s]\n",
			icon, html.EscapeString(t.Name), t.Progress*100, fmtSize(t.Size), t.State))
		shown++
		if shown == 15 {
			b.WriteString("…\n")
			break
		}
	}
	if shown == 0 {
		if frag != "" {
			return fmt.Sprintf("No torrent matches <code>%s</code>.", html.EscapeString(req.Raw)), nil
		}
		return "No torrents.", nil
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// torrentAction resolves a name fragment and applies a pause/resume call.
func (d *Deps) torrentAction(ctx context.Context, fragment, verb string, action func(context.Context, []string) error) (string, error) {
	t, reply, err := d.resolveTorrent(ctx, fragment)
	if err != nil {
		return "", err
	}
	if reply != "" {
		return reply, nil
	}
	if err := action(ctx, []string{t.Hash}); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s <b>%s</b>.", verb, html.EscapeString(t.Name)), nil
}

func (d *Deps) cmdTDelete(ctx context.Context, req gateway.Request) (string, error) {
	deleteFiles := false
	args := req.Args
	if n := len(args); n > 0 && args[n-1] == "--files" {
		deleteFiles = true
		args = args[:n-1]
	}
	fragment := strings.Join(args, " ")
	if fragment == "" {
		return "Usage: /tdelete <name> [--files]", nil
	}

	t, reply, err := d.resolveTorrent(ctx, fragment)
	if err != nil {
		return "", err
	}
	if reply != "" {
		return reply, nil
	}
	if err := d.Qbt.Delete(ctx, []string{t.Hash}, deleteFiles); err != nil {
		return "", err
	}
	d.Cache.Invalidate(string(gateway.SuggestTorrents))

	msg := fmt.Sprintf("🗑 Deleted <b>%s</b>", html.EscapeString(t.Name))
	if deleteFiles {
		msg += " and its files"
	}
	return msg + ".", nil
}
