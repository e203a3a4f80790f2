package commands

import (
	"context"
	"strconv"

	"github.com/nextlevelbuilder/teleops/internal/gateway"
	"github.com/nextlevelbuilder/teleops/internal/state"
)

func (d *Deps) registerFeeds(reg *gateway.Registry) {
	reg.MustRegister(&gateway.Command{
		Name: "gameoffers", Group: groupNotifications,
		Usage: "/gameoffers", Description: "current free game offers",
		Handler: func(ctx context.Context, req gateway.Request) (string, error) {
			return d.Epic.Digest(ctx)
		},
	})
	reg.MustRegister(&gateway.Command{
		Name: "hackernews", Aliases: []string{"hn"}, Group: groupNotifications,
		Usage: "/hackernews [n]", Description: "top Hacker News stories",
		Handler: func(ctx context.Context, req gateway.Request) (string, error) {
			n := 3
			if len(req.Args) > 0 {
				if v, err := strconv.Atoi(req.Args[0]); err == nil && v > 0 && v <= 10 {
					n = v
				}
			}
			return d.HN.Digest(ctx, n)
		},
	})
	reg.MustRegister(&gateway.Command{
		Name: "mutegameoffers", Group: groupNotifications,
		Usage: "/mutegameoffers", Description: "toggle the daily game offers digest",
		Handler: d.muteToggle(state.FeedGameOffers, "game offers"),
	})
	reg.MustRegister(&gateway.Command{
		Name: "mutehackernews", Group: groupNotifications,
		Usage: "/mutehackernews", Description: "toggle the daily Hacker News digest",
		Handler: d.muteToggle(state.FeedHackerNews, "Hacker News"),
	})
}

// muteToggle builds the handler for a digest mute command.
func (d *Deps) muteToggle(feed state.Feed, label string) gateway.Handler {
	return func(ctx context.Context, req gateway.Request) (string, error) {
		if d.Store.ToggleMute(feed, req.ChatID) {
			return "🔕 Muted the " + label + " digest for this chat.", nil
		}
		return "🔔 Unmuted the " + label + " digest for this chat.", nil
	}
}
