package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/teleops/internal/auth"
	"github.com/nextlevelbuilder/teleops/internal/bus"
	"github.com/nextlevelbuilder/teleops/internal/channels/telegram"
	"github.com/nextlevelbuilder/teleops/internal/commands"
	"github.com/nextlevelbuilder/teleops/internal/config"
	"github.com/nextlevelbuilder/teleops/internal/gateway"
	"github.com/nextlevelbuilder/teleops/internal/notify"
	"github.com/nextlevelbuilder/teleops/internal/remote"
	"github.com/nextlevelbuilder/teleops/internal/state"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.BotToken == "" {
		return fmt.Errorf("no bot token: set botToken in %s or TELEOPS_BOT_TOKEN", configPath)
	}

	// Live config pointer so the watcher can swap in edits without a
	// restart. Checkers below read through it.
	var live atomic.Pointer[config.Config]
	live.Store(cfg)

	var secret []byte
	if cfg.TOTPSecret != "" {
		secret, err = auth.DecodeSecret(cfg.TOTPSecret)
		if err != nil {
			return fmt.Errorf("invalid TOTP secret: %w", err)
		}
	} else {
		slog.Warn("no TOTP secret configured, sensitive commands are unusable")
	}

	store := state.New(cfg.AuditCapacity, cfg.StateFile)
	authSvc := auth.NewService(secret, cfg.GrantTTL())
	limiter := gateway.NewRateLimiter(cfg.RateLimitWindow())
	defer limiter.Stop()

	deps := &commands.Deps{
		Cfg:       cfg,
		Store:     store,
		Auth:      authSvc,
		Cache:     state.NewSuggestionCache(cfg.CacheTTL()),
		Magnets:   state.NewMagnetCache(),
		Qbt:       remote.NewQbtClient(cfg.Qbt.Host, cfg.Qbt.Port, cfg.Qbt.User, cfg.Qbt.Pass),
		Docker:    remote.NewDockerClient(cfg.Docker.Socket),
		HN:        remote.NewHackerNewsClient(),
		Epic:      remote.NewEpicClient(),
		Pirate:    remote.NewPirateBayClient(),
		Sys:       remote.NewSysInfo(cfg.WatchPaths),
		Version:   version,
		StartedAt: time.Now(),
	}

	registry := gateway.NewRegistry()
	commands.RegisterAll(registry, deps)

	dispatcher := gateway.NewDispatcher(
		registry,
		limiter,
		func(chatID int64) bool { return live.Load().Allowed(chatID) },
		authSvc.HasGrant,
		store,
		cfg.RemoteTimeout(),
	)

	notifyBus := bus.New()
	channel, err := telegram.New(cfg.BotToken, dispatcher, notifyBus, func(chatID int64) bool {
		return live.Load().Allowed(chatID)
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	startWatcher(&live, limiter)

	poller := notify.NewPoller(cfg.PollInterval(), cfg.RemoteTimeout(), fetchTorrents(deps.Qbt), store, notifyBus)
	go poller.Run(ctx)

	digests := notify.NewDigestScheduler(
		cfg.Location(),
		cfg.RemoteTimeout(),
		[]notify.DigestJob{
			{Feed: state.FeedGameOffers, Expr: cfg.Digests.GameOffersCron, Fetch: deps.Epic.Digest},
			{Feed: state.FeedHackerNews, Expr: cfg.Digests.HackerNewsCron, Fetch: hnDigest(deps.HN)},
		},
		store,
		notifyBus,
		func() []int64 { return live.Load().AllowedChatIDs },
	)
	go digests.Run(ctx)

	slog.Info("teleops starting",
		"version", version,
		"allowed_chats", len(cfg.AllowedChatIDs),
		"poll_interval", cfg.PollInterval(),
	)
	return channel.Run(ctx)
}

// startWatcher wires config hot reload: allow-list changes apply through
// the live pointer, rate-limit window changes through the limiter. Running
// without a watchable config file is fine.
func startWatcher(live *atomic.Pointer[config.Config], limiter *gateway.RateLimiter) {
	watcher, err := config.NewWatcher(configPath)
	if err != nil {
		slog.Warn("config watcher unavailable", "error", err)
		return
	}
	watcher.OnReload(func(cfg *config.Config) {
		live.Store(cfg)
		limiter.SetWindow(cfg.RateLimitWindow())
	})
	if err := watcher.Start(); err != nil {
		slog.Warn("config watcher not started", "path", configPath, "error", err)
	}
}

// fetchTorrents adapts the qBittorrent client to the poller's fetcher.
func fetchTorrents(qbt *remote.QbtClient) notify.TorrentFetcher {
	return func(ctx context.Context) (map[string]notify.TorrentState, error) {
		torrents, err := qbt.List(ctx)
		if err != nil {
			return nil, err
		}
		out := make(map[string]notify.TorrentState, len(torrents))
		for _, t := range torrents {
			out[t.Hash] = notify.TorrentState{
				Name:       t.Name,
				Complete:   t.Complete(),
				Size:       t.Size,
				Downloaded: t.Completed,
			}
		}
		return out, nil
	}
}

func hnDigest(hn *remote.HackerNewsClient) notify.DigestFetcher {
	return func(ctx context.Context) (string, error) {
		return hn.Digest(ctx, 3)
	}
}
