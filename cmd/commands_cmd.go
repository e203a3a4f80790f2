package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/teleops/internal/auth"
	"github.com/nextlevelbuilder/teleops/internal/commands"
	"github.com/nextlevelbuilder/teleops/internal/config"
	"github.com/nextlevelbuilder/teleops/internal/gateway"
	"github.com/nextlevelbuilder/teleops/internal/remote"
	"github.com/nextlevelbuilder/teleops/internal/state"
)

func commandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List the bot's chat commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			// Clients are constructed but never called; registration only
			// needs the handler wiring.
			deps := &commands.Deps{
				Cfg:       cfg,
				Store:     state.New(cfg.AuditCapacity, ""),
				Auth:      auth.NewService(nil, cfg.GrantTTL()),
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

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			for _, c := range registry.All() {
				flags := ""
				if c.Elevated {
					flags = "elevated"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Group, c.Usage, c.Description, flags)
			}
			return w.Flush()
		},
	}
}
