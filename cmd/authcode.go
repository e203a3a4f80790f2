package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/teleops/internal/auth"
	"github.com/nextlevelbuilder/teleops/internal/config"
)

func authCodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "authcode",
		Short: "Print the current elevation code",
		Long:  "Prints the one-time code for /auth, computed from the configured TOTP secret.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.TOTPSecret == "" {
				return fmt.Errorf("no TOTP secret: set totpSecret in %s or TELEOPS_TOTP_SECRET", configPath)
			}
			secret, err := auth.DecodeSecret(cfg.TOTPSecret)
			if err != nil {
				return fmt.Errorf("invalid TOTP secret: %w", err)
			}

			now := time.Now()
			left := auth.TimeStep - time.Duration(now.Unix()%int64(auth.TimeStep/time.Second))*time.Second
			fmt.Printf("%s (valid %s)\n", auth.Code(secret, now), left)
			return nil
		},
	}
}
