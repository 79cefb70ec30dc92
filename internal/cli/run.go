package cli

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/catalog-delta-sync/internal/obs"
)

// NewRunCommand creates the one-shot sync command. It executes a single run
// and prints the run report as JSON on stdout.
func NewRunCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute one sync run and print the run report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			obs.InitLogger(cfg.LogLevel)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s, closer, err := buildSyncer(ctx, cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			report, err := s.Run(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}
