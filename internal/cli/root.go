// Package cli wires configuration into the sync engine and exposes the
// command-line surface.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/catalog-delta-sync/internal/config"
	"github.com/fairyhunter13/catalog-delta-sync/internal/dispatch"
	"github.com/fairyhunter13/catalog-delta-sync/internal/feed"
	"github.com/fairyhunter13/catalog-delta-sync/internal/obs"
	"github.com/fairyhunter13/catalog-delta-sync/internal/state"
	"github.com/fairyhunter13/catalog-delta-sync/internal/syncer"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
}

// NewRootCommand creates the root command for the catalog-delta-sync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "catalog-delta-sync",
		Short:         "Delta-sync ERP product snapshots into a remote catalog API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "optional YAML config file (environment wins)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	return cmd
}

// loadConfig resolves configuration from the optional file plus environment.
func loadConfig(opts *RootOptions) (config.Config, error) {
	if opts.ConfigFile != "" {
		return config.LoadFile(opts.ConfigFile)
	}
	return config.Load(), nil
}

// closerFunc adapts plain close functions to io.Closer.
type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// buildSyncer assembles the orchestrator and its collaborators from cfg.
// The returned closer releases the state store.
func buildSyncer(ctx context.Context, cfg config.Config) (*syncer.Syncer, io.Closer, error) {
	var (
		store  state.Store
		closer io.Closer = closerFunc(func() error { return nil })
	)
	switch cfg.StateDriver {
	case config.DriverMemory:
		store = state.NewMemory()
	case config.DriverSQLite:
		s, err := state.OpenSQLite(cfg.StateDSN)
		if err != nil {
			return nil, nil, err
		}
		store, closer = s, s
	case config.DriverPostgres:
		s, err := state.OpenPostgres(ctx, cfg.StateDSN)
		if err != nil {
			return nil, nil, err
		}
		store = s
		closer = closerFunc(func() error { s.Close(); return nil })
	default:
		return nil, nil, fmt.Errorf("unknown state driver %q", cfg.StateDriver)
	}

	client := dispatch.NewClient(dispatch.Options{
		BaseURL:        cfg.BaseURL,
		APIKey:         cfg.APIKey,
		RateLimitRPS:   cfg.RateLimitRPS,
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff,
		HTTPTimeout:    cfg.HTTPTimeout,
	})
	f := feed.FileFeed{Path: cfg.FeedPath}
	obs.Logger.Info("syncer_configured",
		"state_driver", cfg.StateDriver,
		"feed_path", cfg.FeedPath,
		"rate_limit_rps", cfg.RateLimitRPS,
		"worker_count", cfg.WorkerCount,
	)
	return syncer.New(f, store, client, cfg.WorkerCount), closer, nil
}
