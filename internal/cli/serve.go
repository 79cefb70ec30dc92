package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpapi "github.com/fairyhunter13/catalog-delta-sync/internal/http"
	"github.com/fairyhunter13/catalog-delta-sync/internal/obs"
)

// NewServeCommand creates the long-running trigger server: an external
// scheduler POSTs /runs to start a sync and receives the run report.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP trigger endpoint for sync runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			obs.InitLogger(cfg.LogLevel)
			obs.Logger.Info("service_starting")

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			s, closer, err := buildSyncer(ctx, cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			app := httpapi.NewApp(cfg, s)
			mux := httpapi.NewRouter(app)

			srv := &http.Server{
				Addr:              cfg.HTTPAddr,
				Handler:           mux,
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      0, // a triggered run can outlive any fixed write window
				IdleTimeout:       60 * time.Second,
			}

			go func() {
				obs.Logger.Info("http_listen", "addr", cfg.HTTPAddr)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					obs.Logger.Error("http_server_error", "error", err)
					os.Exit(1)
				}
			}()

			sigc := make(chan os.Signal, 1)
			signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
			sig := <-sigc
			obs.Logger.Info("shutdown_signal", "signal", sig.String())

			app.StartShutdown()
			drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancelDrain()
			for app.RunInFlight() {
				select {
				case <-drainCtx.Done():
					obs.Logger.Warn("shutdown_drain_timeout")
					cancel() // stop submitting new dispatches; in-flight requests finish
				case <-time.After(50 * time.Millisecond):
					continue
				}
				break
			}

			srvCtx, cancelSrv := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelSrv()
			if err := srv.Shutdown(srvCtx); err != nil {
				obs.Logger.Error("http_shutdown_error", "error", err)
			}
			obs.Logger.Info("service_stopped")
			return nil
		},
	}
}
