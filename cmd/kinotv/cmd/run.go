package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mmcdole/kinotv/internal/metrics"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Keep suggestions fresh until interrupted",
	Long: "Restore the saved session and rebuild suggestions on a schedule.\n" +
		"Serves Prometheus metrics when --metrics-addr is set.",
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("metrics-addr", "", "listen address for /metrics (e.g. :9090)")
	viper.BindPFlag("metrics.addr", runCmd.Flags().Lookup("metrics-addr"))
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, s, err := openConfigured()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.jobs.Start(ctx); err != nil {
		return err
	}
	go a.scheduler().Run(ctx)

	if addr := viper.GetString("metrics.addr"); addr != "" {
		srv := startMetrics(addr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("running", "version", Version, "userID", s.UserID, "serverID", s.ServerID)
	cmd.Printf("Refreshing suggestions for %s every %s (Ctrl+C to stop)\n", s.Username, cfg.Suggestions.Interval)

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

func startMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err, "addr", addr)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return srv
}
