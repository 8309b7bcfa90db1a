// Run command for the sone CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/sone/internal/engine"
	"github.com/mesh-intelligence/sone/internal/identity"
	"github.com/mesh-intelligence/sone/internal/logging"
	"github.com/mesh-intelligence/sone/internal/metrics"
	"github.com/mesh-intelligence/sone/internal/overlay"
	"github.com/mesh-intelligence/sone/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the synchronization engine until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runEngine,
}

func runEngine(cmd *cobra.Command, args []string) error {
	dataDir, err := resolveDataDir()
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	cfg, err := engineConfig(settings, dataDir)
	if err != nil {
		return err
	}
	log, err := logging.New(settings.GetString(cfgKeyLogLevel))
	if err != nil {
		log.Warn("%v, using info", err)
	}

	backend, err := attachBackend(dataDir)
	if err != nil {
		return err
	}
	defer backend.Detach()

	annotations, err := backend.GetTable(types.AnnotationsTable)
	if err != nil {
		return fmt.Errorf("annotations table: %w", err)
	}
	pool := overlay.NewRelayPool(cfg.Relays, settings.GetDuration(cfgKeyRelayTimeout), log)
	svc, err := identity.NewNostrService(pool, cfg.Keys, annotations)
	if err != nil {
		return err
	}
	eng, err := engine.New(cfg, svc, overlay.NewNostr(pool), backend, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr := settings.GetString(cfgKeyMetricsAddr); addr != "" {
		srv := &http.Server{Addr: addr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics endpoint: %v", err)
			}
		}()
		defer func() {
			shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdown)
		}()
		log.Info("metrics on %s", addr)
	}

	if len(cfg.Relays) == 0 {
		log.Warn("no relays configured")
	}
	return eng.Run(ctx)
}
