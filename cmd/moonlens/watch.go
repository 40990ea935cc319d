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

	"github.com/jward/moonlens/internal/observability"
	"github.com/jward/moonlens/internal/runtime"
	"github.com/jward/moonlens/internal/watcher"
)

var flagMetricsAddr string

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Index a directory and keep the index current as files change",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}
	p, err := loadProject(targetDir)
	if err != nil {
		return err
	}
	logger := newLogger(cmd)

	engine, err := p.openEngine(logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := resetIfNeeded(cmd.ErrOrStderr(), engine, p.dbPath); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := engine.IndexDirectory(ctx, targetDir); err != nil {
		// A partial index is still worth watching.
		logger.Warn("initial index incomplete", "err", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s (database: %s)\n", targetDir, p.dbPath)

	matcher, err := p.cfg.Matcher()
	if err != nil {
		return err
	}
	w, err := watcher.New(p.cfg.Watch.Debounce, matcher, runtime.IsSource, func(paths []string) {
		observability.WatcherBatches.Inc()
		start := time.Now()
		if err := engine.IndexFiles(ctx, paths); err != nil {
			logger.Error("reindex failed", "files", len(paths), "err", err)
			return
		}
		logger.Info("reindexed", "files", len(paths), "took", time.Since(start).Round(time.Millisecond))
	})
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()
	if err := w.Watch([]string{targetDir}); err != nil {
		return fmt.Errorf("watching %s: %w", targetDir, err)
	}

	if flagMetricsAddr != "" {
		srv := &http.Server{Addr: flagMetricsAddr, Handler: metricsMux(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", "err", err)
			}
		}()
		defer srv.Close()
		fmt.Fprintf(cmd.ErrOrStderr(), "Metrics on %s/metrics\n", flagMetricsAddr)
	}

	<-ctx.Done()
	return nil
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	return mux
}
