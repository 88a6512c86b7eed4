// Command pathsyncd runs the path update authority: it persists the
// ordered change stream and serves it to downstream consumers.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/karstio/pathsync/internal/logger"
	"github.com/karstio/pathsync/internal/server"
	"github.com/karstio/pathsync/pkg/authority"
	"github.com/karstio/pathsync/pkg/config"
	"github.com/karstio/pathsync/pkg/metrics"
	"github.com/karstio/pathsync/pkg/store/changelog"
	s3snap "github.com/karstio/pathsync/pkg/store/snapshot/s3"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/pathsync/config.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	logger.SetLevel(cfg.Logging.Level)
	if err := setupLogOutput(cfg.Logging.Output); err != nil {
		logger.Error("Failed to set up log output: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}
	syncMetrics := metrics.NewSyncMetrics()

	changeLog, err := config.CreateChangelog(&cfg.Changelog)
	if err != nil {
		logger.Error("Failed to open changelog: %v", err)
		os.Exit(1)
	}
	defer changeLog.Close()

	snapshots, err := config.CreateSnapshotStore(ctx, &cfg.Snapshot)
	if err != nil {
		logger.Error("Failed to create snapshot store: %v", err)
		os.Exit(1)
	}

	streamServer := server.New(server.Config{
		Addr:       cfg.Server.Listen,
		Log:        changeLog,
		Snapshots:  snapshotSource(snapshots),
		Metrics:    syncMetrics,
		AcceptRate: cfg.Server.AcceptRate,
	})

	auth := authority.New(authority.Config{
		DefaultScheme: cfg.DefaultScheme(),
		Log:           changeLog,
		Snapshots:     snapshots,
		Publisher:     streamServer,
		Metrics:       syncMetrics,
	})
	logger.Info("Authority ready: default scheme %q, last seq=%d",
		cfg.DefaultScheme(), auth.LastSeq())

	if cfg.Changelog.TrimInterval > 0 {
		go trimLoop(ctx, changeLog, snapshots, cfg.Changelog.TrimInterval, cfg.Snapshot.Keep)
	}

	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(metrics.ServerConfig{Port: cfg.Metrics.Port})
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- streamServer.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("pathsyncd is running on %s. Press Ctrl+C to stop.", cfg.Server.Listen)

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
		cancel()

		select {
		case err := <-serverDone:
			if err != nil {
				logger.Error("Server shutdown error: %v", err)
				os.Exit(1)
			}
		case <-time.After(cfg.Server.ShutdownTimeout):
			logger.Error("Shutdown timed out after %v", cfg.Server.ShutdownTimeout)
			os.Exit(1)
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		if err != nil {
			logger.Error("Server error: %v", err)
			os.Exit(1)
		}
		logger.Info("Server stopped")
	}
}

// setupLogOutput points the logger at the configured destination.
func setupLogOutput(output string) error {
	switch output {
	case "stdout", "":
		// Default, nothing to do
		return nil
	case "stderr":
		logger.SetOutput(os.Stderr)
		return nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		logger.SetOutput(f)
		return nil
	}
}

// snapshotSource adapts an optional snapshot store for the stream server.
// A plain assignment would wrap a nil *Store in a non-nil interface.
func snapshotSource(store *s3snap.Store) server.SnapshotSource {
	if store == nil {
		return nil
	}
	return store
}

// trimLoop periodically drops deltas older than the latest full image and
// prunes snapshots down to the configured retention count.
func trimLoop(ctx context.Context, log *changelog.Log, snapshots *s3snap.Store, interval time.Duration, keep int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := log.Trim(); err != nil {
				logger.Warn("Changelog trim failed: %v", err)
			}
			if snapshots != nil {
				if _, err := snapshots.Prune(ctx, keep); err != nil {
					logger.Warn("Snapshot prune failed: %v", err)
				}
			}
		}
	}
}
