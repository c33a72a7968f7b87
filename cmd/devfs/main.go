package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"devfs/internal/config"
	"devfs/internal/fs"
	"devfs/internal/logging"
	"devfs/internal/metrics"
	"devfs/internal/state"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
)

var (
	logger = logging.GetLogger()
)

func main() {
	// Parse command line flags
	configPath := pflag.StringP("config", "c", "", "Path to a YAML config file")
	mountPoint := pflag.StringP("mount", "m", "", "Mount point for the device filesystem")
	documentPath := pflag.StringP("document", "d", "", "Device document path")
	metricsAddr := pflag.String("metrics-addr", "", "Address for the Prometheus /metrics listener")
	noRestore := pflag.Bool("no-restore", false, "Start from an empty device document")
	verbose := pflag.BoolP("verbose", "v", false, "Enable verbose logging")
	pflag.Parse()

	if *mountPoint == "" && pflag.NArg() > 0 {
		*mountPoint = pflag.Arg(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	if *mountPoint != "" {
		cfg.MountPoint = *mountPoint
	}
	if *documentPath != "" {
		cfg.DocumentPath = *documentPath
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *noRestore {
		cfg.Restore = false
	}

	if err := logging.Configure(cfg.LoggingOptions()); err != nil {
		logger.Error("Failed to configure logging: %v", err)
		os.Exit(1)
	}
	// Configure logging based on flags
	if *verbose {
		logger.SetLevel(logging.LevelDebug)
	}

	if cfg.MountPoint == "" {
		logger.Error("Mount point is required")
		os.Exit(1)
	}

	os.Exit(run(cfg))
}

func run(cfg *config.Config) int {
	defer func() { _ = logger.Sync() }()

	cleanMount := filepath.Clean(cfg.MountPoint)

	logger.Info("Starting devfs...")
	logger.Debug("Mount point: %s", cleanMount)
	logger.Debug("Device document: %s", cfg.DocumentPath)
	logger.Debug("Max file size: %s", humanize.Bytes(cfg.MaxFileSize.Bytes()))

	logger.Info("Initializing state manager...")
	manager, err := state.NewManager(cfg.DocumentPath, cfg.BackupCount)
	if err != nil {
		logger.Error("Failed to initialize state manager: %v", err)
		return 1
	}
	defer manager.Close()

	if !cfg.Restore {
		logger.Info("Restore disabled, clearing device document")
		if err := manager.Reset(); err != nil {
			logger.Error("Failed to reset device document: %v", err)
			return 1
		}
	}

	ctrl := fs.NewController(state.NewDeviceTree(manager), fs.Options{
		UID:         cfg.UID,
		GID:         cfg.GID,
		MaxFileSize: cfg.MaxFileSize.Bytes(),
	})
	if err := ctrl.Restore(); err != nil {
		logger.Error("Failed to restore devices: %v", err)
		return 1
	}

	var metricsErr <-chan error
	if cfg.MetricsAddr != "" {
		srv, errc := metrics.Serve(cfg.MetricsAddr)
		metricsErr = errc
		logger.Info("Serving metrics on %s", cfg.MetricsAddr)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("Metrics shutdown: %v", err)
			}
		}()
	}

	logger.Debug("Setting up signal handlers...")
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Mounting filesystem...")
	vfs := fs.NewDevFS(ctrl, fs.MountOptions{AllowOther: cfg.AllowOther})
	if err := vfs.Mount(cleanMount); err != nil {
		logger.Error("Mount failed: %v", err)
		return 1
	}
	logger.Info("Filesystem mounted and ready")

	code := 0
	mounted := true
	select {
	case sig := <-sigChan:
		logger.Info("Received signal %v", sig)
	case <-vfs.Done():
		logger.Info("FUSE server stopped")
		mounted = false
	case err, ok := <-metricsErr:
		if ok && err != nil {
			logger.Error("Metrics listener failed: %v", err)
			code = 1
		}
	}

	if mounted {
		if err := vfs.Unmount(cleanMount); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Error("Unmount error: %v", err)
			return 1
		}
		<-vfs.Done()
	}

	logger.Info("Clean shutdown complete")
	return code
}
