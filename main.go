package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"gopscope/config"
	"gopscope/httpServer"
	"gopscope/internal/auth"
	"gopscope/internal/mediamanager"
	"gopscope/internal/metrics"
	"gopscope/internal/probe"
	"gopscope/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:           "gopscope",
	Short:         "Group-of-pictures analysis for video files",
	Long:          "gopscope groups probed video frames into GOPs and reports their structure, byte cost and seekability.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP analysis server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
	DisableFlagsInUseLine: true,
}

func init() {
	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newAnalyzeCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := setupLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}

	log.Info("Starting gopscope server...")
	log.Infof("HTTP Server: %s", cfg.HTTPAddr)

	// Initialize storage
	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closer, ok := store.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				log.WithError(err).Warn("failed to close storage")
			}
		}
	}()

	// Initialize metrics
	m := metrics.New(nil)
	log.Info("Prometheus metrics initialized")

	// Initialize media registry and ffprobe runner
	mediaManager := mediamanager.New()
	runner := probe.NewRunner(cfg.FFprobePath, cfg.ProbeTimeout, cfg.MaxConcurrentProbes)
	runner.SetObserver(func(elapsed time.Duration, err error) {
		m.RecordProbe(elapsed.Seconds(), err)
	})
	log.WithFields(log.Fields{
		"ffprobe":     cfg.FFprobePath,
		"timeout":     cfg.ProbeTimeout,
		"concurrency": cfg.MaxConcurrentProbes,
	}).Info("Probe runner initialized")

	// Upload tokens are opt-in
	var authManager *auth.Manager
	if cfg.UploadTokens {
		authManager = auth.New(cfg.UploadTokenTTL)
		log.Infof("Upload tokens required, default lifetime %s", cfg.UploadTokenTTL)
	}

	// Initialize HTTP server
	httpSrv := httpServer.New(httpServer.Options{
		Media:         mediaManager,
		Storage:       store,
		Analyzer:      runner,
		Metrics:       m,
		Auth:          authManager,
		MaxUploadSize: cfg.MaxUploadSize,
	})

	log.Info("API Endpoints:")
	log.Info("  GET    /api/ping")
	log.Info("  POST   /api/v1/analyze")
	log.Info("  POST   /api/v1/uploads/token")
	log.Info("  POST   /api/v1/media")
	log.Info("  GET    /api/v1/media")
	log.Info("  GET    /api/v1/media/:id")
	log.Info("  DELETE /api/v1/media/:id")
	log.Info("  GET    /api/v1/media/:id/file")
	log.Info("  POST   /api/v1/media/:id/gop?stream=N")
	log.Info("  GET    /api/v1/media/:id/gop")
	log.Info("  GET    /api/v1/media/:id/keyframes")
	log.Info("  GET    /api/v1/media/:id/events")
	log.Info("  GET    /metrics")

	// Start HTTP server (blocking until shutdown)
	if err := httpSrv.Run(ctx, cfg.HTTPAddr); err != nil {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

func openStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	if cfg.StorageType == "gcs" {
		gcsStorage, err := storage.NewGCSStorage(ctx, cfg.GCSProjectID, cfg.GCSBucketName, cfg.GCSBaseDir, cfg.SignedURLTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize GCS storage: %w", err)
		}
		log.Infof("Storage initialized: GCS bucket=%s, project=%s, baseDir=%s",
			cfg.GCSBucketName, cfg.GCSProjectID, cfg.GCSBaseDir)
		return gcsStorage, nil
	}

	localStorage, err := storage.NewLocalStorage(cfg.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize local storage: %w", err)
	}
	log.Infof("Storage initialized: Local directory=%s", cfg.StorageDir)
	return localStorage, nil
}
