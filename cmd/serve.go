package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethanolivertroy/plugin-vuln-checker/internal/api"
	"github.com/ethanolivertroy/plugin-vuln-checker/internal/feedstore"
	"github.com/ethanolivertroy/plugin-vuln-checker/internal/models"
	"github.com/ethanolivertroy/plugin-vuln-checker/internal/scanner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	flagListen          string
	flagUploadDir       string
	flagServeRoot       string
	flagRateLimit       int
	flagShutdownTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept threat feed uploads over HTTP and scan on each upload",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagListen, "listen", "", "Address for the API server (default from config)")
	serveCmd.Flags().StringVar(&flagUploadDir, "upload-dir", "", "Directory for uploaded feeds")
	serveCmd.Flags().StringVarP(&flagServeRoot, "root", "r", "", "Directory containing the sites")
	serveCmd.Flags().IntVar(&flagRateLimit, "rate-limit", 0, "Rate limit per IP (requests/second, 0 = disabled)")
	serveCmd.Flags().DurationVar(&flagShutdownTimeout, "shutdown-timeout", 30*time.Second, "Graceful shutdown timeout")
	rootCmd.AddCommand(serveCmd)
}

func applyServeFlags(cmd *cobra.Command) func(*models.Config) {
	return func(cfg *models.Config) {
		flags := cmd.Flags()
		if flags.Changed("listen") {
			cfg.Server.Listen = flagListen
		}
		if flags.Changed("upload-dir") {
			cfg.Server.UploadDir = flagUploadDir
		}
		if flags.Changed("root") {
			cfg.Root = flagServeRoot
		}
		if flags.Changed("rate-limit") {
			cfg.Server.RateLimit = flagRateLimit
			cfg.Server.RateBurst = 0
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(applyServeFlags(cmd))
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := feedstore.New(cfg.Server.UploadDir, cfg.Server.FeedTTL.Duration)
	if err != nil {
		return err
	}
	engine, err := scanner.New(cfg, scanner.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to initialize scanner: %w", err)
	}

	server := api.NewServer(api.Config{
		Engine:         engine,
		Store:          store,
		Logger:         logger.Desugar(),
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
	})
	defer server.Close()

	httpServer := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Minute, // a response waits for the whole scan
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go pruneLoop(ctx, store, time.Hour, logger)

	serverErrors := make(chan error, 1)
	go func() {
		tls := cfg.Server.CertFile != ""
		logger.Infow("API server listening",
			"addr", cfg.Server.Listen,
			"tls", tls,
			"root", cfg.Root,
			"upload_dir", store.Dir,
		)
		if tls {
			serverErrors <- httpServer.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
			return
		}
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), flagShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			if closeErr := httpServer.Close(); closeErr != nil {
				return fmt.Errorf("failed to gracefully shutdown server: %w (close error: %v)", err, closeErr)
			}
			return fmt.Errorf("failed to gracefully shutdown server: %w", err)
		}
		logger.Info("server shutdown complete")
	}

	return nil
}

// pruneLoop drops expired uploads from store every interval until ctx ends.
func pruneLoop(ctx context.Context, store *feedstore.Store, interval time.Duration, logger *zap.SugaredLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.Prune()
			if err != nil {
				logger.Warnw("failed to prune uploads", "dir", store.Dir, "error", err)
				continue
			}
			if removed > 0 {
				logger.Infow("pruned expired uploads", "removed", removed)
			}
		}
	}
}
