// Command sparkqd is the SparkQ server: it owns the durable store, the
// Core state machine, the Supervisor's stale/purge loops, and the
// local HTTP control surface. Its cobra/flag/signal-handling shape
// mirrors cmd/warren's root command and workerStartCmd.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sparkqdev/sparkq/internal/clock"
	"github.com/sparkqdev/sparkq/internal/config"
	"github.com/sparkqdev/sparkq/internal/controlserver"
	"github.com/sparkqdev/sparkq/internal/core"
	"github.com/sparkqdev/sparkq/internal/idgen"
	"github.com/sparkqdev/sparkq/internal/lockfile"
	"github.com/sparkqdev/sparkq/internal/log"
	"github.com/sparkqdev/sparkq/internal/store"
	"github.com/sparkqdev/sparkq/internal/supervisor"
	"github.com/sparkqdev/sparkq/internal/toolresolver"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "sparkqd",
	Short:   "sparkqd - the SparkQ queue server",
	Version: Version,
	RunE:    runServer,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("sparkqd version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.Flags().String("config", "./sparkq.yaml", "Path to sparkq.yaml")
	rootCmd.Flags().String("data-dir", "", "Override database.path from config")
	rootCmd.Flags().String("host", "", "Override server.host from config")
	rootCmd.Flags().Int("port", 0, "Override server.port from config")

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
}

func runServer(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	dataDirFlag, _ := cmd.Flags().GetString("data-dir")
	hostFlag, _ := cmd.Flags().GetString("host")
	portFlag, _ := cmd.Flags().GetInt("port")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if dataDirFlag != "" {
		cfg.Database.Path = dataDirFlag
	}
	if hostFlag != "" {
		cfg.Server.Host = hostFlag
	}
	if portFlag != 0 {
		cfg.Server.Port = portFlag
	}

	logger := log.WithComponent("sparkqd")

	if err := os.MkdirAll(cfg.Database.Path, 0700); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", cfg.Database.Path, err)
	}

	serverLock, err := lockfile.Acquire(filepath.Join(cfg.Database.Path, "server.lock"))
	if err != nil {
		return fmt.Errorf("failed to acquire server lock (is another sparkqd running against this data directory?): %w", err)
	}
	defer func() {
		if err := serverLock.Release(); err != nil {
			logger.Warn().Err(err).Msg("failed to release server lockfile")
		}
	}()

	realClock := clock.Real{}
	boltStore, err := store.NewBoltStore(cfg.Database.Path, realClock, idgen.New())
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer boltStore.Close()

	if _, err := boltStore.InitProject("sparkq", cfg.Database.Path); err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	resolver := toolresolver.New(cfg)
	logger.Debug().Int("tools", len(cfg.Tools)).Msg("tool registry loaded from config")

	c := core.New(boltStore, realClock, resolver, idgen.New())

	sup := supervisor.New(c, cfg.AutoFailInterval(), time.Hour, cfg.PurgeRetention())
	sup.Start()
	defer sup.Stop()

	controlserver.Version = Version
	srv := controlserver.New(c)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("sparkqd listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("control server failed: %w", err)
	case <-sigCh:
		logger.Info().Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info().Msg("shutdown complete")
	return nil
}
