package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dreamware/agraphstore/internal/agraphstore"
	"github.com/dreamware/agraphstore/internal/config"
)

// Properties is the flexible node/edge payload the standalone server
// binary instantiates the generic store with: an arbitrary bag of
// CBOR-encodable fields, keyed by string, the same "no fixed schema"
// shape the reference graph-store fixtures use for their test node types.
type Properties map[string]any

var shutdownGrace = 5 * time.Second

func newRootCommand() *cobra.Command {
	var configFile string

	v := config.New("")

	cmd := &cobra.Command{
		Use:   "agraphstore",
		Short: "Run a replicated directed-graph store instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				v.SetConfigFile(configFile)
			}
			return runServe(cmd.Context(), v)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "optional config file path")

	if err := config.BindFlags(cmd, v); err != nil {
		panic(err)
	}

	return cmd
}

func runServe(ctx context.Context, v *viper.Viper) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	logger, err := newLogger(v.GetString(config.KeyLogLevel))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	db, err := agraphstore.Run[Properties, Properties, string](runCtx, cfg, logger)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:    addrFromURL(cfg.ServerURL),
		Handler: db.Endpoint.Router(),
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("agraphstore listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-signalCh:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown did not complete in time", zap.Error(err))
	}

	return db.Close()
}

func newLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

func addrFromURL(serverURL string) string {
	// server_url is the advertised base URL (e.g. "http://127.0.0.1:8080");
	// http.Server wants just the host:port to bind.
	const schemeSep = "://"

	if idx := strings.Index(serverURL, schemeSep); idx >= 0 {
		serverURL = serverURL[idx+len(schemeSep):]
	}

	return serverURL
}
