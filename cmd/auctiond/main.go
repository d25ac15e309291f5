package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"vaultauction/config"
	"vaultauction/core/events"
	"vaultauction/core/genesis"
	"vaultauction/core/host"
	"vaultauction/core/state"
	"vaultauction/indexer"
	"vaultauction/native/auction"
	"vaultauction/observability/logging"
	"vaultauction/observability/metrics"
	telemetry "vaultauction/observability/otel"
	"vaultauction/rpc"
	"vaultauction/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a YAML genesis file (overrides config GenesisFile)")
	flag.Parse()

	if err := run(*configFile, *genesisFlag); err != nil {
		fmt.Fprintf(os.Stderr, "auctiond: %v\n", err)
		os.Exit(1)
	}
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return storage.NewMemDB(), nil
	case config.BackendLevelDB:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		return storage.NewLevelDB(cfg.LevelDBPath())
	case config.BackendBolt:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		return storage.NewBoltDB(cfg.BoltPath(), nil)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func run(configFile, genesisOverride string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.Setup("auctiond", cfg.Log.Env, logging.Options{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Level:      logging.ParseLevel(cfg.Log.Level),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "auctiond",
		Environment: cfg.Log.Env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	db, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	recorder := events.NewRecorder(cfg.RPC.EventHistory)
	hub := rpc.NewHub()
	sinks := events.Fanout{recorder, hub}
	serverOpts := []rpc.Option{rpc.WithLogger(logger), rpc.WithMetrics(metrics.Auction()), rpc.WithRecorder(recorder), rpc.WithHub(hub)}
	if cfg.Indexer.Driver != config.IndexerDisabled {
		archive, err := indexer.Open(cfg.Indexer.Driver, cfg.Indexer.DSN, logger.With(slog.String("component", "indexer")))
		if err != nil {
			return err
		}
		defer archive.Close()
		sinks = append(sinks, archive)
		serverOpts = append(serverOpts, rpc.WithArchive(archive))
	}

	h := host.New(state.NewStore(db),
		host.WithEmitter(sinks),
		host.WithLogger(logger.With(slog.String("component", "host"))),
		host.WithMetrics(metrics.Auction()))

	program, err := cfg.Program()
	if err != nil {
		return err
	}
	vaultProgram, err := cfg.VaultProgram()
	if err != nil {
		return err
	}
	svc := auction.NewService(h, auction.ServiceConfig{
		Authority:      auction.AuthorityConfig{ProgramID: program},
		VaultProgram:   vaultProgram,
		StorageDeposit: cfg.StorageDeposit,
	})

	genesisPath := strings.TrimSpace(genesisOverride)
	if genesisPath == "" {
		genesisPath = strings.TrimSpace(cfg.GenesisFile)
	}
	if genesisPath != "" {
		if err := seedGenesis(ctx, svc, genesisPath, logger); err != nil {
			return err
		}
	}

	if cfg.RPC.JWTSecret == "" {
		logger.Warn("rpc auth disabled, trusting signer params")
	}
	server := rpc.NewServer(svc, rpc.Config{
		JWTSecret: cfg.RPC.JWTSecret,
		JWTIssuer: cfg.RPC.JWTIssuer,
		RateLimit: cfg.RPC.RateLimit,
		RateBurst: cfg.RPC.RateBurst,
	}, serverOpts...)
	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Handler(),
		ReadHeaderTimeout: time.Duration(cfg.RPC.ReadHeaderTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("json-rpc listening",
			slog.String("addr", cfg.RPCAddress),
			slog.String("program", program.Hex()),
			slog.String("backend", cfg.Storage.Backend))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("rpc server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func seedGenesis(ctx context.Context, svc *auction.Service, path string, logger *slog.Logger) error {
	spec, err := genesis.Load(path)
	if err != nil {
		return err
	}
	switch err := genesis.Apply(ctx, svc, spec); {
	case errors.Is(err, genesis.ErrAlreadyApplied):
		logger.Info("genesis already applied", slog.String("path", path))
	case err != nil:
		return fmt.Errorf("apply genesis: %w", err)
	default:
		logger.Info("genesis applied",
			slog.String("path", path),
			slog.Int("mints", len(spec.Mints)),
			slog.Int("vaults", len(spec.Vaults)))
	}
	return nil
}
