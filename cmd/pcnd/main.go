package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pcnchain/config"
	"pcnchain/core/events"
	"pcnchain/core/genesis"
	"pcnchain/core/state"
	"pcnchain/crypto"
	"pcnchain/native/channels"
	"pcnchain/native/htlc"
	"pcnchain/native/liquidity"
	"pcnchain/native/registry"
	"pcnchain/native/router"
	"pcnchain/observability/logging"
	telemetry "pcnchain/observability/otel"
	"pcnchain/rpc"
	"pcnchain/storage"
)

const serviceName = "pcnd"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file (TOML or YAML)")
	genesisFlag := flag.String("genesis", "", "Path to a genesis JSON file (overrides GenesisFile)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	env := strings.TrimSpace(cfg.Environment)
	if fromEnv := strings.TrimSpace(os.Getenv("PCN_ENV")); fromEnv != "" {
		env = fromEnv
	}
	logger := logging.Setup(serviceName, env, logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *genesisFlag, env, logger); err != nil {
		logger.Error("pcnd exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, genesisPath, env string, logger *slog.Logger) error {
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: env,
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
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	db, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	n, err := wire(cfg, state.NewManager(db), logger)
	if err != nil {
		return err
	}

	if genesisPath == "" {
		genesisPath = cfg.GenesisFile
	}
	if strings.TrimSpace(genesisPath) != "" {
		spec, err := genesis.LoadSpec(genesisPath)
		if err != nil {
			return err
		}
		applied, err := genesis.Apply(n.manager, n.registry, spec)
		if err != nil {
			return err
		}
		logger.Info("genesis loaded", "path", genesisPath, "credited", applied)
	}

	server := rpc.NewServer(rpc.Config{
		ListenAddress:     cfg.RPC.ListenAddress,
		RequestsPerMinute: cfg.RPC.RequestsPerMinute,
		Burst:             cfg.RPC.Burst,
		ReadTimeout:       time.Duration(cfg.RPC.ReadTimeoutSeconds) * time.Second,
	}, rpc.Backends{
		Channels:     n.channels,
		HTLCs:        n.htlcs,
		Participants: n.registry,
		Routes:       n.router,
	}, logger)

	logger.Info("pcnd started",
		"network", cfg.NetworkName,
		"storage", cfg.Storage.Backend,
		"hash", cfg.HTLC.HashAlgorithm)
	return server.ListenAndServe(ctx)
}

type node struct {
	manager   *state.Manager
	registry  *registry.Registry
	channels  *channels.Engine
	htlcs     *htlc.Engine
	router    *router.Router
	liquidity *liquidity.Engine
}

// wire builds the engines over manager and connects them to each other.
func wire(cfg *config.Config, manager *state.Manager, logger *slog.Logger) (*node, error) {
	minDeposit, err := cfg.MinDepositAmount()
	if err != nil {
		return nil, err
	}
	treasury, err := cfg.TreasuryAddress()
	if err != nil {
		return nil, err
	}
	hasher, err := crypto.HasherByName(cfg.HTLC.HashAlgorithm)
	if err != nil {
		return nil, err
	}
	emitter := events.Log{Logger: logger}

	n := &node{manager: manager}
	n.registry = registry.NewRegistry()
	n.registry.SetState(manager)
	n.registry.SetEmitter(emitter)
	n.registry.SetLogger(logger.With("module", "registry"))

	n.router = router.New()
	n.router.SetState(manager)
	n.router.SetEmitter(emitter)
	n.router.SetLogger(logger.With("module", "router"))
	n.router.SetConfig(router.Config{DefaultWindow: cfg.HTLC.DefaultWindow, RelayMargin: cfg.HTLC.RelayMargin})

	n.channels = channels.NewEngine()
	n.channels.SetState(manager)
	n.channels.SetRegistry(n.registry)
	n.channels.SetVerifier(crypto.VerifierFor(!cfg.Channels.SkipSignatureVerification))
	n.channels.SetTopology(n.router)
	n.channels.SetEmitter(emitter)
	n.channels.SetLogger(logger.With("module", "channels"))
	n.channels.SetConfig(channels.Config{
		MinDeposit:        minDeposit,
		DisputeTimeout:    cfg.Channels.DisputeTimeout,
		ProtocolFeeBps:    cfg.Channels.ProtocolFeeBps,
		Treasury:          treasury,
		DefaultFeeRateBps: cfg.Fees.DefaultFeeRateBps,
	})

	n.htlcs = htlc.NewEngine()
	n.htlcs.SetState(manager)
	n.htlcs.SetChannels(n.channels)
	n.htlcs.SetHasher(hasher)
	n.htlcs.SetEmitter(emitter)
	n.htlcs.SetLogger(logger.With("module", "htlc"))
	n.router.SetHTLC(n.htlcs)

	n.liquidity = liquidity.NewEngine()
	n.liquidity.SetState(manager)
	n.liquidity.SetChannels(n.channels)
	n.liquidity.SetMaxFeeRate(cfg.Fees.MaxFeeRateBps)
	n.liquidity.SetEmitter(emitter)
	n.liquidity.SetLogger(logger.With("module", "liquidity"))

	if cfg.Channels.SkipSignatureVerification {
		logger.Warn("signature verification disabled")
	}
	if err := n.router.Rebuild(); err != nil {
		return nil, fmt.Errorf("rebuild routing index: %w", err)
	}
	return n, nil
}
