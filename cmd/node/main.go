package main

import (
	"context"
	"flag"
	"hash/fnv"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"p2pstreamd/internal/bootstrap"
	"p2pstreamd/internal/chord"
	"p2pstreamd/internal/config"
	"p2pstreamd/internal/hostapi"
	"p2pstreamd/internal/logger"
	zapfactory "p2pstreamd/internal/logger/zap"
	"p2pstreamd/internal/mailbox"
	"p2pstreamd/internal/metrics"
	"p2pstreamd/internal/ring"
	"p2pstreamd/internal/telemetry"
)

var defaultConfigPath = "config/node/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %q: %v", *configPath, err)
	}
	if err := cfg.ValidateConfig(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	var lgr logger.Logger
	if cfg.Logger.Active {
		zapLog, err := zapfactory.New(cfg.Logger)
		if err != nil {
			log.Fatalf("failed to initialize logger: %v", err)
		}
		defer func() { _ = zapLog.Sync() }()
		lgr = zapfactory.NewZapAdapter(zapLog)
	} else {
		lgr = &logger.NopLogger{}
	}
	cfg.LogConfig(lgr)

	self := resolveNodeId(cfg.Node.Id, cfg.Node.Bind)
	lgr = lgr.Named("node")
	lgr.Info("node identifier resolved", logger.FStringer("id", self))

	shutdownTracer := telemetry.InitTracer(cfg.Telemetry, "p2pstreamd-node", self)
	defer func() { _ = shutdownTracer(context.Background()) }()

	m := metrics.New(self)

	mbox := mailbox.New(
		chord.NodeInfo{NodeId: self, Address: cfg.Node.Bind},
		cfg.Overlay.TickInterval,
		cfg.Overlay.ChordRequestTimeout.Milliseconds(),
		cfg.Overlay.PredecessorWarmup.Milliseconds(),
		cfg.Overlay.PongTimeout.Milliseconds(),
		cfg.Overlay.PubsubSubscribeLease.Milliseconds(),
		mailbox.WithLogger(lgr.Named("mailbox")),
		mailbox.WithMetrics(m),
	)

	if err := mbox.Listen(cfg.Node.Bind); err != nil {
		lgr.Error("failed to bind overlay listener", logger.F("err", err.Error()))
		os.Exit(1)
	}
	lgr.Info("overlay listener bound", logger.F("addr", cfg.Node.Bind))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go mbox.Run(ctx)

	adminLis, err := net.Listen("tcp", cfg.Node.AdminBind)
	if err != nil {
		lgr.Error("failed to bind admin listener", logger.F("err", err.Error()))
		os.Exit(1)
	}
	adminServer := hostapi.New(adminLis, mbox, nil, hostapi.WithLogger(lgr.Named("hostapi")))
	adminErr := make(chan error, 1)
	go func() { adminErr <- adminServer.Start() }()
	lgr.Info("admin gRPC server started", logger.F("addr", cfg.Node.AdminBind))

	var metricsServer *http.Server
	if cfg.Telemetry.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsServer = &http.Server{Addr: cfg.Telemetry.MetricsAddr, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				lgr.Warn("metrics server stopped", logger.F("err", err.Error()))
			}
		}()
		lgr.Info("metrics server started", logger.F("addr", cfg.Telemetry.MetricsAddr))
	}

	register, err := newBootstrap(ctx, cfg)
	if err != nil {
		lgr.Error("failed to initialize bootstrap backend", logger.F("err", err.Error()))
		adminServer.Stop()
		os.Exit(1)
	}

	discoverCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	peers, err := register.Discover(discoverCtx)
	cancel()
	if err != nil {
		lgr.Error("failed to resolve bootstrap peers", logger.F("err", err.Error()))
		adminServer.Stop()
		os.Exit(1)
	}
	lgr.Info("resolved bootstrap peers", logger.F("peers", peers))

	if len(peers) != 0 {
		bootstrapId := resolveNodeId("", peers[0])
		if err := mbox.JoinRing(peers[0], bootstrapId); err != nil {
			lgr.Error("failed to join ring", logger.F("err", err.Error()), logger.F("peer", peers[0]))
		} else {
			lgr.Info("join dispatched", logger.F("peer", peers[0]))
		}
	} else {
		lgr.Info("no peers discovered, starting a new ring")
	}

	registerCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = register.Register(registerCtx, self.String(), cfg.Node.Bind)
	cancel()
	if err != nil {
		lgr.Warn("failed to register with bootstrap backend", logger.F("err", err.Error()))
	} else {
		defer func() {
			deregisterCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := register.Deregister(deregisterCtx, self.String(), cfg.Node.Bind); err != nil {
				lgr.Warn("failed to deregister from bootstrap backend", logger.F("err", err.Error()))
			}
		}()
	}

	select {
	case <-ctx.Done():
		lgr.Info("shutdown signal received, stopping gracefully")
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done := make(chan struct{})
		go func() {
			adminServer.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
			lgr.Info("admin server stopped gracefully")
		case <-shutdownCtx.Done():
			lgr.Warn("graceful stop timed out, forcing shutdown")
			adminServer.Stop()
		}
		if metricsServer != nil {
			_ = metricsServer.Close()
		}
	case err := <-adminErr:
		lgr.Error("admin gRPC server terminated unexpectedly", logger.F("err", err.Error()))
		stop()
		os.Exit(1)
	}
}

func newBootstrap(ctx context.Context, cfg *config.Config) (bootstrap.Bootstrap, error) {
	switch cfg.Bootstrap.Mode {
	case "route53":
		return bootstrap.NewRoute53Bootstrap(ctx, cfg.Bootstrap.Route53)
	case "docker":
		return bootstrap.NewDockerBootstrap(cfg.Bootstrap.Docker.Suffix, cfg.Bootstrap.Docker.Port, cfg.Bootstrap.Docker.Network), nil
	default:
		return bootstrap.NewStaticBootstrap(cfg.Bootstrap.Peers), nil
	}
}

// resolveNodeId returns the configured hex node id, or one derived
// deterministically from addr (an FNV-1a hash, since the 32-bit ring
// wants a uniformly distributed uint32 and every peer must be able to
// recompute a bootstrap target's id from its advertised address alone).
func resolveNodeId(configuredHex string, addr string) ring.NodeId {
	if configuredHex != "" {
		v, err := strconv.ParseUint(configuredHex, 16, 32)
		if err == nil {
			return ring.NodeId(uint32(v))
		}
		log.Printf("invalid node id %q, deriving one from address instead", configuredHex)
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(addr))
	return ring.NodeId(h.Sum32())
}
