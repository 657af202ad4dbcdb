// Command server generalizes the teacher's cmd/server/main.go: it wires
// configuration, logging, the world/gateway pair, and the optional
// Postgres/Redis/outbox audit components into a running demo deployment
// of the aoi package, with graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/orbitgrid/aoi/internal/config"
	"github.com/orbitgrid/aoi/internal/gateway"
	"github.com/orbitgrid/aoi/internal/observability"
	"github.com/orbitgrid/aoi/internal/persistence/outbox"
	"github.com/orbitgrid/aoi/internal/persistence/postgres"
	"github.com/orbitgrid/aoi/internal/persistence/redis"
	"github.com/orbitgrid/aoi/internal/spatial/orderedlist"
	"github.com/orbitgrid/aoi/internal/world"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	dev := flag.Bool("dev", false, "use a development (console) logger")
	flag.Parse()

	logger, err := newLogger(*dev)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := loadConfig(*configPath, logger)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics(logger)
	if err := metrics.Register(); err != nil {
		logger.Fatal("failed to register metrics", zap.Error(err))
	}
	go func() {
		if err := metrics.StartMetricsServer(":9090"); err != nil {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()

	w, err := world.New(cfg.World, logger, orderedlist.NewRandSource(time.Now().UnixNano()))
	if err != nil {
		logger.Fatal("failed to construct world", zap.Error(err))
	}

	pg, outboxProc := wireAudit(ctx, cfg, logger, w, metrics)
	if pg != nil {
		defer pg.Close()
	}
	if outboxProc != nil {
		defer outboxProc.Stop()
	}

	rdb, err := redis.New(cfg.Redis, logger)
	if err != nil {
		logger.Warn("redis unavailable, presence tracking disabled", zap.Error(err))
	} else {
		defer rdb.Close()
	}

	wsGateway := gateway.New(cfg.Gateway, w, logger)
	if rdb != nil {
		wsGateway.SetPresenceTracker(rdb)
	}

	go func() {
		if err := w.TickLoop(ctx); err != nil && err != context.Canceled {
			logger.Error("world tick loop stopped", zap.Error(err))
		}
	}()

	go func() {
		if err := wsGateway.Start(ctx); err != nil {
			logger.Error("gateway stopped", zap.Error(err))
		}
	}()

	logger.Info("aoi demo server started",
		zap.String("bind_addr", cfg.Gateway.BindAddr),
		zap.String("backend", cfg.World.Backend),
		zap.Int("tick_rate_ms", cfg.World.TickRateMs),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := wsGateway.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during gateway shutdown", zap.Error(err))
	}
	w.Shutdown()
	cancel()

	logger.Info("aoi demo server shutdown complete")
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return observability.NewDevelopmentLogger()
	}
	return observability.NewLogger()
}

func loadConfig(path string, logger *zap.Logger) (*config.Config, error) {
	if _, err := os.Stat(path); err != nil {
		logger.Warn("config file not found, using defaults", zap.String("path", path))
		return config.Default(), nil
	}
	return config.Load(path)
}

// wireAudit connects a Postgres-backed audit trail and outbox processor to
// the world's event stream, if Postgres is reachable. A demo run with no
// database configured simply skips this layer; the AOI core itself never
// depends on it.
func wireAudit(ctx context.Context, cfg *config.Config, logger *zap.Logger, w *world.World, metrics *observability.Metrics) (*postgres.Client, *outbox.Processor) {
	pg, err := postgres.New(cfg.Postgres, logger)
	if err != nil {
		logger.Warn("postgres unavailable, audit trail disabled", zap.Error(err))
		return nil, nil
	}

	events := make(chan world.Event, 1024)
	w.SetAuditSink(func(evt world.Event) {
		select {
		case events <- evt:
		default:
			logger.Warn("audit sink buffer full, dropping event", zap.String("kind", string(evt.Kind)))
		}
	})

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-events:
				recordAuditEvent(ctx, pg, logger, metrics, evt)
			}
		}
	}()

	proc := outbox.New(pg, logger)
	proc.RegisterDefaultHandlers()
	if err := proc.Start(ctx); err != nil {
		logger.Warn("failed to start outbox processor", zap.Error(err))
	}

	return pg, proc
}

func recordAuditEvent(ctx context.Context, pg *postgres.Client, logger *zap.Logger, metrics *observability.Metrics, evt world.Event) {
	var eventType string
	switch evt.Kind {
	case world.EventSpawn:
		eventType = postgres.EventUnitSpawned
	case world.EventDespawn:
		eventType = postgres.EventUnitDespawned
	case world.EventEnter:
		eventType = postgres.EventSubscriptionEntered
		metrics.IncrementSubscribeEnters()
	case world.EventLeave:
		eventType = postgres.EventSubscriptionLeft
		metrics.IncrementSubscribeLeaves()
	default:
		return
	}

	if err := pg.RecordEvent(ctx, eventType, evt.SelfID, evt.OtherID); err != nil {
		logger.Error("failed to record audit event", zap.String("event_type", eventType), zap.Error(err))
		metrics.RecordPostgresOperation("record_event", "error")
		return
	}
	metrics.RecordPostgresOperation("record_event", "ok")
}
