package main

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/example/orbit/internal/platform/auth"
	"github.com/example/orbit/internal/platform/config"
	"github.com/example/orbit/internal/platform/db"
	"github.com/example/orbit/internal/platform/httpserver"
	"github.com/example/orbit/internal/platform/logging"
	"github.com/example/orbit/internal/platform/natsconn"
	"github.com/example/orbit/internal/platform/run"
	"github.com/example/orbit/services/social/internal/handlers"
	"github.com/example/orbit/services/social/internal/idempotency"
	"github.com/example/orbit/services/social/internal/objects"
	"github.com/example/orbit/services/social/internal/realtime"
	"github.com/example/orbit/services/social/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	pool, st := initStores(cfg, log)
	if pool != nil {
		defer pool.Close()
	}

	nc := initNATS(cfg, log)
	if nc != nil {
		defer nc.Close()
	}
	publisher := initPublisher(nc, log)
	objs := initObjects(cfg, nc, log)

	idem, err := idempotency.NewStore(cfg.RedisDSN, pool, cfg.IdempotencyTTL, cfg.IsProd())
	if err != nil {
		log.Error("idempotency store", zap.Error(err))
		run.Exit(1)
	}

	ready := func() error {
		if pool != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := pool.Ping(ctx); err != nil {
				return err
			}
		}
		if nc != nil && !nc.IsConnected() {
			return errors.New("nats disconnected")
		}
		return nil
	}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{
		ReadyFunc:   ready,
		CORSOrigins: cfg.HTTP.CORSOrigins,
		Logger:      log,
	})
	handlers.Mount(r, handlers.Deps{
		Stores:      realtime.Publishing(st, realtime.Emitter{Publisher: publisher, Logger: log}),
		Objects:     objs,
		Idempotency: idem,
		Verifier:    auth.JWTVerifier{Secret: []byte(cfg.JWTSecret)},
		Logger:      log,
	})
	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

	// gRPC carries health and reflection only; serving status follows /readyz.
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Error("grpc listen", zap.Error(err))
		run.Exit(1)
	}
	grpcSrv := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	reflection.Register(grpcSrv)
	go func() {
		log.Info("grpc server starting", zap.String("addr", cfg.GRPCAddr))
		if err := grpcSrv.Serve(lis); err != nil {
			log.Error("grpc serve", zap.Error(err))
		}
	}()

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		go watchHealth(ctx, healthSrv, cfg.ServiceName, ready)
		go func() {
			<-ctx.Done()
			healthSrv.Shutdown()
			stopped := make(chan struct{})
			go func() {
				grpcSrv.GracefulStop()
				close(stopped)
			}()
			select {
			case <-stopped:
			case <-time.After(10 * time.Second):
				grpcSrv.Stop()
			}
		}()
		return srv.Start()
	})
	runner.Graceful("http", srv.Shutdown)
	if nc != nil {
		runner.Graceful("nats", func(context.Context) error { return nc.Drain() })
	}

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// initStores selects the storage backend. In production it requires a
// working Postgres connection and terminates the process otherwise.
func initStores(cfg config.AppConfig, log *zap.Logger) (*pgxpool.Pool, store.Stores) {
	if cfg.DatabaseURL == "" {
		if cfg.IsProd() {
			log.Error("DATABASE_URL is required in production")
			_ = log.Sync()
			run.Exit(1)
		}
		log.Warn("DATABASE_URL not set, using in-memory stores (development only)")
		return nil, store.NewInMemory()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err == nil {
		if err = db.Migrate(ctx, pool, store.Schema...); err != nil {
			pool.Close()
		}
	}
	if err != nil {
		if cfg.IsProd() {
			log.Error("postgres is required in production but unavailable", zap.Error(err))
			_ = log.Sync()
			run.Exit(1)
		}
		log.Warn("postgres unavailable, falling back to in-memory stores", zap.Error(err))
		return nil, store.NewInMemory()
	}

	log.Info("stores: postgres")
	return pool, store.NewPostgres(pool)
}

// initNATS connects to NATS. Without it changes stay in-process and
// objects live in memory, which is only acceptable outside production.
func initNATS(cfg config.AppConfig, log *zap.Logger) *nats.Conn {
	nc, err := natsconn.Connect(natsconn.Options{URL: cfg.NATSURL, Name: cfg.ServiceName, Logger: log})
	if err != nil {
		if cfg.IsProd() {
			log.Error("nats is required in production", zap.Error(err))
			_ = log.Sync()
			run.Exit(1)
		}
		log.Warn("nats unavailable, realtime changes stay in-process", zap.Error(err))
		return nil
	}
	return nc
}

func initPublisher(nc *nats.Conn, log *zap.Logger) realtime.Publisher {
	if nc == nil {
		return realtime.NewHub(log)
	}
	log.Info("realtime: nats")
	return realtime.NewBroker(nc, log)
}

func initObjects(cfg config.AppConfig, nc *nats.Conn, log *zap.Logger) objects.Store {
	if nc != nil {
		js, err := nc.JetStream()
		if err == nil {
			log.Info("objects: jetstream")
			return objects.NewNATSStore(js, cfg.PublicBaseURL)
		}
		log.Warn("jetstream unavailable, using in-memory objects", zap.Error(err))
	}
	return objects.NewMemoryStore(cfg.PublicBaseURL)
}

// watchHealth mirrors the readiness check into the gRPC health service.
func watchHealth(ctx context.Context, hs *health.Server, service string, ready func() error) {
	t := time.NewTicker(5 * time.Second)
	defer t.Stop()
	for {
		status := healthpb.HealthCheckResponse_SERVING
		if ready() != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		hs.SetServingStatus("", status)
		hs.SetServingStatus(service, status)

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
