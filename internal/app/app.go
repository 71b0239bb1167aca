package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"orders-service/internal/bus"
	"orders-service/internal/domain/order"
	"orders-service/internal/handler"
	"orders-service/internal/storage/postgres"
	"orders-service/pkg/health"
)

// Run creates all dependencies, starts the RPC server and the health
// listener, and handles graceful shutdown. It is the single wiring point
// for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.Strings("nats", cfg.Nats.Servers),
		zap.String("health_addr", cfg.HealthAddr),
	)

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Message bus connection, shared by the RPC server and the product
	// validator client.
	conn, err := bus.Connect(cfg.Nats.Servers, "orders-service", lg)
	if err != nil {
		return errors.Wrap(err, "connect bus")
	}
	defer conn.Close()

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddReadinessCheck("nats", time.Second, func(context.Context) error {
		if st := conn.Status(); st != nats.CONNECTED {
			return errors.Errorf("nats connection status %s", st)
		}
		return nil
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)

	// Domain wiring.
	validator := bus.NewProductValidator(conn, cfg.Nats.ValidateSubject, cfg.Nats.RequestTimeout)
	orderRepo := postgres.NewOrderRepository(pool)
	orderService := order.NewService(validator, orderRepo)
	h := handler.New(orderService)

	// RPC server.
	srv, err := bus.NewServer(conn, bus.ServerConfig{
		Queue:   cfg.Nats.Queue,
		Timeout: cfg.Nats.RequestTimeout,
	}, lg, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create rpc server")
	}
	srv.Handle(handler.SubjectCreateOrder, h.CreateOrder)
	srv.Handle(handler.SubjectFindAllOrders, h.FindAllOrders)
	srv.Handle(handler.SubjectFindOneOrder, h.FindOneOrder)
	srv.Handle(handler.SubjectChangeOrderStatus, h.ChangeOrderStatus)

	// Health endpoints on a small HTTP listener.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	healthServer := &http.Server{
		ReadHeaderTimeout: time.Second,
		Addr:              cfg.HealthAddr,
		Handler:           mux,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "health server")
		}
		return nil
	})
	g.Go(func() error {
		// Graceful shutdown: mark not ready, let the bus drain, then stop
		// the health listener.
		<-gctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			lg.Error("Health server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		return nil
	})

	healthSvc.SetReady(true)
	lg.Info("Service ready", zap.String("queue", cfg.Nats.Queue))
	return g.Wait()
}
