package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rl1809/storefront/internal/adapter/handler"
	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/auth"
	"github.com/rl1809/storefront/internal/config"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/logger"
	"github.com/rl1809/storefront/internal/port"
	"github.com/rl1809/storefront/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server exited", zap.Error(err))
	}
}

type stores struct {
	orders   port.OrderRepository
	products port.ProductRepository
	carts    port.CartRepository
	deps     map[string]handler.Pinger
	close    func()
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer st.close()

	coupons, err := service.ParseCouponBook(cfg.Checkout.Coupons)
	if err != nil {
		return fmt.Errorf("parse COUPONS: %w", err)
	}

	// Initialize services
	checkoutService := service.NewCheckoutService(st.carts, st.orders, st.products, coupons, zl.Named("checkout"))
	orderService := service.NewOrderService(st.orders, zl.Named("orders"))
	catalogService := service.NewCatalogService(st.products, zl.Named("catalog"))
	authenticator := auth.NewAuthenticator(cfg.Admin.Username, cfg.Admin.PasswordHash, cfg.Admin.JWTSecret, cfg.Admin.TokenTTL)

	if cfg.Database.Seed {
		if _, err := catalogService.SeedSampleCatalog(ctx); err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
	}

	// HTTP server
	httpHandler := handler.NewHTTPHandler(checkoutService, orderService, catalogService, authenticator, st.deps, zl.Named("http"))
	httpServer := &http.Server{
		Addr: ":" + cfg.Server.HTTPPort,
		Handler: httpHandler.Routes(handler.RouterOptions{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			SecureCookies:  cfg.IsProduction(),
			SessionMaxAge:  cfg.Checkout.CartTTL,
			RequestTimeout: cfg.Server.WriteTimeout,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// gRPC server
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		handler.UnaryLogger(zl.Named("grpc")),
		handler.UnaryAdminAuth(authenticator),
	))
	health := handler.RegisterGRPC(grpcServer, handler.NewGRPCHandler(orderService, zl.Named("grpc")))

	lis, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zl.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		zl.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
		if err := grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zl.Info("shutting down")
		health.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		err := httpServer.Shutdown(shutdownCtx)
		zl.Info("HTTP server stopped")

		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			grpcServer.Stop()
		}
		zl.Info("gRPC server stopped")
		return err
	})

	return g.Wait()
}

func openStores(ctx context.Context, cfg *config.Config, zl *zap.Logger) (*stores, error) {
	if cfg.InMemory() {
		mem := storage.NewMemoryAdapter()
		zl.Warn("using in-memory store, data is lost on restart")
		return &stores{
			orders:   mem,
			products: mem,
			carts:    mem,
			deps:     map[string]handler.Pinger{"memory": mem},
			close:    func() {},
		}, nil
	}

	dialect, err := storage.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	driverName := "mysql"
	if dialect == storage.DialectPostgres {
		driverName = "postgres"
	}

	// Initialize database
	db, err := sql.Open(driverName, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driverName, err)
	}
	zl.Info("connected to database", zap.String("driver", driverName))

	if cfg.Database.Migrate {
		if err := migrations.Apply(ctx, db, string(dialect)); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		zl.Info("schema up to date")
	}

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	zl.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))

	sqlAdapter := storage.NewSQLAdapter(db, dialect)
	redisAdapter := storage.NewRedisAdapter(rdb, cfg.Checkout.CartTTL, cfg.Checkout.LockTTL)

	return &stores{
		orders:   sqlAdapter,
		products: sqlAdapter,
		carts:    redisAdapter,
		deps: map[string]handler.Pinger{
			"database": sqlAdapter,
			"redis":    redisAdapter,
		},
		close: func() {
			rdb.Close()
			db.Close()
			zl.Info("connections closed")
		},
	}, nil
}
