package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ms-parking/internal/analytics"
	analytics_api "ms-parking/internal/analytics/api"
	"ms-parking/internal/auth"
	"ms-parking/internal/config"
	"ms-parking/internal/database/migrations"
	"ms-parking/internal/kafka"
	"ms-parking/internal/logger"
	"ms-parking/internal/members"
	"ms-parking/internal/metrics"
	"ms-parking/internal/parking"
	"ms-parking/internal/parking/db"
	"ms-parking/internal/parking/fee"
	"ms-parking/internal/parking/parking_api"
	parkingredis "ms-parking/internal/parking/redis"
	"ms-parking/internal/vouchers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

func main() {
	logger := logger.NewLogger("parking-service")
	defer logger.Close()

	logger.Info("APP", "Starting Parking Service initialization")

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}
	cfg := config.Load()
	ctx := context.Background()

	logger.Info("APP", "Verifying database connections")
	bunDB, redisClient := verifyConnections(ctx, cfg, logger)
	defer bunDB.Close()
	defer redisClient.Close()

	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
		MigrationsDir: cfg.Migrations.Dir,
		AutoMigrate:   cfg.Migrations.AutoMigrate,
	}, logger)
	if err := runner.RunMigrations(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}

	var events parking.EventPublisher
	if cfg.Kafka.Enabled {
		logger.Info("KAFKA", fmt.Sprintf("Using Kafka brokers %v", cfg.Kafka.Brokers))
		if err := kafka.EnsureTopicsExist(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topics.All(), logger); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, logger)
		defer producer.Close()
		events = producer
	} else {
		logger.Warn("KAFKA", "Kafka disabled, session events will not be published")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry)

	store := db.New(bunDB)
	cache := parkingredis.NewRedis(redisClient, logger)
	loc := cfg.Parking.Location()

	parkingService := parking.NewParkingService(store, cache, events, logger, m, parking.Options{
		Rates: fee.Rates{
			RatePerHour:        decimal.NewFromInt(cfg.Parking.RatePerHour),
			GracePeriodMinutes: cfg.Parking.GracePeriodMinutes,
			MaxParkingHours:    cfg.Parking.MaxParkingHours,
		},
		MemberDiscountPercent: cfg.Parking.MemberDiscountPercent,
		HintTTL:               cfg.Parking.ActiveHintTTL,
		StoreTimeout:          cfg.Parking.StoreTimeout,
		CacheTimeout:          cfg.Parking.CacheTimeout,
		StatusCacheTTL:        cfg.Parking.StatusCacheTTL,
		StatusCacheSize:       cfg.Parking.StatusCacheSize,
		Location:              loc,
		QRSecret:              cfg.Invoice.QRSecretKey,
		Topics: parking.Topics{
			CheckedIn:  cfg.Kafka.Topics.SessionCheckedIn,
			CheckedOut: cfg.Kafka.Topics.SessionCheckedOut,
			Cancelled:  cfg.Kafka.Topics.SessionCancelled,
		},
	})

	handler := parking_api.NewHandler(
		parkingService,
		members.NewMemberService(store, logger),
		vouchers.NewVoucherService(store, logger),
		cache,
		logger,
		loc,
	)
	handler.Checks["postgres"] = func(ctx context.Context) error { return bunDB.PingContext(ctx) }
	handler.Checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	if cfg.Migrations.AutoMigrate {
		handler.Checks["schema"] = func(ctx context.Context) error {
			status, err := runner.Status()
			if err != nil {
				return err
			}
			if status.Dirty {
				return fmt.Errorf("schema version %d is dirty", status.Version)
			}
			return nil
		}
	}

	verifier, err := auth.NewVerifier(ctx, cfg.Auth.Mode, cfg.Auth.OIDCIssuer)
	if err != nil {
		logger.Fatal("AUTH", fmt.Sprintf("Failed to set up token verification: %v", err))
	}
	if cfg.Auth.Mode == auth.ModeDev {
		logger.Warn("AUTH", "AUTH_MODE=dev: token signatures are NOT verified")
	}

	logger.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: cfg.Server.CORS.AllowCredentials,
		MaxAge:           cfg.Server.CORS.MaxAge,
	}))
	r.Use(metrics.HTTPMetricsMiddleware(m, routePattern))
	r.Handle("/metrics", metrics.Handler(registry))
	protect := auth.Middleware(verifier, logger)
	api := handler.Routes(protect)
	dashboardService := analytics.NewService(bunDB, loc, cfg.Parking.DashboardCacheTTL)
	dashboard := analytics_api.NewHandler(dashboardService, logger)
	api.Group(func(r chi.Router) {
		r.Use(protect)
		dashboard.RegisterRoutes(r)
	})
	r.Mount("/api/parking", api)
	logger.Info("ROUTER", "Parking routes registered under /api/parking")

	scheduler := cron.New(cron.WithLocation(loc))
	reporter := analytics.NewReporter(dashboardService, logger, m)
	if _, err := reporter.Schedule(scheduler, cfg.Parking.DailyReportSchedule); err != nil {
		logger.Fatal("CONFIG", fmt.Sprintf("Invalid DAILY_REPORT_SCHEDULE %q: %v", cfg.Parking.DailyReportSchedule, err))
	}
	scheduler.Start()
	logger.Info("APP", fmt.Sprintf("Daily report scheduled at %q (%s)", cfg.Parking.DailyReportSchedule, loc))

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("Parking Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "Parking Service shutdown complete")
	}

	select {
	case <-scheduler.Stop().Done():
	case <-ctxShutdown.Done():
		logger.Warn("APP", "Daily report still running at shutdown")
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

func verifyConnections(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*bun.DB, *redis.Client) {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		logger.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			logger.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.PingContext(ctx)
		if err == nil {
			break
		}

		logger.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		sqldb.Close()
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	logger.Info("DATABASE", "PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	// the dedup hint is advisory, so the service starts without Redis
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("DATABASE", fmt.Sprintf("Redis unavailable at %s, continuing without active hints: %v", cfg.Redis.Addr, err))
	} else {
		logger.Info("DATABASE", fmt.Sprintf("Redis connection successful to %s (DB: %d)", cfg.Redis.Addr, cfg.Redis.DB))
	}
	return bunDB, redisClient
}
