package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	// Initialize OpenTelemetry
	tp, err := initTracer()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer")
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("error shutting down tracer")
		}
	}()

	mp, err := initMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}
	defer func() {
		if err := mp.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("error shutting down meter")
		}
	}()

	// Initialize database
	dsn := databaseDSN()
	if err := runMigrations(dsn); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	dbPool, err := initDB(dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer dbPool.Close()

	// Initialize dependencies
	repository := NewPostgresRepository(dbPool)
	checker := NewAvailabilityChecker(repository)
	committer := newCommitter(repository)

	metrics, err := NewPlacementMetrics(otel.Meter("order-placement-service"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create metrics")
	}

	useCase := NewOrderUseCase(checker, committer, repository, repository, metrics)
	tracer := tp.Tracer("order-placement-service")
	handler := NewOrderHandler(useCase, tracer)

	// Setup Gin router
	r := gin.Default()
	r.Use(otelgin.Middleware(getEnv("SERVICE_NAME", "order-placement-service")))

	r.GET("/health", handler.HealthCheck)

	// Placement and order CRUD
	r.POST("/api/orders", handler.PlaceOrder)
	r.GET("/api/orders", handler.ListOrders)
	r.GET("/api/orders/:id", handler.GetOrder)
	r.PATCH("/api/orders/:id/address", handler.UpdateDeliveryAddress)
	r.DELETE("/api/orders/:id", handler.DeleteOrder)

	// Inventory
	r.POST("/api/products/:id/restock", handler.Restock)

	// SAGA action endpoints (used by DTM in saga mode)
	r.POST("/api/orders/create", handler.CreateOrder)
	r.POST("/api/orders/complete", handler.CompleteOrder)
	r.POST("/api/orders/compensate", handler.CompensateOrder)
	r.POST("/api/inventory/reserve", handler.ReserveItem)
	r.POST("/api/inventory/compensate", handler.CompensateItem)

	port := getEnv("PORT", "8080")
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		log.Info().Str("port", port).Msg("🚀 order placement service listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error shutting down http server")
	}
}

// newCommitter escolhe a estratégia de reserva via RESERVATION_STRATEGY
func newCommitter(repository Repository) ReservationCommitter {
	strategy := getEnv("RESERVATION_STRATEGY", "transaction")
	switch strategy {
	case "compensating":
		log.Info().Msg("using compensating reservation committer")
		return NewCompensatingCommitter(repository, repository)
	case "saga":
		log.Info().Msg("using dtm saga reservation committer")
		return NewSagaCommitter(
			getEnv("DTM_SERVER", "http://dtm:36789/api/dtmsvr"),
			getEnv("SERVICE_URL", "http://order-placement-service:8080"),
		)
	default:
		log.Info().Msg("using transactional reservation committer")
		return NewTransactionCommitter(repository)
	}
}

func databaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		getEnv("DATABASE_USER", "root"),
		getEnv("DATABASE_PASSWORD", "pass"),
		getEnv("DATABASE_HOST", "localhost"),
		getEnv("DATABASE_PORT", "5432"),
		getEnv("DATABASE_NAME", "orders_db"),
	)
}

func initDB(dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// Configure connection pool
	config.MaxConns = 10
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Wait for database to be ready
	for i := 0; i < 30; i++ {
		if err := pool.Ping(ctx); err == nil {
			log.Info().Msg("✅ connected to orders database")
			return pool, nil
		}
		log.Info().Int("attempt", i+1).Msg("⏳ waiting for database")
		time.Sleep(1 * time.Second)
	}

	pool.Close()
	return nil, fmt.Errorf("failed to connect to database after 30 attempts")
}

func initTracer() (*sdktrace.TracerProvider, error) {
	ctx := context.Background()

	otlpEndpoint := getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(otlpEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(getEnv("SERVICE_NAME", "order-placement-service")),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	otel.SetTracerProvider(tp)

	return tp, nil
}

func initMetrics() (*sdkmetric.MeterProvider, error) {
	ctx := context.Background()

	otlpEndpoint := getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")

	exporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(otlpEndpoint),
		otlpmetrichttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(getEnv("SERVICE_NAME", "order-placement-service")),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	return mp, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
