package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/example/parkpulse/internal/http/middleware"
	"github.com/example/parkpulse/internal/notifier"
	outboxworker "github.com/example/parkpulse/internal/outbox"
	"github.com/example/parkpulse/internal/parking/availability"
	"github.com/example/parkpulse/internal/parking/domain"
	"github.com/example/parkpulse/internal/parking/expiry"
	"github.com/example/parkpulse/internal/parking/handler"
	"github.com/example/parkpulse/internal/parking/repository"
	parkingservice "github.com/example/parkpulse/internal/parking/service"
	"github.com/example/parkpulse/pkg/observability"
	outboxpkg "github.com/example/parkpulse/pkg/outbox"
)

type appConfig struct {
	HTTPAddr       string
	PostgresDSN    string
	RedisAddr      string
	NATSURL        string
	JWTSecret      string
	ExpirySchedule string
	MirrorTTL      time.Duration
	ReadRate       float64
	ReadBurst      float64
	WriteRate      float64
	WriteBurst     float64
	OutboxPoll     time.Duration
	OutboxBatch    int
	OutboxRetry    int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := observability.SetupLogger("reservation-service")
	defer logger.Sync() //nolint:errcheck

	shutdown, err := observability.SetupTracer(ctx, "reservation-service")
	if err != nil {
		logger.Warn("tracer setup failed", zap.Error(err))
	} else {
		defer shutdown(context.Background())
	}

	cfg := loadConfig()

	var db *sql.DB
	if cfg.PostgresDSN != "" {
		db, err = sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("postgres connect", zap.Error(err))
		}
		db.SetMaxOpenConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			logger.Fatal("postgres ping", zap.Error(err))
		}
		defer db.Close()
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis ping", zap.Error(err))
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		if conn, err := nats.Connect(cfg.NATSURL, nats.Name("reservationservice")); err == nil {
			natsConn = conn
			defer conn.Drain()
		} else {
			logger.Warn("nats connection failed", zap.Error(err))
		}
	}

	hub := notifier.NewHub(logger.Named("hub"))
	natsPublisher := outboxpkg.NewPublisher(natsConn, "", "")

	publishers := notifier.Fanout{hub}
	if db != nil {
		// Durable mode: events go through the outbox table and the
		// dispatcher owns NATS delivery.
		publishers = append(publishers, outboxworker.NewRecorder(db, natsPublisher))
	} else if natsConn != nil {
		publishers = append(publishers, natsPublisher)
	}

	var mirror parkingservice.AvailabilityMirror
	var index *availability.RedisIndex
	if redisClient != nil {
		index = availability.NewRedisIndex(redisClient, "", cfg.MirrorTTL)
		mirror = index
	}

	store := repository.NewMemoryStore()
	svc := parkingservice.New(store, publishers, domain.SystemClock{}, mirror, logger.Named("service"))

	wsHandler := notifier.NewWebSocketHandler(hub, logger.Named("ws"))
	parkingHTTP := handler.NewHTTP(svc, index, wsHandler, cfg.JWTSecret)

	r := chi.NewRouter()
	limiter := middleware.NewRateLimiter(redisClient,
		middleware.RateConfig{Rate: cfg.ReadRate, Burst: cfg.ReadBurst},
		middleware.RateConfig{Rate: cfg.WriteRate, Burst: cfg.WriteBurst})
	if limiter != nil {
		r.Use(limiter.Middleware)
	}
	r.Mount("/", parkingHTTP.Router())
	r.Mount("/observability", observability.MetricsRouter(readyChecks(redisClient, db)...))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	sweeper := expiry.NewSweeper(svc, domain.SystemClock{}, logger.Named("expiry"))
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.ExpirySchedule, func() { sweeper.RunOnce(ctx) }); err != nil {
		logger.Fatal("expiry schedule", zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	if db != nil && natsConn != nil {
		worker := outboxworker.NewWorker(db, natsConn, logger.Named("outbox"), outboxworker.WorkerConfig{
			PollInterval: cfg.OutboxPoll,
			BatchSize:    cfg.OutboxBatch,
			RetryMax:     cfg.OutboxRetry,
		})
		go func() {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("outbox worker stopped", zap.Error(err))
			}
		}()
	} else if db != nil {
		logger.Warn("outbox dispatcher disabled, events stay queued", zap.Bool("nats", natsConn != nil))
	}

	go func() {
		logger.Info("reservation service listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func readyChecks(redisClient *redis.Client, db *sql.DB) []observability.ReadyCheck {
	var checks []observability.ReadyCheck
	if redisClient != nil {
		checks = append(checks, func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}
	if db != nil {
		checks = append(checks, func(ctx context.Context) error { return db.PingContext(ctx) })
	}
	return checks
}

func loadConfig() appConfig {
	_ = godotenv.Load()
	return appConfig{
		HTTPAddr:       getenv("HTTP_ADDR", ":8080"),
		PostgresDSN:    firstNonEmpty(os.Getenv("POSTGRES_DSN"), os.Getenv("DATABASE_URL")),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		NATSURL:        os.Getenv("NATS_URL"),
		JWTSecret:      getenv("JWT_SECRET", "dev-secret"),
		ExpirySchedule: getenv("EXPIRY_SCHEDULE", "@every 1m"),
		MirrorTTL:      time.Duration(parseIntEnv("MIRROR_TTL_SEC", 0)) * time.Second,
		ReadRate:       parseFloatEnv("RATE_LIMIT_READ", 50),
		ReadBurst:      parseFloatEnv("RATE_LIMIT_READ_BURST", 100),
		WriteRate:      parseFloatEnv("RATE_LIMIT_WRITE", 10),
		WriteBurst:     parseFloatEnv("RATE_LIMIT_WRITE_BURST", 20),
		OutboxPoll:     time.Duration(parseIntEnv("OUTBOX_POLL_MS", 200)) * time.Millisecond,
		OutboxBatch:    parseIntEnv("OUTBOX_BATCH", 100),
		OutboxRetry:    parseIntEnv("OUTBOX_RETRY_MAX", 3),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseIntEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func parseFloatEnv(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
