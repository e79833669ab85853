package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/RPS-Stake/rps-stake/internal/engine"
	"github.com/RPS-Stake/rps-stake/internal/metrics"
	"github.com/RPS-Stake/rps-stake/internal/model"
	"github.com/RPS-Stake/rps-stake/internal/pricing"
	"github.com/RPS-Stake/rps-stake/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	ctx := context.Background()

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Price oracle ---
	var feed pricing.PriceFeed
	if feedURL := os.Getenv("PRICE_FEED_URL"); feedURL != "" {
		feed = pricing.NewHTTPFeed(feedURL)
		slog.Info("price feed configured", "url", feedURL)
	} else {
		slog.Warn("PRICE_FEED_URL not set, using static dev prices")
		dev := pricing.NewStaticFeed()
		dev.SetPrice("USDT", decimal.NewFromInt(100), 2) // 100 credits per USDT
		feed = dev
	}
	oracle := pricing.New(feed, 30*time.Second, 3*time.Second)

	// Development default asset; production registers assets via /admin.
	if os.Getenv("PRICE_FEED_URL") == "" {
		_ = oracle.RegisterAsset(model.SupportedAsset{
			ID:          "USDT",
			FeedRef:     "USDT",
			Precision:   2,
			MinPurchase: 100,
			MaxPurchase: 1_000_000,
			Active:      true,
		})
	}

	// --- Verification provider ---
	var verifier engine.Verifier
	if verifyURL := os.Getenv("VERIFY_URL"); verifyURL != "" {
		verifier = engine.NewHTTPVerifier(verifyURL)
		slog.Info("verification provider configured", "url", verifyURL)
	} else {
		slog.Warn("VERIFY_URL not set, all accounts treated as verified")
		verifier = engine.NewStaticVerifier(true)
	}

	// --- WebSocket event stream hub ---
	wsHub := engine.NewWSHub()
	go wsHub.Run()

	// --- Settlement engine ---
	eng, err := engine.New(ctx, engine.DefaultConfig(), st, oracle, verifier, wsHub)
	if err != nil {
		slog.Error("engine initialization failed", "err", err)
		os.Exit(1)
	}

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"stake-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint streaming committed event log entries.
		r.Get("/events/ws", wsHub.HandleWS)
		r.Get("/events", eng.HandleEvents)

		// Round settlement and credit exchange.
		r.Post("/rounds", eng.HandlePlayRound)
		r.Post("/purchases", eng.HandlePurchase)
		r.Post("/cashouts", eng.HandleCashout)

		// Account queries (available while paused).
		r.Get("/accounts/{accountID}/balance", eng.HandleBalance)
		r.Get("/accounts/{accountID}/matches", eng.HandleMatchHistory)
		r.Get("/accounts/{accountID}/limits", eng.HandleDailyCounter)
	})

	// Privileged operations; authorization is external to the core.
	r.Route("/admin", func(r chi.Router) {
		r.Use(adminGuard(os.Getenv("ADMIN_TOKEN")))
		r.Post("/pause", eng.HandleSetPause)
		r.Get("/config", eng.HandleGetConfig)
		r.Put("/config", eng.HandleUpdateConfig)
		r.Get("/assets", eng.HandleListAssets)
		r.Post("/assets", eng.HandleRegisterAsset)
		r.Delete("/assets/{assetID}", eng.HandleDeactivateAsset)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("stake-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	slog.Info("shutting down stake-engine...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("stake-engine stopped")
}

// adminGuard rejects admin requests without the expected bearer token.
// An empty token disables the admin surface entirely.
func adminGuard(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" || r.Header.Get("Authorization") != "Bearer "+token {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"error":"forbidden"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
