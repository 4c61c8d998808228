package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/remixhub/remixhub-api/internal/config"
	"github.com/remixhub/remixhub-api/internal/domain/credit"
	"github.com/remixhub/remixhub-api/internal/domain/payment"
	"github.com/remixhub/remixhub-api/internal/domain/remix"
	"github.com/remixhub/remixhub-api/internal/middleware"
	"github.com/remixhub/remixhub-api/internal/pkg/database"
	"github.com/remixhub/remixhub-api/internal/pkg/githubapi"
	"github.com/remixhub/remixhub-api/internal/pkg/jwt"
	"github.com/remixhub/remixhub-api/internal/pkg/mercadopago"
	pkgresponse "github.com/remixhub/remixhub-api/internal/pkg/response"
)

const expirySweepInterval = time.Minute

func main() {
	cfg := config.Load()
	setupLogger(cfg)

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting RemixHub API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret)

	githubClient := githubapi.NewClient(githubapi.Config{
		BaseURL: cfg.GitHubAPIBaseURL,
		Timeout: cfg.GitHubTimeout,
	})
	mercadoPagoClient := mercadopago.NewClient(mercadopago.Config{
		BaseURL:     cfg.MercadoPagoBaseURL,
		AccessToken: cfg.MercadoPagoAccessToken,
		Timeout:     cfg.MercadoPagoTimeout,
	})

	// ---------- Repositories ----------
	creditRepo := credit.NewRepository(db)
	remixRepo := remix.NewRepository(db)
	paymentRepo := payment.NewRepository(db, creditRepo)

	// ---------- Services ----------
	creditService := credit.NewService(creditRepo)

	copier := remix.NewCopier(githubClient, remix.CopierOptions{
		Concurrency: cfg.CopyConcurrency,
		FailFast:    cfg.CopyFailFast,
	})
	remixService := remix.NewService(remixRepo, copier, creditService, remix.ServiceConfig{
		HourlyLimit: cfg.RemixHourlyLimit,
		CopyTimeout: cfg.RemixTimeout,
	})

	paymentService := payment.NewService(paymentRepo, mercadoPagoClient, redis, payment.ServiceConfig{
		UnitPrice:  cfg.CreditUnitPrice,
		PendingTTL: cfg.PaymentPendingTTL,
	})

	// ---------- Handlers ----------
	creditHandler := credit.NewHandler(creditService)
	remixHandler := remix.NewHandler(remixService)
	paymentHandler := payment.NewHandler(paymentService)

	authMiddleware := middleware.Auth(jwtService)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))
	r.Use(chimw.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/credits", creditHandler.Routes(authMiddleware))
		r.Mount("/remixes", remixHandler.Routes(authMiddleware))
		r.Mount("/payments", paymentHandler.Routes(authMiddleware))
	})

	r.Mount("/webhooks", paymentHandler.WebhookRoutes())

	// Background sweeper cancels pending orders past their payment window.
	// The per-poll lazy expiry handles active clients; this catches the rest.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go runExpirySweeper(sweepCtx, paymentService)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 4 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

func runExpirySweeper(ctx context.Context, svc payment.Service) {
	ticker := time.NewTicker(expirySweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.ExpireStale(ctx)
			if err != nil {
				log.Error().Err(err).Msg("payment expiry sweep failed")
				continue
			}
			if n > 0 {
				log.Info().Int64("cancelled", n).Msg("expired stale payment orders")
			}
		}
	}
}

func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		})
	}
}
