package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tripchat/internal/auth"
	"tripchat/internal/chat"
	"tripchat/internal/config"
	"tripchat/internal/http_server/handlers/creategroup"
	"tripchat/internal/http_server/handlers/listgroups"
	"tripchat/internal/http_server/handlers/login"
	"tripchat/internal/http_server/handlers/register"
	"tripchat/internal/http_server/handlers/sendmessage"
	"tripchat/internal/http_server/handlers/userinfo"
	"tripchat/internal/http_server/middleware/authn"
	"tripchat/internal/lib/jwt"
	"tripchat/internal/storage/postgres"
	"tripchat/internal/ws"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("starting tripchat service", slog.String("env", cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("shutdown signal received")
		cancel()
	}()

	storage, err := postgres.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Error("failed to connect postgres", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer storage.Close()

	tokens := jwt.NewManager(cfg.Tokens.Secret, cfg.Tokens.AccessTokenTTL)

	hub := ws.NewHub(log)
	go hub.Run()

	authService := auth.New(log, storage, storage, tokens)
	chatService := chat.New(log, storage, storage, hub)

	router := setupRouter(log, tokens, authService, chatService, hub, cfg.HTTPServer.AllowedOrigin)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server is running", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", slog.String("err", err.Error()))
			cancel()
		}
	}()

	<-ctx.Done()

	log.Info("shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", slog.String("err", err.Error()))
	} else {
		log.Info("server stopped gracefully")
	}

	if err := hub.Shutdown(5 * time.Second); err != nil {
		log.Error("hub shutdown error", slog.String("err", err.Error()))
	}

	log.Info("service stopped")
}

func setupRouter(
	log *slog.Logger,
	tokens *jwt.Manager,
	authService *auth.Auth,
	chatService *chat.Chat,
	hub *ws.Hub,
	allowedOrigin string,
) *chi.Mux {
	validate := validator.New()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{allowedOrigin},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
		}))

		r.Post("/auth/register", register.New(log, validate, authService))
		r.Post("/auth/login", login.New(log, validate, authService))

		r.Group(func(r chi.Router) {
			r.Use(authn.New(log, tokens))

			r.Get("/auth/user", userinfo.New(log, authService))
			r.Post("/groups", creategroup.New(log, validate, chatService))
			r.Get("/groups", listgroups.New(log, chatService))
			r.Post("/groups/{id}/message", sendmessage.New(log, validate, chatService))
		})
	})

	// The real-time channel is origin-unrestricted; see ws.Handler.
	r.Get("/ws", ws.Handler(log, hub))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("OK"))
	})

	return r
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
