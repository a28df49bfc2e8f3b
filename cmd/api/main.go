// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"librarium/internal/catalog"
	"librarium/internal/circulation"
	"librarium/internal/config"
	"librarium/internal/database"
	"librarium/internal/membership"
	"librarium/internal/telemetry"
	"librarium/internal/web"
	"librarium/pkg/logger"
)

const shutdownGrace = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "librarium: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logger.New(cfg.LogLevel, cfg.AppEnv, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, log); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Setup(ctx, "librarium", cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			return fmt.Errorf("setting up telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Warn("trace exporter shutdown", map[string]interface{}{"error": err.Error()})
			}
		}()
	}

	runner := database.NewRunner(db)

	bookStore := catalog.NewBookStore()
	categoryStore := catalog.NewCategoryStore()
	memberStore := membership.NewMemberStore()
	userStore := membership.NewUserStore()
	loanStore := circulation.NewPGLoanStore()

	books := catalog.NewBookService(runner, bookStore, log)
	categories := catalog.NewCategoryService(runner, categoryStore, log)
	members := membership.NewMemberService(runner, memberStore, log)
	users := membership.NewUserService(runner, userStore, memberStore, cfg.Auth, log)
	loans := circulation.NewLoanService(runner, loanStore, bookStore, memberStore, log)

	respond := web.NewResponder(log)
	catalogHandler := catalog.NewHandler(books, categories, respond)
	membershipHandler := membership.NewHandler(members, users, respond)
	circulationHandler := circulation.NewHandler(loans, respond)

	router := chi.NewRouter()
	router.Use(web.RequestID)
	router.Use(web.RequestLogger(log))
	router.Use(web.RateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	router.Use(web.Metrics)
	if cfg.Telemetry.Enabled {
		router.Use(web.Tracing)
	}

	router.NotFound(respond.NotFound)
	router.MethodNotAllowed(respond.MethodNotAllowed)

	router.Method(http.MethodGet, "/health", web.NewHealthHandler(db))
	router.Method(http.MethodGet, "/metrics", web.MetricsHandler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Mount("/books", catalogHandler.BookRoutes())
		r.Mount("/categories", catalogHandler.CategoryRoutes())
		r.Mount("/members", membershipHandler.MemberRoutes())
		r.Mount("/users", membershipHandler.UserRoutes())
		r.Mount("/loans", circulationHandler.Routes())
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", map[string]interface{}{
			"addr": server.Addr,
			"env":  cfg.AppEnv,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	log.Info("server shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info("server stopped", nil)
	return nil
}
