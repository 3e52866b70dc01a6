package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/mind-engage/academy/internal/api/http"
	"github.com/mind-engage/academy/internal/attempt"
	auth "github.com/mind-engage/academy/internal/auth/middleware"
	"github.com/mind-engage/academy/internal/config"
	"github.com/mind-engage/academy/internal/content"
	"github.com/mind-engage/academy/internal/course"
	"github.com/mind-engage/academy/internal/db"
	"github.com/mind-engage/academy/internal/quiz"
	"github.com/mind-engage/academy/internal/service"
	syncx "github.com/mind-engage/academy/internal/sync"
)

func main() {
	cfg := config.Load()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.ParseDriver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	defer dbh.Close()

	// --- Auth ---
	authSvc := auth.NewAuthService(cfg.AuthHMACSecret)
	users := auth.NewUsers(dbh, cfg.Mode == config.ModeOffline)
	if err := users.EnsureAdmin(ctx, cfg.AdminUser, cfg.AdminPassHash); err != nil {
		log.Fatalf("bootstrap admin: %v", err)
	}

	// --- Stores and services ---
	events := syncx.NewEventRepo(dbh, cfg.SiteID)
	quizzes := quiz.NewSQLStore(dbh)
	svc := service.NewQuizService(dbh, quizzes, attempt.NewSQLSessionStore(dbh), events, service.Options{
		DefaultTimerMinutes: cfg.QuizDefaultTimerMinutes,
	})
	rep, err := svc.Restore(ctx)
	if err != nil {
		log.Fatalf("restore countdowns: %v", err)
	}
	log.Printf("restored sessions: armed=%d submitted=%d failed=%d", rep.Armed, rep.Submitted, rep.Failed)
	if err := svc.StartSweeper(cfg.SessionSweepSpec); err != nil {
		log.Fatalf("session sweeper: %v", err)
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	var protect []func(http.Handler) http.Handler
	if cfg.Mode == config.ModeOnline {
		protect = append(protect, auth.AttachRoleFromDB(dbh, false))
	}
	api.Mount(r, api.Deps{
		DB:                 dbh,
		Auth:               authSvc,
		Users:              users,
		Courses:            course.NewSQLStore(dbh),
		Content:            service.NewContentService(content.NewSQLStore(dbh), events),
		Quizzes:            quizzes,
		Attempts:           svc,
		DefaultMaxAttempts: cfg.QuizDefaultMaxAttempts,
		EnableLogin:        cfg.EnableLocalAuth,
	}, protect...)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Printf("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	// running sessions stay in storage; Restore picks them up on next boot
	svc.Close()
}
