package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"kakeibo/internal/config"
	apphttp "kakeibo/internal/http"
	"kakeibo/internal/repository/sqlite"
	"kakeibo/internal/service"
	"kakeibo/web"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	userRepo := sqlite.NewUserRepository(db)
	itemRepo := sqlite.NewItemRepository(db)
	sessionRepo := sqlite.NewSessionRepository(db)

	if err := userRepo.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}
	if err := itemRepo.Init(ctx); err != nil {
		logger.Fatalf("init item repository: %v", err)
	}
	if err := sessionRepo.Init(ctx); err != nil {
		logger.Fatalf("init session repository: %v", err)
	}

	sessionTTL := time.Duration(cfg.Session.TTLHours) * time.Hour
	authService := service.NewAuthService(userRepo, sessionRepo, sessionTTL)
	itemService := service.NewItemService(itemRepo)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.SetHTMLTemplate(web.Templates())

	handler := apphttp.NewHandler(
		authService,
		itemService,
		sessionRepo,
		logger,
		cfg.Session.CookieSecure,
		sessionTTL,
	)
	handler.RegisterRoutes(router)

	// purge expired sessions in the background
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := sessionRepo.DeleteExpired(ctx); err != nil {
					logger.Warnf("purge sessions: %v", err)
				} else if n > 0 {
					logger.Infof("purged %d expired sessions", n)
				}
			}
		}
	}()

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}
