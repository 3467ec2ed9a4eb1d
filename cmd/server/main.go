package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evanmaskanazi/socialworkboard/internal/auth"
	"github.com/evanmaskanazi/socialworkboard/internal/config"
	"github.com/evanmaskanazi/socialworkboard/internal/db"
	"github.com/evanmaskanazi/socialworkboard/internal/encryption"
	api "github.com/evanmaskanazi/socialworkboard/internal/http"
	"github.com/evanmaskanazi/socialworkboard/internal/mail"
	"github.com/evanmaskanazi/socialworkboard/internal/queue"
	"github.com/evanmaskanazi/socialworkboard/internal/repo"
	"github.com/evanmaskanazi/socialworkboard/internal/service"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect db: %v", err)
	}
	defer pool.Close()

	authManager := auth.NewManager(cfg.JWTSecret)
	if cfg.AutoMigrate {
		if err := db.RunMigrations(ctx, pool); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		if err := db.Seed(ctx, pool, db.SeedOptions{Demo: cfg.SeedDemo, Hasher: authManager}); err != nil {
			log.Fatalf("failed to seed db: %v", err)
		}
	}

	svc := service.New(repo.New(pool), authManager)
	svc.TokenTTL = cfg.TokenTTL
	if err := wireAWS(ctx, cfg, svc); err != nil {
		log.Fatalf("failed to configure AWS: %v", err)
	}

	handler := &api.API{Service: svc, Auth: authManager, Origins: cfg.CORSOrigins}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
}

// wireAWS installs the optional AWS-backed collaborators. Each one is off
// unless its setting is present.
func wireAWS(ctx context.Context, cfg config.Config, svc *service.Service) error {
	if cfg.KMSKeyID != "" {
		notes, err := encryption.NewKMSNotes(ctx, cfg.KMSKeyID)
		if err != nil {
			return err
		}
		svc.Notes = notes
		log.Printf("check-in notes encrypted with KMS key %s", cfg.KMSKeyID)
	}
	if cfg.MailFrom != "" {
		sender, err := mail.NewSESSender(ctx, cfg.MailFrom)
		if err != nil {
			return err
		}
		svc.Mailer = sender
	} else {
		log.Printf("MAIL_FROM not set, report email disabled")
	}
	if cfg.ReportQueueURL != "" {
		q, err := queue.NewSQS(ctx, cfg.ReportQueueURL)
		if err != nil {
			return err
		}
		svc.Queue = q
	}
	return nil
}
