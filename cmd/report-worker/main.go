// Command report-worker consumes queued report email jobs.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/evanmaskanazi/socialworkboard/internal/auth"
	"github.com/evanmaskanazi/socialworkboard/internal/config"
	"github.com/evanmaskanazi/socialworkboard/internal/db"
	"github.com/evanmaskanazi/socialworkboard/internal/encryption"
	"github.com/evanmaskanazi/socialworkboard/internal/mail"
	"github.com/evanmaskanazi/socialworkboard/internal/queue"
	"github.com/evanmaskanazi/socialworkboard/internal/repo"
	"github.com/evanmaskanazi/socialworkboard/internal/service"
)

func main() {
	cfg := config.Load()
	if cfg.ReportQueueURL == "" {
		log.Fatal("REPORT_QUEUE_URL is required")
	}
	if cfg.MailFrom == "" {
		log.Fatal("MAIL_FROM is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect db: %v", err)
	}
	defer pool.Close()

	svc := service.New(repo.New(pool), auth.NewManager(cfg.JWTSecret))
	if cfg.KMSKeyID != "" {
		notes, err := encryption.NewKMSNotes(ctx, cfg.KMSKeyID)
		if err != nil {
			log.Fatalf("failed to configure KMS: %v", err)
		}
		svc.Notes = notes
	}
	sender, err := mail.NewSESSender(ctx, cfg.MailFrom)
	if err != nil {
		log.Fatalf("failed to configure SES: %v", err)
	}
	svc.Mailer = sender

	q, err := queue.NewSQS(ctx, cfg.ReportQueueURL)
	if err != nil {
		log.Fatalf("failed to configure SQS: %v", err)
	}

	log.Printf("report worker polling %s", cfg.ReportQueueURL)
	q.Consume(ctx, svc.ProcessReportJob)
	log.Printf("report worker stopped")
}
