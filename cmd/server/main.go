package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/atlasestates/newsletter-service/internal/api"
	"github.com/atlasestates/newsletter-service/internal/config"
	"github.com/atlasestates/newsletter-service/internal/domain"
	"github.com/atlasestates/newsletter-service/internal/mailer"
	"github.com/atlasestates/newsletter-service/internal/pkg/distlock"
	"github.com/atlasestates/newsletter-service/internal/pkg/logger"
	"github.com/atlasestates/newsletter-service/internal/repository/postgres"
	"github.com/atlasestates/newsletter-service/internal/service/dispatch"
	"github.com/atlasestates/newsletter-service/internal/service/newsletter"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("database url is required (config or DATABASE_URL)")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// The dispatch lock falls back to Postgres advisory locks.
			logger.Warn("redis unreachable, using postgres advisory lock", "error", err.Error())
			redisClient = nil
		}
	}

	sender, err := buildSender(ctx, cfg.Mailer)
	if err != nil {
		log.Fatalf("Failed to init mailer: %v", err)
	}
	gateway := mailer.NewGateway(sender)
	if atts, err := loadWelcomeAttachments(cfg.Mailer.WelcomeAttachments); err != nil {
		log.Fatalf("Failed to load welcome attachments: %v", err)
	} else if len(atts) > 0 {
		gateway.SetWelcomeAttachments(atts)
	}

	repo := postgres.NewSubscriberRepo(db)
	newsletterSvc := newsletter.NewService(repo, gateway, cfg.Newsletter.BaseURL)

	engine := dispatch.NewEngine(repo, gateway, dispatch.Config{
		BaseURL:    cfg.Newsletter.BaseURL,
		BatchSize:  cfg.Newsletter.BatchSize,
		BatchPause: cfg.Newsletter.BatchPause(),
	})
	engine.SetLock(distlock.New(redisClient, db, "campaign-send", cfg.Newsletter.SendLockTTL()))

	handlers := api.NewHandlers(newsletterSvc, engine)
	handlers.SetDB(db)
	if redisClient != nil {
		handlers.SetRedisClient(redisClient)
	}
	server := api.NewServer(handlers, cfg.Admin.APIKey)

	if cfg.Admin.APIKey == "" {
		logger.Warn("ADMIN_API_KEY not set, admin endpoints are disabled")
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
		log.Printf("Starting newsletter server on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}

// buildSender selects the configured email provider.
func buildSender(ctx context.Context, cfg config.MailerConfig) (mailer.Sender, error) {
	switch cfg.Provider {
	case "ses":
		return mailer.NewSESSender(ctx, cfg.SES.AccessKey, cfg.SES.SecretKey, cfg.SES.Region, cfg.FromEmail, cfg.FromName)
	case "smtp":
		s := mailer.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.FromEmail, cfg.FromName)
		if cfg.SMTP.TLSMode != "" {
			s.TLSMode = cfg.SMTP.TLSMode
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown mailer provider %q", cfg.Provider)
	}
}

// loadWelcomeAttachments reads the configured files once at startup so a
// missing file fails fast instead of on the first welcome email.
func loadWelcomeAttachments(paths []string) ([]domain.Attachment, error) {
	var out []domain.Attachment
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read attachment %s: %w", p, err)
		}
		out = append(out, domain.Attachment{
			Filename: filepath.Base(p),
			Content:  data,
		})
	}
	return out, nil
}
