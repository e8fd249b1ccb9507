package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"lectureflow/internal/attendance"
	"lectureflow/internal/auth"
	"lectureflow/internal/bot"
	"lectureflow/internal/config"
	"lectureflow/internal/httpmiddleware"
	"lectureflow/internal/queue"
	"lectureflow/internal/reminder"
	"lectureflow/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.StoreDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	checks := map[string]pinger{"db": db}
	var q queue.Queue
	var locker reminder.Locker = reminder.NewLocalLocker()
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		redisClient := store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		checks["redis"] = redisClient
		q = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
		locker = reminder.NewRedisLocker(redisClient.Client, "")
	}

	repo := attendance.NewRepository(db.Client)
	svc := attendance.NewService(repo, repo, repo)
	loc := cfg.Location()

	srv := &server{
		svc:           svc,
		queue:         q,
		signer:        auth.NewSigner(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL),
		limiter:       httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin, nil),
		checks:        checks,
		adminKey:      cfg.AdminKey,
		webhookSecret: cfg.WebhookSecret,
		loc:           loc,
		now:           time.Now,
	}

	if cfg.BotToken != "" {
		api, err := tgbotapi.NewBotAPI(cfg.BotToken)
		if err != nil {
			return err
		}
		log.Printf("authorized as @%s", api.Self.UserName)
		srv.sweeper = reminder.NewSweeper(repo, bot.NewNotifier(api), loc)

		if cfg.Webhook() {
			registerWebhook(api, cfg)
		}
		if cfg.Webhook() && cfg.QueueBackend == "memory" {
			// nobody else can read an in-process queue, so this process is the worker
			msgs, err := q.Consume(ctx)
			if err != nil {
				return err
			}
			h := bot.NewHandler(svc, api, loc, cfg.EveningReminder.String(), cfg.LateSweep.String())
			go bot.Consume(ctx, h, msgs)

			sched := reminder.NewScheduler(srv.sweeper, locker, loc)
			if err := sched.Schedule(cfg.EveningReminder.CronSpec(), cfg.LateSweep.CronSpec()); err != nil {
				return err
			}
			sched.Start()
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				sched.Stop(stopCtx)
			}()
		}
	} else {
		log.Println("BOT_TOKEN not set: webhook queueing only, reminders disabled")
	}

	httpSrv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      srv.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

func registerWebhook(api *tgbotapi.BotAPI, cfg config.App) {
	if cfg.WebhookURL == "" || cfg.WebhookSecret == "" {
		log.Println("webhook mode needs WEBHOOK_URL and WEBHOOK_SECRET; not registering")
		return
	}
	link := strings.TrimRight(cfg.WebhookURL, "/") + "/telegram/" + cfg.WebhookSecret
	wh, err := tgbotapi.NewWebhook(link)
	if err != nil {
		log.Printf("webhook url: %v", err)
		return
	}
	if _, err := api.Request(wh); err != nil {
		log.Printf("set webhook: %v", err)
		return
	}
	log.Printf("webhook registered at %s/telegram/***", strings.TrimRight(cfg.WebhookURL, "/"))
}
