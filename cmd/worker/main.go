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

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lectureflow/internal/attendance"
	"lectureflow/internal/bot"
	"lectureflow/internal/config"
	"lectureflow/internal/queue"
	"lectureflow/internal/reminder"
	"lectureflow/internal/store"
)

// Worker handles Telegram updates, from the queue or by long polling, and
// fires the daily reminders.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	if cfg.BotToken == "" {
		log.Fatal("BOT_TOKEN is required")
	}
	if cfg.Webhook() && !cfg.UsesRedis() {
		log.Fatal("webhook mode needs the redis queue; with the memory queue the api process handles updates")
	}

	db, err := store.Open(ctx, cfg.StoreDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer db.Close()

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatalf("telegram login failed: %v", err)
	}
	log.Printf("authorized as @%s", api.Self.UserName)

	loc := cfg.Location()
	repo := attendance.NewRepository(db.Client)
	svc := attendance.NewService(repo, repo, repo)
	handler := bot.NewHandler(svc, api, loc, cfg.EveningReminder.String(), cfg.LateSweep.String())

	var locker reminder.Locker = reminder.NewLocalLocker()
	var redisClient *store.Redis
	if cfg.UsesRedis() {
		redisClient = store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		if !redisClient.Healthy(ctx) {
			log.Printf("WARNING: redis at %s not reachable", cfg.RedisAddr)
		}
		locker = reminder.NewRedisLocker(redisClient.Client, "")
	}

	sched := reminder.NewScheduler(reminder.NewSweeper(repo, bot.NewNotifier(api), loc), locker, loc)
	if err := sched.Schedule(cfg.EveningReminder.CronSpec(), cfg.LateSweep.CronSpec()); err != nil {
		log.Fatalf("reminder schedule failed: %v", err)
	}
	sched.Start()
	log.Printf("reminders at %s and %s (%s)", cfg.EveningReminder, cfg.LateSweep, loc)

	metricsSrv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: promhttp.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server: %v", err)
		}
	}()

	if cfg.Webhook() {
		q := queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
		messages, err := q.Consume(ctx)
		if err != nil {
			log.Fatalf("queue consume init failed: %v", err)
		}
		log.Println("worker started, waiting for queued updates...")
		bot.Consume(ctx, handler, messages)
	} else {
		if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			log.Printf("delete webhook: %v", err)
		}
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 30
		updates := api.GetUpdatesChan(u)
		log.Println("worker started, long polling...")
		go func() {
			<-ctx.Done()
			api.StopReceivingUpdates()
		}()
		bot.Poll(ctx, handler, updates)
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	sched.Stop(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Println("worker stopped")
}
