package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/classroom_bot/internal/app"
	"github.com/Freeeeeet/classroom_bot/internal/clock"
	"github.com/Freeeeeet/classroom_bot/internal/config"
	"github.com/Freeeeeet/classroom_bot/internal/controller"
	"github.com/Freeeeeet/classroom_bot/internal/controller/handlers"
	"github.com/Freeeeeet/classroom_bot/internal/httpapi"
	"github.com/Freeeeeet/classroom_bot/internal/metrics"
	"github.com/Freeeeeet/classroom_bot/internal/notify"
	"github.com/Freeeeeet/classroom_bot/internal/repository"
	"github.com/Freeeeeet/classroom_bot/internal/service"
	"github.com/Freeeeeet/classroom_bot/internal/tracker"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment, cfg.LogLevel)
	defer logger.Sync()

	logger.Info("Starting classroom bot",
		zap.String("environment", cfg.Environment),
		zap.Strings("notify_sinks", cfg.NotifySinks),
		zap.Duration("tracker_interval", cfg.TrackerInterval))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Classroom bot stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Classroom bot stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	clk := clock.NewReal(loc)

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	migrator, err := app.NewMigrator(pool, cfg.MigrationsPath, logger)
	if err != nil {
		return err
	}
	if err := migrator.Run(ctx); err != nil {
		migrator.Close()
		return err
	}
	migrator.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Репозитории
	slotRepo := repository.NewTimeSlotRepository(pool)
	refRepo := repository.NewReferenceRepository(pool)
	attendanceRepo := repository.NewAttendanceRepository(pool)

	checks := map[string]httpapi.HealthCheck{
		"postgres": pool.Ping,
	}

	// Telegram-клиент нужен и для команд, и для канала уведомлений
	var tgBot *bot.Bot
	if cfg.TelegramToken != "" {
		tgBot, err = bot.New(cfg.TelegramToken)
		if err != nil {
			return fmt.Errorf("create telegram bot: %w", err)
		}
	}

	// Каналы уведомлений
	hub := notify.NewHub(logger)
	defer hub.Close()

	var sinks []notify.Sink
	for _, name := range cfg.NotifySinks {
		switch name {
		case config.SinkLog:
			sinks = append(sinks, notify.NewLogSink(logger))
		case config.SinkWebSocket:
			sinks = append(sinks, hub)
		case config.SinkTelegram:
			sinks = append(sinks, notify.NewTelegramSink(tgBot, refRepo))
		case config.SinkRedis:
			rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
			defer rdb.Close()
			checks["redis"] = func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			}
			sinks = append(sinks, notify.NewRedisSink(rdb, ""))
		}
	}
	dispatcher := notify.NewDispatcher(notify.NewMultiSink(logger, m, sinks...), cfg.NotifyTimeout, m, logger)

	// Сервисы
	validator := service.NewTimeSlotValidator(slotRepo, refRepo, logger)
	timeSlotService := service.NewTimeSlotService(slotRepo, validator, logger)
	attendanceService := service.NewAttendanceService(attendanceRepo, slotRepo, dispatcher, clk, m,
		service.AttendanceOptions{
			LateGrace:        cfg.LateSubmissionGrace,
			ArchiveBatchSize: cfg.ArchiveBatchSize,
		}, logger)

	liveTracker := tracker.New(slotRepo, dispatcher, clk, m, logger)

	scheduler := app.NewScheduler(liveTracker, attendanceService, clk, app.SchedulerConfig{
		TrackerInterval:        cfg.TrackerInterval,
		ArchiveCron:            cfg.ArchiveCron,
		ArchiveRetentionMonths: cfg.ArchiveRetentionMonths,
	}, logger)

	router := httpapi.NewRouter(httpapi.Deps{
		Tracker:    liveTracker,
		Hub:        hub,
		TimeSlots:  timeSlotService,
		Attendance: attendanceService,
		Gatherer:   registry,
		Checks:     checks,
		Clock:      clk,
		Logger:     logger,
	})
	server := httpapi.NewServer(cfg.HTTPPort, router, logger)

	if err := scheduler.Start(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	botCtx, stopBot := context.WithCancel(ctx)
	defer stopBot()
	botDone := make(chan struct{})
	if tgBot != nil {
		botController := controller.NewBotController(tgBot,
			handlers.NewHandlers(refRepo, timeSlotService, attendanceService, liveTracker, clk, logger),
			logger)
		if err := botController.RegisterHandlers(botCtx); err != nil {
			logger.Warn("Bot commands menu not set", zap.Error(err))
		}
		go func() {
			defer close(botDone)
			botController.Start(botCtx)
		}()
	} else {
		close(botDone)
		logger.Info("TELEGRAM_TOKEN not set, bot commands disabled")
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errCh:
	}

	// Сначала останавливаем всех, кто шлёт события, потом дожидаемся отправок
	scheduler.Stop()
	stopBot()
	<-botDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		runErr = errors.Join(runErr, shutdownErr)
	}

	dispatcher.Drain()
	return runErr
}
