package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Freeeeeet/classroom_bot/internal/clock"
	"github.com/Freeeeeet/classroom_bot/internal/tracker"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Ticker один проход трекера живых занятий
type Ticker interface {
	Tick(ctx context.Context) (*tracker.TickReport, error)
}

// Archiver архивация посещаемости за месяц
type Archiver interface {
	Archive(ctx context.Context, year int, month time.Month) (int, error)
}

// SchedulerConfig расписание фоновых задач
type SchedulerConfig struct {
	TrackerInterval        time.Duration
	ArchiveCron            string
	ArchiveRetentionMonths int
}

// Scheduler управляет фоновыми задачами: такт трекера и ежемесячная архивация
type Scheduler struct {
	tracker  Ticker
	archiver Archiver
	clock    clock.Clock
	cfg      SchedulerConfig
	logger   *zap.Logger

	cron     *cron.Cron
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler создаёт новый планировщик
func NewScheduler(t Ticker, archiver Archiver, clk clock.Clock, cfg SchedulerConfig, logger *zap.Logger) *Scheduler {
	c := cron.New(
		cron.WithLocation(clk.Location()),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	return &Scheduler{
		tracker:  t,
		archiver: archiver,
		clock:    clk,
		cfg:      cfg,
		logger:   logger,
		cron:     c,
		stopChan: make(chan struct{}),
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("Starting background scheduler",
		zap.Duration("tracker_interval", s.cfg.TrackerInterval),
		zap.String("archive_cron", s.cfg.ArchiveCron),
		zap.Int("archive_retention_months", s.cfg.ArchiveRetentionMonths))

	if s.cfg.ArchiveCron != "" {
		_, err := s.cron.AddFunc(s.cfg.ArchiveCron, func() { s.runArchive(ctx) })
		if err != nil {
			return fmt.Errorf("schedule archive job: %w", err)
		}
		s.cron.Start()
	}

	s.wg.Add(1)
	go s.runTrackerTask(ctx)
	return nil
}

// Stop останавливает фоновые задачи и ждёт завершения текущего такта и архивации
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping background scheduler")
		close(s.stopChan)
		<-s.cron.Stop().Done()
		s.wg.Wait()
	})
}

// runTrackerTask крутит такт трекера с фиксированным интервалом
func (s *Scheduler) runTrackerTask(ctx context.Context) {
	defer s.wg.Done()

	// Первый такт сразу при старте
	s.tick(ctx)

	ticker := time.NewTicker(s.cfg.TrackerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-s.stopChan:
			s.logger.Info("Tracker task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Tracker task cancelled")
			return
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	report, err := s.tracker.Tick(ctx)
	if err != nil {
		if errors.Is(err, tracker.ErrTickInProgress) {
			s.logger.Warn("Previous tracker tick still running, skipping")
			return
		}
		s.logger.Error("Tracker tick failed", zap.Error(err))
		return
	}
	if report.Errors > 0 {
		s.logger.Warn("Tracker tick skipped slots", zap.Int("errors", report.Errors))
	}
}

// runArchive архивирует месяц, отстоящий от текущего на ArchiveRetentionMonths
func (s *Scheduler) runArchive(ctx context.Context) {
	year, month := ArchiveMonth(s.clock.Now(), s.cfg.ArchiveRetentionMonths)

	s.logger.Info("Starting scheduled attendance archive",
		zap.Int("year", year),
		zap.Int("month", int(month)))

	n, err := s.archiver.Archive(ctx, year, month)
	if err != nil {
		// следующий запуск повторит месяц целиком
		s.logger.Error("Scheduled attendance archive failed",
			zap.Int("archived", n),
			zap.Error(err))
		return
	}

	s.logger.Info("Scheduled attendance archive completed", zap.Int("rows", n))
}

// ArchiveMonth месяц, который пора архивировать: retentionMonths назад от now
func ArchiveMonth(now time.Time, retentionMonths int) (int, time.Month) {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	target := first.AddDate(0, -retentionMonths, 0)
	return target.Year(), target.Month()
}
