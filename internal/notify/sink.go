package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Freeeeeet/classroom_bot/internal/metrics"
	"github.com/Freeeeeet/classroom_bot/internal/model"
	"go.uber.org/zap"
)

// Sink канал доставки событий живых сессий подписчикам.
// Доставка best-effort, не чаще одного раза.
type Sink interface {
	Name() string
	Publish(ctx context.Context, topic string, event model.LiveSessionEvent) error
}

// FacultyTopic тема событий конкретного преподавателя
func FacultyTopic(facultyID int64) string {
	return fmt.Sprintf("faculty/%d/sessions", facultyID)
}

// MultiSink рассылает событие во все каналы; отказ одного не мешает остальным
type MultiSink struct {
	sinks   []Sink
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewMultiSink(logger *zap.Logger, m *metrics.Metrics, sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks, metrics: m, logger: logger}
}

func (s *MultiSink) Name() string {
	return "multi"
}

// Publish отправляет во все каналы параллельно, каждому не дольше ctx
func (s *MultiSink) Publish(ctx context.Context, topic string, event model.LiveSessionEvent) error {
	errs := make([]error, len(s.sinks))

	var wg sync.WaitGroup
	for i, sink := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := publishOne(ctx, sink, topic, event); err != nil {
				s.metrics.DispatchFailed(sink.Name())
				s.logger.Warn("Sink failed to publish event",
					zap.String("sink", sink.Name()),
					zap.String("topic", topic),
					zap.String("status", string(event.Status)),
					zap.Error(err))
				errs[i] = fmt.Errorf("%s: %w", sink.Name(), err)
			}
		}()
	}
	wg.Wait()

	return errors.Join(errs...)
}

// publishOne не ждёт канал дольше ctx, даже если тот игнорирует отмену
func publishOne(ctx context.Context, sink Sink, topic string, event model.LiveSessionEvent) error {
	done := make(chan error, 1)
	go func() {
		done <- sink.Publish(ctx, topic, event)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogSink пишет события в лог; включён по умолчанию
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string {
	return "log"
}

func (s *LogSink) Publish(_ context.Context, topic string, event model.LiveSessionEvent) error {
	fields := []zap.Field{
		zap.String("topic", topic),
		zap.String("status", string(event.Status)),
		zap.Int64("faculty_id", event.FacultyID),
		zap.Int64("time_slot_id", event.TimeSlotID),
		zap.String("section", event.SectionName),
		zap.String("room", event.Room),
		zap.String("interval", model.FormatTimeRange(event.StartTime, event.EndTime)),
	}
	if event.MinutesRemaining != nil {
		fields = append(fields, zap.Int("minutes_remaining", *event.MinutesRemaining))
	}
	if event.AttendancePercentage != nil {
		fields = append(fields, zap.Float64("attendance_percentage", *event.AttendancePercentage))
	}

	s.logger.Info("Live session event", fields...)
	return nil
}
