package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Freeeeeet/classroom_bot/internal/metrics"
	"github.com/Freeeeeet/classroom_bot/internal/model"
	"go.uber.org/zap"
)

// Dispatcher отправляет события в фоне с ограничением по времени.
// Медленный или недоступный канал не задерживает вызывающего: событие
// отбрасывается по таймауту, ошибка только логируется.
type Dispatcher struct {
	sink    Sink
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger

	mu      sync.RWMutex
	drained bool
	wg      sync.WaitGroup
}

// ErrDrained событие пришло после Drain
var ErrDrained = errors.New("dispatcher drained")

func NewDispatcher(sink Sink, timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		sink:    sink,
		timeout: timeout,
		metrics: m,
		logger:  logger,
	}
}

// Dispatch ставит событие в отправку и сразу возвращает управление
func (d *Dispatcher) Dispatch(topic string, event model.LiveSessionEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.drained {
		d.drop(topic, event, ErrDrained)
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			done <- d.sink.Publish(ctx, topic, event)
		}()

		select {
		case err := <-done:
			if err != nil {
				d.drop(topic, event, err)
			}
		case <-ctx.Done():
			d.drop(topic, event, ctx.Err())
		}
	}()
}

// Drain ждёт завершения всех отправок в полёте; новые события после него отбрасываются
func (d *Dispatcher) Drain() {
	d.mu.Lock()
	d.drained = true
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) drop(topic string, event model.LiveSessionEvent, err error) {
	d.metrics.DispatchFailed(d.sink.Name())
	d.logger.Warn("Notification dropped",
		zap.String("topic", topic),
		zap.String("event_id", event.ID.String()),
		zap.String("status", string(event.Status)),
		zap.Int64("time_slot_id", event.TimeSlotID),
		zap.Error(err))
}
