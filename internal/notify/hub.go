package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Freeeeeet/classroom_bot/internal/model"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingPeriod   = 50 * time.Second
	wsSendBuffer   = 32
)

var errSubscriberSlow = errors.New("subscriber send buffer full")

// subscriber одно websocket-подключение преподавателя.
// Все записи идут через writeLoop, gorilla не допускает конкурентную запись.
type subscriber struct {
	id        string
	facultyID int64
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
	done      chan struct{}
}

func (s *subscriber) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// Hub websocket-канал: подписчики получают события своего преподавателя
type Hub struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu   sync.RWMutex
	subs map[int64]map[string]*subscriber // facultyID -> subscriberID -> subscriber
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
		subs:   make(map[int64]map[string]*subscriber),
	}
}

func (h *Hub) Name() string {
	return "ws"
}

// Publish отправляет событие всем подписчикам преподавателя из события
func (h *Hub) Publish(ctx context.Context, _ string, event model.LiveSessionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	h.mu.RLock()
	targets := make([]*subscriber, 0, len(h.subs[event.FacultyID]))
	for _, sub := range h.subs[event.FacultyID] {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	var errs []error
	for _, sub := range targets {
		select {
		case sub.send <- payload:
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		default:
			errs = append(errs, fmt.Errorf("%s: %w", sub.id, errSubscriberSlow))
		}
	}
	return errors.Join(errs...)
}

// Subscribers количество подключений преподавателя
func (h *Hub) Subscribers(facultyID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[facultyID])
}

// Serve апгрейдит запрос до websocket и держит подписку до отключения клиента
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, facultyID int64) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade websocket: %w", err)
	}

	sub := &subscriber{
		id:        uuid.NewString(),
		facultyID: facultyID,
		conn:      conn,
		send:      make(chan []byte, wsSendBuffer),
		done:      make(chan struct{}),
	}
	h.register(sub)
	defer h.unregister(sub)

	go h.writeLoop(sub)
	h.readLoop(sub)
	return nil
}

func (h *Hub) register(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs[sub.facultyID] == nil {
		h.subs[sub.facultyID] = make(map[string]*subscriber)
	}
	h.subs[sub.facultyID][sub.id] = sub

	h.logger.Debug("WebSocket subscriber registered",
		zap.Int64("faculty_id", sub.facultyID),
		zap.String("subscriber_id", sub.id))
}

func (h *Hub) unregister(sub *subscriber) {
	h.mu.Lock()
	if byFaculty, ok := h.subs[sub.facultyID]; ok {
		delete(byFaculty, sub.id)
		if len(byFaculty) == 0 {
			delete(h.subs, sub.facultyID)
		}
	}
	h.mu.Unlock()

	sub.close()
	h.logger.Debug("WebSocket subscriber removed",
		zap.Int64("faculty_id", sub.facultyID),
		zap.String("subscriber_id", sub.id))
}

// readLoop нужен только для pong и обнаружения закрытия; входящие сообщения игнорируются
func (h *Hub) readLoop(sub *subscriber) {
	sub.conn.SetReadLimit(512)
	_ = sub.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(sub *subscriber) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := sub.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				sub.close()
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				sub.close()
				return
			}
		case <-sub.done:
			return
		}
	}
}

// Close отключает всех подписчиков
func (h *Hub) Close() {
	h.mu.RLock()
	var all []*subscriber
	for _, byFaculty := range h.subs {
		for _, sub := range byFaculty {
			all = append(all, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range all {
		sub.close()
	}
}
