// Package live рассылает браузерам события в реальном времени по WebSocket:
// смену слайда карусели и отсчёт таймера акции.
package live

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mmeshcher/luckyspin/internal/metrics"
)

// Типы сообщений.
const (
	TypeConnected = "connected"
	TypeCarousel  = "carousel"
	TypeTimer     = "registration_timer"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
)

// Message описывает конверт сообщения.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// SendFunc ставит сообщение в очередь одного клиента.
type SendFunc func(msgType string, data any)

// SessionFunc выполняется, пока клиент подключён; контекст отменяется при отключении.
type SessionFunc func(ctx context.Context, send SendFunc)

type client struct {
	conn   *websocket.Conn
	id     string
	cancel context.CancelFunc

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func (c *client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.cancel()
}

// Hub хранит подключения и рассылает им сообщения.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	broadcast  chan Message
	done       chan struct{}

	upgrader websocket.Upgrader
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewHub создаёт хаб. Для рассылки нужно запустить Run.
func NewHub(logger *zap.Logger, m *metrics.Metrics) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan Message, 256),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:  logger,
		metrics: m,
	}
}

// Len возвращает число подключённых клиентов.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run обслуживает подключения до отмены контекста, после чего закрывает их.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				c.close()
				h.metrics.LiveClientDisconnected()
			}
			h.mu.Unlock()
			return nil

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			h.metrics.LiveClientConnected()

			h.logger.Debug("live client connected", zap.String("clientID", c.id), zap.Int("total", total))
			if data, err := encode(TypeConnected, map[string]string{"clientId": c.id}); err == nil {
				c.enqueue(data)
			}

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.close()
				h.metrics.LiveClientDisconnected()
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				h.logger.Error("failed to marshal live message", zap.Error(err))
				continue
			}

			h.mu.RLock()
			var slow []*client
			for c := range h.clients {
				if !c.enqueue(data) {
					slow = append(slow, c)
				}
			}
			h.mu.RUnlock()

			for _, c := range slow {
				h.logger.Warn("live client too slow, disconnecting", zap.String("clientID", c.id))
				h.mu.Lock()
				delete(h.clients, c)
				h.mu.Unlock()
				c.close()
				h.metrics.LiveClientDisconnected()
			}
		}
	}
}

func encode(msgType string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: msgType, Data: raw})
}

// Broadcast ставит сообщение в очередь рассылки всем клиентам.
func (h *Hub) Broadcast(msgType string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("failed to marshal live broadcast", zap.Error(err), zap.String("type", msgType))
		return
	}

	select {
	case h.broadcast <- Message{Type: msgType, Data: raw}:
	default:
		h.logger.Warn("live broadcast channel full, message dropped", zap.String("type", msgType))
	}
}

// Serve переводит запрос на WebSocket и регистрирует клиента.
// session, если задана, выполняется в отдельной горутине до отключения клиента.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, clientID string, session SessionFunc) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &client{
		conn:   conn,
		id:     clientID,
		cancel: cancel,
		send:   make(chan []byte, sendBuffer),
	}

	select {
	case h.register <- c:
	case <-h.done:
		cancel()
		conn.Close()
		return
	}

	go h.writePump(c)
	go h.readPump(c)

	if session != nil {
		go session(ctx, func(msgType string, data any) {
			b, err := encode(msgType, data)
			if err != nil {
				h.logger.Error("failed to marshal live message", zap.Error(err), zap.String("type", msgType))
				return
			}
			c.enqueue(b)
		})
	}
}

func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("live read error", zap.Error(err), zap.String("clientID", c.id))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
