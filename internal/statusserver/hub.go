package statusserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeTimeout = 10 * time.Second

	// 客户端发送队列长度，写满即视为落后客户端并断开
	clientQueueSize = 32
)

// Event 推送给客户端的事件
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// client 一个已连接的 websocket 客户端
type client struct {
	conn *websocket.Conn
	send chan Event
}

// Hub 事件推送中心
// 维护 websocket 客户端集合，把运行事件广播给所有客户端。
type Hub struct {
	upgrader websocket.Upgrader
	logger   *logrus.Entry

	mutex   sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub 创建事件推送中心
func NewHub(logger *logrus.Entry) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 仅监听本机地址，放开跨域检查
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// HandleWebSocket 处理 /ws 升级请求
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan Event, clientQueueSize)}

	h.mutex.Lock()
	if h.closed {
		h.mutex.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mutex.Unlock()

	h.logger.WithField("clients", count).Debug("WebSocket client connected")

	go h.writeLoop(c)
	go h.readLoop(c)
}

// Broadcast 向所有客户端广播一个事件
func (h *Hub) Broadcast(eventType string, data any) {
	event := Event{Type: eventType, Timestamp: time.Now(), Data: data}

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- event:
		default:
			// 队列已满，丢弃事件，由读写循环负责清理连接
			h.logger.Debug("Dropping event for slow client")
		}
	}
}

// ClientCount 当前连接的客户端数量
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Close 断开全部客户端并拒绝新连接
func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for c := range h.clients {
		close(c.send)
		c.conn.Close()
		delete(h.clients, c)
	}
}

func (h *Hub) writeLoop(c *client) {
	for event := range c.send {
		payload, err := json.Marshal(event)
		if err != nil {
			h.logger.WithError(err).Error("Failed to encode event")
			continue
		}

		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.remove(c)
			return
		}
	}
}

// readLoop 仅消费客户端消息以探测断开，服务端不处理入站消息
func (h *Hub) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.remove(c)
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	c.conn.Close()
}
