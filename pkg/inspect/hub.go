package inspect

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/domkit/pkg/middleware"
	"github.com/vango-dev/domkit/pkg/query"
)

const (
	// writeTimeout bounds a single websocket write.
	writeTimeout = 5 * time.Second

	// pingInterval keeps idle stream connections alive.
	pingInterval = 30 * time.Second
)

// hub fans engine events out to websocket clients. Publishing never blocks
// the engine: events that do not fit a client's buffer are dropped for that
// client.
type hub struct {
	logger  *slog.Logger
	metrics *middleware.Metrics
	buffer  int

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
	wg      sync.WaitGroup
}

type client struct {
	conn *websocket.Conn
	send chan query.Event
	done chan struct{}
	once sync.Once
}

func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}

func newHub(logger *slog.Logger, metrics *middleware.Metrics, buffer int) *hub {
	return &hub{
		logger:  logger,
		metrics: metrics,
		buffer:  buffer,
		clients: make(map[*client]struct{}),
	}
}

// publish hands ev to every connected client.
func (h *hub) publish(ev query.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			h.metrics.StreamError("overflow")
		}
	}
}

// attach starts the reader and writer of a freshly upgraded connection.
// It reports false when the hub is already closed.
func (h *hub) attach(conn *websocket.Conn) bool {
	c := &client{
		conn: conn,
		send: make(chan query.Event, h.buffer),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = struct{}{}
	h.wg.Add(2)
	h.mu.Unlock()

	h.metrics.StreamOpened()
	go h.readLoop(c)
	go h.writeLoop(c)
	return true
}

func (h *hub) detach(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		h.metrics.StreamClosed()
	}
}

// readLoop discards client messages and stops the client when the
// connection closes.
func (h *hub) readLoop(c *client) {
	defer h.wg.Done()
	defer c.stop()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *hub) writeLoop(c *client) {
	defer h.wg.Done()
	defer func() {
		h.detach(c)
		c.conn.Close()
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case ev := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(ev); err != nil {
				h.metrics.StreamError("write")
				h.logger.Debug("inspect: event stream write failed", "error", err)
				return
			}
			h.metrics.EventsSent(1)
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// clientCount returns the number of connected clients.
func (h *hub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// close disconnects every client and waits for their goroutines.
func (h *hub) close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.stop()
		// Unblock the reader; the writer sends the close frame first.
		c.conn.SetReadDeadline(time.Now())
	}
	h.wg.Wait()
}
