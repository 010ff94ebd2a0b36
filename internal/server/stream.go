package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/crosstab"
	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shell"
)

const writeTimeout = 5 * time.Second

// StreamHandler streams shell events over WebSocket connections
type StreamHandler struct {
	tab      *shell.Tab
	upgrader websocket.Upgrader
	metrics  *monitoring.Metrics
	logger   *zap.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// NewStreamHandler creates a new WebSocket handler
func NewStreamHandler(tab *shell.Tab, metrics *monitoring.Metrics, logger *zap.Logger) *StreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamHandler{
		tab: tab,
		upgrader: websocket.Upgrader{
			CheckOrigin: checkOrigin,
		},
		metrics: metrics,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// checkOrigin applies the shell's message-origin rule to browser clients.
// Requests without an Origin header are not from a browser page.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return crosstab.AllowedOrigin(origin, scheme+"://"+r.Host)
}

// Close ends every open stream
func (h *StreamHandler) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// conn serializes writes; gorilla connections allow one concurrent writer
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) send(msg types.WSMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(msg)
}

// HandleConnection upgrades the request and streams bus events until the
// client disconnects. The latest toggle and availability events are
// replayed first.
func (h *StreamHandler) HandleConnection(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	sc := h.tab.Context()
	events, cancel := sc.Events().Subscribe(0)
	defer cancel()

	out := &conn{ws: ws}
	h.write(out, types.WSMessage{
		Type:    "system",
		Payload: gin.H{"tab": sc.TabID(), "generation": h.tab.Generation()},
	})
	for _, t := range []types.EventType{types.EventToggleChanged, types.EventAvailabilityChanged} {
		if ev, ok := sc.Events().Last(t); ok {
			h.write(out, types.WSMessage{Type: string(ev.Type), Payload: ev})
		}
	}

	closed := make(chan struct{})
	go h.readLoop(out, closed)

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := h.write(out, types.WSMessage{Type: string(ev.Type), Payload: ev}); err != nil {
				return
			}
		case <-closed:
			return
		case <-h.done:
			out.mu.Lock()
			ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(writeTimeout))
			out.mu.Unlock()
			return
		}
	}
}

// readLoop answers pings and closes closed when the client goes away
func (h *StreamHandler) readLoop(out *conn, closed chan struct{}) {
	defer close(closed)
	for {
		var msg types.WSMessage
		if err := out.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
		h.metrics.RecordWSMessage("in", msg.Type)

		switch msg.Type {
		case "ping":
			h.write(out, types.WSMessage{Type: "pong"})
		default:
			h.write(out, types.WSMessage{Type: "error", Payload: gin.H{"message": "unknown message type"}})
		}
	}
}

func (h *StreamHandler) write(out *conn, msg types.WSMessage) error {
	if err := out.send(msg); err != nil {
		h.logger.Debug("WebSocket write failed", zap.String("type", msg.Type), zap.Error(err))
		return err
	}
	h.metrics.RecordWSMessage("out", msg.Type)
	return nil
}
