package wire

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultWSWriteTimeout bounds how long a single event write may block
// before the bridge gives up on a stalled client.
const DefaultWSWriteTimeout = 5 * time.Second

// WSBridge upgrades HTTP connections to websockets and forwards every event
// on a Wire to each connected client as a JSON text frame, until the
// subscriber's channel closes (wire shutdown) or a write fails (client gone).
// Unlike a broadcast-to-a-client-map design, each connection subscribes to
// the Wire directly and rides that subscriber's own backpressure lanes, so
// the bridge does no fan-out bookkeeping of its own.
type WSBridge struct {
	wire         *Wire
	upgrader     websocket.Upgrader
	logger       *slog.Logger
	writeTimeout time.Duration
}

// NewWSBridge constructs a bridge serving events from w.
func NewWSBridge(w *Wire, logger *slog.Logger) *WSBridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSBridge{
		wire:         w,
		writeTimeout: DefaultWSWriteTimeout,
		logger:       logger.With("component", "wire_ws_bridge"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and streams wire events to it until the
// wire closes, the client disconnects, or a write fails.
func (b *WSBridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close() //nolint:errcheck

	sub := b.wire.Subscribe()
	defer b.wire.Unsubscribe(sub)

	// Clients don't send anything meaningful over this connection; the read
	// loop exists only to notice when they disconnect, the same way a
	// live-reload socket detects a closed tab.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				b.logger.Warn("marshal wire event", "error", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(b.writeTimeout)) //nolint:errcheck
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
			if ev.IsTerminal() {
				return
			}
		case <-closed:
			return
		}
	}
}
