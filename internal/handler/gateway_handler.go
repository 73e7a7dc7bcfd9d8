package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/proctorly/proctor-backend/internal/gateway"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allow-list permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// GatewayHandler upgrades connections and runs the per-socket read loop
// against the hub.
type GatewayHandler struct {
	hub      *gateway.Hub
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewGatewayHandler creates a new GatewayHandler.
func NewGatewayHandler(hub *gateway.Hub, allowedOrigins []string, log zerolog.Logger) *GatewayHandler {
	return &GatewayHandler{
		hub:      hub,
		upgrader: buildUpgrader(allowedOrigins),
		log:      log.With().Str("component", "gateway_handler").Logger(),
	}
}

// Stream godoc
// WS /ws/v1/tests/stream?token=...
// Upgrades to WebSocket. The client joins a test's room and then receives
// session state and headcount events until it disconnects.
func (h *GatewayHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	client := gateway.NewClient()
	defer close(client.Send)
	defer h.hub.Leave(client)

	// All outbound traffic funnels through the client's Send channel so
	// broadcasts and protocol replies never interleave on the socket.
	// Leave runs before the close, so the hub stops fanning out to this
	// client before its channel goes away.
	go func() {
		for data := range client.Send {
			if err := gateway.WriteRaw(conn, data); err != nil {
				return
			}
		}
	}()

	for {
		var msg gateway.RequestPayload
		if err := gateway.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn().Err(err).Msg("Unexpected close")
			} else {
				h.log.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case gateway.ActionJoin:
			if msg.TestID == "" {
				h.send(client, gateway.ErrorEvent{Event: gateway.EventError, Error: "test_id is required"})
				continue
			}
			h.send(client, gateway.JoinedEvent{Event: gateway.EventJoined, TestID: msg.TestID})
			h.hub.Join(client, msg.TestID)
		case gateway.ActionPing:
			h.send(client, gateway.PongEvent{Event: gateway.EventPong})
		default:
			h.send(client, gateway.ErrorEvent{Event: gateway.EventError, Error: "unknown action"})
		}
	}
}

// send marshals an event onto the client's outbound channel, dropping it
// if the client is too far behind.
func (h *GatewayHandler) send(client *gateway.Client, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case client.Send <- data:
	default:
	}
}
