package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// WSMessage is the WebSocket message envelope, both directions.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client represents one authenticated WebSocket connection. A client starts
// in no rooms and joins/leaves them with joinEvent / joinSession messages.
type Client struct {
	ID     string
	UserID uuid.UUID
	Role   string
	hub    *Hub
	conn   *websocket.Conn
	send   chan WSMessage
	logger *zap.Logger
	rooms  map[string]struct{} // guarded by hub.mu
}

type joinEventPayload struct {
	EventID string `json:"eventId"`
}

type joinSessionPayload struct {
	SessionID string `json:"sessionId"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWs handles the WebSocket upgrade and runs the client loop. The bearer
// credential travels as a query parameter since browsers cannot set headers
// on a WebSocket handshake. Admission fails closed: no token, no connection.
func ServeWs(hub *Hub, logger *zap.Logger, jwtValidate func(token string) (userID, role string, err error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "token required"})
			return
		}
		userIDStr, role, err := jwtValidate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid token"})
			return
		}
		userID, err := uuid.Parse(userIDStr)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:     uuid.New().String(),
			UserID: userID,
			Role:   role,
			hub:    hub,
			conn:   conn,
			send:   make(chan WSMessage, 256),
			logger: logger,
			rooms:  make(map[string]struct{}),
		}
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Disconnect(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		c.handleMessage(msg)
	}
}

// handleMessage dispatches one client-initiated message. A join/leave with a
// missing or malformed id yields a server-emitted error message; everything
// else about membership is idempotent.
func (c *Client) handleMessage(msg WSMessage) {
	switch msg.Event {
	case "joinEvent", "leaveEvent":
		var p joinEventPayload
		_ = json.Unmarshal(msg.Data, &p)
		id, err := uuid.Parse(p.EventID)
		if p.EventID == "" || err != nil {
			c.hub.SendToClient(c, "error", errorPayload{Message: "Event ID is required"})
			return
		}
		if msg.Event == "joinEvent" {
			c.hub.Join(c, EventRoom(id))
		} else {
			c.hub.Leave(c, EventRoom(id))
		}
	case "joinSession", "leaveSession":
		var p joinSessionPayload
		_ = json.Unmarshal(msg.Data, &p)
		id, err := uuid.Parse(p.SessionID)
		if p.SessionID == "" || err != nil {
			c.hub.SendToClient(c, "error", errorPayload{Message: "Session ID is required"})
			return
		}
		if msg.Event == "joinSession" {
			c.hub.Join(c, SessionRoom(id))
		} else {
			c.hub.Leave(c, SessionRoom(id))
		}
	default:
		// ignore
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
