package websocket

import (
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	domainPost "github.com/postpilot/postpilot/domains/post"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type client struct{}

type BroadcastMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Result  any    `json:"result"`
}

var (
	Clients    = make(map[*websocket.Conn]client)
	Register   = make(chan *websocket.Conn)
	Broadcast  = make(chan BroadcastMessage, 64)
	Unregister = make(chan *websocket.Conn)
)

func handleRegister(conn *websocket.Conn) {
	Clients[conn] = client{}
	logrus.Debug("[WS] Connection registered")
}

func handleUnregister(conn *websocket.Conn) {
	delete(Clients, conn)
	logrus.Debug("[WS] Connection unregistered")
}

func broadcastToClients(message BroadcastMessage) {
	marshalMessage, err := json.Marshal(message)
	if err != nil {
		logrus.Errorf("[WS] Marshal error: %v", err)
		return
	}

	for conn := range Clients {
		if err := conn.WriteMessage(websocket.TextMessage, marshalMessage); err != nil {
			logrus.Errorf("[WS] Write error: %v", err)
			closeConnection(conn)
		}
	}
}

func closeConnection(conn *websocket.Conn) {
	_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
	_ = conn.Close()
	delete(Clients, conn)
}

func RunHub() {
	for {
		select {
		case conn := <-Register:
			handleRegister(conn)

		case conn := <-Unregister:
			handleUnregister(conn)

		case message := <-Broadcast:
			broadcastToClients(message)
		}
	}
}

type statusPayload struct {
	PostID    string    `json:"post_id"`
	Previous  string    `json:"previous"`
	New       string    `json:"new"`
	Timestamp time.Time `json:"timestamp"`
}

// EventBridge forwards post status changes to connected websocket clients.
// Delivery is best-effort: if the hub's buffer is full the event is dropped
// rather than blocking the scheduler.
type EventBridge struct{}

func NewEventBridge() EventBridge { return EventBridge{} }

func (EventBridge) EmitStatusChange(event domainPost.StatusEvent) {
	message := BroadcastMessage{
		Code:    "POST_STATUS",
		Message: string(event.Previous) + " -> " + string(event.New),
		Result: statusPayload{
			PostID:    event.PostID,
			Previous:  string(event.Previous),
			New:       string(event.New),
			Timestamp: event.Timestamp,
		},
	}

	select {
	case Broadcast <- message:
	default:
		logrus.Debugf("[WS] Broadcast buffer full, dropping status event for %s", event.PostID)
	}
}

func RegisterRoutes(app fiber.Router) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})

	app.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		defer func() {
			Unregister <- conn
			_ = conn.Close()
		}()

		Register <- conn

		for {
			messageType, _, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logrus.Println("read error:", err)
				}
				return
			}
			if messageType != websocket.TextMessage {
				logrus.Println("unsupported message type:", messageType)
			}
		}
	}))
}
