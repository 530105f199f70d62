package ws

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The real-time feed carries no credentials and read access is public,
	// origin checks belong to the gateway in front.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request to a websocket, registers the connection with
// the hub and pumps control messages until the client goes away.
func ServeWS(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("Failed to upgrade connection: %v", err)
			return
		}

		client := hub.Register(conn)
		go readControlMessages(hub, client, conn)
	}
}

// readControlMessages parses "subscribe:<resource>" / "unsubscribe:<resource>"
// text frames. Subscription state is client-owned: after a reconnect the
// client replays its subscriptions itself, the server keeps nothing across
// connections.
func readControlMessages(hub *Hub, client *Connection, conn *websocket.Conn) {
	defer hub.OnDisconnect(client)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Connection %s closed unexpectedly: %v", client.ID, err)
			}
			return
		}

		command, resourceID, ok := strings.Cut(strings.TrimSpace(string(data)), ":")
		if !ok || resourceID == "" {
			log.Printf("Connection %s sent unrecognized control message %q", client.ID, data)
			continue
		}

		switch command {
		case "subscribe":
			hub.Subscribe(client, resourceID)
		case "unsubscribe":
			hub.Unsubscribe(client, resourceID)
		default:
			log.Printf("Connection %s sent unknown command %q", client.ID, command)
		}
	}
}
