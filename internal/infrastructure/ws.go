package infra

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// WebsocketHandler serves one upgraded connection until it returns
type WebsocketHandler func(c echo.Context, conn *websocket.Conn, done <-chan struct{}) error

// Websocket upgrades requests and keeps the connection alive with ping/pong
type Websocket struct {
	upgrader     websocket.Upgrader
	writeWait    time.Duration
	pongWait     time.Duration
	pingInterval time.Duration
}

// NewWebsocket create a Websocket with default timeouts
func NewWebsocket() *Websocket {
	pongWait := 30 * time.Second
	return &Websocket{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			HandshakeTimeout: 3 * time.Second,
		},
		writeWait:    10 * time.Second,
		pongWait:     pongWait,
		pingInterval: pongWait * 9 / 10,
	}
}

// WithHeartbeat wrap handler function with heartbeat probe.
//
// done is closed once the peer goes away (read error or missed pong), handler should return then.
// The handler owns all data writes; pings go through WriteControl which is safe to call concurrently.
func (ws *Websocket) WithHeartbeat(handler WebsocketHandler) echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, err := ws.upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			return nil // upgrader already replied with an error status
		}
		defer conn.Close()

		done := make(chan struct{})
		go ws.readRoutine(conn, done)
		go ws.heartbeatRoutine(conn, done)
		return handler(c, conn, done)
	}
}

// WriteJSON writes v with the write deadline applied
func (ws *Websocket) WriteJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(ws.writeWait))
	return conn.WriteJSON(v)
}

// readRoutine drains client frames so control frames get processed
func (ws *Websocket) readRoutine(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	conn.SetReadDeadline(time.Now().Add(ws.pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(ws.pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (ws *Websocket) heartbeatRoutine(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(ws.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ws.writeWait)); err != nil {
				return
			}
		}
	}
}
