package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Время ожидания записи сообщения
	writeWait = 10 * time.Second

	// Время ожидания между pong сообщениями
	pongWait = 60 * time.Second

	// Интервал ping (должен быть меньше pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Входящих сообщений от фронтенда нет, лимит маленький
	maxMessageSize = 1024

	// Буфер исходящих сообщений соединения
	clientSendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Аутентификация и происхождение запроса проверяются на гейтвее
	// до апгрейда
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Client - одно WebSocket соединение пользователя.
// Две горутины на соединение: readPump следит за живостью, writePump
// отправляет сообщения из буфера.
type Client struct {
	userID int
	conn   *websocket.Conn
	hub    *Hub
	send   chan []byte
}

// readPump читает входящие фреймы. Полезных сообщений от клиента нет -
// цикл нужен для обработки pong и закрытия.
func (c *Client) readPump() {
	defer func() {
		c.hub.drop(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

// writePump отправляет сообщения клиенту и поддерживает соединение ping'ами
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub закрыл канал
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// ServeWS апгрейдит HTTP соединение до WebSocket и регистрирует его в Hub.
// userID берётся из контекста аутентификации вызывающим хэндлером.
func ServeWS(hub *Hub, userID int, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		userID: userID,
		conn:   conn,
		hub:    hub,
		send:   make(chan []byte, clientSendBufferSize),
	}

	// Hub на остановке не принимает новые соединения
	select {
	case hub.register <- client:
	case <-hub.stopCh:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
