package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	MaxMessageSize = 4096
	sendBuffer     = 256
)

// Client is one socket attached to a room.
type Client struct {
	SocketId string
	UserId   string
	RoomId   string

	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

func newClient(socketId, roomId, userId string, conn *websocket.Conn) *Client {
	return &Client{
		SocketId: socketId,
		UserId:   userId,
		RoomId:   roomId,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
	}
}

// enqueue hands data to the write pump. It reports false when the buffer is
// full, in which case the caller drops the client.
func (c *Client) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// close stops the write pump, which closes the connection.
func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debugf("write to socket %s failed: %v", c.SocketId, err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
