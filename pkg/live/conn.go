package live

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn wraps a websocket connection so any number of goroutines can read and
// write it. Writes block each other, and so do reads.
type Conn struct {
	c       *websocket.Conn
	writeMu sync.Mutex
	readMu  sync.Mutex
}

// NewConn wraps c.
func NewConn(c *websocket.Conn) *Conn {
	return &Conn{c: c}
}

// ReadMessage returns the next data message.
func (c *Conn) ReadMessage() ([]byte, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	_, data, err := c.c.ReadMessage()
	return data, err
}

// WriteJSON sends v as a text message.
func (c *Conn) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.c.WriteMessage(websocket.TextMessage, data)
}

// Close sends a normal closure frame and closes the connection.
func (c *Conn) Close() error {
	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.c.Close()
}
