package chat

import (
	"context"
	"encoding/json"

	"github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog/log"
)

// Client is the transport side of a session; it only knows the session id.
type Client struct {
	SessionID string
	UserID    int64
	Conn      ConnLike
	Send      chan []byte
}

type ConnLike interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(int, []byte) error
	Close() error
}

func NewClient(sessionID string, userID int64, conn ConnLike) *Client {
	return &Client{SessionID: sessionID, UserID: userID, Conn: conn, Send: make(chan []byte, 64)}
}

// ReadPump handles the session's events one at a time until the connection fails.
func (c *Client) ReadPump(ctx context.Context, m *Manager) {
	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Str("session_id", c.SessionID).Msg("read pump stopped")
			return
		}
		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil || frame.Event == "" {
			m.channel.SendToSession(c.SessionID, EventError, Failure(MsgInvalidData, ErrInvalidData))
			continue
		}
		m.Handle(ctx, c.SessionID, frame)
	}
}

func (c *Client) WritePump() {
	for data := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug().Err(err).Str("session_id", c.SessionID).Msg("write failed")
			_ = c.Conn.Close()
			return
		}
	}
}
