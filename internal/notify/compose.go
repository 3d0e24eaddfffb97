// Package notify delivers push notifications to members who are not in the room.
package notify

import (
	"encoding/json"
	"fmt"

	"github.com/pelusa-v/roomchat/internal/data"
)

const bodyLimit = 150

// Message is one push, identical for every token in a batch.
type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

func Compose(s data.Summary) Message {
	name := s.AuthorName
	if name == "" {
		name = "Someone"
	}
	params, _ := json.Marshal(map[string]interface{}{
		"screen": "ChatMessage",
		"params": map[string]int64{"id": s.RoomID, "messageId": s.MessageID},
	})
	return Message{
		Title: fmt.Sprintf("%s sent a message", name),
		Body:  body(s),
		Data: map[string]string{
			"screen":           "Chat",
			"additionalParams": string(params),
		},
	}
}

func body(s data.Summary) string {
	switch s.Type {
	case data.MessageText:
		r := []rune(s.Value)
		if len(r) > bodyLimit {
			return string(r[:bodyLimit]) + "..."
		}
		return s.Value
	case data.MessageImage:
		return "An image is sent"
	case data.MessageVideo:
		return "A video is sent"
	default:
		return "New message"
	}
}
