package notifier

import (
	"context"
	"time"
)

// Notifier delivers one titled message to a notification target (device token)
type Notifier interface {
	Send(ctx context.Context, target, title, body string) error
}

// Message payload published by the mqtt and stream notifiers
type Message struct {
	Target  string    `json:"target"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Popup   bool      `json:"popup"`
	SentAt  time.Time `json:"sent_at"`
}

func newMessage(target, title, body string) Message {
	return Message{
		Target:  target,
		Title:   title,
		Message: body,
		Popup:   true,
		SentAt:  time.Now().UTC(),
	}
}
