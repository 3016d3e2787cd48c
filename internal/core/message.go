package core

import "time"

// ChatMessage is the domain model for a chat message. It lives only as
// long as its room does; nothing here is ever persisted.
type ChatMessage struct {
	From   string
	Body   string
	SentAt time.Time
}
