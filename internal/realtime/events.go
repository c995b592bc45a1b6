package realtime

import "encoding/json"

// EventType tags the JSON events pushed by the automation server.
type EventType string

const (
	EventConnected          EventType = "connected"
	EventMessage            EventType = "message"
	EventMessageEdit        EventType = "message_edit"
	EventMessageDelete      EventType = "message_delete"
	EventChatUpdate         EventType = "chat_update"
	EventChatsSynced        EventType = "chats_synced"
	EventServiceUnavailable EventType = "service_unavailable"
	EventPollVote           EventType = "poll_vote"
)

// ChatInfo identifies the chat an event belongs to, when the server sends it.
type ChatInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Event is one tagged push from the automation server. Data is kept raw;
// subscribers decode the slice they care about.
type Event struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
	Chat *ChatInfo       `json:"chat,omitempty"`
}

// Handler receives events in registration order. A panicking handler only
// loses its own delivery; the dispatcher keeps going.
type Handler func(Event)
