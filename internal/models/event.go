package models

// EventKind distinguishes the payload carried by an inbound event.
type EventKind string

const (
	EventText    EventKind = "text"
	EventVoice   EventKind = "voice"
	EventCommand EventKind = "command"
)

// Event is one normalized inbound message from the transport.
// For text and command events Payload is the message text; for voice events
// it is the transport's attachment reference.
type Event struct {
	ChatID  int64     `json:"chat_id"`
	Kind    EventKind `json:"kind"`
	Payload string    `json:"payload"`
}

// Menu is an ordered list of button rows for the transport to render.
type Menu [][]string

// Reply is the outbound answer to one event.
type Reply struct {
	Text string `json:"text"`
	Menu Menu   `json:"menu,omitempty"`
}
