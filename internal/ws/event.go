package ws

import "encoding/json"

// Event is the JSON frame exchanged on the real-time channel. Clients send
// {"event":"joinGroup","groupId":...}; the server pushes
// {"event":"newMessage","groupId":...,"data":{message}}.
type Event struct {
	Name    string          `json:"event"`
	GroupID string          `json:"groupId,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

const (
	EventJoinGroup  = "joinGroup"
	EventNewMessage = "newMessage"
)
