package ws

import (
	"encoding/json"

	"github.com/willson5127/holocardserver/matchmaking"
)

// InboundEnvelope is the generic envelope for all client-to-server
// messages. MessageType routes; Raw holds the full JSON payload.
type InboundEnvelope struct {
	MessageType string          `json:"message_type"`
	Raw         json.RawMessage `json:"-"`
}

// UnmarshalJSON implements custom unmarshaling to capture the raw payload.
func (e *InboundEnvelope) UnmarshalJSON(data []byte) error {
	type typeOnly struct {
		MessageType string `json:"message_type"`
	}
	var t typeOnly
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	e.MessageType = t.MessageType
	e.Raw = json.RawMessage(data)
	return nil
}

// --- Client-to-Server message payloads ---

// AuthMsg carries a JWT; when the server has auth configured, every
// message other than join_server is rejected until it succeeds.
type AuthMsg struct {
	MessageType string `json:"message_type"`
	Token       string `json:"token"`
}

// JoinMatchmakingQueueMsg submits a deck and enters a queue.
type JoinMatchmakingQueueMsg struct {
	MessageType string         `json:"message_type"`
	QueueName   string         `json:"queue_name"`
	CustomGame  bool           `json:"custom_game"`
	GameType    string         `json:"game_type"`
	PlayerName  string         `json:"player_name,omitempty"`
	OshiID      string         `json:"oshi_id"`
	Deck        map[string]int `json:"deck"`
	CheerDeck   map[string]int `json:"cheer_deck"`
}

// GameActionMsg forwards one engine action into the player's room.
type GameActionMsg struct {
	MessageType string         `json:"message_type"`
	ActionType  string         `json:"action_type"`
	ActionData  map[string]any `json:"action_data"`
}

// --- Server-to-Client messages ---

// ErrorMsg is sent when a client message is invalid.
type ErrorMsg struct {
	MessageType  string `json:"message_type"`
	ErrorID      string `json:"error_id"`
	ErrorMessage string `json:"error_message"`
}

// ServerInfoMsg summarizes the matchmaking queues.
type ServerInfoMsg struct {
	MessageType string                  `json:"message_type"`
	QueueInfo   []matchmaking.QueueInfo `json:"queue_info"`
}
