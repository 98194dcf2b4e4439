package broadcast

import (
	"encoding/json"

	"github.com/playperu/scoreboard/internal/scoreboard"
)

const (
	TypeConnected   = "connected"
	TypeMatchUpdate = "match_update"
)

// Event is the JSON document carried by every push-channel frame.
type Event struct {
	Type string   `json:"type"`
	Data *Payload `json:"data,omitempty"`
}

type Payload struct {
	Match *scoreboard.Match `json:"match"`
}

// ConnectedFrame is sent once when a channel opens.
var ConnectedFrame = mustEncode(Event{Type: TypeConnected})

// EncodeUpdate builds a match_update frame. Inactive records are sent as
// null: viewers only ever display the active match.
func EncodeUpdate(m *scoreboard.Match) ([]byte, error) {
	if m != nil && !m.Active {
		m = nil
	}
	return json.Marshal(Event{Type: TypeMatchUpdate, Data: &Payload{Match: m}})
}

// Decode parses a frame produced by this package.
func Decode(data []byte) (Event, error) {
	var ev Event
	err := json.Unmarshal(data, &ev)
	return ev, err
}

func mustEncode(ev Event) []byte {
	data, err := json.Marshal(ev)
	if err != nil {
		panic(err)
	}
	return data
}
