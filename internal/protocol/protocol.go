// Package protocol defines the JSON wire surface between the server and
// observer clients. It depends on the settlement package for state shapes but
// carries no behavior of its own.
package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeState   = "STATE"
	TypeEvents  = "EVENTS"
	TypeCommand = "COMMAND"
	TypeAck     = "ACK"
	TypeBye     = "BYE"
)

// BaseMessage routes unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
