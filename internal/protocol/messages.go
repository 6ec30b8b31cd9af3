package protocol

import "emberhold.world/internal/sim/settlement"

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SettlementName  string `json:"settlement_name"`
	Seed            int64  `json:"seed,omitempty"`
	SinceCursor     uint64 `json:"since_cursor,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SettlementID    string         `json:"settlement_id"`
	Seed            int64          `json:"seed"`
	Resumed         bool           `json:"resumed"`
	CatchupTicks    int            `json:"catchup_ticks"`
	Params          SimParams      `json:"params"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type SimParams struct {
	TickRealSeconds int `json:"tick_real_seconds"`
	TicksPerDay     int `json:"ticks_per_day"`
	DaysPerSeason   int `json:"days_per_season"`
	CatchupMaxHours int `json:"catchup_max_hours"`
}

type CatalogDigests struct {
	Structures  string `json:"structures_digest"`
	Discoveries string `json:"discoveries_digest"`
	Factions    string `json:"factions_digest"`
	Events      string `json:"events_digest"`
	Epochs      string `json:"epochs_digest"`
	Combined    string `json:"combined_digest"`
}

// STATE (server -> client): the full settlement view plus its digest, sent
// after WELCOME and again after every advance or accepted command.
type StateMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	State           *settlement.State `json:"state"`
	Digest          string            `json:"digest"`
}

// EVENTS (server -> client): narrative events since the client's cursor.
type EventsMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Events          []EventItem `json:"events"`
	NextCursor      uint64      `json:"next_cursor"`
}

type EventItem struct {
	Cursor uint64           `json:"cursor"`
	Event  settlement.Event `json:"event"`
}

// COMMAND (client -> server)
type CommandMsg struct {
	Type            string             `json:"type"`
	ProtocolVersion string             `json:"protocol_version"`
	ReqID           string             `json:"req_id"`
	Command         settlement.Command `json:"command"`
}

// ACK (server -> client): the verdict on a COMMAND.
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          string `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	Tick            uint64 `json:"tick,omitempty"`
}

// BYE (either direction): orderly close with a reason.
type ByeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Reason          string `json:"reason,omitempty"`
}
