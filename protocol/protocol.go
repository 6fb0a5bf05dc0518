package protocol

import (
	"encoding/json"
	"strconv"
)

// Event is the name carried by every frame on the socket
type Event string

// Transport events, raised locally by the connection manager
const (
	Connect      Event = "connect"
	Disconnect   Event = "disconnect"
	ConnectError Event = "connect_error"
)

// Server to client
const (
	State              Event = "rummy/state"
	GameStarted        Event = "rummy/game_started"
	YourHand           Event = "rummy/your_hand"
	CardDrawn          Event = "rummy/card_drawn"
	CardDiscarded      Event = "rummy/card_discarded"
	NextTurn           Event = "rummy/next_turn"
	PlayerConnected    Event = "rummy/player_connected"
	PlayerDisconnected Event = "rummy/player_disconnected"
	PlayerDropped      Event = "rummy/player_dropped"
	PlayerTimedOut     Event = "rummy/player_timedout"
	WinDeclared        Event = "rummy/win_declared"
	AutoWin            Event = "rummy/auto_win"
	Error              Event = "rummy/error"
)

// Client to server
const (
	JoinTable   Event = "rummy/join_table"
	DrawCard    Event = "rummy/draw_card"
	DiscardCard Event = "rummy/discard_card"
	UpdateOrder Event = "rummy/update_order"
	Drop        Event = "rummy/drop"
	DeclareWin  Event = "rummy/declare_win"
)

func (e Event) String() string {
	return string(e)
}

// Envelope is a single frame on the socket
type Envelope struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into a frame
func NewEnvelope(event Event, payload interface{}) (Envelope, error) {
	env := Envelope{Event: event}
	if payload == nil {
		return env, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return env, err
	}
	env.Data = data
	return env, nil
}

// Opt distinguishes a field that was absent from the payload, a field
// that was present but null, and a field carrying a value.
type Opt[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some constructs a present value
func Some[T any](v T) Opt[T] {
	return Opt[T]{Set: true, Value: v}
}

// Null constructs a present null
func Null[T any]() Opt[T] {
	return Opt[T]{Set: true, Null: true}
}

// Get returns the value and whether it is present and non-null
func (o Opt[T]) Get() (T, bool) {
	return o.Value, o.Set && !o.Null
}

// IsZero lets omitzero drop absent fields when marshalling
func (o Opt[T]) IsZero() bool {
	return !o.Set
}

func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Null {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

func (o *Opt[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Null = true
		var zero T
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}

// ID is a player or game identifier. Servers send these as strings or
// numbers; both decode to the same string form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

// IDFromInt formats a numeric id
func IDFromInt(n int64) ID {
	return ID(strconv.FormatInt(n, 10))
}
