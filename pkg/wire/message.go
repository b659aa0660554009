// Package wire defines the JSON messages exchanged between clients and the
// game server over the WebSocket connection. All timing fields are
// milliseconds and server-authoritative.
package wire

// Client actions.
const (
	ActionCreate   = "create"
	ActionJoin     = "join"
	ActionGetMoves = "get_moves"
	ActionMove     = "move"
	ActionResign   = "resign"
	ActionTimeSync = "time_sync"
)

// Server event types.
const (
	TypeGameCreated    = "game_created"
	TypeJoined         = "joined"
	TypePlayerJoined   = "player_joined"
	TypeAvailableMoves = "available_moves"
	TypeMoveMade       = "move_made"
	TypeTimeUpdate     = "time_update"
	TypeGameOver       = "game_over"
	TypeError          = "error"
)

// ClientMessage is one inbound frame from a client.
type ClientMessage struct {
	Action           string `json:"action"`
	GameID           string `json:"game_id,omitempty"`
	MoveFrom         string `json:"move_from,omitempty"`
	MoveTo           string `json:"move_to,omitempty"`
	Promotion        string `json:"promotion,omitempty"`
	Preset           string `json:"preset,omitempty"`
	StartTimeMinutes *int   `json:"start_time_minutes,omitempty"`
	IncrementSeconds *int   `json:"increment_seconds,omitempty"`
}

// LastMove identifies the from/to squares of the most recent move for
// client-side highlighting.
type LastMove struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ServerMessage is one outbound frame. Type discriminates which of the
// optional fields are populated.
type ServerMessage struct {
	Type           string    `json:"type"`
	GameID         string    `json:"game_id,omitempty"`
	Color          string    `json:"color,omitempty"`
	FEN            string    `json:"fen,omitempty"`
	GameStatus     string    `json:"game_status,omitempty"`
	LastMove       *LastMove `json:"last_move,omitempty"`
	AvailableMoves []string  `json:"available_moves,omitzero"`
	ActiveColor    string    `json:"active_color,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	Winner         string    `json:"winner,omitempty"`
	WhiteTimeMs    *int64    `json:"white_time_ms,omitempty"`
	BlackTimeMs    *int64    `json:"black_time_ms,omitempty"`
	IncrementMs    *int64    `json:"increment_ms,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// Ms boxes a millisecond value for the optional time fields.
func Ms(v int64) *int64 { return &v }
