package capture

import (
	"time"

	"github.com/strahe/pgreplay-sentinel/pgproto"
)

// Event kinds, matching the pgoutput message kinds that produce them.
const (
	EventBegin    = "begin"
	EventCommit   = "commit"
	EventInsert   = "insert"
	EventUpdate   = "update"
	EventDelete   = "delete"
	EventTruncate = "truncate"
	EventMessage  = "message"
)

// TruncateFlags mirrors the cascade/restart-identity flags of a
// Truncate message.
type TruncateFlags struct {
	Cascade     bool `json:"cascade"`
	RestartSeqs bool `json:"restart_sequences"`
}

// Event is the canonical, sink-agnostic representation of one
// replicated change. It is built by Processor from a parsed
// pgproto.ReplicationMessage and is what every Sink ultimately
// receives (via its own wire encoding).
type Event struct {
	Kind          string
	Xid           uint32
	LSN           pgproto.LSN
	Timestamp     time.Time
	Schema        string
	Table         string
	Old           map[string]any
	New           map[string]any
	TruncateFlags *TruncateFlags
	Tables        []string // truncate: schema-qualified table names
	CorrelationID string
}
