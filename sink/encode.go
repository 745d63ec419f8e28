package sink

import (
	"encoding/json"

	"github.com/strahe/pgreplay-sentinel/capture"
)

// wireEvent is the exact, stable JSON shape every sink emits.
type wireEvent struct {
	Kind          string                 `json:"kind"`
	Xid           uint32                 `json:"xid,omitempty"`
	LSN           string                 `json:"lsn"`
	Timestamp     string                 `json:"timestamp,omitempty"`
	Schema        string                 `json:"schema,omitempty"`
	Table         string                 `json:"table,omitempty"`
	Old           map[string]any         `json:"old,omitempty"`
	New           map[string]any         `json:"new,omitempty"`
	Tables        []string               `json:"tables,omitempty"`
	TruncateFlags *capture.TruncateFlags `json:"truncate_flags,omitempty"`
	CorrelationID string                 `json:"correlation_id"`
}

// Encode renders ev into the canonical JSON representation shared by
// every sink.
func Encode(ev *capture.Event) ([]byte, error) {
	w := wireEvent{
		Kind:          ev.Kind,
		Xid:           ev.Xid,
		LSN:           ev.LSN.String(),
		Schema:        ev.Schema,
		Table:         ev.Table,
		Old:           ev.Old,
		New:           ev.New,
		Tables:        ev.Tables,
		TruncateFlags: ev.TruncateFlags,
		CorrelationID: ev.CorrelationID,
	}
	if !ev.Timestamp.IsZero() {
		w.Timestamp = ev.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z07:00")
	}
	return json.Marshal(w)
}
