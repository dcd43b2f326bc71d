package events

import (
	"statbench/app"
)

// TableBroadcaster adapts the SSEHub to app.ChangeListener
type TableBroadcaster struct {
	hub *SSEHub
}

// NewTableBroadcaster creates a listener that forwards snapshot swaps to hub
func NewTableBroadcaster(hub *SSEHub) *TableBroadcaster {
	return &TableBroadcaster{hub: hub}
}

// TableChanged converts a snapshot into a TableEvent; a nil snapshot means the table was cleared
func (b *TableBroadcaster) TableChanged(snap *app.Snapshot) {
	if snap == nil {
		b.hub.Broadcast(TableEvent{EventType: TypeTableCleared})
		return
	}
	b.hub.Broadcast(TableEvent{
		EventType:   TypeTableUpdated,
		DatasetID:   snap.DatasetID.String(),
		Fingerprint: snap.Result.Fingerprint.String(),
		Columns:     len(snap.Result.Columns),
		Rows:        len(snap.Result.Rows),
		TotalRows:   snap.Result.TotalRows,
		Timestamp:   snap.UpdatedAt.Time(),
	})
}
