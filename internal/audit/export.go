package audit

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"
)

var csvHeader = []string{
	"id", "created_at", "actor_id", "entity_type", "entity_id",
	"action", "outcome", "request_id", "ip_address", "previous_hash", "hash",
}

// ExportCSV renders entries as CSV with a header row, in the order given.
func ExportCSV(entries []*Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range entries {
		record := []string{
			e.ID,
			e.CreatedAt.UTC().Format(time.RFC3339Nano),
			e.ActorID,
			e.EntityType,
			e.EntityID,
			e.Action,
			e.Outcome,
			e.RequestID,
			e.IPAddress,
			e.PreviousHash,
			e.Hash,
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
