package model

import (
	"encoding/json"
	"time"
)

// Segment is a named, saved filter set.
//
// Filters is kept as raw JSON exactly as the client sent it. It is a saved
// query, not a validated document: the filter compiler interprets it each
// time the segment is used, so a segment saved today keeps working when the
// compiler learns new fields tomorrow.
type Segment struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Filters     json.RawMessage `json:"filters"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}
