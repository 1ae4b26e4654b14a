package pandascore

import (
	"encoding/json"
	"time"
)

// matchItem carries only the fields the cache indexes. The rest of the match
// payload stays in the raw snapshot untouched.
type matchItem struct {
	ID         int64      `json:"id"`
	Status     string     `json:"status"`
	BeginAt    *time.Time `json:"begin_at"`
	EndAt      *time.Time `json:"end_at"`
	ModifiedAt *time.Time `json:"modified_at"`
}

// matchPage defers per-item decoding so each element keeps its original bytes.
type matchPage []json.RawMessage
