package domain

import (
	"encoding/json"
	"time"
)

// SecurityCollection holds the global AccessPolicy switches.
const SecurityCollection = "security"

// Settings is one named configuration record. Data is an opaque JSON object.
type Settings struct {
	Collection string
	Data       json.RawMessage
	UpdatedAt  time.Time
}
