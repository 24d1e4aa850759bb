package utils

import (
	"time"

	"github.com/google/uuid"
)

// NewID returns a prefixed record id, e.g. NewID("client") -> "client_<uuid>".
func NewID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// NowISO is the timestamp format stored on every record.
func NowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}
