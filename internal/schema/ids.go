package schema

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewID mints a fresh artifact UUID.
func NewID() string {
	return uuid.New().String()
}

// NewSessionID mints a session identifier of the form
// YYYYMMDD_HH-MM_<uuid> using UTC so listings sort chronologically.
func NewSessionID() string {
	now := time.Now().UTC()
	return fmt.Sprintf("%s_%s_%s", now.Format("20060102"), now.Format("15-04"), uuid.New().String())
}

// Now returns the current time as an RFC3339 string in UTC.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// SanitizeTimestamp makes a timestamp safe for filenames by replacing
// ':' and '.' with '-'.
func SanitizeTimestamp(ts string) string {
	ts = strings.ReplaceAll(ts, ":", "-")
	return strings.ReplaceAll(ts, ".", "-")
}
