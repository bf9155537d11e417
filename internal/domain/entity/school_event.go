package entity

import "time"

// SchoolEvent is a single school-calendar event synced from a county
// district's ICS feed (C15).
type SchoolEvent struct {
	UID      string
	County   string
	Title    string
	StartAt  time.Time
	EndAt    *time.Time
	Location string
	URL      string
}

// FallbackKey returns the dedup key used when the source ICS VEVENT has no
// UID (spec §4.15: "fallback: county|start|title").
func (e *SchoolEvent) FallbackKey() string {
	return e.County + "|" + e.StartAt.UTC().Format(time.RFC3339) + "|" + e.Title
}
