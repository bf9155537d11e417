package calendar

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
	"time"

	"kybuzz/internal/domain/entity"
)

// parseICS extracts every VEVENT block from body, tagging each with county
// and the source feed URL. No ICS parsing library is present anywhere in
// the pack, so fold-line unfolding and DATE/DATE-TIME decoding are
// hand-rolled here, covering only spec.md §4.15's minimal VEVENT fields
// (UID, SUMMARY, DTSTART, DTEND, LOCATION).
func parseICS(body []byte, county, sourceURL string) ([]*entity.SchoolEvent, error) {
	lines, err := unfold(body)
	if err != nil {
		return nil, err
	}

	var events []*entity.SchoolEvent
	var cur map[string]string
	inEvent := false

	for _, line := range lines {
		switch {
		case line == "BEGIN:VEVENT":
			inEvent = true
			cur = map[string]string{}
		case line == "END:VEVENT":
			if inEvent {
				if ev := buildEvent(cur, county, sourceURL); ev != nil {
					events = append(events, ev)
				}
			}
			inEvent = false
			cur = nil
		case inEvent:
			name, value, ok := splitICSLine(line)
			if ok {
				cur[name] = value
			}
		}
	}

	return events, nil
}

// unfold reverses RFC 5545 line folding (a line beginning with a single
// space or tab continues the previous line) and splits body into logical
// lines.
func unfold(body []byte) ([]string, error) {
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var logical []string
	for scanner.Scan() {
		raw := strings.TrimRight(scanner.Text(), "\r")
		if (strings.HasPrefix(raw, " ") || strings.HasPrefix(raw, "\t")) && len(logical) > 0 {
			logical[len(logical)-1] += raw[1:]
			continue
		}
		logical = append(logical, raw)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("calendar: scan ics body: %w", err)
	}
	return logical, nil
}

// splitICSLine splits a "NAME;PARAM=x:VALUE" content line into its bare
// property name (params dropped, except preserved on the raw map key for
// DTSTART/DTEND's VALUE=DATE form, checked separately) and value.
func splitICSLine(line string) (name, value string, ok bool) {
	colon := strings.IndexByte(line, ':')
	if colon < 0 {
		return "", "", false
	}
	left := line[:colon]
	value = line[colon+1:]

	name = left
	if semi := strings.IndexByte(left, ';'); semi >= 0 {
		name = left[:semi]
	}
	return strings.ToUpper(name), value, true
}

// buildEvent converts one VEVENT's raw property map into a SchoolEvent,
// skipping events with no parseable DTSTART (spec.md §4.15 requires a
// start time; it does not define behavior for a feed that omits one).
func buildEvent(props map[string]string, county, sourceURL string) *entity.SchoolEvent {
	start, ok := parseICSTime(props["DTSTART"])
	if !ok {
		return nil
	}

	ev := &entity.SchoolEvent{
		UID:      unescapeICS(props["UID"]),
		County:   county,
		Title:    unescapeICS(props["SUMMARY"]),
		StartAt:  start,
		Location: unescapeICS(props["LOCATION"]),
		URL:      sourceURL,
	}
	if end, ok := parseICSTime(props["DTEND"]); ok {
		ev.EndAt = &end
	}
	return ev
}

// icsTimeLayouts covers the DATE-TIME (UTC and floating) and DATE-only
// forms RFC 5545 §3.3.4/3.3.5 allow.
var icsTimeLayouts = []string{
	"20060102T150405Z",
	"20060102T150405",
	"20060102",
}

// parseICSTime decodes a raw DTSTART/DTEND value. A bare DATE value (no
// "T") is treated as midnight UTC on that day.
func parseICSTime(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range icsTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// unescapeICS reverses RFC 5545 §3.3.11's TEXT escaping.
func unescapeICS(s string) string {
	replacer := strings.NewReplacer(`\,`, `,`, `\;`, `;`, `\n`, "\n", `\N`, "\n", `\\`, `\`)
	return replacer.Replace(s)
}
