// Package event defines the in-memory representation of a single
// calendar event as it flows through fetch, merge and serialization.
package event

import (
	"fmt"
	"strings"
)

// DateTime is an iCalendar date or date-time property value. The value
// and its parameters (TZID, VALUE=DATE, ...) are carried verbatim from
// input to output; no time-zone conversion happens anywhere in the
// pipeline.
type DateTime struct {
	Value  string
	Params map[string][]string
}

// IsZero reports whether the property was absent on input.
func (dt DateTime) IsZero() bool {
	return dt.Value == ""
}

// String returns the raw ICS value text. This is the serialization used
// for hashing.
func (dt DateTime) String() string {
	return dt.Value
}

// Event is one calendar occurrence. All descriptive fields are plain
// normalized strings; absent means empty. SourceCalendar is never set on
// input, it is stamped by the visibility filter.
type Event struct {
	UID string

	Start DateTime
	End   DateTime

	Summary     string
	Location    string
	Description string
	URL         string

	// Transparency is the TRANSP busy/free marker, Class the CLASS
	// public/private marker.
	Transparency string
	Class        string

	SourceCalendar string

	Stamp        DateTime
	Created      DateTime
	LastModified DateTime
}

// NormText normalizes a raw property value to plain text: nil becomes
// the empty string, byte slices are decoded as UTF-8 with lossy
// replacement, and anything else takes its string form. Every component
// that compares or hashes text fields goes through this one function so
// that values differing only in raw representation end up identical.
func NormText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.ToValidUTF8(t, "�")
	case []byte:
		return strings.ToValidUTF8(string(t), "�")
	default:
		return strings.ToValidUTF8(fmt.Sprint(t), "�")
	}
}
