package merge

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"scoutcal/internal/event"
)

// Level is a visibility policy for a merged calendar. The set is
// closed; anything else is a configuration error.
type Level int

const (
	// AllDetails keeps every field of the input event.
	AllDetails Level = iota
	// TitleOnly keeps the recomposed title and time information but
	// drops description, location and URL.
	TitleOnly
	// BusyOnly exposes nothing but a fixed busy marker and the time
	// information.
	BusyOnly
)

const busyLabel = "Bezet"

// ParseLevel maps a config string onto a Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "all_details":
		return AllDetails, nil
	case "title_only":
		return TitleOnly, nil
	case "busy_only":
		return BusyOnly, nil
	default:
		return 0, fmt.Errorf("unknown visibility level %q", s)
	}
}

func (l Level) String() string {
	switch l {
	case AllDetails:
		return "all_details"
	case TitleOnly:
		return "title_only"
	case BusyOnly:
		return "busy_only"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Filter produces the redacted copy of ev for the given level, stamping
// the originating source. The input event is never modified. A Level
// outside the three defined values is an error, never a silent default.
func Filter(ev event.Event, level Level, sourceName, sourceEmoji string) (event.Event, error) {
	switch level {
	case AllDetails:
		out := ev
		out.Summary = composeSummary(sourceName, sourceEmoji, ev.Summary)
		out.SourceCalendar = sourceName
		out.UID = ensureUID(ev, sourceName)
		return out, nil

	case TitleOnly:
		out := essentialFields(ev, sourceName)
		out.Summary = composeSummary(sourceName, sourceEmoji, ev.Summary)
		if ev.Transparency != "" {
			out.Transparency = ev.Transparency
		}
		out.Class = "PUBLIC"
		return out, nil

	case BusyOnly:
		out := essentialFields(ev, sourceName)
		if sourceEmoji != "" {
			out.Summary = sourceEmoji + " " + busyLabel
		} else {
			out.Summary = busyLabel
		}
		out.Transparency = "OPAQUE"
		out.Class = "PRIVATE"
		return out, nil

	default:
		return event.Event{}, fmt.Errorf("unknown visibility level %d", int(level))
	}
}

// essentialFields copies the fields every redacted level keeps: UID and
// the timestamps.
func essentialFields(ev event.Event, sourceName string) event.Event {
	return event.Event{
		UID:            ensureUID(ev, sourceName),
		Start:          ev.Start,
		End:            ev.End,
		Stamp:          ev.Stamp,
		Created:        ev.Created,
		LastModified:   ev.LastModified,
		SourceCalendar: sourceName,
	}
}

// composeSummary builds the outgoing title from the source label, the
// optional emoji prefix and the original summary (when one is present).
func composeSummary(sourceName, sourceEmoji, original string) string {
	orig := strings.TrimSpace(event.NormText(original))

	label := sourceName
	if sourceEmoji != "" {
		label = sourceEmoji + " " + sourceName
	}
	if orig == "" {
		return label
	}
	return label + ": " + orig
}

// ensureUID returns the event's UID, or a deterministic fallback for
// feeds that omit one. MD5 here is an identifier-generation
// convenience, not a dedup or security mechanism; the exact digest
// matters for output compatibility with previously published feeds.
func ensureUID(ev event.Event, sourceName string) string {
	uid := strings.TrimSpace(event.NormText(ev.UID))
	if uid != "" {
		return uid
	}

	summary := event.NormText(ev.Summary)
	raw := sourceName + "-" + summary + "-" + ev.Start.String()
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}
