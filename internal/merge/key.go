package merge

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"scoutcal/internal/event"
)

// Key derives the deduplication identity of an event.
//
// A non-empty UID wins unconditionally. Feeds that omit UIDs (common
// for simple public calendars) fall back to a content hash over
// (summary, location, start, end), which is stable across repeated
// fetches of the same unmodified feed. Two UID-less events with the
// same content therefore collapse into one even when they come from
// different sources.
func Key(ev event.Event) string {
	uid := strings.TrimSpace(event.NormText(ev.UID))
	if uid != "" {
		return "uid:" + uid
	}

	summary := strings.TrimSpace(event.NormText(ev.Summary))
	loc := strings.TrimSpace(event.NormText(ev.Location))

	raw := summary + "|" + loc + "|" + ev.Start.String() + "|" + ev.End.String()
	sum := sha256.Sum256([]byte(raw))
	return "hash:" + hex.EncodeToString(sum[:])[:24]
}
