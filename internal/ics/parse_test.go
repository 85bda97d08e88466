package ics_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scoutcal/internal/ics"
)

// icsBody builds a CRLF-terminated ICS payload from a readable literal.
func icsBody(s string) []byte {
	return []byte(strings.ReplaceAll(strings.TrimLeft(s, "\n"), "\n", "\r\n"))
}

const sampleFeed = `
BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//Test//EN
BEGIN:VEVENT
UID:ev-1@example.org
DTSTAMP:20240520T080000Z
DTSTART;TZID=Europe/Amsterdam:20240601T100000
DTEND;TZID=Europe/Amsterdam:20240601T120000
SUMMARY:Opkomst
LOCATION:Clubhuis
DESCRIPTION:Neem je zwemspullen mee
URL:https://example.org/opkomst
TRANSP:TRANSPARENT
CLASS:PRIVATE
END:VEVENT
BEGIN:VTODO
UID:todo-1@example.org
SUMMARY:Niet een event
END:VTODO
BEGIN:VEVENT
UID:ev-2@example.org
DTSTART;VALUE=DATE:20240608
DTEND;VALUE=DATE:20240609
SUMMARY:Kamp
END:VEVENT
END:VCALENDAR
`

func TestParseICS(t *testing.T) {
	src := ics.Source{Name: "Welpen"}

	events, err := ics.ParseICS(src, icsBody(sampleFeed))
	require.NoError(t, err)
	require.Len(t, events, 2)

	first := events[0]
	assert.Equal(t, "ev-1@example.org", first.UID)
	assert.Equal(t, "Opkomst", first.Summary)
	assert.Equal(t, "Clubhuis", first.Location)
	assert.Equal(t, "Neem je zwemspullen mee", first.Description)
	assert.Equal(t, "https://example.org/opkomst", first.URL)
	assert.Equal(t, "TRANSPARENT", first.Transparency)
	assert.Equal(t, "PRIVATE", first.Class)
	assert.Equal(t, "20240601T100000", first.Start.Value)
	assert.Equal(t, []string{"Europe/Amsterdam"}, first.Start.Params["TZID"])
	assert.Equal(t, "20240520T080000Z", first.Stamp.Value)
	assert.Empty(t, first.SourceCalendar)

	second := events[1]
	assert.Equal(t, "ev-2@example.org", second.UID)
	assert.Equal(t, "20240608", second.Start.Value)
	assert.Equal(t, []string{"DATE"}, second.Start.Params["VALUE"])
	assert.True(t, second.Stamp.IsZero())
}

func TestParseICSEmptyBody(t *testing.T) {
	_, err := ics.ParseICS(ics.Source{Name: "x"}, nil)
	assert.Error(t, err)
}

func TestParseICSMalformed(t *testing.T) {
	_, err := ics.ParseICS(ics.Source{Name: "x"}, []byte("not a calendar at all"))
	assert.Error(t, err)
}

func TestParseICSNoEvents(t *testing.T) {
	events, err := ics.ParseICS(ics.Source{Name: "x"}, icsBody(`
BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//Test//EN
END:VCALENDAR
`))
	require.NoError(t, err)
	assert.Empty(t, events)
}
