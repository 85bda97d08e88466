package merge

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"scoutcal/internal/event"
)

const (
	prodID          = "-//Scouting Agenda Merger//NL"
	defaultCalName  = "Merged Calendar"
	generatedAtProp = "X-GENERATED-AT"
	sourceProp      = "X-SOURCE-CALENDAR"
)

// Calendar renders the merged result as an iCalendar document.
func (m *Merged) Calendar() *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetProductId(prodID)
	cal.SetVersion("2.0")
	cal.SetCalscale("GREGORIAN")
	cal.SetMethod(ical.MethodPublish)

	name := m.Meta.Name
	if name == "" {
		name = defaultCalName
	}
	cal.SetXWRCalName(name)
	cal.SetName(name)

	if m.Meta.Description != "" {
		cal.SetXWRCalDesc(m.Meta.Description)
	}
	if m.Meta.Timezone != "" {
		cal.SetXWRTimezone(m.Meta.Timezone)
	}

	cal.CalendarProperties = append(cal.CalendarProperties, ical.CalendarProperty{
		BaseProperty: ical.BaseProperty{
			IANAToken: generatedAtProp,
			Value:     m.GeneratedAt.Format(time.RFC3339),
		},
	})

	for _, ev := range m.Events {
		appendVEvent(cal, ev)
	}

	return cal
}

// Bytes serializes the merged calendar to its wire form.
func (m *Merged) Bytes() []byte {
	return []byte(m.Calendar().Serialize())
}

func appendVEvent(cal *ical.Calendar, ev event.Event) {
	ve := cal.AddEvent(ev.UID)

	// Temporal properties are written back verbatim, parameters
	// included; this core never reinterprets date values.
	setRaw(ve, "DTSTART", ev.Start)
	setRaw(ve, "DTEND", ev.End)
	setRaw(ve, "DTSTAMP", ev.Stamp)
	setRaw(ve, "CREATED", ev.Created)
	setRaw(ve, "LAST-MODIFIED", ev.LastModified)

	if ev.Summary != "" {
		ve.SetProperty(ical.ComponentPropertySummary, ev.Summary)
	}
	if ev.Description != "" {
		ve.SetProperty(ical.ComponentPropertyDescription, ev.Description)
	}
	if ev.Location != "" {
		ve.SetProperty(ical.ComponentPropertyLocation, ev.Location)
	}
	if ev.URL != "" {
		ve.SetProperty(ical.ComponentProperty("URL"), ev.URL)
	}
	if ev.Transparency != "" {
		ve.SetProperty(ical.ComponentProperty("TRANSP"), ev.Transparency)
	}
	if ev.Class != "" {
		ve.SetProperty(ical.ComponentProperty("CLASS"), ev.Class)
	}
	if ev.SourceCalendar != "" {
		ve.SetProperty(ical.ComponentProperty(sourceProp), ev.SourceCalendar)
	}
}

func setRaw(ve *ical.VEvent, token string, dt event.DateTime) {
	if dt.IsZero() {
		return
	}
	ve.Properties = append(ve.Properties, ical.IANAProperty{
		BaseProperty: ical.BaseProperty{
			IANAToken:      token,
			ICalParameters: dt.Params,
			Value:          dt.Value,
		},
	})
}
