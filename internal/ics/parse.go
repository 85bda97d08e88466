package ics

import (
	"bytes"
	"errors"
	"fmt"

	ical "github.com/arran4/golang-ical"

	"scoutcal/internal/event"
	appLog "scoutcal/internal/log"
)

// ParseICS parses a feed payload into the events it contains, in feed
// order. Components other than VEVENT are ignored. Temporal property
// values are kept verbatim together with their parameters; this layer
// never interprets dates.
func ParseICS(src Source, body []byte) ([]event.Event, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse ICS for %s: %w", src.Name, err)
	}

	events := make([]event.Event, 0, len(cal.Events()))
	for _, ve := range cal.Events() {
		events = append(events, eventFromVEvent(ve))
	}

	appLog.Info("feed parsed", "source", src.Name, "event_count", len(events))
	return events, nil
}

func eventFromVEvent(ve *ical.VEvent) event.Event {
	return event.Event{
		UID:          propText(ve, ical.ComponentPropertyUniqueId),
		Summary:      propText(ve, ical.ComponentPropertySummary),
		Location:     propText(ve, ical.ComponentPropertyLocation),
		Description:  propText(ve, ical.ComponentPropertyDescription),
		URL:          propText(ve, "URL"),
		Transparency: propText(ve, "TRANSP"),
		Class:        propText(ve, "CLASS"),
		Start:        propDateTime(ve, ical.ComponentPropertyDtStart),
		End:          propDateTime(ve, ical.ComponentPropertyDtEnd),
		Stamp:        propDateTime(ve, "DTSTAMP"),
		Created:      propDateTime(ve, "CREATED"),
		LastModified: propDateTime(ve, "LAST-MODIFIED"),
	}
}

func propText(ve *ical.VEvent, p ical.ComponentProperty) string {
	prop := ve.GetProperty(p)
	if prop == nil {
		return ""
	}
	return event.NormText(prop.Value)
}

func propDateTime(ve *ical.VEvent, p ical.ComponentProperty) event.DateTime {
	prop := ve.GetProperty(p)
	if prop == nil {
		return event.DateTime{}
	}

	var params map[string][]string
	if len(prop.ICalParameters) > 0 {
		params = make(map[string][]string, len(prop.ICalParameters))
		for k, v := range prop.ICalParameters {
			params[k] = append([]string(nil), v...)
		}
	}

	return event.DateTime{Value: prop.Value, Params: params}
}
