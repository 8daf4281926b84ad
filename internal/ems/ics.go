package ems

import (
	"context"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
)

const icsProductID = "-//Percussion//EMS Master Calendar//EN"

// CalendarICS renders the events of a master calendar as an iCalendar feed.
func (s *Service) CalendarICS(ctx context.Context, calendarID int, start, end time.Time) ([]byte, error) {
	events, err := s.CalendarEvents(ctx, calendarID, start, end)
	if err != nil {
		return nil, err
	}

	title := fmt.Sprintf("Calendar %d", calendarID)
	if calendars, err := s.backend.GetCalendars(ctx); err == nil {
		for _, c := range calendars {
			if c.ID == calendarID && c.Title != "" {
				title = c.Title
				break
			}
		}
	}

	return []byte(renderICS(title, calendarID, events, s.now())), nil
}

func renderICS(title string, calendarID int, events []MCEvent, stamp time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(icsProductID)
	cal.SetXWRCalName(title)

	for _, e := range events {
		event := cal.AddEvent(fmt.Sprintf("%d@%d.ems", e.ID, calendarID))
		event.SetDtStampTime(stamp)
		event.SetStartAt(e.Start.Time)
		if !e.End.IsZero() {
			event.SetEndAt(e.End.Time)
		}
		event.SetSummary(e.Title)
		if e.Location != "" {
			event.SetLocation(e.Location)
		}
		if e.Description != "" {
			event.SetDescription(e.Description)
		}
	}

	return cal.Serialize()
}
