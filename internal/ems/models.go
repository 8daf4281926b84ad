package ems

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

type Building struct {
	ID           int    `xml:"ID" json:"id"`
	Description  string `xml:"Description" json:"description"`
	BuildingCode string `xml:"BuildingCode" json:"buildingCode"`
	TimeZone     string `xml:"TimeZone" json:"timeZone"`
}

type EventType struct {
	ID          int    `xml:"ID" json:"id"`
	Description string `xml:"Description" json:"description"`
}

type GroupType struct {
	ID          int    `xml:"ID" json:"id"`
	Description string `xml:"Description" json:"description"`
}

type Status struct {
	ID           int    `xml:"ID" json:"id"`
	Description  string `xml:"Description" json:"description"`
	StatusTypeID int    `xml:"StatusTypeID" json:"statusTypeId"`
}

type Booking struct {
	ID                   int    `xml:"BookingID" json:"id"`
	ReservationID        int    `xml:"ReservationID" json:"reservationId"`
	EventName            string `xml:"EventName" json:"eventName"`
	GroupName            string `xml:"GroupName" json:"groupName"`
	BookingDate          Time   `xml:"BookingDate" json:"bookingDate"`
	TimeEventStart       Time   `xml:"TimeEventStart" json:"timeEventStart"`
	TimeEventEnd         Time   `xml:"TimeEventEnd" json:"timeEventEnd"`
	Building             string `xml:"Building" json:"building"`
	BuildingID           int    `xml:"BuildingID" json:"buildingId"`
	RoomDescription      string `xml:"RoomDescription" json:"roomDescription"`
	RoomCode             string `xml:"RoomCode" json:"roomCode"`
	EventTypeID          int    `xml:"EventTypeID" json:"eventTypeId"`
	EventTypeDescription string `xml:"EventTypeDescription" json:"eventTypeDescription"`
	StatusID             int    `xml:"StatusID" json:"statusId"`
	Contact              string `xml:"Contact" json:"contact"`
	DateAdded            Time   `xml:"DateAdded" json:"dateAdded"`
	DateChanged          Time   `xml:"DateChanged" json:"dateChanged"`
}

type MCCalendar struct {
	ID    int    `xml:"CalendarId" json:"id"`
	Title string `xml:"Title" json:"title"`
}

type MCEventType struct {
	ID          int    `xml:"EventTypeId" json:"id"`
	Description string `xml:"Description" json:"description"`
	Color       string `xml:"Color" json:"color,omitempty"`
}

type MCEvent struct {
	ID          int    `xml:"EventId" json:"id"`
	CalendarID  int    `xml:"CalendarId" json:"calendarId"`
	Title       string `xml:"Title" json:"title"`
	Start       Time   `xml:"EventStart" json:"start"`
	End         Time   `xml:"EventEnd" json:"end"`
	Location    string `xml:"Location" json:"location,omitempty"`
	Description string `xml:"Description" json:"description,omitempty"`
	EventTypeID int    `xml:"EventTypeId" json:"eventTypeId"`
}

// BookingRequest filters a booking search. Empty ID lists mean "all".
type BookingRequest struct {
	Start      time.Time
	End        time.Time
	Buildings  []int
	Statuses   []int
	EventTypes []int
	GroupTypes []int
}

// Time is an EMS timestamp. EMS sends wall-clock values without an offset;
// they are decoded as UTC and re-anchored by Client.localize.
type Time struct {
	time.Time
}

var timeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (t *Time) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var raw string
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}
	parsed, err := ParseTime(raw)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// ParseTime accepts the timestamp layouts EMS emits. Blank input is the zero time.
func ParseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised ems timestamp %q", raw)
}

func formatTime(t time.Time) string {
	return t.Format("2006-01-02T15:04:05")
}

// localize reinterprets the wall clock of t in loc.
func localize(t Time, loc *time.Location) Time {
	if t.IsZero() || loc == nil {
		return t
	}
	wall := t.Time
	return Time{time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), wall.Second(), wall.Nanosecond(), loc)}
}
