package ems

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeBackend struct {
	mu            sync.Mutex
	buildingCalls int
	failBuildings bool
	bookings      []Booking
	calendars     []MCCalendar
	events        []MCEvent
}

func (f *fakeBackend) GetBuildings(ctx context.Context) ([]Building, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buildingCalls++
	if f.failBuildings {
		return nil, ErrUnavailable
	}
	return []Building{{ID: 1, Description: "Main Hall"}}, nil
}

func (f *fakeBackend) GetEventTypes(ctx context.Context) ([]EventType, error) {
	return []EventType{{ID: 3, Description: "Lecture"}}, nil
}

func (f *fakeBackend) GetGroupTypes(ctx context.Context) ([]GroupType, error) {
	return []GroupType{{ID: 5, Description: "Department"}}, nil
}

func (f *fakeBackend) GetStatuses(ctx context.Context) ([]Status, error) {
	return []Status{{ID: 1, Description: "Confirmed", StatusTypeID: -14}}, nil
}

func (f *fakeBackend) GetBookings(ctx context.Context, req BookingRequest) ([]Booking, error) {
	return append([]Booking(nil), f.bookings...), nil
}

func (f *fakeBackend) GetCalendars(ctx context.Context) ([]MCCalendar, error) {
	return f.calendars, nil
}

func (f *fakeBackend) GetCalendarEventTypes(ctx context.Context) ([]MCEventType, error) {
	return nil, nil
}

func (f *fakeBackend) GetCalendarEvents(ctx context.Context, calendarID int, start, end time.Time) ([]MCEvent, error) {
	return append([]MCEvent(nil), f.events...), nil
}

func newTestService(backend Backend, now time.Time) *Service {
	svc := NewService(backend, time.Hour)
	svc.now = func() time.Time { return now }
	return svc
}

func TestServiceReferenceIsCached(t *testing.T) {
	backend := &fakeBackend{}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(backend, now)

	for i := 0; i < 3; i++ {
		buildings, err := svc.Buildings(context.Background())
		if err != nil {
			t.Fatalf("buildings: %v", err)
		}
		if len(buildings) != 1 {
			t.Fatalf("buildings: %+v", buildings)
		}
	}
	if backend.buildingCalls != 1 {
		t.Fatalf("expected one backend call, got %d", backend.buildingCalls)
	}

	statuses, err := svc.Statuses(context.Background())
	if err != nil || len(statuses) != 1 || statuses[0].Description != "Confirmed" {
		t.Fatalf("statuses: %+v %v", statuses, err)
	}
}

func TestServiceReferenceServesStaleOnFailure(t *testing.T) {
	backend := &fakeBackend{}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(backend, now)

	if _, err := svc.Reference(context.Background()); err != nil {
		t.Fatalf("initial load: %v", err)
	}

	backend.failBuildings = true
	svc.now = func() time.Time { return now.Add(2 * time.Hour) }

	ref, err := svc.Reference(context.Background())
	if err != nil {
		t.Fatalf("expected stale data, got error %v", err)
	}
	if !ref.LoadedAt.Equal(now) {
		t.Fatalf("expected stale copy loaded at %v, got %v", now, ref.LoadedAt)
	}
	if backend.buildingCalls != 2 {
		t.Fatalf("expected a refresh attempt, calls=%d", backend.buildingCalls)
	}
}

func TestServiceReferenceFailsWithoutCache(t *testing.T) {
	svc := newTestService(&fakeBackend{failBuildings: true}, time.Now())
	if _, err := svc.Reference(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestServiceBookingsValidatesAndSorts(t *testing.T) {
	backend := &fakeBackend{bookings: []Booking{
		{ID: 2, TimeEventStart: Time{time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC)}},
		{ID: 1, TimeEventStart: Time{time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}},
	}}
	svc := newTestService(backend, time.Now())

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	bookings, err := svc.Bookings(context.Background(), BookingRequest{Start: start, End: start.AddDate(0, 0, 1)})
	if err != nil {
		t.Fatalf("bookings: %v", err)
	}
	if bookings[0].ID != 1 || bookings[1].ID != 2 {
		t.Fatalf("not sorted: %+v", bookings)
	}

	tests := []struct {
		name string
		req  BookingRequest
	}{
		{"missing end", BookingRequest{Start: start}},
		{"end before start", BookingRequest{Start: start, End: start.Add(-time.Hour)}},
		{"too long", BookingRequest{Start: start, End: start.AddDate(2, 0, 0)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Bookings(context.Background(), tc.req); !errors.Is(err, ErrInvalidRange) {
				t.Fatalf("expected ErrInvalidRange, got %v", err)
			}
		})
	}
}

func TestServiceCalendarICS(t *testing.T) {
	backend := &fakeBackend{
		calendars: []MCCalendar{{ID: 4, Title: "Athletics"}},
		events: []MCEvent{
			{ID: 10, CalendarID: 4, Title: "Home Game", Location: "Stadium",
				Start: Time{time.Date(2024, 9, 7, 18, 0, 0, 0, time.UTC)},
				End:   Time{time.Date(2024, 9, 7, 21, 0, 0, 0, time.UTC)}},
		},
	}
	svc := newTestService(backend, time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC))

	start := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	out, err := svc.CalendarICS(context.Background(), 4, start, start.AddDate(0, 1, 0))
	if err != nil {
		t.Fatalf("calendar ics: %v", err)
	}

	doc := string(out)
	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"PRODID:" + icsProductID,
		"X-WR-CALNAME:Athletics",
		"UID:10@4.ems",
		"SUMMARY:Home Game",
		"LOCATION:Stadium",
		"DTSTART:20240907T180000Z",
		"END:VEVENT",
	} {
		if !strings.Contains(doc, want) {
			t.Fatalf("ics missing %q:\n%s", want, doc)
		}
	}
}

func TestServiceCalendarEventsRejectsBadCalendar(t *testing.T) {
	svc := newTestService(&fakeBackend{}, time.Now())
	start := time.Now()
	if _, err := svc.CalendarEvents(context.Background(), 0, start, start.Add(time.Hour)); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}
