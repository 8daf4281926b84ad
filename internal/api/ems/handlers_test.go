package ems

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/percussion/percussioncms-sub111/internal/ems"
)

type fakeEventService struct {
	failWith    error
	lastBooking ems.BookingRequest
	lastStart   time.Time
	lastEnd     time.Time
}

func (f *fakeEventService) Buildings(ctx context.Context) ([]ems.Building, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return []ems.Building{{ID: 1, Description: "Main Hall"}}, nil
}

func (f *fakeEventService) EventTypes(ctx context.Context) ([]ems.EventType, error) {
	return nil, nil
}

func (f *fakeEventService) GroupTypes(ctx context.Context) ([]ems.GroupType, error) {
	return []ems.GroupType{{ID: 2, Description: "Department"}}, nil
}

func (f *fakeEventService) Statuses(ctx context.Context) ([]ems.Status, error) {
	return []ems.Status{{ID: 1, Description: "Confirmed"}}, nil
}

func (f *fakeEventService) Bookings(ctx context.Context, req ems.BookingRequest) ([]ems.Booking, error) {
	f.lastBooking = req
	return []ems.Booking{{ID: 7, EventName: "Lecture"}}, nil
}

func (f *fakeEventService) Calendars(ctx context.Context) ([]ems.MCCalendar, error) {
	return []ems.MCCalendar{{ID: 4, Title: "Athletics"}}, nil
}

func (f *fakeEventService) CalendarEventTypes(ctx context.Context) ([]ems.MCEventType, error) {
	return nil, nil
}

func (f *fakeEventService) CalendarEvents(ctx context.Context, calendarID int, start, end time.Time) ([]ems.MCEvent, error) {
	f.lastStart, f.lastEnd = start, end
	return []ems.MCEvent{{ID: 10, CalendarID: calendarID, Title: "Home Game"}}, nil
}

func (f *fakeEventService) CalendarICS(ctx context.Context, calendarID int, start, end time.Time) ([]byte, error) {
	return []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"), nil
}

func useFakeService(t *testing.T, fake *fakeEventService) {
	t.Helper()
	prev := service
	prevLoc := location
	service = fake
	location = time.UTC
	t.Cleanup(func() {
		service = prev
		location = prevLoc
	})
}

func newMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/ems/buildings", HandleBuildings)
	mux.HandleFunc("GET /api/v1/ems/eventtypes", HandleEventTypes)
	mux.HandleFunc("GET /api/v1/ems/bookings", HandleBookings)
	mux.HandleFunc("GET /api/v1/ems/calendars/{id}/events", HandleCalendarEvents)
	mux.HandleFunc("GET /api/v1/ems/calendars/{id}/events.ics", HandleCalendarICS)
	return mux
}

func get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	newMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHandleBuildings(t *testing.T) {
	useFakeService(t, &fakeEventService{})

	rec := get(t, "/api/v1/ems/buildings")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var buildings []ems.Building
	if err := json.NewDecoder(rec.Body).Decode(&buildings); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(buildings) != 1 || buildings[0].Description != "Main Hall" {
		t.Fatalf("unexpected buildings: %+v", buildings)
	}
}

func TestHandleEmptyListIsArray(t *testing.T) {
	useFakeService(t, &fakeEventService{})

	rec := get(t, "/api/v1/ems/eventtypes")
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Fatalf("expected empty JSON array, got %q", body)
	}
}

func TestHandleUpstreamFailureIsBadGateway(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"unavailable", fmt.Errorf("call: %w", ems.ErrUnavailable)},
		{"fault", &ems.FaultError{Code: "soap:Server", Message: "boom"}},
		{"api error", &ems.APIError{Operation: "GetBuildings", Message: "Invalid credentials"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			useFakeService(t, &fakeEventService{failWith: tc.err})
			rec := get(t, "/api/v1/ems/buildings")
			if rec.Code != http.StatusBadGateway {
				t.Fatalf("expected 502, got %d", rec.Code)
			}
		})
	}
}

func TestHandleBookingsParsesFilters(t *testing.T) {
	fake := &fakeEventService{}
	useFakeService(t, fake)

	rec := get(t, "/api/v1/ems/bookings?start=2024-05-01&end=2024-05-02&buildings=1,2&statuses=3")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	req := fake.lastBooking
	if !req.Start.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %v", req.Start)
	}
	if !req.End.Equal(time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("end date should be inclusive, got %v", req.End)
	}
	if len(req.Buildings) != 2 || req.Buildings[1] != 2 || len(req.Statuses) != 1 || req.EventTypes != nil {
		t.Fatalf("unexpected filters: %+v", req)
	}
}

func TestHandleBookingsRejectsBadInput(t *testing.T) {
	useFakeService(t, &fakeEventService{})

	for _, path := range []string{
		"/api/v1/ems/bookings?end=2024-05-02",
		"/api/v1/ems/bookings?start=05/01/2024&end=2024-05-02",
		"/api/v1/ems/bookings?start=2024-05-01&end=2024-05-02&buildings=a",
		"/api/v1/ems/bookings?start=2024-05-01&end=2024-05-02&statuses=-1",
	} {
		if rec := get(t, path); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, rec.Code)
		}
	}
}

func TestHandleCalendarEvents(t *testing.T) {
	fake := &fakeEventService{}
	useFakeService(t, fake)

	rec := get(t, "/api/v1/ems/calendars/4/events?start=2024-09-01&end=2024-09-30")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !fake.lastEnd.Equal(time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected end %v", fake.lastEnd)
	}

	if rec := get(t, "/api/v1/ems/calendars/abc/events?start=2024-09-01&end=2024-09-30"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", rec.Code)
	}
}

func TestHandleCalendarICS(t *testing.T) {
	useFakeService(t, &fakeEventService{})

	rec := get(t, "/api/v1/ems/calendars/4/events.ics?start=2024-09-01&end=2024-09-30")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "BEGIN:VCALENDAR") {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}
