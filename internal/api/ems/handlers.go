// internal/api/ems/handlers.go
package ems

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/percussion/percussioncms-sub111/internal/api/apiutil"
	"github.com/percussion/percussioncms-sub111/internal/ems"
)

// EventService is the EMS proxy surface served over REST. *ems.Service
// implements it.
type EventService interface {
	Buildings(ctx context.Context) ([]ems.Building, error)
	EventTypes(ctx context.Context) ([]ems.EventType, error)
	GroupTypes(ctx context.Context) ([]ems.GroupType, error)
	Statuses(ctx context.Context) ([]ems.Status, error)
	Bookings(ctx context.Context, req ems.BookingRequest) ([]ems.Booking, error)
	Calendars(ctx context.Context) ([]ems.MCCalendar, error)
	CalendarEventTypes(ctx context.Context) ([]ems.MCEventType, error)
	CalendarEvents(ctx context.Context, calendarID int, start, end time.Time) ([]ems.MCEvent, error)
	CalendarICS(ctx context.Context, calendarID int, start, end time.Time) ([]byte, error)
}

var (
	service     EventService
	location    = time.UTC
	serviceOnce sync.Once
)

const emsRequestTimeout = 60 * time.Second

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(svc EventService, loc *time.Location) {
	if svc == nil {
		return
	}
	serviceOnce.Do(func() {
		service = svc
		if loc != nil {
			location = loc
		}
	})
}

func loadService(w http.ResponseWriter, r *http.Request) EventService {
	if service == nil {
		log.Ctx(r.Context()).Error().Msg("EMS service not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
	return service
}

// listHandler adapts a reference list call into a JSON GET handler.
func listHandler[T any](fetch func(EventService, context.Context) ([]T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc := loadService(w, r)
		if svc == nil {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), emsRequestTimeout)
		defer cancel()

		items, err := fetch(svc, ctx)
		if err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
		if items == nil {
			items = []T{}
		}
		if err := apiutil.WriteJSON(w, http.StatusOK, items); err != nil {
			log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write EMS response")
		}
	}
}

// GET /api/v1/ems/buildings
var HandleBuildings = listHandler(EventService.Buildings)

// GET /api/v1/ems/eventtypes
var HandleEventTypes = listHandler(EventService.EventTypes)

// GET /api/v1/ems/grouptypes
var HandleGroupTypes = listHandler(EventService.GroupTypes)

// GET /api/v1/ems/statuses
var HandleStatuses = listHandler(EventService.Statuses)

// GET /api/v1/ems/calendars
var HandleCalendars = listHandler(EventService.Calendars)

// GET /api/v1/ems/calendars/eventtypes
var HandleCalendarEventTypes = listHandler(EventService.CalendarEventTypes)

// dateRange reads inclusive start and end dates and returns [start, end+1day).
func dateRange(r *http.Request) (time.Time, time.Time, error) {
	start, err := apiutil.DateFromQuery(r, "start", location)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := apiutil.DateFromQuery(r, "end", location)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end.AddDate(0, 0, 1), nil
}

// GET /api/v1/ems/bookings?start=&end=&buildings=&statuses=&eventtypes=&grouptypes=
func HandleBookings(w http.ResponseWriter, r *http.Request) {
	svc := loadService(w, r)
	if svc == nil {
		return
	}

	start, end, err := dateRange(r)
	if err != nil {
		apiutil.WriteError(w, r, apiutil.BadRequest(err))
		return
	}
	req := ems.BookingRequest{Start: start, End: end}
	for key, dst := range map[string]*[]int{
		"buildings":  &req.Buildings,
		"statuses":   &req.Statuses,
		"eventtypes": &req.EventTypes,
		"grouptypes": &req.GroupTypes,
	} {
		if *dst, err = apiutil.IntListFromQuery(r, key); err != nil {
			apiutil.WriteError(w, r, apiutil.BadRequest(err))
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), emsRequestTimeout)
	defer cancel()

	bookings, err := svc.Bookings(ctx, req)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if bookings == nil {
		bookings = []ems.Booking{}
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, bookings); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write bookings response")
	}
}

func calendarRequest(r *http.Request) (int, time.Time, time.Time, error) {
	id, err := apiutil.ParsePositiveIntField(r.PathValue("id"), "calendar id")
	if err != nil {
		return 0, time.Time{}, time.Time{}, err
	}
	start, end, err := dateRange(r)
	if err != nil {
		return 0, time.Time{}, time.Time{}, err
	}
	return id, start, end, nil
}

// GET /api/v1/ems/calendars/{id}/events?start=&end=
func HandleCalendarEvents(w http.ResponseWriter, r *http.Request) {
	svc := loadService(w, r)
	if svc == nil {
		return
	}

	id, start, end, err := calendarRequest(r)
	if err != nil {
		apiutil.WriteError(w, r, apiutil.BadRequest(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), emsRequestTimeout)
	defer cancel()

	events, err := svc.CalendarEvents(ctx, id, start, end)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if events == nil {
		events = []ems.MCEvent{}
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, events); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write calendar events response")
	}
}

// GET /api/v1/ems/calendars/{id}/events.ics?start=&end=
func HandleCalendarICS(w http.ResponseWriter, r *http.Request) {
	svc := loadService(w, r)
	if svc == nil {
		return
	}

	id, start, end, err := calendarRequest(r)
	if err != nil {
		apiutil.WriteError(w, r, apiutil.BadRequest(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), emsRequestTimeout)
	defer cancel()

	doc, err := svc.CalendarICS(ctx, id, start, end)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="calendar-%d.ics"`, id))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write calendar feed")
	}
}
