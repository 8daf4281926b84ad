package ems

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const maxRangeDays = 366

// Backend is the set of EMS calls the service relies on. *Client implements it.
type Backend interface {
	GetBuildings(ctx context.Context) ([]Building, error)
	GetEventTypes(ctx context.Context) ([]EventType, error)
	GetGroupTypes(ctx context.Context) ([]GroupType, error)
	GetStatuses(ctx context.Context) ([]Status, error)
	GetBookings(ctx context.Context, req BookingRequest) ([]Booking, error)
	GetCalendars(ctx context.Context) ([]MCCalendar, error)
	GetCalendarEventTypes(ctx context.Context) ([]MCEventType, error)
	GetCalendarEvents(ctx context.Context, calendarID int, start, end time.Time) ([]MCEvent, error)
}

// ReferenceData is the slow-changing lookup data shown in booking filters.
type ReferenceData struct {
	Buildings  []Building  `json:"buildings"`
	EventTypes []EventType `json:"eventTypes"`
	GroupTypes []GroupType `json:"groupTypes"`
	Statuses   []Status    `json:"statuses"`
	LoadedAt   time.Time   `json:"loadedAt"`
}

// Service fronts a Backend with a reference-data cache and request checks.
type Service struct {
	backend Backend
	ttl     time.Duration
	now     func() time.Time

	mu        sync.RWMutex
	reference *ReferenceData
	refresh   singleflight.Group
}

func NewService(backend Backend, ttl time.Duration) *Service {
	return &Service{
		backend: backend,
		ttl:     ttl,
		now:     time.Now,
	}
}

// RefreshReference reloads all reference lists concurrently and replaces the
// cache only when every call succeeds.
func (s *Service) RefreshReference(ctx context.Context) (*ReferenceData, error) {
	v, err, _ := s.refresh.Do("reference", func() (interface{}, error) {
		next := &ReferenceData{}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			next.Buildings, err = s.backend.GetBuildings(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			next.EventTypes, err = s.backend.GetEventTypes(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			next.GroupTypes, err = s.backend.GetGroupTypes(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			next.Statuses, err = s.backend.GetStatuses(gctx)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("refresh ems reference data: %w", err)
		}
		next.LoadedAt = s.now()

		s.mu.Lock()
		s.reference = next
		s.mu.Unlock()
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ReferenceData), nil
}

// Reference returns cached reference data, refreshing it when older than the
// TTL. A failed refresh falls back to the stale copy if there is one.
func (s *Service) Reference(ctx context.Context) (*ReferenceData, error) {
	s.mu.RLock()
	cached := s.reference
	s.mu.RUnlock()

	if cached != nil && s.now().Sub(cached.LoadedAt) < s.ttl {
		return cached, nil
	}

	fresh, err := s.RefreshReference(ctx)
	if err != nil {
		if cached != nil {
			log.Ctx(ctx).Warn().Err(err).Time("loaded_at", cached.LoadedAt).Msg("Serving stale EMS reference data")
			return cached, nil
		}
		return nil, err
	}
	return fresh, nil
}

func (s *Service) Buildings(ctx context.Context) ([]Building, error) {
	ref, err := s.Reference(ctx)
	if err != nil {
		return nil, err
	}
	return ref.Buildings, nil
}

func (s *Service) EventTypes(ctx context.Context) ([]EventType, error) {
	ref, err := s.Reference(ctx)
	if err != nil {
		return nil, err
	}
	return ref.EventTypes, nil
}

func (s *Service) GroupTypes(ctx context.Context) ([]GroupType, error) {
	ref, err := s.Reference(ctx)
	if err != nil {
		return nil, err
	}
	return ref.GroupTypes, nil
}

func (s *Service) Statuses(ctx context.Context) ([]Status, error) {
	ref, err := s.Reference(ctx)
	if err != nil {
		return nil, err
	}
	return ref.Statuses, nil
}

func checkRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidRange)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: end is before start", ErrInvalidRange)
	}
	if end.Sub(start) > maxRangeDays*24*time.Hour {
		return fmt.Errorf("%w: range exceeds %d days", ErrInvalidRange, maxRangeDays)
	}
	return nil
}

// Bookings returns the bookings matching req ordered by start time.
func (s *Service) Bookings(ctx context.Context, req BookingRequest) ([]Booking, error) {
	if err := checkRange(req.Start, req.End); err != nil {
		return nil, err
	}
	bookings, err := s.backend.GetBookings(ctx, req)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(bookings, func(i, j int) bool {
		return bookings[i].TimeEventStart.Before(bookings[j].TimeEventStart.Time)
	})
	return bookings, nil
}

func (s *Service) Calendars(ctx context.Context) ([]MCCalendar, error) {
	return s.backend.GetCalendars(ctx)
}

func (s *Service) CalendarEventTypes(ctx context.Context) ([]MCEventType, error) {
	return s.backend.GetCalendarEventTypes(ctx)
}

// CalendarEvents returns the events of one master calendar ordered by start.
func (s *Service) CalendarEvents(ctx context.Context, calendarID int, start, end time.Time) ([]MCEvent, error) {
	if calendarID <= 0 {
		return nil, fmt.Errorf("%w: calendar id must be positive", ErrInvalidRange)
	}
	if err := checkRange(start, end); err != nil {
		return nil, err
	}
	events, err := s.backend.GetCalendarEvents(ctx, calendarID, start, end)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start.Time)
	})
	return events, nil
}
