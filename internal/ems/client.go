package ems

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/percussion/percussioncms-sub111/internal/config"
)

const maxResponseBytes = 16 << 20

// Client calls the EMS API and Master Calendar SOAP services.
type Client struct {
	httpClient  *http.Client
	apiURL      string
	calendarURL string
	username    string
	password    string
	location    *time.Location
	breaker     *gobreaker.CircuitBreaker[string]
}

// NewClient builds a Client for cfg. Timestamps returned by EMS are anchored
// in loc. A nil httpClient gets one with the configured timeout.
func NewClient(cfg config.EMSConfig, loc *time.Location, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout()}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		httpClient:  httpClient,
		apiURL:      cfg.APIURL,
		calendarURL: cfg.MasterCalendarURL,
		username:    cfg.Username,
		password:    cfg.Password,
		location:    loc,
		breaker:     newBreaker(cfg.Breaker),
	}
}

func newBreaker(cfg config.BreakerConfig) *gobreaker.CircuitBreaker[string] {
	return gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "ems",
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.IntervalSeconds) * time.Second,
		Timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// Faults and error documents prove the service is up.
		IsSuccessful: func(err error) bool {
			var fault *FaultError
			var apiErr *APIError
			return err == nil ||
				errors.As(err, &fault) ||
				errors.As(err, &apiErr) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("EMS circuit breaker state changed")
		},
	})
}

func (c *Client) creds(namespace string) credentials {
	return credentials{XMLNS: namespace, UserName: c.username, Password: c.password}
}

// call posts a SOAP request and returns the embedded result document.
func (c *Client) call(ctx context.Context, endpoint, namespace, operation string, payload any) (string, error) {
	if endpoint == "" {
		return "", ErrNotConfigured
	}

	body, err := marshalEnvelope(payload)
	if err != nil {
		return "", err
	}

	logger := log.Ctx(ctx).With().Str("ems_operation", operation).Logger()
	start := time.Now()

	result, err := c.breaker.Execute(func() (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("build %s request: %w", operation, err)
		}
		req.Header.Set("Content-Type", "text/xml; charset=utf-8")
		req.Header.Set("SOAPAction", `"`+namespace+operation+`"`)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrUnavailable, operation, err)
		}
		defer resp.Body.Close()

		limited := io.LimitReader(resp.Body, maxResponseBytes)
		// Faults arrive with status 500 and still carry a SOAP body.
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusInternalServerError {
			return "", fmt.Errorf("%w: %s returned status %d", ErrUnavailable, operation, resp.StatusCode)
		}
		return extractResult(limited, operation)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %s: %v", ErrUnavailable, operation, err)
		}
		logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("EMS call failed")
		return "", err
	}

	logger.Debug().Dur("duration", time.Since(start)).Msg("EMS call completed")
	return result, nil
}

func fetchRows[T any](ctx context.Context, c *Client, endpoint, namespace, operation, rowName string, payload any) ([]T, error) {
	doc, err := c.call(ctx, endpoint, namespace, operation, payload)
	if err != nil {
		return nil, err
	}
	return parseRows[T](operation, doc, rowName)
}

func (c *Client) simple(operation, namespace string) simpleRequest {
	return simpleRequest{XMLName: xml.Name{Local: operation}, credentials: c.creds(namespace)}
}

func (c *Client) GetBuildings(ctx context.Context) ([]Building, error) {
	return fetchRows[Building](ctx, c, c.apiURL, APINamespace, "GetBuildings", "Data", c.simple("GetBuildings", APINamespace))
}

func (c *Client) GetEventTypes(ctx context.Context) ([]EventType, error) {
	return fetchRows[EventType](ctx, c, c.apiURL, APINamespace, "GetEventTypes", "Data", c.simple("GetEventTypes", APINamespace))
}

func (c *Client) GetGroupTypes(ctx context.Context) ([]GroupType, error) {
	return fetchRows[GroupType](ctx, c, c.apiURL, APINamespace, "GetGroupTypes", "Data", c.simple("GetGroupTypes", APINamespace))
}

func (c *Client) GetStatuses(ctx context.Context) ([]Status, error) {
	return fetchRows[Status](ctx, c, c.apiURL, APINamespace, "GetStatuses", "Data", c.simple("GetStatuses", APINamespace))
}

func (c *Client) GetBookings(ctx context.Context, req BookingRequest) ([]Booking, error) {
	payload := getBookingsRequest{
		credentials: c.creds(APINamespace),
		StartDate:   formatTime(req.Start),
		EndDate:     formatTime(req.End),
		Buildings:   newIntArray(req.Buildings),
		Statuses:    newIntArray(req.Statuses),
		EventTypes:  newIntArray(req.EventTypes),
		GroupTypes:  newIntArray(req.GroupTypes),
	}
	bookings, err := fetchRows[Booking](ctx, c, c.apiURL, APINamespace, "GetBookings", "Data", payload)
	if err != nil {
		return nil, err
	}
	for i := range bookings {
		b := &bookings[i]
		b.BookingDate = localize(b.BookingDate, c.location)
		b.TimeEventStart = localize(b.TimeEventStart, c.location)
		b.TimeEventEnd = localize(b.TimeEventEnd, c.location)
		b.DateAdded = localize(b.DateAdded, c.location)
		b.DateChanged = localize(b.DateChanged, c.location)
	}
	return bookings, nil
}

func (c *Client) GetCalendars(ctx context.Context) ([]MCCalendar, error) {
	return fetchRows[MCCalendar](ctx, c, c.calendarURL, CalendarNamespace, "GetCalendars", "Calendar", c.simple("GetCalendars", CalendarNamespace))
}

func (c *Client) GetCalendarEventTypes(ctx context.Context) ([]MCEventType, error) {
	return fetchRows[MCEventType](ctx, c, c.calendarURL, CalendarNamespace, "GetEventTypes", "EventType", c.simple("GetEventTypes", CalendarNamespace))
}

func (c *Client) GetCalendarEvents(ctx context.Context, calendarID int, start, end time.Time) ([]MCEvent, error) {
	payload := getEventsRequest{
		credentials: c.creds(CalendarNamespace),
		StartDate:   formatTime(start),
		EndDate:     formatTime(end),
		Calendars:   newIntArray([]int{calendarID}),
	}
	events, err := fetchRows[MCEvent](ctx, c, c.calendarURL, CalendarNamespace, "GetEvents", "Event", payload)
	if err != nil {
		return nil, err
	}
	for i := range events {
		events[i].Start = localize(events[i].Start, c.location)
		events[i].End = localize(events[i].End, c.location)
	}
	return events, nil
}
