package apiutil

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/percussion/percussioncms-sub111/internal/data"
)

const DateLayout = "2006-01-02"

func ParsePositiveIntField(raw string, field string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%s is required", field)
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", field)
	}
	return value, nil
}

func parseOptionalInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return value, nil
}

// PageRequestFromQuery reads startIndex and maxResults, defaulting to the
// first page.
func PageRequestFromQuery(r *http.Request) (data.PageRequest, error) {
	req := data.DefaultPageRequest()
	var err error
	if req.StartIndex, err = parseOptionalInt(r, "startIndex", req.StartIndex); err != nil {
		return req, err
	}
	if req.MaxResults, err = parseOptionalInt(r, "maxResults", req.MaxResults); err != nil {
		return req, err
	}
	if err := data.Validate(req); err != nil {
		return req, err
	}
	return req, nil
}

// LimitFromQuery reads an optional positive limit capped at max.
func LimitFromQuery(r *http.Request, fallback, max int) (int, error) {
	limit, err := parseOptionalInt(r, "limit", fallback)
	if err != nil {
		return 0, err
	}
	if limit <= 0 || limit > max {
		return 0, fmt.Errorf("limit must be between 1 and %d", max)
	}
	return limit, nil
}

// DateFromQuery parses a required YYYY-MM-DD query value in loc.
func DateFromQuery(r *http.Request, key string, loc *time.Location) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return time.Time{}, fmt.Errorf("%s is required", key)
	}
	parsed, err := time.ParseInLocation(DateLayout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be a date in YYYY-MM-DD format", key)
	}
	return parsed, nil
}

// IntListFromQuery parses a comma separated list of positive ids. A missing
// key yields nil.
func IntListFromQuery(r *http.Request, key string) ([]int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := ParsePositiveIntField(part, key)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
