package activity

import "time"

// DateLayout is the wire format of request dates.
const DateLayout = "2006-01-02"

type ContentActivityRequest struct {
	Path         string       `json:"path" validate:"required,itempath"`
	DurationType DurationType `json:"durationType" validate:"required,oneof=days weeks months years"`
	Duration     int          `json:"duration" validate:"min=1,max=3650"`
}

type ContentActivity struct {
	Name           string `json:"name"`
	Path           string `json:"path"`
	NewItems       int64  `json:"newItems"`
	UpdatedItems   int64  `json:"updatedItems"`
	PublishedItems int64  `json:"publishedItems"`
	ArchivedItems  int64  `json:"archivedItems"`
	TotalItems     int64  `json:"totalItems"`
}

type TrafficRequest struct {
	Paths       []string `json:"paths" validate:"min=1,max=50,dive,required,itempath"`
	StartDate   string   `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate     string   `json:"endDate" validate:"required,datetime=2006-01-02"`
	Granularity string   `json:"granularity" validate:"required"`
}

type TrafficBucket struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	PageViews    int64     `json:"pageViews"`
	Visits       int64     `json:"visits"`
	NewItems     int64     `json:"newItems"`
	UpdatedItems int64     `json:"updatedItems"`
}

type TrafficDetailsRequest struct {
	Paths     []string `json:"paths" validate:"min=1,max=50,dive,required,itempath"`
	StartDate string   `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string   `json:"endDate" validate:"required,datetime=2006-01-02"`
	Limit     int      `json:"limit" validate:"min=0,max=100"`
}

type TrafficDetail struct {
	Path              string  `json:"path"`
	Name              string  `json:"name"`
	PageViews         int64   `json:"pageViews"`
	Visits            int64   `json:"visits"`
	PreviousPageViews int64   `json:"previousPageViews"`
	Change            float64 `json:"change"`
}

type HitRequest struct {
	Path     string `json:"path" validate:"required,itempath"`
	NewVisit bool   `json:"newVisit"`
}
