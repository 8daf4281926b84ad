package activity

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/percussion/percussioncms-sub111/internal/activity"
	"github.com/percussion/percussioncms-sub111/internal/api/apiutil"
	"github.com/percussion/percussioncms-sub111/internal/testutil"
)

func setupActivityTest(t *testing.T, at time.Time) {
	t.Helper()
	database := testutil.NewTestDB(t)

	prevReporter := reporter
	prevNow := now
	reporter = activity.NewService(database.Queries, activity.Options{
		Location:   time.UTC,
		WeekStart:  time.Monday,
		MaxBuckets: 400,
	})
	now = func() time.Time { return at }
	t.Cleanup(func() {
		reporter = prevReporter
		now = prevNow
	})
}

func post(handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestHitsFeedTrafficReport(t *testing.T) {
	setupActivityTest(t, time.Date(2024, 5, 8, 12, 0, 0, 0, time.UTC))

	for _, body := range []string{
		`{"path":"/sites/www/index.html","newVisit":true}`,
		`{"path":"/sites/www/index.html"}`,
		`{"path":"/sites/www/news/a.html","newVisit":true}`,
	} {
		if rec := post(HandleRecordHit, body); rec.Code != http.StatusNoContent {
			t.Fatalf("record hit %s: expected 204, got %d: %s", body, rec.Code, rec.Body.String())
		}
	}

	rec := post(HandleTraffic, `{"paths":["/sites/www"],"startDate":"2024-05-06","endDate":"2024-05-12","granularity":"week"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var buckets []activity.TrafficBucket
	if err := json.NewDecoder(rec.Body).Decode(&buckets); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(buckets) != 1 {
		t.Fatalf("expected one week bucket, got %+v", buckets)
	}
	if buckets[0].PageViews != 3 || buckets[0].Visits != 2 {
		t.Fatalf("unexpected totals: %+v", buckets[0])
	}

	rec = post(HandleTrafficDetails, `{"paths":["/sites/www"],"startDate":"2024-05-06","endDate":"2024-05-12","limit":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("details: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var details []activity.TrafficDetail
	if err := json.NewDecoder(rec.Body).Decode(&details); err != nil {
		t.Fatalf("decode details: %v", err)
	}
	if len(details) != 1 || details[0].Path != "/sites/www/index.html" || details[0].PageViews != 2 {
		t.Fatalf("unexpected details: %+v", details)
	}
}

func TestContentActivityHandler(t *testing.T) {
	setupActivityTest(t, time.Date(2024, 5, 8, 12, 0, 0, 0, time.UTC))

	rec := post(HandleContentActivity, `{"path":"/sites/www","durationType":"days","duration":7}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var results []activity.ContentActivity
	if err := json.NewDecoder(rec.Body).Decode(&results); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(results) != 1 || results[0].Path != "/sites/www" || results[0].TotalItems != 0 {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestActivityValidationErrors(t *testing.T) {
	setupActivityTest(t, time.Date(2024, 5, 8, 12, 0, 0, 0, time.UTC))

	tests := []struct {
		name    string
		handler http.HandlerFunc
		body    string
		field   string
	}{
		{"missing path", HandleContentActivity, `{"durationType":"days","duration":7}`, "path"},
		{"bad duration type", HandleContentActivity, `{"path":"/a","durationType":"fortnights","duration":1}`, "durationType"},
		{"no paths", HandleTraffic, `{"paths":[],"startDate":"2024-05-01","endDate":"2024-05-02","granularity":"DAY"}`, "paths"},
		{"bad date", HandleTrafficDetails, `{"paths":["/a"],"startDate":"May 1","endDate":"2024-05-02"}`, "startDate"},
		{"relative hit path", HandleRecordHit, `{"path":"index.html"}`, "path"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := post(tc.handler, tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			var resp apiutil.ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			found := false
			for _, f := range resp.Fields {
				if f.Field == tc.field {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected field error for %s, got %+v", tc.field, resp)
			}
		})
	}
}

func TestTrafficRejectsUnknownGranularity(t *testing.T) {
	setupActivityTest(t, time.Date(2024, 5, 8, 12, 0, 0, 0, time.UTC))

	rec := post(HandleTraffic, `{"paths":["/a"],"startDate":"2024-05-01","endDate":"2024-05-02","granularity":"HOUR"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
