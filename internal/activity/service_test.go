package activity

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/percussion/percussioncms-sub111/internal/data"
	"github.com/percussion/percussioncms-sub111/internal/db"
	dbgen "github.com/percussion/percussioncms-sub111/internal/db/generated"
	"github.com/percussion/percussioncms-sub111/internal/testutil"
)

func newTestService(t *testing.T, now time.Time) (*Service, *dbgen.Queries) {
	t.Helper()
	database := testutil.NewTestDB(t)
	svc := NewService(database.Queries, Options{Location: time.UTC, WeekStart: time.Monday, MaxBuckets: 400})
	svc.now = func() time.Time { return now }
	return svc, database.Queries
}

func seedItem(t *testing.T, q *dbgen.Queries, id, path string, created, modified time.Time) dbgen.ContentItem {
	t.Helper()
	item, err := q.CreateContentItem(context.Background(), dbgen.CreateContentItemParams{
		ID:           id,
		Path:         path,
		Name:         baseName(path),
		ContentType:  "page",
		LastModifier: "admin",
		Fields:       "{}",
		CreatedAt:    db.Timestamp(created),
		ModifiedAt:   db.Timestamp(modified),
	})
	if err != nil {
		t.Fatalf("seed item %s: %v", path, err)
	}
	return item
}

func seedTraffic(t *testing.T, q *dbgen.Queries, path, day string, views, visits int64) {
	t.Helper()
	if err := q.RecordPageTraffic(context.Background(), dbgen.RecordPageTrafficParams{
		Path: path, Day: day, PageViews: views, Visits: visits,
	}); err != nil {
		t.Fatalf("seed traffic %s %s: %v", path, day, err)
	}
}

func TestContentActivityPerChildFolder(t *testing.T) {
	now := time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)
	svc, q := newTestService(t, now)
	ctx := context.Background()

	old := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 5, 8, 9, 0, 0, 0, time.UTC)

	seedItem(t, q, "1", "/sites/www/index.html", old, old)
	seedItem(t, q, "2", "/sites/www/news/a.html", recent, recent)
	updated := seedItem(t, q, "3", "/sites/www/news/b.html", old, recent)
	seedItem(t, q, "4", "/sites/www/about/team.html", old, old)
	seedItem(t, q, "5", "/sites/other/x.html", recent, recent)

	if _, err := q.UpdateContentItemState(ctx, dbgen.UpdateContentItemStateParams{
		WorkflowState: "Live",
		LastModifier:  "admin",
		ModifiedAt:    db.Timestamp(recent),
		PublishedAt:   sql.NullTime{Time: db.Timestamp(recent), Valid: true},
		ID:            updated.ID,
	}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	results, err := svc.ContentActivity(ctx, ContentActivityRequest{
		Path:         "/sites/www/",
		DurationType: DurationDays,
		Duration:     7,
	})
	if err != nil {
		t.Fatalf("content activity: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected root plus two folders, got %+v", results)
	}

	root, about, news := results[0], results[1], results[2]
	if root.Path != "/sites/www" || root.TotalItems != 4 || root.NewItems != 1 || root.UpdatedItems != 1 || root.PublishedItems != 1 {
		t.Fatalf("unexpected root activity: %+v", root)
	}
	if about.Name != "about" || about.TotalItems != 1 || about.NewItems != 0 {
		t.Fatalf("unexpected about activity: %+v", about)
	}
	if news.Name != "news" || news.NewItems != 1 || news.UpdatedItems != 1 || news.TotalItems != 2 {
		t.Fatalf("unexpected news activity: %+v", news)
	}
}

func TestPathMatchingIsCaseSensitive(t *testing.T) {
	now := time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)
	svc, q := newTestService(t, now)
	ctx := context.Background()

	recent := time.Date(2024, 5, 8, 9, 0, 0, 0, time.UTC)
	seedItem(t, q, "1", "/sites/www/news/a.html", recent, recent)
	seedItem(t, q, "2", "/Sites/WWW/Blog/b.html", recent, recent)

	results, err := svc.ContentActivity(ctx, ContentActivityRequest{
		Path:         "/sites/www",
		DurationType: DurationDays,
		Duration:     7,
	})
	if err != nil {
		t.Fatalf("content activity: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected root plus news, got %+v", results)
	}
	if results[0].TotalItems != 1 || results[0].NewItems != 1 {
		t.Fatalf("unexpected root activity: %+v", results[0])
	}
	if results[1].Path != "/sites/www/news" {
		t.Fatalf("unexpected folder: %+v", results[1])
	}

	seedTraffic(t, q, "/sites/www/news/a.html", "2024-05-09", 3, 1)
	seedTraffic(t, q, "/Sites/WWW/Blog/b.html", "2024-05-09", 50, 20)
	details, err := svc.TrafficDetails(ctx, TrafficDetailsRequest{
		Paths:     []string{"/sites/www"},
		StartDate: "2024-05-08",
		EndDate:   "2024-05-14",
	})
	if err != nil {
		t.Fatalf("traffic details: %v", err)
	}
	if len(details) != 1 || details[0].Path != "/sites/www/news/a.html" {
		t.Fatalf("expected only the lowercase page, got %+v", details)
	}
}

func TestContentActivityValidation(t *testing.T) {
	svc, _ := newTestService(t, time.Now())

	_, err := svc.ContentActivity(context.Background(), ContentActivityRequest{Path: "no-slash", DurationType: DurationDays, Duration: 1})
	var verr *data.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = svc.ContentActivity(context.Background(), ContentActivityRequest{Path: "/sites", DurationType: "hours", Duration: 1})
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error for duration type, got %v", err)
	}
}

func TestTrafficBucketsAndZeroFill(t *testing.T) {
	svc, q := newTestService(t, time.Now())
	ctx := context.Background()

	seedTraffic(t, q, "/sites/www/index.html", "2024-05-01", 10, 4)
	seedTraffic(t, q, "/sites/www/news/a.html", "2024-05-01", 5, 2)
	seedTraffic(t, q, "/sites/www/news/a.html", "2024-05-03", 7, 3)
	seedTraffic(t, q, "/sites/other/x.html", "2024-05-01", 100, 50)
	seedTraffic(t, q, "/sites/www/index.html", "2024-04-30", 99, 99)

	seedItem(t, q, "1", "/sites/www/news/new.html",
		time.Date(2024, 5, 3, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 3, 12, 0, 0, 0, time.UTC))
	seedItem(t, q, "2", "/sites/www/news/old.html",
		time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC))

	buckets, err := svc.Traffic(ctx, TrafficRequest{
		Paths:       []string{"/sites/www", "/sites/www/news"},
		StartDate:   "2024-05-01",
		EndDate:     "2024-05-03",
		Granularity: "day",
	})
	if err != nil {
		t.Fatalf("traffic: %v", err)
	}
	if len(buckets) != 3 {
		t.Fatalf("expected 3 day buckets, got %d", len(buckets))
	}

	want := []struct{ views, visits, created, updated int64 }{
		{15, 6, 0, 0},
		{0, 0, 0, 1},
		{7, 3, 1, 0},
	}
	for i, w := range want {
		b := buckets[i]
		if b.PageViews != w.views || b.Visits != w.visits || b.NewItems != w.created || b.UpdatedItems != w.updated {
			t.Fatalf("bucket %d = %+v, want %+v", i, b, w)
		}
	}
}

func TestTrafficRejectsReversedRange(t *testing.T) {
	svc, _ := newTestService(t, time.Now())
	_, err := svc.Traffic(context.Background(), TrafficRequest{
		Paths:       []string{"/"},
		StartDate:   "2024-05-03",
		EndDate:     "2024-05-01",
		Granularity: "DAY",
	})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestTrafficDetailsRanksAndCompares(t *testing.T) {
	svc, q := newTestService(t, time.Now())
	ctx := context.Background()

	seedItem(t, q, "1", "/sites/www/index.html", time.Now(), time.Now())

	// Current period is May 8-14, previous is May 1-7.
	seedTraffic(t, q, "/sites/www/index.html", "2024-05-09", 30, 10)
	seedTraffic(t, q, "/sites/www/index.html", "2024-05-02", 20, 8)
	seedTraffic(t, q, "/sites/www/news.html", "2024-05-10", 30, 12)
	seedTraffic(t, q, "/sites/www/contact.html", "2024-05-11", 5, 5)

	details, err := svc.TrafficDetails(ctx, TrafficDetailsRequest{
		Paths:     []string{"/sites/www"},
		StartDate: "2024-05-08",
		EndDate:   "2024-05-14",
		Limit:     2,
	})
	if err != nil {
		t.Fatalf("traffic details: %v", err)
	}
	if len(details) != 2 {
		t.Fatalf("expected limit of 2, got %+v", details)
	}
	if details[0].Path != "/sites/www/index.html" || details[1].Path != "/sites/www/news.html" {
		t.Fatalf("unexpected order: %+v", details)
	}
	if details[0].PreviousPageViews != 20 || details[0].Change != 50 {
		t.Fatalf("unexpected comparison: %+v", details[0])
	}
	if details[0].Name != "index.html" || details[1].Name != "news.html" {
		t.Fatalf("unexpected names: %+v", details)
	}
	if details[1].Change != 0 {
		t.Fatalf("expected zero change without previous traffic, got %v", details[1].Change)
	}
}

func TestRecordHitAndPrune(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	svc, q := newTestService(t, now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := svc.RecordHit(ctx, HitRequest{Path: "/sites/www/index.html", NewVisit: i == 0}, now); err != nil {
			t.Fatalf("record hit: %v", err)
		}
	}
	rows, err := q.SumTrafficByPath(ctx, dbgen.SumTrafficByPathParams{
		Path: "/sites/www/index.html", Prefix: LikePrefix("/sites/www/index.html"),
		StartDay: "2024-05-10", EndDay: "2024-05-11",
	})
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if len(rows) != 1 || rows[0].PageViews != 3 || rows[0].Visits != 1 {
		t.Fatalf("unexpected traffic rows: %+v", rows)
	}

	seedTraffic(t, q, "/sites/www/index.html", "2024-04-01", 1, 1)
	deleted, err := svc.PruneTraffic(ctx, 30)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected one pruned row, got %d", deleted)
	}

	if deleted, err := svc.PruneTraffic(ctx, 0); err != nil || deleted != 0 {
		t.Fatalf("retention 0 should keep everything: %d %v", deleted, err)
	}
}
