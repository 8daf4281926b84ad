// Package activity reports content activity and page traffic for folders of
// the content store, bucketed over calendar-aligned date ranges.
package activity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/percussion/percussioncms-sub111/internal/data"
	"github.com/percussion/percussioncms-sub111/internal/db"
	dbgen "github.com/percussion/percussioncms-sub111/internal/db/generated"
)

const (
	defaultDetailsLimit = 10
	dayLayout           = "2006-01-02"
)

type Options struct {
	Location   *time.Location
	WeekStart  time.Weekday
	MaxBuckets int
}

type Service struct {
	queries    *dbgen.Queries
	loc        *time.Location
	weekStart  time.Weekday
	maxBuckets int
	now        func() time.Time
}

func NewService(queries *dbgen.Queries, opts Options) *Service {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		queries:    queries,
		loc:        loc,
		weekStart:  opts.WeekStart,
		maxBuckets: opts.MaxBuckets,
		now:        time.Now,
	}
}

// ContentActivity reports activity for req.Path and for each of its
// immediate child folders, ordered by path.
func (s *Service) ContentActivity(ctx context.Context, req ContentActivityRequest) ([]ContentActivity, error) {
	if err := data.Validate(req); err != nil {
		return nil, err
	}
	start, end, err := DateRange(req.DurationType, req.Duration, s.now(), s.loc)
	if err != nil {
		return nil, err
	}

	root := NormalizePath(req.Path)
	itemPaths, err := s.queries.ListContentPathsUnderPath(ctx, LikePrefix(root))
	if err != nil {
		return nil, fmt.Errorf("list paths under %s: %w", root, err)
	}

	paths := append([]string{root}, childFolders(root, itemPaths)...)
	results := make([]ContentActivity, 0, len(paths))
	for _, p := range paths {
		counts, err := s.queries.CountContentActivity(ctx, dbgen.CountContentActivityParams{
			Path:    p,
			Prefix:  LikePrefix(p),
			StartAt: db.Timestamp(start),
			EndAt:   db.Timestamp(end),
		})
		if err != nil {
			return nil, fmt.Errorf("count activity for %s: %w", p, err)
		}
		results = append(results, ContentActivity{
			Name:           baseName(p),
			Path:           p,
			NewItems:       counts.NewItems,
			UpdatedItems:   counts.UpdatedItems,
			PublishedItems: counts.PublishedItems,
			ArchivedItems:  counts.ArchivedItems,
			TotalItems:     counts.TotalItems,
		})
	}

	log.Ctx(ctx).Debug().
		Str("path", root).
		Time("start", start).
		Time("end", end).
		Int("folders", len(results)).
		Msg("Content activity computed")
	return results, nil
}

// parseRange turns inclusive request dates into [start, end) in the service location.
func (s *Service) parseRange(startDate, endDate string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(DateLayout, startDate, s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: startDate must be YYYY-MM-DD", ErrInvalidRequest)
	}
	last, err := time.ParseInLocation(DateLayout, endDate, s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: endDate must be YYYY-MM-DD", ErrInvalidRequest)
	}
	if last.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: endDate is before startDate", ErrInvalidRequest)
	}
	return start, last.AddDate(0, 0, 1), nil
}

// Traffic sums page traffic and item changes below the requested paths into
// granularity buckets. Buckets without data are reported as zero.
func (s *Service) Traffic(ctx context.Context, req TrafficRequest) ([]TrafficBucket, error) {
	if err := data.Validate(req); err != nil {
		return nil, err
	}
	granularity, err := ParseGranularity(req.Granularity)
	if err != nil {
		return nil, err
	}
	start, end, err := s.parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	buckets, err := Buckets(start, end, granularity, s.weekStart, s.maxBuckets)
	if err != nil {
		return nil, err
	}

	out := make([]TrafficBucket, len(buckets))
	for i, b := range buckets {
		out[i] = TrafficBucket{Start: b.Start, End: b.End}
	}

	for _, p := range normalizePaths(req.Paths) {
		days, err := s.queries.SumDailyTrafficUnderPath(ctx, dbgen.SumDailyTrafficUnderPathParams{
			Path:     p,
			Prefix:   LikePrefix(p),
			StartDay: start.Format(dayLayout),
			EndDay:   end.Format(dayLayout),
		})
		if err != nil {
			return nil, fmt.Errorf("sum traffic for %s: %w", p, err)
		}
		for _, d := range days {
			day, err := time.ParseInLocation(dayLayout, d.Day, s.loc)
			if err != nil {
				log.Ctx(ctx).Warn().Str("day", d.Day).Str("path", p).Msg("Skipping malformed traffic day")
				continue
			}
			if idx := bucketIndex(buckets, day); idx >= 0 {
				out[idx].PageViews += d.PageViews
				out[idx].Visits += d.Visits
			}
		}

		stamps, err := s.queries.ListContentTimestampsUnderPath(ctx, dbgen.ListContentTimestampsUnderPathParams{
			Path:    p,
			Prefix:  LikePrefix(p),
			StartAt: db.Timestamp(start),
			EndAt:   db.Timestamp(end),
		})
		if err != nil {
			return nil, fmt.Errorf("list item changes for %s: %w", p, err)
		}
		for _, st := range stamps {
			created := st.CreatedAt.In(s.loc)
			modified := st.ModifiedAt.In(s.loc)
			if !created.Before(start) && created.Before(end) {
				if idx := bucketIndex(buckets, created); idx >= 0 {
					out[idx].NewItems++
				}
			}
			if !modified.Before(start) && modified.Before(end) {
				if idx := bucketIndex(buckets, modified); idx >= 0 && created.Before(buckets[idx].Start) {
					out[idx].UpdatedItems++
				}
			}
		}
	}

	return out, nil
}

// TrafficDetails ranks paths by page views and compares each with the
// preceding period of equal length.
func (s *Service) TrafficDetails(ctx context.Context, req TrafficDetailsRequest) ([]TrafficDetail, error) {
	if err := data.Validate(req); err != nil {
		return nil, err
	}
	start, end, err := s.parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit == 0 {
		limit = defaultDetailsLimit
	}

	days := int(math.Round(end.Sub(start).Hours() / 24))
	prevStart := start.AddDate(0, 0, -days)

	current := map[string]*TrafficDetail{}
	previous := map[string]int64{}
	for _, p := range normalizePaths(req.Paths) {
		rows, err := s.queries.SumTrafficByPath(ctx, dbgen.SumTrafficByPathParams{
			Path:     p,
			Prefix:   LikePrefix(p),
			StartDay: start.Format(dayLayout),
			EndDay:   end.Format(dayLayout),
		})
		if err != nil {
			return nil, fmt.Errorf("sum traffic by path for %s: %w", p, err)
		}
		for _, r := range rows {
			current[r.Path] = &TrafficDetail{Path: r.Path, PageViews: r.PageViews, Visits: r.Visits}
		}

		prevRows, err := s.queries.SumTrafficByPath(ctx, dbgen.SumTrafficByPathParams{
			Path:     p,
			Prefix:   LikePrefix(p),
			StartDay: prevStart.Format(dayLayout),
			EndDay:   start.Format(dayLayout),
		})
		if err != nil {
			return nil, fmt.Errorf("sum previous traffic for %s: %w", p, err)
		}
		for _, r := range prevRows {
			previous[r.Path] = r.PageViews
		}
	}

	details := make([]TrafficDetail, 0, len(current))
	for path, d := range current {
		d.PreviousPageViews = previous[path]
		d.Change = percentChange(d.PageViews, d.PreviousPageViews)
		details = append(details, *d)
	}
	sort.Slice(details, func(i, j int) bool {
		if details[i].PageViews != details[j].PageViews {
			return details[i].PageViews > details[j].PageViews
		}
		return details[i].Path < details[j].Path
	})
	if len(details) > limit {
		details = details[:limit]
	}

	for i := range details {
		details[i].Name = baseName(details[i].Path)
		item, err := s.queries.GetContentItemByPath(ctx, details[i].Path)
		switch {
		case err == nil:
			details[i].Name = item.Name
		case errors.Is(err, sql.ErrNoRows):
		default:
			return nil, fmt.Errorf("load item %s: %w", details[i].Path, err)
		}
	}
	return details, nil
}

func percentChange(current, previous int64) float64 {
	if previous == 0 {
		return 0
	}
	change := float64(current-previous) / float64(previous) * 100
	return math.Round(change*10) / 10
}

// RecordHit adds one page view, and optionally one visit, to the day row of path.
func (s *Service) RecordHit(ctx context.Context, req HitRequest, at time.Time) error {
	if err := data.Validate(req); err != nil {
		return err
	}
	var visits int64
	if req.NewVisit {
		visits = 1
	}
	if err := s.queries.RecordPageTraffic(ctx, dbgen.RecordPageTrafficParams{
		Path:      NormalizePath(req.Path),
		Day:       at.In(s.loc).Format(dayLayout),
		PageViews: 1,
		Visits:    visits,
	}); err != nil {
		return fmt.Errorf("record hit: %w", err)
	}
	return nil
}

// PruneTraffic deletes day rows older than retentionDays. Zero keeps everything.
func (s *Service) PruneTraffic(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := startOfDay(s.now().In(s.loc)).AddDate(0, 0, -retentionDays)
	deleted, err := s.queries.DeleteTrafficBefore(ctx, cutoff.Format(dayLayout))
	if err != nil {
		return 0, fmt.Errorf("prune traffic: %w", err)
	}
	return deleted, nil
}
