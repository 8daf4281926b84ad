// internal/api/activity/handlers.go
package activity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/percussion/percussioncms-sub111/internal/activity"
	"github.com/percussion/percussioncms-sub111/internal/api/apiutil"
)

type Reporter interface {
	ContentActivity(ctx context.Context, req activity.ContentActivityRequest) ([]activity.ContentActivity, error)
	Traffic(ctx context.Context, req activity.TrafficRequest) ([]activity.TrafficBucket, error)
	TrafficDetails(ctx context.Context, req activity.TrafficDetailsRequest) ([]activity.TrafficDetail, error)
	RecordHit(ctx context.Context, req activity.HitRequest, at time.Time) error
}

var (
	reporter     Reporter
	reporterOnce sync.Once
	now          = time.Now
)

const activityQueryTimeout = 30 * time.Second

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(r Reporter) {
	if r == nil {
		return
	}
	reporterOnce.Do(func() {
		reporter = r
	})
}

func loadReporter(w http.ResponseWriter, r *http.Request) Reporter {
	if reporter == nil {
		log.Ctx(r.Context()).Error().Msg("Activity service not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
	return reporter
}

// reportHandler decodes a JSON request body of type Req, runs it and writes
// the result.
func reportHandler[Req any, Resp any](run func(Reporter, context.Context, Req) (Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep := loadReporter(w, r)
		if rep == nil {
			return
		}

		var req Req
		if err := apiutil.DecodeJSON(r, &req); err != nil {
			apiutil.WriteError(w, r, apiutil.BadRequest(err))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), activityQueryTimeout)
		defer cancel()

		resp, err := run(rep, ctx, req)
		if err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
		if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
			log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write activity response")
		}
	}
}

// POST /api/v1/activity/content
var HandleContentActivity = reportHandler(Reporter.ContentActivity)

// POST /api/v1/activity/traffic
var HandleTraffic = reportHandler(Reporter.Traffic)

// POST /api/v1/activity/traffic/details
var HandleTrafficDetails = reportHandler(Reporter.TrafficDetails)

// POST /api/v1/activity/hits
func HandleRecordHit(w http.ResponseWriter, r *http.Request) {
	rep := loadReporter(w, r)
	if rep == nil {
		return
	}

	var req activity.HitRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.BadRequest(err))
		return
	}
	if err := rep.RecordHit(r.Context(), req, now()); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
