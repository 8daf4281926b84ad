package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"

	"github.com/percussion/percussioncms-sub111/internal/config"
	"github.com/percussion/percussioncms-sub111/internal/ems"
)

const (
	JobPasswordResetPurge  = "password_reset_purge"
	JobEMSReferenceRefresh = "ems_reference_refresh"
	JobTrafficPrune        = "traffic_prune"
)

type ResetPurger interface {
	PurgeExpiredResets(ctx context.Context, now time.Time) (int64, error)
}

type ReferenceRefresher interface {
	RefreshReference(ctx context.Context) (*ems.ReferenceData, error)
}

type TrafficPruner interface {
	PruneTraffic(ctx context.Context, retentionDays int) (int64, error)
}

// Maintenance lists the housekeeping targets. A nil target skips its job.
type Maintenance struct {
	Resets        ResetPurger
	EMS           ReferenceRefresher
	Traffic       TrafficPruner
	RetentionDays int
	Schedule      config.SchedulerConfig
	Now           func() time.Time
}

// RegisterMaintenanceJobs adds the housekeeping jobs to svc and returns them
// keyed by job name.
func RegisterMaintenanceJobs(svc *Service, m Maintenance) (map[string]gocron.Job, error) {
	if svc == nil {
		return nil, ErrNotInitialized
	}
	now := m.Now
	if now == nil {
		now = time.Now
	}

	type jobSpec struct {
		name    string
		cron    string
		timeout time.Duration
		task    Task
	}
	var specs []jobSpec

	if m.Resets != nil {
		specs = append(specs, jobSpec{JobPasswordResetPurge, m.Schedule.ResetPurgeCron, time.Minute, func(ctx context.Context) error {
			deleted, err := m.Resets.PurgeExpiredResets(ctx, now())
			if err != nil {
				return err
			}
			log.Ctx(ctx).Info().Int64("deleted", deleted).Msg("Expired password resets purged")
			return nil
		}})
	}

	if m.EMS != nil {
		specs = append(specs, jobSpec{JobEMSReferenceRefresh, m.Schedule.EMSRefreshCron, 2 * time.Minute, func(ctx context.Context) error {
			ref, err := m.EMS.RefreshReference(ctx)
			if err != nil {
				return err
			}
			log.Ctx(ctx).Info().
				Int("buildings", len(ref.Buildings)).
				Int("event_types", len(ref.EventTypes)).
				Int("group_types", len(ref.GroupTypes)).
				Int("statuses", len(ref.Statuses)).
				Msg("EMS reference data refreshed")
			return nil
		}})
	}

	if m.Traffic != nil && m.RetentionDays > 0 {
		specs = append(specs, jobSpec{JobTrafficPrune, m.Schedule.TrafficPruneCron, 10 * time.Minute, func(ctx context.Context) error {
			deleted, err := m.Traffic.PruneTraffic(ctx, m.RetentionDays)
			if err != nil {
				return err
			}
			log.Ctx(ctx).Info().Int64("deleted", deleted).Int("retention_days", m.RetentionDays).Msg("Old page traffic pruned")
			return nil
		}})
	}

	jobs := make(map[string]gocron.Job, len(specs))
	for _, spec := range specs {
		job, err := svc.AddJob(spec.name, spec.cron, spec.timeout, spec.task)
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", spec.name, err)
		}
		jobs[spec.name] = job
	}
	return jobs, nil
}
