package jobs

import (
	"context"
	"time"

	"fulfilment-backend/internal/authz"
	"fulfilment-backend/internal/domain"
	"fulfilment-backend/internal/logger"
)

// jobPrincipal is the actor all background billing runs as.
var jobPrincipal = &domain.Principal{ID: "system", Roles: []string{authz.RoleERPAdmin}}

// NightlyRentalCharges enqueues one billing job for every active rental whose
// last charge is at least the billing threshold old. The queue poller picks
// the jobs up on its next pass.
func (jr *JobRunner) NightlyRentalCharges() {
	jr.runWithRecovery("NightlyRentalCharges", func() {
		ctx := context.Background()

		enqueued, err := jr.services.Fulfilment.NightlyRentalCharges(ctx, jobPrincipal, time.Now().UTC())
		if err != nil {
			logger.Error("Failed to run nightly rental charges", "error", err)
			return
		}

		logger.Info("Nightly rental charges finished", "jobs_enqueued", enqueued)
	})
}

// PollScheduledJobs executes all due one-shot jobs from the queue. Handlers
// are idempotent, so a job that completes but fails to be marked is safe to
// run again on the next poll.
func (jr *JobRunner) PollScheduledJobs() {
	jr.runWithRecovery("PollScheduledJobs", func() {
		ctx := context.Background()

		due, err := jr.store.ScheduledJobRepository.ListDue(ctx, time.Now().UTC())
		if err != nil {
			logger.Error("Failed to list due scheduled jobs", "error", err)
			return
		}

		for _, job := range due {
			if err := jr.services.Fulfilment.RunScheduledJob(ctx, job); err != nil {
				logger.Error("Scheduled job failed",
					"job_id", job.ID,
					"job_name", job.Name,
					"fulfilment_id", job.FulfilmentID,
					"error", err)
				continue
			}
			if err := jr.store.ScheduledJobRepository.MarkCompleted(ctx, job.ID); err != nil {
				logger.Error("Failed to mark scheduled job completed",
					"job_id", job.ID, "error", err)
			}
		}

		if len(due) > 0 {
			logger.Info("Scheduled job poll finished", "jobs_due", len(due))
		}
	})
}
