/**
 * @description
 * This file implements the background dispatcher that drains the durable
 * wallet_sync_jobs outbox and mirrors local wallet credits into the main
 * ledger service. Jobs are claimed in batches with SKIP LOCKED, delivered
 * with a bounded linear-backoff retry burst, and either finalized as synced
 * or recorded in the failed-sync store for out-of-band reconciliation.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kudipay/wallet-service/internal/domain"
	"github.com/kudipay/wallet-service/internal/store"
	"github.com/kudipay/wallet-service/pkg/ledgerclient"
)

const (
	defaultSyncBatchSize    = 50
	defaultSyncPollInterval = 2 * time.Second
	defaultSyncMaxAttempts  = 4
	defaultSyncBackoff      = 5 * time.Second
	defaultStaleProcessing  = 2 * time.Minute
)

// SyncDispatcher polls the wallet_sync_jobs outbox and delivers claimed jobs
// to the ledger service.
type SyncDispatcher struct {
	repo                store.Repository
	ledger              LedgerSyncClient
	batchSize           int
	pollInterval        time.Duration
	maxAttempts         int
	backoff             time.Duration
	staleProcessingTime time.Duration
}

func NewSyncDispatcher(repo store.Repository, ledger LedgerSyncClient) *SyncDispatcher {
	return &SyncDispatcher{
		repo:                repo,
		ledger:              ledger,
		batchSize:           defaultSyncBatchSize,
		pollInterval:        defaultSyncPollInterval,
		maxAttempts:         defaultSyncMaxAttempts,
		backoff:             defaultSyncBackoff,
		staleProcessingTime: defaultStaleProcessing,
	}
}

// WithRetryPolicy overrides the attempt budget and backoff base.
func (d *SyncDispatcher) WithRetryPolicy(maxAttempts int, backoff time.Duration) *SyncDispatcher {
	if maxAttempts > 0 {
		d.maxAttempts = maxAttempts
	}
	if backoff > 0 {
		d.backoff = backoff
	}
	return d
}

// WithBatching overrides the claim batch size and poll interval.
func (d *SyncDispatcher) WithBatching(batchSize int, pollInterval time.Duration) *SyncDispatcher {
	if batchSize > 0 {
		d.batchSize = batchSize
	}
	if pollInterval > 0 {
		d.pollInterval = pollInterval
	}
	return d
}

// Run polls until the context is canceled.
func (d *SyncDispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	log.Printf("level=info component=sync_dispatcher msg=\"started\" batch_size=%d max_attempts=%d backoff=%s", d.batchSize, d.maxAttempts, d.backoff)
	for {
		select {
		case <-ctx.Done():
			log.Printf("level=info component=sync_dispatcher msg=\"stopped\"")
			return
		case <-ticker.C:
			if err := d.FlushOnce(ctx); err != nil {
				log.Printf("level=error component=sync_dispatcher msg=\"flush failed\" err=%v", err)
			}
		}
	}
}

// FlushOnce claims one batch and delivers every job in it.
func (d *SyncDispatcher) FlushOnce(ctx context.Context) error {
	staleAfterSeconds := int(d.staleProcessingTime.Seconds())
	jobs, err := d.repo.ClaimSyncJobs(ctx, d.batchSize, staleAfterSeconds)
	if err != nil {
		return fmt.Errorf("claim sync jobs: %w", err)
	}

	for _, job := range jobs {
		d.deliverJob(ctx, job)
	}
	return nil
}

// deliverJob runs the retry burst for a single job. Attempts accumulate
// across claims, so a job reclaimed after a crash does not get a fresh
// budget.
func (d *SyncDispatcher) deliverJob(ctx context.Context, job domain.SyncJob) {
	attempts := job.Attempts
	var lastErr error

	for attempts < d.maxAttempts {
		attempts++

		resp, err := d.ledger.TopUpWallet(ctx, ledgerclient.TopUpRequest{
			UserID:      job.UserID.String(),
			Amount:      job.AmountKobo,
			Reference:   job.Reference,
			Source:      "paystack_webhook",
			Description: "Wallet top-up via payment gateway",
		})
		if err == nil {
			if resp.AlreadyProcessed {
				log.Printf("level=info component=sync_dispatcher msg=\"ledger already processed reference\" job_id=%d reference=%s", job.ID, job.Reference)
			}
			if markErr := d.repo.MarkSyncJobSynced(ctx, job.ID, attempts); markErr != nil {
				log.Printf("level=error component=sync_dispatcher msg=\"failed to mark job synced\" job_id=%d err=%v", job.ID, markErr)
			}
			log.Printf("level=info component=sync_dispatcher msg=\"job synced\" job_id=%d reference=%s attempts=%d", job.ID, job.Reference, attempts)
			return
		}

		lastErr = err

		var apiErr *ledgerclient.APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			// The ledger service rejected the request; retrying cannot help.
			log.Printf("level=warn component=sync_dispatcher msg=\"terminal rejection from ledger service\" job_id=%d reference=%s status=%d", job.ID, job.Reference, apiErr.StatusCode)
			d.finalizeFailed(ctx, job, attempts, err)
			return
		}

		log.Printf("level=warn component=sync_dispatcher msg=\"sync attempt failed\" job_id=%d reference=%s attempt=%d err=%v", job.ID, job.Reference, attempts, err)

		if attempts >= d.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			// Leave the job in processing; the stale reclaim picks it
			// back up after restart.
			return
		case <-time.After(d.backoff * time.Duration(attempts)):
		}
	}

	d.finalizeFailed(ctx, job, attempts, lastErr)
}

// finalizeFailed marks the job failed and records the reconciliation
// obligation in the failed-sync store.
func (d *SyncDispatcher) finalizeFailed(ctx context.Context, job domain.SyncJob, attempts int, cause error) {
	causeText := "sync failed"
	if cause != nil {
		causeText = cause.Error()
	}

	if err := d.repo.MarkSyncJobFailed(ctx, job.ID, attempts, causeText); err != nil {
		log.Printf("level=error component=sync_dispatcher msg=\"failed to mark job failed\" job_id=%d err=%v", job.ID, err)
	}

	record := &domain.FailedSync{
		UserID:      job.UserID,
		AmountKobo:  job.AmountKobo,
		Reference:   job.Reference,
		Error:       causeText,
		RetryCount:  attempts,
		LastAttempt: time.Now().UTC(),
	}
	if err := d.repo.CreateFailedSync(ctx, record); err != nil {
		log.Printf("level=error component=sync_dispatcher msg=\"failed to record failed sync\" job_id=%d reference=%s err=%v", job.ID, job.Reference, err)
		return
	}
	log.Printf("level=warn component=sync_dispatcher msg=\"sync exhausted; recorded for reconciliation\" job_id=%d reference=%s attempts=%d", job.ID, job.Reference, attempts)
}
