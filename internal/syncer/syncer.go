// Package syncer orchestrates one delta-sync run: normalize the snapshot,
// detect changes against persisted sync state, dispatch changed products,
// and record the outcome.
package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/catalog-delta-sync/internal/feed"
	"github.com/fairyhunter13/catalog-delta-sync/internal/fingerprint"
	"github.com/fairyhunter13/catalog-delta-sync/internal/model"
	"github.com/fairyhunter13/catalog-delta-sync/internal/normalize"
	"github.com/fairyhunter13/catalog-delta-sync/internal/obs"
	"github.com/fairyhunter13/catalog-delta-sync/internal/state"
)

// Dispatcher delivers one product to the remote catalog. Any returned error
// is final for this run; the orchestrator never retries past the client's
// own budget.
type Dispatcher interface {
	Send(ctx context.Context, p model.Product, isNew bool) error
}

// Syncer ties the feed, normalizer, fingerprints, sync state and dispatcher
// together. It is the only writer of sync state.
type Syncer struct {
	feed       feed.Feed
	store      state.Store
	dispatcher Dispatcher
	workers    int
	now        func() time.Time
}

// New builds a Syncer with the given collaborators; workers bounds the
// number of concurrent dispatches (the rate ceiling is enforced separately
// by the dispatcher).
func New(f feed.Feed, st state.Store, d Dispatcher, workers int) *Syncer {
	if workers <= 0 {
		workers = 4
	}
	return &Syncer{feed: f, store: st, dispatcher: d, workers: workers, now: time.Now}
}

// job is one changed product bound for the remote API.
type job struct {
	product model.Product
	fp      string
	isNew   bool
}

// Run executes one sync pass. Only an unreadable feed aborts the run;
// every per-SKU failure is isolated and counted in the report.
func (s *Syncer) Run(ctx context.Context) (model.RunReport, error) {
	report := model.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: s.now().UTC(),
	}
	obs.Logger.Info("sync_started", "run_id", report.RunID)

	raws, err := s.feed.Load(ctx)
	if err != nil {
		obs.Logger.Error("feed_load_failed", "run_id", report.RunID, "error", err)
		return report, err
	}

	products, rejections := normalize.Batch(raws)
	for _, rej := range rejections {
		obs.Logger.Warn("record_rejected", "run_id", report.RunID, "sku", rej.SKU, "reason", string(rej.Reason))
	}
	report.Rejections = rejections
	report.SkippedInvalid = len(rejections)

	var mu sync.Mutex
	fail := func(sku string) {
		mu.Lock()
		report.Failed++
		report.FailedSKUs = append(report.FailedSKUs, sku)
		mu.Unlock()
	}

	// Delta detection runs sequentially in input order; dispatch of the
	// changed subset is handed to the pool below.
	var changed []job
	for _, p := range products {
		fp, err := fingerprint.Hash(p)
		if err != nil {
			obs.Logger.Error("fingerprint_failed", "run_id", report.RunID, "sku", p.SKU, "error", err)
			fail(p.SKU)
			continue
		}
		rec, err := s.store.Get(ctx, p.SKU)
		switch {
		case errors.Is(err, state.ErrNotFound):
			changed = append(changed, job{product: p, fp: fp, isNew: true})
		case err != nil:
			obs.Logger.Error("state_read_failed", "run_id", report.RunID, "sku", p.SKU, "error", err)
			fail(p.SKU)
		case rec.LastFingerprint == fp:
			mu.Lock()
			report.SkippedUnchanged++
			mu.Unlock()
			obs.Logger.Debug("product_unchanged", "run_id", report.RunID, "sku", p.SKU)
		default:
			changed = append(changed, job{product: p, fp: fp, isNew: false})
		}
	}

	jobs := make(chan job)
	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				s.process(ctx, j, &report, &mu, fail)
			}
		}()
	}

	// Cancellation stops submission between dispatches; workers already
	// holding a job let it complete or spend its retry budget.
submit:
	for _, j := range changed {
		select {
		case <-ctx.Done():
			obs.Logger.Warn("sync_aborted", "run_id", report.RunID, "reason", ctx.Err().Error())
			break submit
		case jobs <- j:
		}
	}
	close(jobs)
	wg.Wait()

	report.FinishedAt = s.now().UTC()
	report.Status = model.RunCompleted
	if report.Failed > 0 {
		report.Status = model.RunCompletedWithErrors
	}
	obs.Logger.Info("sync_completed",
		"run_id", report.RunID,
		"status", report.Status,
		"sent", report.Sent,
		"skipped_unchanged", report.SkippedUnchanged,
		"skipped_invalid", report.SkippedInvalid,
		"failed", report.Failed,
	)
	return report, nil
}

// process dispatches one changed product and, on success, persists the new
// fingerprint. On permanent dispatch failure the sync state is left
// untouched so the next run treats the SKU as changed.
func (s *Syncer) process(ctx context.Context, j job, report *model.RunReport, mu *sync.Mutex, fail func(string)) {
	// An accepted job runs to completion even if the run is cancelled.
	sendCtx := context.WithoutCancel(ctx)
	if err := s.dispatcher.Send(sendCtx, j.product, j.isNew); err != nil {
		obs.Logger.Error("dispatch_failed", "run_id", report.RunID, "sku", j.product.SKU, "error", err)
		fail(j.product.SKU)
		return
	}

	rec := model.SyncStateRecord{
		SKU:             j.product.SKU,
		LastFingerprint: j.fp,
		LastSyncedAt:    s.now().UTC(),
		LastStatus:      model.StatusSuccess,
		SyncedAsNew:     j.isNew,
	}
	if err := s.store.Put(sendCtx, rec); err != nil {
		obs.Logger.Error("state_write_failed", "run_id", report.RunID, "sku", j.product.SKU, "error", err)
		fail(j.product.SKU)
		return
	}
	mu.Lock()
	report.Sent++
	mu.Unlock()
	action := "updated"
	if j.isNew {
		action = "created"
	}
	obs.Logger.Info("product_synced", "run_id", report.RunID, "sku", j.product.SKU, "action", action)
}
