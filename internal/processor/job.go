package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/pauljones0/circular-deals-bot/internal/models"
)

// Job is one unit of scheduled work.
type Job interface {
	Initialize(ctx context.Context) error
	Run(ctx context.Context) error
	Cleanup() error
}

// Execute runs a job through its lifecycle. Cleanup always runs, even when
// Initialize or Run fail.
func Execute(ctx context.Context, job Job) error {
	if err := job.Initialize(ctx); err != nil {
		return errors.Join(fmt.Errorf("initializing job: %w", err), job.Cleanup())
	}
	runErr := job.Run(ctx)
	return errors.Join(runErr, job.Cleanup())
}

// SyncStores upserts the stores reported by the locator. Stores are never
// deleted; a store missing from the locator keeps its catalog.
func SyncStores(ctx context.Context, locator StoreLocator, repo StoreRepository) (added, updated int, err error) {
	found, err := locator.FetchStores(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("fetching store list: %w", err)
	}

	for _, s := range found {
		existing, err := repo.GetStore(ctx, s.ID)
		if err != nil {
			return added, updated, fmt.Errorf("loading store %s: %w", s.ID, err)
		}
		switch {
		case existing == nil:
			added++
		case !existing.SameLocation(s):
			updated++
		default:
			continue
		}
		if err := repo.SaveStore(ctx, s); err != nil {
			return added, updated, fmt.Errorf("saving store %s: %w", s.ID, err)
		}
	}

	slog.Info("Store list synced", "found", len(found), "added", added, "updated", updated)
	return added, updated, nil
}

// SyncJob is one scheduled catalog sync: refresh the store list, then run a
// cycle over the selected stores.
type SyncJob struct {
	locator      StoreLocator // optional
	stores       StoreRepository
	orchestrator *Orchestrator
	storeIDs     []string

	loaded        []models.Store
	storesAdded   int
	storesUpdated int
	summary       models.SyncSummary
}

// NewSyncJob creates a job. A nil locator skips store discovery; an empty
// storeIDs selects every known store.
func NewSyncJob(locator StoreLocator, stores StoreRepository, orchestrator *Orchestrator, storeIDs []string) *SyncJob {
	return &SyncJob{
		locator:      locator,
		stores:       stores,
		orchestrator: orchestrator,
		storeIDs:     storeIDs,
	}
}

// Initialize refreshes the store list and selects the stores to sync. A
// failing locator is logged and the persisted list is used instead.
func (j *SyncJob) Initialize(ctx context.Context) error {
	j.storesAdded, j.storesUpdated = 0, 0
	if j.locator != nil {
		added, updated, err := SyncStores(ctx, j.locator, j.stores)
		j.storesAdded, j.storesUpdated = added, updated
		if err != nil {
			slog.Warn("Store list sync failed, using persisted stores", "error", err)
		}
	}

	all, err := j.stores.GetAllStores(ctx)
	if err != nil {
		return fmt.Errorf("loading stores: %w", err)
	}
	j.loaded = selectStores(all, j.storeIDs, time.Now())
	if len(j.loaded) == 0 {
		slog.Warn("No stores to sync")
	}
	return nil
}

func (j *SyncJob) Run(ctx context.Context) error {
	summary, err := j.orchestrator.RunSyncCycle(ctx, j.loaded)
	summary.StoresAdded = j.storesAdded
	summary.StoresUpdated = j.storesUpdated
	j.summary = summary
	return err
}

func (j *SyncJob) Cleanup() error {
	slog.Info("Sync job finished", "run", j.summary.RunID, "stores", len(j.loaded),
		"storesAdded", j.summary.StoresAdded, "storesUpdated", j.summary.StoresUpdated)
	j.loaded = nil
	return nil
}

// Summary returns the counters of the last run.
func (j *SyncJob) Summary() models.SyncSummary {
	return j.summary
}

// selectStores keeps the configured ids in configured order. Ids that are
// not persisted yet are synced under their id so a fresh deployment works
// without a store locator.
func selectStores(all []models.Store, ids []string, now time.Time) []models.Store {
	if len(ids) == 0 {
		return all
	}
	out := make([]models.Store, 0, len(ids))
	for _, id := range ids {
		i := slices.IndexFunc(all, func(s models.Store) bool { return s.ID == id })
		if i < 0 {
			slog.Warn("Configured store is unknown, syncing by id", "store", id)
			out = append(out, models.Store{ID: id, Name: id, UpdatedAt: now})
			continue
		}
		out = append(out, all[i])
	}
	return out
}
