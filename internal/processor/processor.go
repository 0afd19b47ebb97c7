package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pauljones0/circular-deals-bot/internal/config"
	"github.com/pauljones0/circular-deals-bot/internal/diff"
	"github.com/pauljones0/circular-deals-bot/internal/models"
	"github.com/pauljones0/circular-deals-bot/internal/scraper"
	"github.com/pauljones0/circular-deals-bot/internal/util"
)

// Phase is a step of the per-store sync state machine.
type Phase string

const (
	PhaseFetching    Phase = "fetching"
	PhaseNormalizing Phase = "normalizing"
	PhaseDiffing     Phase = "diffing"
	PhasePersisting  Phase = "persisting"
	PhaseNotifying   Phase = "notifying"
	PhaseDone        Phase = "done"
)

// Options tunes a sync cycle.
type Options struct {
	CategoryDelay        time.Duration
	ProductDelay         time.Duration
	NotificationsEnabled bool
}

// OptionsFromConfig maps the service configuration onto orchestrator options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		CategoryDelay:        cfg.CategoryDelay,
		ProductDelay:         cfg.ProductDelay,
		NotificationsEnabled: cfg.NotificationsEnabled,
	}
}

// Orchestrator runs sync cycles over a list of stores, one store at a time.
// A failing store never stops the batch.
type Orchestrator struct {
	fetcher    CatalogFetcher
	products   ProductStore
	subs       SubscriptionStore
	dispatcher Dispatcher
	opts       Options

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func New(fetcher CatalogFetcher, products ProductStore, subs SubscriptionStore, d Dispatcher, opts Options) *Orchestrator {
	return &Orchestrator{
		fetcher:    fetcher,
		products:   products,
		subs:       subs,
		dispatcher: d,
		opts:       opts,
		sleep:      util.Sleep,
		now:        time.Now,
	}
}

// storeRun carries the state of one store through the phases.
type storeRun struct {
	store      models.Store
	phase      Phase
	items      []*scraper.RawItem
	categories []models.Category
	snapshot   models.Snapshot
	changes    models.ChangeSet
}

func (r *storeRun) enter(p Phase) {
	slog.Debug("Store sync phase", "store", r.store.ID, "from", r.phase, "to", p)
	r.phase = p
}

// RunSyncCycle synchronizes every store in order and returns the aggregated
// counters. The returned error lists failed stores; the summary is complete
// either way. Only a done ctx stops the cycle early.
func (o *Orchestrator) RunSyncCycle(ctx context.Context, stores []models.Store) (models.SyncSummary, error) {
	summary := models.SyncSummary{
		RunID:     uuid.NewString(),
		StartedAt: o.now(),
	}
	o.dispatcher.Reset()
	slog.Info("Sync cycle started", "run", summary.RunID, "stores", len(stores))

	var failures []error
	for _, store := range stores {
		if err := ctx.Err(); err != nil {
			failures = append(failures, fmt.Errorf("sync cycle interrupted: %w", err))
			break
		}

		summary.StoresProcessed++
		if err := o.syncStore(ctx, store, &summary); err != nil {
			summary.StoresFailed++
			slog.Error("Store sync failed", "run", summary.RunID, "store", store.ID, "error", err)
			failures = append(failures, err)
		}
	}

	summary.Duration = o.now().Sub(summary.StartedAt)
	slog.Info("Sync cycle finished",
		"run", summary.RunID,
		"stores", summary.StoresProcessed,
		"failed", summary.StoresFailed,
		"added", summary.Added,
		"updated", summary.Updated,
		"removed", summary.Removed,
		"products", summary.TotalProducts,
		"categories", summary.TotalCategories,
		"notificationsSent", summary.NotificationsSent,
		"notificationsFailed", summary.NotificationsFailed,
		"recipientsDeactivated", summary.RecipientsDeactivated,
		"duration", summary.Duration,
	)

	if len(failures) > 0 {
		return summary, fmt.Errorf("sync cycle finished with %d failed stores: %w", summary.StoresFailed, errors.Join(failures...))
	}
	return summary, nil
}

// syncStore drives one store from fetching to done. A panic in any phase is
// recovered and reported as a store failure.
func (o *Orchestrator) syncStore(ctx context.Context, store models.Store, summary *models.SyncSummary) (err error) {
	run := &storeRun{store: store}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("store %s panicked during %s: %v", store.ID, run.phase, r)
		}
		run.enter(PhaseDone)
	}()

	run.enter(PhaseFetching)
	if err := o.fetch(ctx, run); err != nil {
		return err
	}

	run.enter(PhaseNormalizing)
	snapshot, skipped := scraper.NewSnapshot(run.items, store, o.now())
	run.snapshot = snapshot
	slog.Info("Normalized catalog", "store", store.ID, "products", len(snapshot.Products), "skipped", skipped)

	run.enter(PhaseDiffing)
	persisted, err := o.products.GetProductsByStore(ctx, store.ID)
	if err != nil {
		return fmt.Errorf("loading persisted products for store %s: %w", store.ID, err)
	}
	run.changes = diff.Diff(persisted, run.snapshot)

	run.enter(PhasePersisting)
	if err := o.persist(ctx, run); err != nil {
		return err
	}
	summary.Added += len(run.changes.Added)
	summary.Updated += len(run.changes.Updated)
	summary.Removed += len(run.changes.Removed)
	summary.TotalProducts += catalogSize(run.changes)
	summary.TotalCategories += len(run.categories)

	if o.opts.NotificationsEnabled && !run.changes.Empty() {
		run.enter(PhaseNotifying)
		o.notify(ctx, run, summary)
	}

	slog.Info("Store synced", "store", store.ID,
		"added", len(run.changes.Added), "updated", len(run.changes.Updated),
		"removed", len(run.changes.Removed), "unchanged", len(run.changes.Unchanged))
	return nil
}

// fetch loads categories and raw pages. A partial catalog is discarded so
// that missing pages never show up as removals.
func (o *Orchestrator) fetch(ctx context.Context, run *storeRun) error {
	categories, err := o.fetcher.FetchCategories(ctx, run.store)
	if err != nil {
		return fmt.Errorf("fetching categories for store %s: %w", run.store.ID, err)
	}
	run.categories = categories

	items, err := o.fetcher.FetchPages(ctx, run.store)
	if err != nil {
		return fmt.Errorf("fetching catalog for store %s (%d items discarded): %w", run.store.ID, len(items), err)
	}
	run.items = items
	return nil
}

// persist writes one record at a time. Records already written when an
// error occurs stay; the next cycle converges.
func (o *Orchestrator) persist(ctx context.Context, run *storeRun) error {
	id := run.store.ID
	for _, c := range run.categories {
		if err := o.products.SaveCategory(ctx, c); err != nil {
			return fmt.Errorf("saving category %s: %w", c.ID, err)
		}
		if err := o.sleep(ctx, o.opts.CategoryDelay); err != nil {
			return err
		}
	}

	cs := run.changes
	for _, p := range cs.Added {
		if err := o.saveProduct(ctx, p); err != nil {
			return err
		}
	}
	for _, u := range cs.Updated {
		if err := o.saveProduct(ctx, u.Product); err != nil {
			return err
		}
	}
	for _, p := range cs.Removed {
		if err := o.products.DeleteProduct(ctx, p.ID); err != nil {
			return fmt.Errorf("deleting product %s: %w", p.ID, err)
		}
		if err := o.sleep(ctx, o.opts.ProductDelay); err != nil {
			return err
		}
	}
	for _, p := range cs.Unchanged {
		if err := o.products.TouchProduct(ctx, p.ID, p.LastSeen); err != nil {
			return fmt.Errorf("touching product %s: %w", p.ID, err)
		}
		if err := o.sleep(ctx, o.opts.ProductDelay); err != nil {
			return err
		}
	}

	if count, err := o.products.CountProductsByStore(ctx, id); err != nil {
		slog.Warn("Failed to count persisted products", "store", id, "error", err)
	} else if want := catalogSize(cs); count != want {
		slog.Warn("Persisted product count differs from snapshot", "store", id, "persisted", count, "snapshot", want)
	}
	return nil
}

// catalogSize is the number of distinct products the store holds after cs
// is applied.
func catalogSize(cs models.ChangeSet) int {
	return len(cs.Added) + len(cs.Updated) + len(cs.Unchanged)
}

func (o *Orchestrator) saveProduct(ctx context.Context, p models.Product) error {
	if err := o.products.SaveProduct(ctx, p); err != nil {
		return fmt.Errorf("saving product %s: %w", p.ID, err)
	}
	return o.sleep(ctx, o.opts.ProductDelay)
}

// notify never fails the store: catalog state is already persisted.
func (o *Orchestrator) notify(ctx context.Context, run *storeRun, summary *models.SyncSummary) {
	subs, err := o.subs.GetSubscriptionsForStore(ctx, run.store.ID)
	if err != nil {
		slog.Error("Failed to load subscriptions, skipping notifications", "store", run.store.ID, "error", err)
		return
	}
	res := o.dispatcher.Dispatch(ctx, run.store, run.changes, subs)
	summary.NotificationsSent += res.Sent
	summary.NotificationsFailed += res.Failed
	summary.RecipientsDeactivated += res.Deactivated
}
