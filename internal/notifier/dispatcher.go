package notifier

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pauljones0/circular-deals-bot/internal/models"
)

// SubscriptionStore persists recipient deactivation.
type SubscriptionStore interface {
	DeactivateSubscription(ctx context.Context, recipientID string) error
}

// DispatchResult counts the outcome of one Dispatch call.
type DispatchResult struct {
	Sent        int
	Failed      int
	Deactivated int
}

type recipientState struct {
	deactivated bool
	sent        int
	failed      int
}

// Dispatcher routes change events to subscribed recipients, one send at a
// time with a fixed delay between sends. It owns a registry of the
// recipients it has talked to during the current cycle; recipients that
// failed permanently are skipped until Reset.
type Dispatcher struct {
	sender  Sender
	subs    SubscriptionStore
	limiter *rate.Limiter

	mu       sync.Mutex
	registry map[string]*recipientState
}

// NewDispatcher creates a dispatcher that waits at least delay between two sends.
func NewDispatcher(sender Sender, subs SubscriptionStore, delay time.Duration) *Dispatcher {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Dispatcher{
		sender:   sender,
		subs:     subs,
		limiter:  rate.NewLimiter(limit, 1),
		registry: make(map[string]*recipientState),
	}
}

// Reset forgets everything recorded about recipients. Called at the start
// of every sync cycle.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.registry = make(map[string]*recipientState)
}

// Deactivated reports whether the recipient failed permanently in this cycle.
func (d *Dispatcher) Deactivated(recipientID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.registry[recipientID]
	return ok && st.deactivated
}

// Delivered returns how many sends to the recipient succeeded and failed
// in this cycle.
func (d *Dispatcher) Delivered(recipientID string) (sent, failed int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if st, ok := d.registry[recipientID]; ok {
		return st.sent, st.failed
	}
	return 0, 0
}

// Events derives the notification events of a change set. Updates without a
// price change produce no event.
func Events(store models.Store, cs models.ChangeSet) []models.NotificationEvent {
	events := make([]models.NotificationEvent, 0, len(cs.Added)+len(cs.Updated)+len(cs.Removed))
	for _, p := range cs.Added {
		events = append(events, models.NotificationEvent{Kind: models.EventAdded, StoreID: store.ID, StoreName: store.Name, Product: p})
	}
	for _, u := range cs.Updated {
		if !u.PriceChanged {
			continue
		}
		prev := u.Previous
		events = append(events, models.NotificationEvent{Kind: models.EventPriceChanged, StoreID: store.ID, StoreName: store.Name, Product: u.Product, Previous: &prev})
	}
	for _, p := range cs.Removed {
		events = append(events, models.NotificationEvent{Kind: models.EventRemoved, StoreID: store.ID, StoreName: store.Name, Product: p})
	}
	return events
}

// Dispatch sends every event of cs to every subscription that is active,
// follows the store and opted in to the event kind. Delivery failures never
// abort the batch; only a done ctx does.
func (d *Dispatcher) Dispatch(ctx context.Context, store models.Store, cs models.ChangeSet, subs []models.Subscription) DispatchResult {
	var res DispatchResult
	events := Events(store, cs)
	if len(events) == 0 || len(subs) == 0 {
		return res
	}

	for _, ev := range events {
		msg := RenderEvent(ev)
		for _, sub := range subs {
			if !sub.IsActive || !sub.SubscribedTo(store.ID) || !sub.Wants(ev.Kind) {
				continue
			}
			if d.Deactivated(sub.RecipientID) {
				continue
			}

			if err := d.limiter.Wait(ctx); err != nil {
				slog.Warn("Notification dispatch interrupted", "store", store.ID, "error", err)
				return res
			}
			d.deliver(ctx, sub.RecipientID, ev, msg, &res)
		}
	}

	slog.Info("Notifications dispatched", "store", store.ID, "events", len(events),
		"sent", res.Sent, "failed", res.Failed, "deactivated", res.Deactivated)
	d.logRecipients(subs)
	return res
}

// logRecipients logs the cycle totals of every recipient contacted so far.
func (d *Dispatcher) logRecipients(subs []models.Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, sub := range subs {
		st, ok := d.registry[sub.RecipientID]
		if !ok {
			continue
		}
		slog.Debug("Recipient delivery totals", "recipient", sub.RecipientID,
			"sent", st.sent, "failed", st.failed, "deactivated", st.deactivated)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, recipientID string, ev models.NotificationEvent, msg models.Message, res *DispatchResult) {
	err := d.sender.Send(ctx, recipientID, msg)

	d.mu.Lock()
	st := d.registry[recipientID]
	if st == nil {
		st = &recipientState{}
		d.registry[recipientID] = st
	}
	if err == nil {
		st.sent++
	} else {
		st.failed++
	}
	d.mu.Unlock()

	if err == nil {
		res.Sent++
		return
	}
	res.Failed++

	if !errors.Is(err, ErrPermanentDelivery) {
		// Transient failures are dropped: no retry, no queue.
		slog.Warn("Notification delivery failed", "recipient", recipientID, "kind", ev.Kind, "product", ev.Product.ID, "error", err)
		return
	}

	slog.Warn("Recipient unreachable, deactivating subscription", "recipient", recipientID, "error", err)
	d.mu.Lock()
	st.deactivated = true
	d.mu.Unlock()
	res.Deactivated++
	if err := d.subs.DeactivateSubscription(ctx, recipientID); err != nil {
		slog.Error("Failed to deactivate subscription", "recipient", recipientID, "error", err)
	}
}
