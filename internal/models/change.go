package models

// ProductUpdate describes a re-observed product whose compared fields changed.
type ProductUpdate struct {
	Product       Product
	Previous      Product
	ChangedFields []string
	PriceChanged  bool
}

// ChangeSet is the result of diffing one store's snapshot against its
// persisted products. Added, Updated and Removed are disjoint.
type ChangeSet struct {
	StoreID   string
	Added     []Product
	Updated   []ProductUpdate
	Removed   []Product
	Unchanged []Product
}

// Empty reports whether the change set carries no added, updated or removed products.
func (c ChangeSet) Empty() bool {
	return len(c.Added) == 0 && len(c.Updated) == 0 && len(c.Removed) == 0
}

// EventKind identifies the type of a notification event.
type EventKind string

const (
	EventAdded        EventKind = "added"
	EventRemoved      EventKind = "removed"
	EventPriceChanged EventKind = "priceChanged"
)

// NotificationEvent is a single change routed to subscribers. Never persisted.
type NotificationEvent struct {
	Kind      EventKind
	StoreID   string
	StoreName string
	Product   Product
	Previous  *Product // set for price changes
}

// Message is the channel-agnostic content of one notification.
type Message struct {
	Title string
	Body  string
}
