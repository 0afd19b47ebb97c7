package models

import (
	"slices"
	"time"
)

// Subscription holds the notification preferences of one recipient.
type Subscription struct {
	RecipientID             string    `firestore:"recipientId"`
	SubscribedStoreIDs      []string  `firestore:"subscribedStoreIds"`
	NotifyOnNewProducts     bool      `firestore:"notifyOnNewProducts"`
	NotifyOnRemovedProducts bool      `firestore:"notifyOnRemovedProducts"`
	NotifyOnPriceChanges    bool      `firestore:"notifyOnPriceChanges"`
	IsActive                bool      `firestore:"isActive"`
	UpdatedAt               time.Time `firestore:"updatedAt"`
}

// SubscribedTo reports whether the recipient follows the given store.
func (s Subscription) SubscribedTo(storeID string) bool {
	return slices.Contains(s.SubscribedStoreIDs, storeID)
}

// Wants reports whether the recipient opted in to events of the given kind.
func (s Subscription) Wants(kind EventKind) bool {
	switch kind {
	case EventAdded:
		return s.NotifyOnNewProducts
	case EventRemoved:
		return s.NotifyOnRemovedProducts
	case EventPriceChanged:
		return s.NotifyOnPriceChanges
	}
	return false
}
