package models

import (
	"errors"
	"time"
)

// ErrInvalidProduct is returned when a catalog offer cannot become a Product.
var ErrInvalidProduct = errors.New("invalid product")

// Price holds the offer price. Original and Discount are nil when the
// catalog reports no reference price.
type Price struct {
	Current  float64  `firestore:"current" validate:"gte=0"`
	Original *float64 `firestore:"original,omitempty" validate:"omitempty,gte=0"`
	Currency string   `firestore:"currency" validate:"required"`
	Discount *int     `firestore:"discount,omitempty"`
}

// Product is one purchasable offer of a catalog item in one store.
type Product struct {
	ID             string    `firestore:"id" validate:"required"` // storeId-offerId
	StoreID        string    `firestore:"storeId" validate:"required"`
	OfferID        string    `firestore:"offerId" validate:"required"`
	ArticleNumbers []string  `firestore:"articleNumbers"`
	Name           string    `firestore:"name" validate:"required"`
	Description    string    `firestore:"description,omitempty"`
	Price          Price     `firestore:"price"`
	Condition      string    `firestore:"condition,omitempty"`
	Images         []string  `firestore:"images"`
	Availability   string    `firestore:"availability,omitempty"`
	URL            string    `firestore:"url,omitempty" validate:"omitempty,url"`
	IsInBox        bool      `firestore:"isInBox"`
	ReasonDiscount string    `firestore:"reasonDiscount,omitempty"`
	AdditionalInfo string    `firestore:"additionalInfo,omitempty"`
	FirstSeen      time.Time `firestore:"firstSeen"`
	LastSeen       time.Time `firestore:"lastSeen"`
}

// ProductDocID builds the compound id of an offer. It is stable across runs
// as long as the catalog keeps the offer id.
func ProductDocID(storeID, offerID string) string {
	return storeID + "-" + offerID
}

// Snapshot is the ordered set of products observed for one store in one run.
type Snapshot struct {
	StoreID    string
	ObservedAt time.Time
	Products   []Product
}
