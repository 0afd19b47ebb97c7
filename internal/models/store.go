package models

import "time"

// Store is a storefront whose catalog is synchronized. Stores are never deleted.
type Store struct {
	ID        string    `firestore:"id" validate:"required"`
	Name      string    `firestore:"name" validate:"required"`
	City      string    `firestore:"city"`
	Region    string    `firestore:"region"`
	Country   string    `firestore:"country"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// SameLocation reports whether the descriptive fields of two stores match.
func (s Store) SameLocation(other Store) bool {
	return s.Name == other.Name &&
		s.City == other.City &&
		s.Region == other.Region &&
		s.Country == other.Country
}

// Category is a catalog category as reported for a single store.
type Category struct {
	ID           string    `firestore:"id"` // storeId-categoryId
	StoreID      string    `firestore:"storeId" validate:"required"`
	CategoryID   string    `firestore:"categoryId" validate:"required"`
	Name         string    `firestore:"name"`
	ProductCount int       `firestore:"productCount" validate:"gte=0"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

// CategoryDocID builds the compound document id of a category.
func CategoryDocID(storeID, categoryID string) string {
	return storeID + "-" + categoryID
}
