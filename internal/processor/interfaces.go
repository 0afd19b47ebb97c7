package processor

import (
	"context"
	"time"

	"github.com/pauljones0/circular-deals-bot/internal/models"
	"github.com/pauljones0/circular-deals-bot/internal/notifier"
	"github.com/pauljones0/circular-deals-bot/internal/scraper"
)

// CatalogFetcher abstracts the catalog source.
type CatalogFetcher interface {
	FetchPages(ctx context.Context, store models.Store) ([]*scraper.RawItem, error)
	FetchCategories(ctx context.Context, store models.Store) ([]models.Category, error)
}

// ProductStore abstracts the storage layer for catalog data.
type ProductStore interface {
	SaveCategory(ctx context.Context, category models.Category) error
	GetProductsByStore(ctx context.Context, storeID string) ([]models.Product, error)
	CountProductsByStore(ctx context.Context, storeID string) (int, error)
	SaveProduct(ctx context.Context, product models.Product) error
	DeleteProduct(ctx context.Context, id string) error
	TouchProduct(ctx context.Context, id string, lastSeen time.Time) error
}

// SubscriptionStore reads notification preferences.
type SubscriptionStore interface {
	GetSubscriptionsForStore(ctx context.Context, storeID string) ([]models.Subscription, error)
}

// Dispatcher abstracts the notification layer.
type Dispatcher interface {
	Reset()
	Dispatch(ctx context.Context, store models.Store, cs models.ChangeSet, subs []models.Subscription) notifier.DispatchResult
}

// StoreRepository persists the store list.
type StoreRepository interface {
	GetStore(ctx context.Context, id string) (*models.Store, error)
	GetAllStores(ctx context.Context) ([]models.Store, error)
	SaveStore(ctx context.Context, store models.Store) error
}

// StoreLocator discovers the current store list.
type StoreLocator interface {
	FetchStores(ctx context.Context) ([]models.Store, error)
}
