package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pauljones0/circular-deals-bot/internal/models"
)

const (
	storesCollection        = "stores"
	categoriesCollection    = "categories"
	productsCollection      = "products"
	subscriptionsCollection = "subscriptions"
)

type Client struct {
	client        *firestore.Client
	stores        *Collection[models.Store]
	categories    *Collection[models.Category]
	products      *Collection[models.Product]
	subscriptions *Collection[models.Subscription]
	now           func() time.Time
}

func New(ctx context.Context, projectID string) (*Client, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	return &Client{
		client:        client,
		stores:        newCollection[models.Store](client, storesCollection),
		categories:    newCollection[models.Category](client, categoriesCollection),
		products:      newCollection[models.Product](client, productsCollection),
		subscriptions: newCollection[models.Subscription](client, subscriptionsCollection),
		now:           time.Now,
	}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Ping reads at most one store to verify connectivity and credentials. An
// empty collection is a successful ping.
func (c *Client) Ping(ctx context.Context) error {
	iter := c.stores.ref.Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("firestore ping failed: %w", err)
	}
	return nil
}

// GetStore returns the store with the given id, or nil if unknown.
func (c *Client) GetStore(ctx context.Context, id string) (*models.Store, error) {
	return c.stores.Get(ctx, id)
}

// GetAllStores returns every known store.
func (c *Client) GetAllStores(ctx context.Context) ([]models.Store, error) {
	return c.stores.GetAll(ctx)
}

func (c *Client) SaveStore(ctx context.Context, store models.Store) error {
	return c.stores.Save(ctx, store.ID, store)
}

func (c *Client) SaveCategory(ctx context.Context, category models.Category) error {
	if category.ID == "" {
		category.ID = models.CategoryDocID(category.StoreID, category.CategoryID)
	}
	return c.categories.Save(ctx, category.ID, category)
}

// GetProductsByStore returns the persisted products of one store.
func (c *Client) GetProductsByStore(ctx context.Context, storeID string) ([]models.Product, error) {
	return c.products.Query(ctx, "storeId", "==", storeID)
}

// CountProductsByStore returns the number of persisted products of one store.
func (c *Client) CountProductsByStore(ctx context.Context, storeID string) (int, error) {
	return c.products.Count(ctx, "storeId", storeID)
}

func (c *Client) SaveProduct(ctx context.Context, product models.Product) error {
	return c.products.Save(ctx, product.ID, product)
}

func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.products.Delete(ctx, id)
}

// TouchProduct refreshes only the lastSeen field of an unchanged product.
func (c *Client) TouchProduct(ctx context.Context, id string, lastSeen time.Time) error {
	return c.products.Update(ctx, id, []firestore.Update{
		{Path: "lastSeen", Value: lastSeen},
	})
}

// GetSubscriptionsForStore returns the active subscriptions that follow the
// given store.
func (c *Client) GetSubscriptionsForStore(ctx context.Context, storeID string) ([]models.Subscription, error) {
	subs, err := c.subscriptions.Query(ctx, "subscribedStoreIds", "array-contains", storeID)
	if err != nil {
		return nil, err
	}
	active := subs[:0]
	for _, s := range subs {
		if s.IsActive {
			active = append(active, s)
		}
	}
	return active, nil
}

func (c *Client) SaveSubscription(ctx context.Context, sub models.Subscription) error {
	return c.subscriptions.Save(ctx, sub.RecipientID, sub)
}

// DeactivateSubscription flips isActive off for a recipient that can no
// longer be reached. An unknown recipient is logged and ignored.
func (c *Client) DeactivateSubscription(ctx context.Context, recipientID string) error {
	err := c.subscriptions.Update(ctx, recipientID, []firestore.Update{
		{Path: "isActive", Value: false},
		{Path: "updatedAt", Value: c.now()},
	})
	if status.Code(err) == codes.NotFound {
		slog.Warn("Subscription to deactivate not found", "recipient", recipientID)
		return nil
	}
	return err
}
