//go:build integration

package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauljones0/circular-deals-bot/internal/models"
)

// Run with: FIRESTORE_EMULATOR_HOST=localhost:8081 go test -tags integration ./internal/storage/
func newEmulatorClient(t *testing.T) *Client {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := New(ctx, "demo-circular-deals")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Ping(ctx))
	return c
}

func TestEmulator_PingEmptyProject(t *testing.T) {
	newEmulatorClient(t)

	// A project nobody has written to has an empty stores collection.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c, err := New(ctx, "demo-empty-"+uuid.NewString()[:8])
	require.NoError(t, err)
	defer c.Close()

	assert.NoError(t, c.Ping(ctx))
}

func TestEmulator_ProductLifecycle(t *testing.T) {
	c := newEmulatorClient(t)
	ctx := context.Background()
	storeID := "store-" + uuid.NewString()
	seen := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	p := models.Product{
		ID:        models.ProductDocID(storeID, "o1"),
		StoreID:   storeID,
		OfferID:   "o1",
		Name:      "Headphones",
		Price:     models.Price{Current: 49.5, Currency: "EUR"},
		Images:    []string{"https://img.example.com/1.jpg"},
		FirstSeen: seen,
		LastSeen:  seen,
	}
	require.NoError(t, c.SaveProduct(ctx, p))

	got, err := c.GetProductsByStore(ctx, storeID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, p.Name, got[0].Name)

	n, err := c.CountProductsByStore(ctx, storeID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	later := seen.Add(time.Hour)
	require.NoError(t, c.TouchProduct(ctx, p.ID, later))
	got, err = c.GetProductsByStore(ctx, storeID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].LastSeen.Equal(later))
	assert.True(t, got[0].FirstSeen.Equal(seen))
	assert.Equal(t, 49.5, got[0].Price.Current, "touch leaves other fields alone")

	require.NoError(t, c.DeleteProduct(ctx, p.ID))
	got, err = c.GetProductsByStore(ctx, storeID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEmulator_Subscriptions(t *testing.T) {
	c := newEmulatorClient(t)
	ctx := context.Background()
	storeID := "store-" + uuid.NewString()

	active := models.Subscription{RecipientID: uuid.NewString(), SubscribedStoreIDs: []string{storeID}, IsActive: true}
	inactive := models.Subscription{RecipientID: uuid.NewString(), SubscribedStoreIDs: []string{storeID}}
	other := models.Subscription{RecipientID: uuid.NewString(), SubscribedStoreIDs: []string{"elsewhere"}, IsActive: true}
	for _, s := range []models.Subscription{active, inactive, other} {
		require.NoError(t, c.SaveSubscription(ctx, s))
	}

	subs, err := c.GetSubscriptionsForStore(ctx, storeID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, active.RecipientID, subs[0].RecipientID)

	require.NoError(t, c.DeactivateSubscription(ctx, active.RecipientID))
	subs, err = c.GetSubscriptionsForStore(ctx, storeID)
	require.NoError(t, err)
	assert.Empty(t, subs)

	assert.NoError(t, c.DeactivateSubscription(ctx, "unknown-"+uuid.NewString()))
}

func TestEmulator_Stores(t *testing.T) {
	c := newEmulatorClient(t)
	ctx := context.Background()

	store := models.Store{ID: "store-" + uuid.NewString(), Name: "Harbour", City: "Rotterdam"}
	require.NoError(t, c.SaveStore(ctx, store))

	got, err := c.GetStore(ctx, store.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.SameLocation(store))

	missing, err := c.GetStore(ctx, "missing-"+uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, c.SaveCategory(ctx, models.Category{StoreID: store.ID, CategoryID: "10", Name: "Audio"}))
}
