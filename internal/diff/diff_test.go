package diff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauljones0/circular-deals-bot/internal/models"
)

var (
	t0 = time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	t1 = t0.Add(24 * time.Hour)
	t2 = t1.Add(24 * time.Hour)
)

func product(id string, price float64, seen time.Time) models.Product {
	return models.Product{
		ID:        id,
		StoreID:   "1",
		OfferID:   id[2:],
		Name:      "Product " + id,
		Price:     models.Price{Current: price, Currency: "EUR"},
		FirstSeen: seen,
		LastSeen:  seen,
	}
}

func snapshot(at time.Time, products ...models.Product) models.Snapshot {
	return models.Snapshot{StoreID: "1", ObservedAt: at, Products: products}
}

func ids(products []models.Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.ID)
	}
	return out
}

func TestDiff_AddedAndRemoved(t *testing.T) {
	persisted := []models.Product{product("1-a", 10, t0), product("1-b", 5, t0)}
	snap := snapshot(t1, product("1-a", 10, t1), product("1-c", 7, t1))

	cs := Diff(persisted, snap)

	assert.Equal(t, "1", cs.StoreID)
	assert.Equal(t, []string{"1-c"}, ids(cs.Added))
	assert.Empty(t, cs.Updated)
	assert.Equal(t, []string{"1-b"}, ids(cs.Removed))
	require.Len(t, cs.Unchanged, 1)
	assert.Equal(t, t0, cs.Unchanged[0].FirstSeen)
	assert.Equal(t, t1, cs.Unchanged[0].LastSeen)
}

func TestDiff_PriceChange(t *testing.T) {
	persisted := []models.Product{product("1-a", 10, t0)}
	snap := snapshot(t1, product("1-a", 8, t1))

	cs := Diff(persisted, snap)

	assert.Empty(t, cs.Added)
	assert.Empty(t, cs.Removed)
	require.Len(t, cs.Updated, 1)
	u := cs.Updated[0]
	assert.Equal(t, "1-a", u.Product.ID)
	assert.True(t, u.PriceChanged)
	assert.Equal(t, []string{FieldPriceCurrent}, u.ChangedFields)
	assert.Equal(t, 10.0, u.Previous.Price.Current)
	assert.Equal(t, t0, u.Product.FirstSeen, "firstSeen is preserved")
	assert.Equal(t, t1, u.Product.LastSeen, "lastSeen is refreshed")
}

func TestDiff_NonPriceChange(t *testing.T) {
	prev := product("1-a", 10, t0)
	prev.Images = []string{"a.jpg"}
	next := product("1-a", 10, t1)
	next.Name = "Renamed"
	next.Availability = "SOLD_OUT"
	next.Condition = "Good"
	next.Images = []string{"b.jpg"}

	cs := Diff([]models.Product{prev}, snapshot(t1, next))
	require.Len(t, cs.Updated, 1)
	assert.False(t, cs.Updated[0].PriceChanged)
	assert.Equal(t, []string{FieldName, FieldAvailability, FieldCondition, FieldImages}, cs.Updated[0].ChangedFields)
}

func TestDiff_OriginalPrice(t *testing.T) {
	orig := 20.0
	prev := product("1-a", 10, t0)
	next := product("1-a", 10, t1)
	next.Price.Original = &orig

	cs := Diff([]models.Product{prev}, snapshot(t1, next))
	require.Len(t, cs.Updated, 1)
	assert.True(t, cs.Updated[0].PriceChanged)
	assert.Equal(t, []string{FieldPriceOriginal}, cs.Updated[0].ChangedFields)

	// Equal values behind different pointers are not a change.
	same := 20.0
	prev.Price.Original = &same
	cs = Diff([]models.Product{prev}, snapshot(t1, next))
	assert.True(t, cs.Empty())
}

func TestDiff_IgnoredFields(t *testing.T) {
	prev := product("1-a", 10, t0)
	next := product("1-a", 10, t1)
	next.Description = "new description"
	next.URL = "https://shop.example.com/p/1"
	next.Images = []string{}

	cs := Diff([]models.Product{prev}, snapshot(t1, next))
	assert.True(t, cs.Empty(), "description, url and nil vs empty images are not compared")
	assert.Len(t, cs.Unchanged, 1)
}

func TestDiff_DuplicateInSnapshot(t *testing.T) {
	first := product("1-a", 10, t1)
	last := product("1-a", 12, t1)

	cs := Diff(nil, snapshot(t1, first, product("1-b", 1, t1), last))
	require.Equal(t, []string{"1-a", "1-b"}, ids(cs.Added))
	assert.Equal(t, 12.0, cs.Added[0].Price.Current)
}

func TestDiff_FillsMissingTimestamps(t *testing.T) {
	p := product("1-a", 10, time.Time{})
	cs := Diff(nil, snapshot(t1, p))
	require.Len(t, cs.Added, 1)
	assert.Equal(t, t1, cs.Added[0].FirstSeen)
	assert.Equal(t, t1, cs.Added[0].LastSeen)
}

func TestDiff_Partition(t *testing.T) {
	persisted := []models.Product{
		product("1-a", 10, t0), product("1-b", 5, t0), product("1-c", 3, t0), product("1-d", 4, t0),
	}
	snap := snapshot(t1,
		product("1-a", 10, t1), product("1-b", 6, t1), product("1-e", 9, t1), product("1-f", 1, t1),
	)

	cs := Diff(persisted, snap)

	seen := map[string]string{}
	mark := func(kind string, list []string) {
		for _, id := range list {
			prev, dup := seen[id]
			assert.False(t, dup, "%s classified as both %s and %s", id, prev, kind)
			seen[id] = kind
		}
	}
	var updated []string
	for _, u := range cs.Updated {
		updated = append(updated, u.Product.ID)
	}
	mark("added", ids(cs.Added))
	mark("updated", updated)
	mark("removed", ids(cs.Removed))
	mark("unchanged", ids(cs.Unchanged))

	assert.Equal(t, []string{"1-e", "1-f"}, ids(cs.Added))
	assert.Equal(t, []string{"1-b"}, updated)
	assert.Equal(t, []string{"1-c", "1-d"}, ids(cs.Removed))
	assert.Len(t, seen, 6, "every id lands in exactly one bucket")
}

func TestApply_Idempotent(t *testing.T) {
	persisted := []models.Product{product("1-a", 10, t0), product("1-b", 5, t0), product("1-c", 3, t0)}
	snap := snapshot(t1, product("1-a", 9, t1), product("1-c", 3, t1), product("1-d", 2, t1))

	cs := Diff(persisted, snap)
	require.False(t, cs.Empty())

	state := Apply(persisted, cs)
	assert.Equal(t, []string{"1-a", "1-c", "1-d"}, ids(state))

	again := Diff(state, snap)
	assert.True(t, again.Empty())
	assert.Len(t, again.Unchanged, 3)
}

func TestApply_FirstSeenIsMonotonic(t *testing.T) {
	state := Apply(nil, Diff(nil, snapshot(t0, product("1-a", 10, t0))))

	for i, at := range []time.Time{t1, t2} {
		snap := snapshot(at, product("1-a", 10+float64(i), at))
		state = Apply(state, Diff(state, snap))

		require.Len(t, state, 1)
		assert.Equal(t, t0, state[0].FirstSeen)
		assert.Equal(t, at, state[0].LastSeen)
	}
}

func TestApply_DoesNotModifyInput(t *testing.T) {
	persisted := []models.Product{product("1-a", 10, t0)}
	cs := Diff(persisted, snapshot(t1, product("1-a", 8, t1)))
	_ = Apply(persisted, cs)

	assert.Equal(t, 10.0, persisted[0].Price.Current)
	assert.Equal(t, t0, persisted[0].LastSeen)
}
