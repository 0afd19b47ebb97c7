//go:build integration

package processor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/pauljones0/circular-deals-bot/internal/models"
	"github.com/pauljones0/circular-deals-bot/internal/notifier"
	"github.com/pauljones0/circular-deals-bot/internal/scraper"
)

// Integration test that wires up a real catalog client against a mock HTTP
// server, mock stores and a real dispatcher to test the full pipeline.

func TestIntegration_FullPipeline(t *testing.T) {
	// Two full pages for store 1, the second carrying an item without offers.
	pages := map[string][]string{
		"1": {
			`{"content":[
				{"id":"i1","title":"Headphones","heroImage":"https://img.example.com/h.jpg","offers":[
					{"id":"a","price":75,"originalPrice":100,"currency":"EUR","productConditionTitle":"Excellent"},
					{"id":"b","price":60,"originalPrice":100,"currency":"EUR","productConditionTitle":"Good"}]},
				{"id":"i2","title":"Laptop","media":[{"url":"https://img.example.com/l1.jpg"}],"offers":[
					{"id":"c","price":400,"currency":"EUR"}]}
			],"totalElements":4}`,
			`{"content":[
				{"id":"i3","title":"Broken item","offers":[]},
				{"id":"i4","title":"Tablet","offers":[{"id":"d","price":150,"currency":"EUR"}]}
			],"totalElements":4}`,
		},
	}

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		switch r.URL.Path {
		case "/offers":
			storePages := pages[r.URL.Query().Get("storeIds")]
			page, _ := strconv.Atoi(r.URL.Query().Get("page"))
			if page >= len(storePages) {
				fmt.Fprint(w, `{"content":[],"totalElements":4}`)
				return
			}
			fmt.Fprint(w, storePages[page])
		case "/categories/1":
			fmt.Fprint(w, `[{"id":"10","name":"Audio","count":2}]`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := scraper.NewWithOptions(scraper.Options{
		CatalogURL:   srv.URL + "/offers",
		CategoryURL:  srv.URL + "/categories",
		LanguageCode: "en",
		PageSize:     2,
	})

	products := newMockProductStore()
	subs := &mockSubscriptions{subs: []models.Subscription{subscriber("alice", true, "1")}}
	sender := newMockSender()
	orch := New(client, products, subs, notifier.NewDispatcher(sender, subs, 0), Options{NotificationsEnabled: true})

	store := models.Store{ID: "1", Name: "Central"}
	summary, err := orch.RunSyncCycle(context.Background(), []models.Store{store})
	if err != nil {
		t.Fatalf("RunSyncCycle() error = %v", err)
	}

	// 1 category request + 3 page requests (two full pages, one empty).
	if got := requests.Load(); got != 4 {
		t.Errorf("Expected 4 requests, got %d", got)
	}
	if summary.Added != 4 {
		t.Errorf("Expected 4 products added, got %d", summary.Added)
	}
	a, ok := products.products["1-a"]
	if !ok {
		t.Fatal("Expected product 1-a")
	}
	if a.Price.Discount == nil || *a.Price.Discount != 25 {
		t.Errorf("Expected 25%% discount on 1-a, got %v", a.Price.Discount)
	}
	if len(a.Images) != 1 || a.Images[0] != "https://img.example.com/h.jpg" {
		t.Errorf("Expected hero image fallback, got %v", a.Images)
	}
	if len(sender.sent["alice"]) != 4 {
		t.Errorf("Expected 4 notifications, got %d", len(sender.sent["alice"]))
	}

	// --- Second run with same data: nothing changes, nothing is sent ---
	summary, err = orch.RunSyncCycle(context.Background(), []models.Store{store})
	if err != nil {
		t.Fatalf("Second RunSyncCycle() error = %v", err)
	}
	if summary.Added+summary.Updated+summary.Removed != 0 {
		t.Errorf("Expected no changes on second run, got %+v", summary)
	}
	if len(sender.sent["alice"]) != 4 {
		t.Errorf("Expected no new notifications, got %d total", len(sender.sent["alice"]))
	}
}

// Verify that the mock types satisfy the interfaces.
var (
	_ CatalogFetcher    = (*mockFetcher)(nil)
	_ CatalogFetcher    = (*scraper.Client)(nil)
	_ ProductStore      = (*mockProductStore)(nil)
	_ SubscriptionStore = (*mockSubscriptions)(nil)
	_ StoreRepository   = (*mockStoreRepo)(nil)
	_ StoreLocator      = (*scraper.StoreLocator)(nil)
	_ Dispatcher        = (*notifier.Dispatcher)(nil)
)
