package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const storeListHTML = `<html><body><ul>
<li class="store-list__item" data-store-id="101">
  <span class="store-list__name">Central   Station</span>
  <span class="store-list__city">Amsterdam</span>
  <span class="store-list__region">Noord-Holland</span>
  <span class="store-list__country">NL</span>
</li>
<li class="store-list__item store-list__item--closed" data-store-id="102">
  <span class="store-list__name">Closed Store</span>
</li>
<li class="store-list__item" data-store-id="">
  <span class="store-list__name">No Id</span>
</li>
<li class="store-list__item" data-store-id="103">
  <span class="store-list__name">Harbour</span>
  <span class="store-list__city">Rotterdam</span>
</li>
<li class="store-list__item" data-store-id="101">
  <span class="store-list__name">Duplicate</span>
</li>
</ul></body></html>`

func TestStoreLocator_FetchStores(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, storeListHTML)
	}))
	defer srv.Close()

	loc := NewStoreLocator(srv.URL, DefaultSelectors(), time.Second)
	stores, err := loc.FetchStores(context.Background())
	require.NoError(t, err)
	require.Len(t, stores, 2)

	assert.Equal(t, "101", stores[0].ID)
	assert.Equal(t, "Central Station", stores[0].Name)
	assert.Equal(t, "Amsterdam", stores[0].City)
	assert.Equal(t, "Noord-Holland", stores[0].Region)
	assert.Equal(t, "NL", stores[0].Country)
	assert.False(t, stores[0].UpdatedAt.IsZero())

	assert.Equal(t, "103", stores[1].ID)
	assert.Empty(t, stores[1].Country)
}

func TestStoreLocator_PageChanged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><p>Access denied</p></body></html>")
	}))
	defer srv.Close()

	_, err := NewStoreLocator(srv.URL, DefaultSelectors(), time.Second).FetchStores(context.Background())
	assert.Error(t, err)
}

func TestStoreLocator_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewStoreLocator(srv.URL, DefaultSelectors(), time.Second).FetchStores(context.Background())
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
}

func TestStoreLocator_RejectsScheme(t *testing.T) {
	_, err := NewStoreLocator("file:///etc/passwd", DefaultSelectors(), time.Second).FetchStores(context.Background())
	assert.Error(t, err)
}

func TestLoadSelectorsFromBytes(t *testing.T) {
	_, err := LoadSelectorsFromBytes([]byte(`{"store_list":{"item":"li"}}`))
	assert.Error(t, err, "incomplete config is rejected")

	_, err = LoadSelectorsFromBytes([]byte(`not json`))
	assert.Error(t, err)

	sel, err := LoadSelectorsFromBytes([]byte(`{"store_list":{"item":"div.shop","id_attr":"data-id","name":"h2"}}`))
	require.NoError(t, err)
	assert.Equal(t, "div.shop", sel.StoreList.Item)
}

func TestLoadConfig(t *testing.T) {
	t.Run("embedded matches defaults", func(t *testing.T) {
		t.Setenv("SELECTORS_CONFIG_PATH", "")
		assert.Equal(t, DefaultSelectors(), LoadConfig())
	})

	t.Run("external file wins", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "selectors.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"store_list":{"item":"div.shop","id_attr":"data-id","name":"h2"}}`), 0o600))
		t.Setenv("SELECTORS_CONFIG_PATH", path)
		assert.Equal(t, "div.shop", LoadConfig().StoreList.Item)
	})

	t.Run("missing external file falls back", func(t *testing.T) {
		t.Setenv("SELECTORS_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.json"))
		assert.Equal(t, DefaultSelectors(), LoadConfig())
	})
}
