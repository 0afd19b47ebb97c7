package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pauljones0/circular-deals-bot/internal/models"
)

// StoreLocator discovers the list of stores from the public store-locator page.
type StoreLocator struct {
	httpClient *http.Client
	pageURL    string
	selectors  SelectorConfig
	agents     *userAgentPool
	now        func() time.Time
}

// NewStoreLocator creates a locator for pageURL using the given selectors.
func NewStoreLocator(pageURL string, selectors SelectorConfig, timeout time.Duration) *StoreLocator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &StoreLocator{
		httpClient: &http.Client{Timeout: timeout},
		pageURL:    pageURL,
		selectors:  selectors,
		agents:     newUserAgentPool(nil, 0),
		now:        time.Now,
	}
}

// FetchStores downloads the locator page and extracts every open store.
// Entries without an id or a name are skipped.
func (l *StoreLocator) FetchStores(ctx context.Context) ([]models.Store, error) {
	doc, err := l.fetchHTMLContent(ctx)
	if err != nil {
		return nil, err
	}

	sel := l.selectors.StoreList
	items := doc.Find(sel.Item)
	if items.Length() == 0 {
		return nil, fmt.Errorf("no '%s' elements found on %s. Potential block or page structure change", sel.Item, l.pageURL)
	}

	now := l.now()
	seen := make(map[string]bool)
	var stores []models.Store
	items.Each(func(_ int, s *goquery.Selection) {
		if sel.Disabled != "" && s.Is(sel.Disabled) {
			return
		}
		id, _ := s.Attr(sel.IDAttr)
		id = strings.TrimSpace(id)
		name := selectionText(s, sel.Name)
		if id == "" || name == "" {
			slog.Warn("Skipping store entry with missing id or name", "id", id, "name", name)
			return
		}
		if seen[id] {
			return
		}
		seen[id] = true

		stores = append(stores, models.Store{
			ID:        id,
			Name:      name,
			City:      selectionText(s, sel.City),
			Region:    selectionText(s, sel.Region),
			Country:   selectionText(s, sel.Country),
			UpdatedAt: now,
		})
	})

	slog.Info("Discovered stores", "count", len(stores), "url", l.pageURL)
	return stores, nil
}

func selectionText(s *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.Join(strings.Fields(s.Find(selector).First().Text()), " ")
}

func (l *StoreLocator) fetchHTMLContent(ctx context.Context) (*goquery.Document, error) {
	parsedURL, err := url.Parse(l.pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL %s: %w", l.pageURL, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL scheme %s: only http and https allowed", parsedURL.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for URL %s: %w", l.pageURL, err)
	}
	req.Header.Set("User-Agent", l.agents.Current())

	res, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL %s: %w", l.pageURL, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, &HTTPStatusError{StatusCode: res.StatusCode, URL: l.pageURL}
	}

	return goquery.NewDocumentFromReader(res.Body)
}
