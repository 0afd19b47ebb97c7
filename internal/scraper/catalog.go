package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/net/publicsuffix"

	"github.com/pauljones0/circular-deals-bot/internal/config"
	"github.com/pauljones0/circular-deals-bot/internal/models"
	"github.com/pauljones0/circular-deals-bot/internal/util"
)

const (
	defaultPageSize  = 32
	maxResponseBytes = 16 << 20
)

// Options configures the catalog client.
type Options struct {
	CatalogURL   string
	CategoryURL  string
	LanguageCode string
	PageSize     int

	RequestDelayMin time.Duration
	RequestDelayMax time.Duration
	ThrottleWaitMin time.Duration
	ThrottleWaitMax time.Duration

	UserAgents            []string
	UserAgentRotateChance float64
	HTTPTimeout           time.Duration
}

// OptionsFromConfig maps the service configuration onto client options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		CatalogURL:            cfg.CatalogURL,
		CategoryURL:           cfg.CategoryURL,
		LanguageCode:          cfg.LanguageCode,
		PageSize:              cfg.PageSize,
		RequestDelayMin:       cfg.RequestDelayMin,
		RequestDelayMax:       cfg.RequestDelayMax,
		ThrottleWaitMin:       cfg.ThrottleWaitMin,
		ThrottleWaitMax:       cfg.ThrottleWaitMax,
		UserAgentRotateChance: cfg.UserAgentRotateChance,
		HTTPTimeout:           cfg.HTTPTimeout,
	}
}

// Client fetches store catalogs page by page. It is not safe for
// concurrent use; the sync cycle drives it sequentially.
type Client struct {
	httpClient *http.Client
	opts       Options
	agents     *userAgentPool
	sleep      func(ctx context.Context, d time.Duration) error
	now        func() time.Time
}

// New creates a catalog client from the service configuration.
func New(cfg *config.Config) *Client {
	return NewWithOptions(OptionsFromConfig(cfg))
}

// NewWithOptions creates a catalog client from explicit options.
func NewWithOptions(opts Options) *Client {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = 30 * time.Second
	}
	// Keep server-set cookies between pages like a browser session would.
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		slog.Warn("Failed to create cookie jar, continuing without cookies", "error", err)
		jar = nil
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: opts.HTTPTimeout,
			Jar:     jar,
		},
		opts:   opts,
		agents: newUserAgentPool(opts.UserAgents, opts.UserAgentRotateChance),
		sleep:  util.Sleep,
		now:    time.Now,
	}
}

// PageSize returns the number of items requested per page.
func (c *Client) PageSize() int {
	return c.opts.PageSize
}

type catalogPage struct {
	Content       []*RawItem `json:"content"`
	TotalElements int        `json:"totalElements"`
}

type rawCategory struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// FetchPages requests the store's catalog from page 0 until a page comes
// back empty or short. On failure the items fetched so far are returned
// together with the error and no further pages are requested.
func (c *Client) FetchPages(ctx context.Context, store models.Store) ([]*RawItem, error) {
	var items []*RawItem
	for page := 0; ; page++ {
		pageURL, err := c.pageURL(store.ID, page)
		if err != nil {
			return items, err
		}

		var resp catalogPage
		if err := c.getJSON(ctx, pageURL, &resp); err != nil {
			slog.Warn("Catalog ingestion aborted", "store", store.ID, "page", page, "fetched", len(items), "error", err)
			return items, fmt.Errorf("fetching page %d for store %s: %w", page, store.ID, err)
		}
		resolveLinks(pageURL, resp.Content)
		items = append(items, resp.Content...)
		slog.Debug("Fetched catalog page", "store", store.ID, "page", page, "items", len(resp.Content))

		// A short page is treated as the last one. When the total is an exact
		// multiple of the page size this costs one extra, empty request.
		if len(resp.Content) == 0 || len(resp.Content) < c.opts.PageSize {
			break
		}
	}
	slog.Info("Fetched catalog", "store", store.ID, "items", len(items))
	return items, nil
}

// resolveLinks makes relative image and offer links absolute against the
// page they were served from.
func resolveLinks(base string, items []*RawItem) {
	for _, item := range items {
		if item == nil {
			continue
		}
		item.HeroImage = util.ResolveURL(base, item.HeroImage)
		for i := range item.Media {
			item.Media[i].URL = util.ResolveURL(base, item.Media[i].URL)
		}
		for _, offer := range item.Offers {
			if offer != nil {
				offer.URL = util.ResolveURL(base, offer.URL)
			}
		}
	}
}

// FetchCatalog fetches and normalizes the full catalog of one store. On a
// fetch error the snapshot holds what was fetched before the failure.
func (c *Client) FetchCatalog(ctx context.Context, store models.Store) (models.Snapshot, error) {
	items, err := c.FetchPages(ctx, store)
	snap, _ := NewSnapshot(items, store, c.now())
	return snap, err
}

// FetchCategories returns the catalog categories reported for one store.
func (c *Client) FetchCategories(ctx context.Context, store models.Store) ([]models.Category, error) {
	u, err := url.Parse(strings.TrimSuffix(c.opts.CategoryURL, "/") + "/" + url.PathEscape(store.ID))
	if err != nil {
		return nil, fmt.Errorf("invalid category URL: %w", err)
	}
	q := u.Query()
	q.Set("languageCode", c.opts.LanguageCode)
	u.RawQuery = q.Encode()

	var raw []rawCategory
	if err := c.getJSON(ctx, u.String(), &raw); err != nil {
		return nil, fmt.Errorf("fetching categories for store %s: %w", store.ID, err)
	}

	now := c.now()
	categories := make([]models.Category, 0, len(raw))
	for _, rc := range raw {
		if strings.TrimSpace(rc.ID) == "" {
			slog.Warn("Skipping category without id", "store", store.ID, "name", rc.Name)
			continue
		}
		categories = append(categories, models.Category{
			ID:           models.CategoryDocID(store.ID, rc.ID),
			StoreID:      store.ID,
			CategoryID:   rc.ID,
			Name:         strings.TrimSpace(rc.Name),
			ProductCount: rc.Count,
			UpdatedAt:    now,
		})
	}
	return categories, nil
}

func (c *Client) pageURL(storeID string, page int) (string, error) {
	u, err := url.Parse(c.opts.CatalogURL)
	if err != nil {
		return "", fmt.Errorf("invalid catalog URL: %w", err)
	}
	q := u.Query()
	q.Set("languageCode", c.opts.LanguageCode)
	q.Set("size", strconv.Itoa(c.opts.PageSize))
	q.Set("storeIds", storeID)
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// getJSON performs one logical request. A 429 answer costs a single random
// wait in the throttle window and the request is sent again; there is no
// growth of the wait and no retry cap other than ctx.
func (c *Client) getJSON(ctx context.Context, urlStr string, dst any) error {
	for {
		err := c.attempt(ctx, urlStr, dst)
		if !errors.Is(err, ErrThrottled) {
			return err
		}
		wait := util.RandomDuration(c.opts.ThrottleWaitMin, c.opts.ThrottleWaitMax)
		slog.Warn("Catalog source throttled, backing off", "url", urlStr, "wait", wait)
		if err := c.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (c *Client) attempt(ctx context.Context, urlStr string, dst any) error {
	if err := c.sleep(ctx, util.RandomDuration(c.opts.RequestDelayMin, c.opts.RequestDelayMax)); err != nil {
		return err
	}
	if c.agents.MaybeRotate() {
		slog.Debug("Rotated client identity")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return fmt.Errorf("failed to create request for URL %s: %w", urlStr, err)
	}
	req.Header.Set("User-Agent", c.agents.Current())
	req.Header.Set("Accept", "application/json")
	if c.opts.LanguageCode != "" {
		req.Header.Set("Accept-Language", c.opts.LanguageCode)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch URL %s: %w", urlStr, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, res.Body)
		return ErrThrottled
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, res.Body)
		return &HTTPStatusError{StatusCode: res.StatusCode, URL: urlStr}
	}

	if err := json.NewDecoder(io.LimitReader(res.Body, maxResponseBytes)).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", urlStr, err)
	}
	return nil
}
