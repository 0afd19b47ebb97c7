package scraper

import (
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pauljones0/circular-deals-bot/internal/models"
	"github.com/pauljones0/circular-deals-bot/internal/util"
	"github.com/pauljones0/circular-deals-bot/internal/validator"
)

// RawItem is one catalog item as returned by the catalog source. A single
// item can carry several purchasable offers.
type RawItem struct {
	ID             string      `json:"id"`
	ArticleNumbers []string    `json:"articleNumbers"`
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	HeroImage      string      `json:"heroImage"`
	Media          []RawMedia  `json:"media"`
	Offers         []*RawOffer `json:"offers"`
}

type RawMedia struct {
	URL string `json:"url"`
}

type RawOffer struct {
	ID             string   `json:"id"`
	Price          *float64 `json:"price"`
	OriginalPrice  *float64 `json:"originalPrice"`
	Currency       string   `json:"currency"`
	Condition      string   `json:"productConditionTitle"`
	IsInBox        bool     `json:"isInBox"`
	ReasonDiscount string   `json:"reasonDiscount"`
	AdditionalInfo string   `json:"additionalInfo"`
	Availability   string   `json:"availability"`
	URL            string   `json:"url"`
}

var productValidator = validator.New()

// NewSnapshot normalizes raw items into the snapshot of one store observed
// at observedAt. The second result counts skipped entries.
func NewSnapshot(items []*RawItem, store models.Store, observedAt time.Time) (models.Snapshot, int) {
	products, skipped := Normalize(items, store, observedAt)
	return models.Snapshot{StoreID: store.ID, ObservedAt: observedAt, Products: products}, skipped
}

// Normalize turns raw catalog items into products, one per offer.
// Malformed items and offers are skipped with a warning; the second return
// value is the number of skipped entries.
func Normalize(items []*RawItem, store models.Store, observedAt time.Time) ([]models.Product, int) {
	products := make([]models.Product, 0, len(items))
	skipped := 0

	for i, item := range items {
		switch {
		case item == nil:
			slog.Warn("Skipping empty catalog item", "store", store.ID, "index", i)
			skipped++
			continue
		case strings.TrimSpace(item.Title) == "":
			slog.Warn("Skipping catalog item without title", "store", store.ID, "item", item.ID)
			skipped++
			continue
		case len(item.Offers) == 0:
			slog.Warn("Skipping catalog item without offers", "store", store.ID, "item", item.ID, "title", item.Title)
			skipped++
			continue
		}

		images := itemImages(item)
		for _, offer := range item.Offers {
			if offer == nil || strings.TrimSpace(offer.ID) == "" || offer.Price == nil {
				slog.Warn("Skipping malformed offer", "store", store.ID, "item", item.ID, "title", item.Title)
				skipped++
				continue
			}

			p := buildProduct(item, offer, store, images, observedAt)
			if err := productValidator.ValidateStruct(p); err != nil {
				slog.Warn("Skipping invalid product", "store", store.ID, "id", p.ID, "error", err)
				skipped++
				continue
			}
			products = append(products, p)
		}
	}

	if skipped > 0 {
		slog.Info("Normalized catalog with skipped entries", "store", store.ID, "products", len(products), "skipped", skipped)
	}
	return products, skipped
}

func buildProduct(item *RawItem, offer *RawOffer, store models.Store, images []string, observedAt time.Time) models.Product {
	offerID := strings.TrimSpace(offer.ID)
	productURL := strings.TrimSpace(offer.URL)
	if productURL != "" {
		if normalized, err := util.NormalizeURL(productURL); err == nil {
			productURL = normalized
		}
	}

	return models.Product{
		ID:             models.ProductDocID(store.ID, offerID),
		StoreID:        store.ID,
		OfferID:        offerID,
		ArticleNumbers: append([]string(nil), item.ArticleNumbers...),
		Name:           strings.TrimSpace(item.Title),
		Description:    strings.TrimSpace(item.Description),
		Price: models.Price{
			Current:  *offer.Price,
			Original: offer.OriginalPrice,
			Currency: strings.TrimSpace(offer.Currency),
			Discount: discountPercent(*offer.Price, offer.OriginalPrice),
		},
		Condition:      offer.Condition,
		Images:         append([]string(nil), images...),
		Availability:   offer.Availability,
		URL:            productURL,
		IsInBox:        offer.IsInBox,
		ReasonDiscount: offer.ReasonDiscount,
		AdditionalInfo: offer.AdditionalInfo,
		FirstSeen:      observedAt,
		LastSeen:       observedAt,
	}
}

// discountPercent returns round((original - current) / original * 100), or
// nil when there is no usable original price. Halves round away from zero,
// so a 2.5% markup is -3. Negative values are kept; renderers hide them.
func discountPercent(current float64, original *float64) *int {
	if original == nil || *original <= 0 {
		return nil
	}
	orig := decimal.NewFromFloat(*original)
	pct := orig.Sub(decimal.NewFromFloat(current)).
		Div(orig).
		Mul(decimal.NewFromInt(100)).
		Round(0)
	v := int(pct.IntPart())
	return &v
}

// itemImages prefers the media gallery, then the hero image.
func itemImages(item *RawItem) []string {
	images := make([]string, 0, len(item.Media))
	for _, m := range item.Media {
		if u := strings.TrimSpace(m.URL); u != "" {
			images = append(images, u)
		}
	}
	if len(images) == 0 {
		if hero := strings.TrimSpace(item.HeroImage); hero != "" {
			images = append(images, hero)
		}
	}
	return images
}
