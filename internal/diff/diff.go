// Package diff compares a freshly observed catalog snapshot with the
// products persisted for the same store.
package diff

import (
	"log/slog"
	"slices"

	json "github.com/goccy/go-json"

	"github.com/pauljones0/circular-deals-bot/internal/models"
)

// Compared field names, as reported in ProductUpdate.ChangedFields.
const (
	FieldName          = "name"
	FieldPriceCurrent  = "price.current"
	FieldPriceOriginal = "price.original"
	FieldAvailability  = "availability"
	FieldCondition     = "condition"
	FieldImages        = "images"
)

// Diff classifies every product of snap against persisted. Added and Updated
// follow snapshot order, Removed follows persisted order. Updated and
// Unchanged products keep the persisted firstSeen and carry the snapshot's
// lastSeen.
func Diff(persisted []models.Product, snap models.Snapshot) models.ChangeSet {
	cs := models.ChangeSet{StoreID: snap.StoreID}

	existing := make(map[string]models.Product, len(persisted))
	for _, p := range persisted {
		existing[p.ID] = p
	}

	current := dedupe(snap)
	seen := make(map[string]bool, len(current))
	for _, p := range current {
		seen[p.ID] = true
		if p.LastSeen.IsZero() {
			p.LastSeen = snap.ObservedAt
		}

		prev, ok := existing[p.ID]
		if !ok {
			if p.FirstSeen.IsZero() {
				p.FirstSeen = p.LastSeen
			}
			cs.Added = append(cs.Added, p)
			continue
		}

		p.FirstSeen = prev.FirstSeen
		changed := changedFields(prev, p)
		if len(changed) == 0 {
			prev.LastSeen = p.LastSeen
			cs.Unchanged = append(cs.Unchanged, prev)
			continue
		}
		cs.Updated = append(cs.Updated, models.ProductUpdate{
			Product:       p,
			Previous:      prev,
			ChangedFields: changed,
			PriceChanged:  slices.Contains(changed, FieldPriceCurrent) || slices.Contains(changed, FieldPriceOriginal),
		})
	}

	for _, p := range persisted {
		if !seen[p.ID] {
			cs.Removed = append(cs.Removed, p)
		}
	}

	slog.Debug("Computed catalog diff", "store", snap.StoreID,
		"added", len(cs.Added), "updated", len(cs.Updated),
		"removed", len(cs.Removed), "unchanged", len(cs.Unchanged))
	return cs
}

// Apply returns the product state that results from writing cs over
// persisted. Diffing the same snapshot against the result is empty.
func Apply(persisted []models.Product, cs models.ChangeSet) []models.Product {
	replaced := make(map[string]models.Product, len(cs.Updated)+len(cs.Unchanged))
	for _, u := range cs.Updated {
		replaced[u.Product.ID] = u.Product
	}
	for _, p := range cs.Unchanged {
		replaced[p.ID] = p
	}
	removed := make(map[string]bool, len(cs.Removed))
	for _, p := range cs.Removed {
		removed[p.ID] = true
	}

	out := make([]models.Product, 0, len(persisted)+len(cs.Added))
	for _, p := range persisted {
		if removed[p.ID] {
			continue
		}
		if r, ok := replaced[p.ID]; ok {
			p = r
		}
		out = append(out, p)
	}
	return append(out, cs.Added...)
}

// dedupe collapses repeated product ids; the last occurrence wins but keeps
// the position of the first.
func dedupe(snap models.Snapshot) []models.Product {
	index := make(map[string]int, len(snap.Products))
	out := make([]models.Product, 0, len(snap.Products))
	for _, p := range snap.Products {
		if i, ok := index[p.ID]; ok {
			slog.Warn("Duplicate product in snapshot", "store", snap.StoreID, "id", p.ID)
			out[i] = p
			continue
		}
		index[p.ID] = len(out)
		out = append(out, p)
	}
	return out
}

func changedFields(prev, next models.Product) []string {
	var changed []string
	if prev.Name != next.Name {
		changed = append(changed, FieldName)
	}
	if prev.Price.Current != next.Price.Current {
		changed = append(changed, FieldPriceCurrent)
	}
	if !equalOptional(prev.Price.Original, next.Price.Original) {
		changed = append(changed, FieldPriceOriginal)
	}
	if prev.Availability != next.Availability {
		changed = append(changed, FieldAvailability)
	}
	if prev.Condition != next.Condition {
		changed = append(changed, FieldCondition)
	}
	if serializeImages(prev.Images) != serializeImages(next.Images) {
		changed = append(changed, FieldImages)
	}
	return changed
}

func equalOptional(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// serializeImages renders the image list the way it is stored, so that nil
// and empty lists compare equal.
func serializeImages(images []string) string {
	if len(images) == 0 {
		return "[]"
	}
	b, err := json.Marshal(images)
	if err != nil {
		return ""
	}
	return string(b)
}
