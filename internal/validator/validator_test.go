package validator

import (
	"testing"
	"time"

	"github.com/pauljones0/circular-deals-bot/internal/models"
)

func ptr[T any](v T) *T { return &v }

func TestValidator_ValidateStruct(t *testing.T) {
	v := New()

	valid := func() models.Product {
		return models.Product{
			ID:        "101-abc",
			StoreID:   "101",
			OfferID:   "abc",
			Name:      "KALLAX shelf",
			Price:     models.Price{Current: 25, Original: ptr(40.0), Currency: "EUR"},
			URL:       "https://example.com/offers/abc",
			FirstSeen: time.Now(),
			LastSeen:  time.Now(),
		}
	}

	tests := []struct {
		name    string
		mutate  func(p *models.Product)
		wantErr bool
	}{
		{name: "Valid Product", mutate: func(p *models.Product) {}},
		{name: "Missing Name", mutate: func(p *models.Product) { p.Name = "" }, wantErr: true},
		{name: "Missing Offer ID", mutate: func(p *models.Product) { p.OfferID = "" }, wantErr: true},
		{name: "Missing Currency", mutate: func(p *models.Product) { p.Price.Currency = "" }, wantErr: true},
		{name: "Negative Price", mutate: func(p *models.Product) { p.Price.Current = -1 }, wantErr: true},
		{name: "Negative Original Price", mutate: func(p *models.Product) { p.Price.Original = ptr(-3.0) }, wantErr: true},
		{name: "Invalid URL", mutate: func(p *models.Product) { p.URL = "invalid-url" }, wantErr: true},
		{name: "Empty URL allowed", mutate: func(p *models.Product) { p.URL = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.mutate(&p)
			if err := v.ValidateStruct(p); (err != nil) != tt.wantErr {
				t.Errorf("ValidateStruct() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidator_ValidateStore(t *testing.T) {
	v := New()
	if err := v.ValidateStruct(models.Store{ID: "101", Name: "Delft"}); err != nil {
		t.Errorf("ValidateStruct() unexpected error: %v", err)
	}
	if err := v.ValidateStruct(models.Store{Name: "No id"}); err == nil {
		t.Error("ValidateStruct() should reject a store without id")
	}
}
