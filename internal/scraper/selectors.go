package scraper

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"
)

type SelectorConfig struct {
	StoreList StoreListSelectors `json:"store_list"`
}

type StoreListSelectors struct {
	Item     string `json:"item"`      // e.g., "li.store"
	IDAttr   string `json:"id_attr"`   // attribute on the item carrying the store id
	Name     string `json:"name"`
	City     string `json:"city"`
	Region   string `json:"region"`
	Country  string `json:"country"`
	Disabled string `json:"disabled"` // items matching this are skipped
}

// LoadSelectors loads the selector configuration from the specified JSON file.
func LoadSelectors(path string) (SelectorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SelectorConfig{}, fmt.Errorf("failed to read selector config file: %w", err)
	}

	return LoadSelectorsFromBytes(data)
}

// LoadSelectorsFromBytes parses selector configuration from raw JSON bytes.
func LoadSelectorsFromBytes(data []byte) (SelectorConfig, error) {
	var config SelectorConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return SelectorConfig{}, fmt.Errorf("failed to parse selector config JSON: %w", err)
	}
	if config.StoreList.Item == "" || config.StoreList.IDAttr == "" || config.StoreList.Name == "" {
		return SelectorConfig{}, fmt.Errorf("selector config is missing store_list item, id_attr or name")
	}

	return config, nil
}

// DefaultSelectors returns the configuration used when neither the embedded
// nor an external selectors.json can be loaded.
func DefaultSelectors() SelectorConfig {
	return SelectorConfig{
		StoreList: StoreListSelectors{
			Item:     "li.store-list__item",
			IDAttr:   "data-store-id",
			Name:     ".store-list__name",
			City:     ".store-list__city",
			Region:   ".store-list__region",
			Country:  ".store-list__country",
			Disabled: ".store-list__item--closed",
		},
	}
}
