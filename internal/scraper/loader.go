package scraper

import (
	"embed"
	"log/slog"
	"os"
)

//go:embed selectors.json
var embeddedSelectors embed.FS

// LoadConfig resolves the store-locator selectors. An external file named by
// SELECTORS_CONFIG_PATH wins over the embedded selectors.json, and the
// hardcoded defaults are the last resort.
func LoadConfig() SelectorConfig {
	if configPath := os.Getenv("SELECTORS_CONFIG_PATH"); configPath != "" {
		sel, err := LoadSelectors(configPath)
		if err == nil {
			slog.Info("Loaded selectors from external file", "path", configPath)
			return sel
		}
		slog.Warn("Failed to load external selectors, trying embedded config", "path", configPath, "error", err)
	}

	data, err := embeddedSelectors.ReadFile("selectors.json")
	if err == nil {
		sel, parseErr := LoadSelectorsFromBytes(data)
		if parseErr == nil {
			slog.Debug("Loaded selectors from embedded config")
			return sel
		}
		slog.Warn("Embedded selectors failed to parse, using defaults", "error", parseErr)
	}

	slog.Info("Using hardcoded default selectors")
	return DefaultSelectors()
}
