package scraper

import (
	"errors"
	"fmt"
)

// ErrThrottled is returned for HTTP 429 responses.
var ErrThrottled = errors.New("catalog source throttled the request")

// HTTPStatusError reports a non-2xx response from the catalog source.
type HTTPStatusError struct {
	StatusCode int
	URL        string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}
