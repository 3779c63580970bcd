// Package fetcher downloads raw documents from source pages with timeout,
// retry, and per-host politeness limits.
package fetcher

import (
	"context"
	"fmt"
)

// Fetcher retrieves a raw document from a URL.
type Fetcher interface {
	// Fetch downloads the URL and returns the raw response body. A failed
	// fetch returns a *FetchError; the caller records it and moves on, it
	// is never fatal to the enclosing batch.
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetchError is the typed failure for one URL: either retries were
// exhausted on a transient condition or the error was terminal outright.
type FetchError struct {
	URL        string
	StatusCode int
	Cause      error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }
