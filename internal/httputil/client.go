package httputil

import (
	"net/http"
	"time"
)

// DefaultTimeout bounds a single feed or metadata request. Station feeds are
// a few hundred KB at most, so anything slower is treated as a failed fetch
// and left to the retry policy.
const DefaultTimeout = 30 * time.Second

// NewClient returns the HTTP client shared by the metadata loader and the
// feed fetcher.
func NewClient() *http.Client {
	return &http.Client{
		Timeout: DefaultTimeout,
	}
}
