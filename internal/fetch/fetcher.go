package fetch

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nkaeser/pilzwetter/internal/metrics"
	"github.com/nkaeser/pilzwetter/internal/store"
)

// maxAttempts caps the per-URL request count: one initial attempt plus four
// retries, all within the same batch.
const maxAttempts = 5

// Fetcher downloads raw feed payloads into a staging directory. Retries are
// local to each URL and cover 5xx responses and transport failures; any other
// failure drops that URL from the batch without aborting it.
type Fetcher struct {
	client  *http.Client
	store   *store.Store // optional fetch audit log, may be nil
	workers int
	debug   bool
}

func NewFetcher(client *http.Client, st *store.Store, workers int, debug bool) *Fetcher {
	if workers < 1 {
		workers = 1
	}
	return &Fetcher{client: client, store: st, workers: workers, debug: debug}
}

// FetchAll downloads every URL to <destDir>/<basename(url)> using a bounded
// worker pool. It returns the paths written, in input URL order so callers
// can rely on feed precedence, and the number of URLs that failed after
// exhausting retries. A per-URL failure is logged and skipped; only context
// cancellation aborts the batch.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string, destDir string) ([]string, int, error) {
	type result struct {
		path string
		err  error
	}
	jobs := make(chan int)
	results := make([]result, len(urls))

	var wg sync.WaitGroup
	for i := 0; i < f.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				p, err := f.fetchOne(ctx, urls[idx], destDir)
				results[idx] = result{path: p, err: err}
			}
		}()
	}

	for idx := range urls {
		select {
		case jobs <- idx:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	var written []string
	var failed int
	for i, r := range results {
		if r.path == "" && r.err == nil {
			continue // never attempted, context cancelled
		}
		if r.err != nil {
			failed++
			metrics.FeedDownloadsTotal.WithLabelValues("error").Inc()
			metrics.StationsDropped.Inc()
			log.Printf("fetch: %s: %v", urls[i], r.err)
			continue
		}
		metrics.FeedDownloadsTotal.WithLabelValues("ok").Inc()
		if f.debug {
			log.Printf("fetch: wrote %s", r.path)
		}
		written = append(written, r.path)
	}
	if err := ctx.Err(); err != nil {
		return written, failed, err
	}
	return written, failed, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, url, destDir string) (string, error) {
	var run *store.FetchRun
	if f.store != nil {
		var err error
		run, err = f.store.StartFetchRun(url)
		if err != nil {
			log.Printf("fetch: record run for %s: %v", url, err)
		}
	}

	attempts := 0
	var body []byte
	var status int
	operation := func() error {
		attempts++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		// Transport failures (resets, timeouts) are transient and share
		// the retry budget with 5xx responses.
		resp, err := f.client.Do(req)
		if err != nil {
			return fmt.Errorf("request: %w", err)
		}
		defer resp.Body.Close()
		status = resp.StatusCode

		if resp.StatusCode >= 500 {
			return fmt.Errorf("server error: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("status %d", resp.StatusCode))
		}
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxAttempts-1), ctx)
	err := backoff.RetryNotify(operation, bo, func(error, time.Duration) {
		metrics.FeedRetriesTotal.Inc()
	})

	if f.store != nil && run != nil {
		run.HTTPStatus = status
		run.Attempts = attempts
		run.ResponseSizeBytes = int64(len(body))
		run.Success = err == nil
		if err != nil {
			run.ErrorMessage = err.Error()
		}
		if cerr := f.store.CompleteFetchRun(run); cerr != nil {
			log.Printf("fetch: complete run for %s: %v", url, cerr)
		}
	}
	if err != nil {
		return "", err
	}

	dest := filepath.Join(destDir, path.Base(url))
	err = store.WriteFileAtomic(dest, func(w io.Writer) error {
		_, werr := w.Write(body)
		return werr
	})
	if err != nil {
		return "", fmt.Errorf("write %s: %w", dest, err)
	}

	if f.store != nil && run != nil {
		if _, aerr := f.store.ArchivePayload(run.ID, url, body); aerr != nil {
			log.Printf("fetch: archive payload for %s: %v", url, aerr)
		}
	}
	return dest, nil
}
