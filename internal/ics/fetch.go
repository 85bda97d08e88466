// Package ics fetches and parses upstream iCalendar feeds.
package ics

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	appLog "scoutcal/internal/log"
)

const userAgent = "scoutcal/1.0"

// calendarMarker must appear near the top of a feed body; an HTML
// response without it is a login page or an error page, not a calendar.
var calendarMarker = []byte("BEGIN:VCALENDAR")

// Source identifies a single upstream feed as configured for a view.
type Source struct {
	// Name is the source label, used in event titles and as dedup salt.
	Name string
	// Emoji is an optional short prefix for event titles.
	Emoji string
	// URL is the feed endpoint.
	URL string
}

// FetchResult is the outcome of fetching one source.
type FetchResult struct {
	Source    Source
	Body      []byte
	FromCache bool // body was reused from the disk cache
}

// cacheEntry holds HTTP cache metadata for a single feed URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher retrieves feeds with a bounded per-request timeout and a
// per-URL disk cache honoring ETag / Last-Modified. On network failure
// a previously cached body is used so that one flaky upstream does not
// drop its events from the run.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher creates a Fetcher. cacheDir may be empty to disable the
// disk cache entirely (every fetch is then unconditional).
func NewFetcher(cacheDir string, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		cacheDir: cacheDir,
	}
}

// FetchOne fetches a single source. The context bounds the request in
// addition to the client timeout; a timeout fails only this source.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, errors.New("source URL is empty")
	}

	var (
		meta       cacheEntry
		cachedBody []byte
		cachePath  string
	)
	if f.cacheDir != "" {
		cachePath = f.cachePathForURL(src.URL)
		if err := os.MkdirAll(cachePath, 0o700); err != nil {
			return FetchResult{}, err
		}
		meta, _ = f.loadCacheMeta(cachePath)
		cachedBody, _ = f.loadCacheBody(cachePath)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/calendar")
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	appLog.Debug("feed fetch start", "source", src.Name, "url", redactURL(src.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 {
			appLog.Error("feed fetch network error, using cached body", err, "source", src.Name, "url", redactURL(src.URL))
			return FetchResult{Source: src, Body: cachedBody, FromCache: true}, nil
		}
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return FetchResult{}, readErr
		}

		if err := checkCalendarBody(resp.Header.Get("Content-Type"), body); err != nil {
			if len(cachedBody) > 0 {
				appLog.Error("feed returned non-calendar content, using cached body", err, "source", src.Name, "url", redactURL(src.URL))
				return FetchResult{Source: src, Body: cachedBody, FromCache: true}, nil
			}
			return FetchResult{}, err
		}

		if cachePath != "" {
			newMeta := cacheEntry{
				URL:          src.URL,
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
			}
			if err := f.saveCache(cachePath, newMeta, body); err != nil {
				appLog.Error("feed cache save failed", err, "source", src.Name)
			}
		}

		appLog.Info("feed fetched", "source", src.Name, "url", redactURL(src.URL), "bytes", len(body))
		return FetchResult{Source: src, Body: body}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return FetchResult{}, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Info("feed not modified, using cache", "source", src.Name, "url", redactURL(src.URL))
		return FetchResult{Source: src, Body: cachedBody, FromCache: true}, nil

	default:
		if len(cachedBody) > 0 {
			appLog.Error("feed fetch non-OK, using cached body", errors.New(resp.Status), "source", src.Name, "status", resp.StatusCode)
			return FetchResult{Source: src, Body: cachedBody, FromCache: true}, nil
		}
		return FetchResult{}, fmt.Errorf("fetch %s: %s", redactURL(src.URL), resp.Status)
	}
}

// checkCalendarBody rejects responses that declare HTML and whose body
// head lacks the calendar-begin marker.
func checkCalendarBody(contentType string, body []byte) error {
	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		return nil
	}
	head := body
	if len(head) > 2048 {
		head = head[:2048]
	}
	if bytes.Contains(head, calendarMarker) {
		return nil
	}
	return errors.New("response is HTML, not an iCalendar feed")
}

func (f *Fetcher) cachePathForURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func (f *Fetcher) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (f *Fetcher) loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body.ics"))
}

func (f *Fetcher) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Write the body first so the metadata never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.ics"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL hides path and query of a feed URL for logging; private
// feed URLs routinely embed access tokens.
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "ics://...(redacted)"
	}

	j := strings.IndexByte(u[i+3:], '/')
	if j == -1 {
		return u + redactedSuffix
	}
	return u[:i+3+j] + redactedSuffix
}
