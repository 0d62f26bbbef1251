package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	appLog "github.com/antonio-leblanc/working-hours/internal/log"
)

const maxParallelFetches = 4

// Source is one exported calendar: either a local .ics file or an HTTP
// subscription URL.
type Source struct {
	// ID is an internal identifier used in logs and raw events.
	ID string
	// Path is a local .ics file. It takes precedence over URL.
	Path string
	// URL is an ICS subscription endpoint.
	URL string
}

func (s Source) describe() string {
	if s.Path != "" {
		return s.Path
	}
	return redactURL(s.URL)
}

// FetchResult is the payload read for one source.
type FetchResult struct {
	Source Source
	Body   []byte
	// FromCache is set when the body came from the disk cache (304, or a
	// failed request with a cached copy available).
	FromCache bool
}

// Fetcher reads ICS payloads from disk or over HTTP. HTTP responses are
// kept in a disk cache and revalidated with ETag / Last-Modified.
type Fetcher struct {
	client *http.Client
	cache  diskCache
	logger *appLog.Logger
}

// NewFetcher creates a Fetcher whose HTTP cache lives under cacheDir.
func NewFetcher(cacheDir string, logger *appLog.Logger) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/ics-cache"
	}
	if logger == nil {
		logger = appLog.Default()
	}
	return &Fetcher{
		client: &http.Client{Timeout: 15 * time.Second},
		cache:  diskCache{root: cacheDir},
		logger: logger,
	}
}

// FetchAll reads every source, a few at a time. Results keep the order of
// sources and only include those that produced a body; failures are
// logged and returned separately.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) ([]FetchResult, []error) {
	slots := make([]*FetchResult, len(sources))
	errSlots := make([]error, len(sources))

	var g errgroup.Group
	g.SetLimit(maxParallelFetches)
	for i, src := range sources {
		g.Go(func() error {
			res, err := f.FetchOne(ctx, src)
			if err != nil {
				f.logger.Error("ics fetch failed", err, "id", src.ID, "source", src.describe())
				errSlots[i] = err
				return nil
			}
			slots[i] = &res
			return nil
		})
	}
	_ = g.Wait()

	results := make([]FetchResult, 0, len(sources))
	var errs []error
	for i := range sources {
		if errSlots[i] != nil {
			errs = append(errs, errSlots[i])
			continue
		}
		results = append(results, *slots[i])
	}
	return results, errs
}

// FetchOne reads a single source.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (FetchResult, error) {
	switch {
	case src.Path != "":
		body, err := os.ReadFile(src.Path)
		if err != nil {
			return FetchResult{}, fmt.Errorf("ics: read %s: %w", src.Path, err)
		}
		return FetchResult{Source: src, Body: body}, nil
	case src.URL != "":
		return f.fetchURL(ctx, src)
	default:
		return FetchResult{}, errors.New("ics: source has neither path nor URL")
	}
}

func (f *Fetcher) fetchURL(ctx context.Context, src Source) (FetchResult, error) {
	entry := f.cache.entry(src.URL)
	meta, body := entry.load()

	// A stale copy beats no data when the calendar server misbehaves.
	fallback := func(cause error) (FetchResult, error) {
		if len(body) == 0 {
			return FetchResult{}, fmt.Errorf("ics: fetch %s: %w", redactURL(src.URL), cause)
		}
		f.logger.Warn("ics fetch failed, using cached body", "id", src.ID, "url", redactURL(src.URL), "cause", cause.Error(), "cached_at", meta.UpdatedAt.Format(time.RFC3339))
		return FetchResult{Source: src, Body: body, FromCache: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("ics: build request: %w", err)
	}
	if len(body) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	f.logger.Debug("ics fetch start", "id", src.ID, "url", redactURL(src.URL))
	resp, err := f.client.Do(req)
	if err != nil {
		return fallback(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		if len(body) == 0 {
			return FetchResult{}, errors.New("ics: 304 Not Modified without a cached body")
		}
		f.logger.Info("ics fetch not modified", "id", src.ID, "url", redactURL(src.URL))
		return FetchResult{Source: src, Body: body, FromCache: true}, nil

	case http.StatusOK:
		fresh, err := io.ReadAll(resp.Body)
		if err != nil {
			return fallback(err)
		}
		err = entry.store(cacheMeta{
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			UpdatedAt:    time.Now().UTC(),
		}, fresh)
		if err != nil {
			f.logger.Warn("ics cache write failed", "id", src.ID, "error", err.Error())
		}
		f.logger.Info("ics fetch success", "id", src.ID, "url", redactURL(src.URL), "bytes", len(fresh))
		return FetchResult{Source: src, Body: fresh}, nil

	default:
		return fallback(errors.New(resp.Status))
	}
}

// cacheMeta is the revalidation state stored next to a cached body.
type cacheMeta struct {
	ETag         string    `yaml:"etag,omitempty"`
	LastModified string    `yaml:"last_modified,omitempty"`
	UpdatedAt    time.Time `yaml:"updated_at"`
}

// diskCache stores one directory per subscription URL.
type diskCache struct {
	root string
}

type cacheEntry struct {
	dir string
}

func (c diskCache) entry(u string) cacheEntry {
	sum := sha256.Sum256([]byte(u))
	return cacheEntry{dir: filepath.Join(c.root, hex.EncodeToString(sum[:8]))}
}

// load returns whatever is cached; a missing or corrupt entry yields zero values.
func (e cacheEntry) load() (cacheMeta, []byte) {
	var meta cacheMeta
	if data, err := os.ReadFile(filepath.Join(e.dir, "meta.yaml")); err == nil {
		if yaml.Unmarshal(data, &meta) != nil {
			meta = cacheMeta{}
		}
	}
	body, err := os.ReadFile(filepath.Join(e.dir, "body.ics"))
	if err != nil {
		return cacheMeta{}, nil
	}
	return meta, body
}

// store writes the body before the metadata so metadata never describes a
// missing body.
func (e cacheEntry) store(meta cacheMeta, body []byte) error {
	if err := os.MkdirAll(e.dir, 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(e.dir, "body.ics"), body, 0o600); err != nil {
		return err
	}
	data, err := yaml.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(e.dir, "meta.yaml"), data, 0o600)
}

// redactURL keeps only scheme and host; subscription URLs often embed tokens.
func redactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "ics://...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + "/...(redacted)"
}
