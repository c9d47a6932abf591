// Package source lists and downloads workflow definition files from a
// GitHub-style code hosting API and its raw-content mirror.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/sync/errgroup"
)

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// maxFileBytes caps a single raw download.
const maxFileBytes = 10 << 20

// RateLimitError is returned when the listing API reports an exhausted quota.
type RateLimitError struct {
	Reset time.Time
}

func (e *RateLimitError) Error() string {
	if e.Reset.IsZero() {
		return "repository API rate limit exceeded"
	}
	return fmt.Sprintf("repository API rate limit exceeded, retry after %s", e.Reset.UTC().Format(time.RFC3339))
}

// RetryAfter returns how long the caller should wait before retrying.
func (e *RateLimitError) RetryAfter(now time.Time) time.Duration {
	if e.Reset.Before(now) {
		return 0
	}
	return e.Reset.Sub(now)
}

// ListingError is returned for any other non-2xx listing response.
type ListingError struct {
	Status int
	Body   string
}

func (e *ListingError) Error() string {
	return fmt.Sprintf("repository listing returned HTTP %d: %s", e.Status, e.Body)
}

// TruncatedListingError is returned when the tree API cut the listing short.
// A partial tree is never reconciled.
type TruncatedListingError struct {
	Entries int
}

func (e *TruncatedListingError) Error() string {
	return fmt.Sprintf("repository tree listing is truncated after %d entries", e.Entries)
}

// Blob is one file in the repository tree.
type Blob struct {
	Path string `json:"path"`
	Type string `json:"type"`
	Size int64  `json:"size"`
	SHA  string `json:"sha"`
}

// File is a downloaded blob.
type File struct {
	Blob
	RawURL  string
	Content []byte
}

// Config describes the repository to crawl.
type Config struct {
	Owner      string
	Repo       string
	Branch     string
	Token      string
	APIBaseURL string
	RawBaseURL string
	BatchSize  int
	BatchDelay time.Duration
	Timeout    time.Duration
	Retries    uint
}

// Fetcher lists candidate workflow files and downloads their content.
type Fetcher struct {
	cfg    Config
	client *http.Client
	logger Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewFetcher creates a Fetcher. A zero BatchSize defaults to 10 and a zero
// Timeout to 30s.
func NewFetcher(cfg Config, logger Logger) *Fetcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	if cfg.Retries == 0 {
		cfg.Retries = 1
	}
	return &Fetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		sleep:  sleepCtx,
	}
}

// IsCandidate reports whether a tree entry should be downloaded: a blob whose
// path ends in .json and mentions neither "package" nor "manifest".
func IsCandidate(b Blob) bool {
	if b.Type != "blob" {
		return false
	}
	p := strings.ToLower(b.Path)
	if !strings.HasSuffix(p, ".json") {
		return false
	}
	return !strings.Contains(p, "package") && !strings.Contains(p, "manifest")
}

type treeResponse struct {
	SHA       string `json:"sha"`
	Tree      []Blob `json:"tree"`
	Truncated bool   `json:"truncated"`
}

// ListTree fetches the recursive tree of the configured branch and returns
// every entry, unfiltered. Any non-2xx response or a truncated tree fails the
// call; transport errors are retried.
func (f *Fetcher) ListTree(ctx context.Context) ([]Blob, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s?recursive=1",
		f.cfg.APIBaseURL, f.cfg.Owner, f.cfg.Repo, url.PathEscape(f.cfg.Branch))

	var tree treeResponse
	err := retry.Do(
		func() error {
			t, err := f.listOnce(ctx, endpoint)
			if err != nil {
				return err
			}
			tree = *t
			return nil
		},
		retry.Attempts(f.cfg.Retries),
		retry.DelayType(retry.BackOffDelay),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTransient),
		retry.OnRetry(func(n uint, err error) {
			f.logger.Warn("retrying repository listing", "attempt", n+1, "error", err)
		}),
		retry.Context(ctx),
	)
	if err != nil {
		return nil, err
	}
	if tree.Truncated {
		return nil, &TruncatedListingError{Entries: len(tree.Tree)}
	}
	return tree.Tree, nil
}

func (f *Fetcher) listOnce(ctx context.Context, endpoint string) (*treeResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if f.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.cfg.Token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list repository tree: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		if resp.Header.Get("X-RateLimit-Remaining") == "0" {
			return nil, &RateLimitError{Reset: parseReset(resp.Header.Get("X-RateLimit-Reset"))}
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &ListingError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var tree treeResponse
	if err := json.NewDecoder(resp.Body).Decode(&tree); err != nil {
		return nil, fmt.Errorf("parse repository tree: %w", err)
	}
	return &tree, nil
}

// isTransient limits retries to network-level failures; HTTP status errors
// are final.
func isTransient(err error) bool {
	var rl *RateLimitError
	var le *ListingError
	if errors.As(err, &rl) || errors.As(err, &le) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func parseReset(v string) time.Time {
	secs, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(secs, 0)
}

// Candidates lists the tree and keeps only candidate workflow files.
func (f *Fetcher) Candidates(ctx context.Context) (all int, candidates []Blob, err error) {
	tree, err := f.ListTree(ctx)
	if err != nil {
		return 0, nil, err
	}
	for _, b := range tree {
		if IsCandidate(b) {
			candidates = append(candidates, b)
		}
	}
	return len(tree), candidates, nil
}

// RawURL returns the raw-content URL for a repository path.
func (f *Fetcher) RawURL(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/%s/%s/%s/%s",
		f.cfg.RawBaseURL, f.cfg.Owner, f.cfg.Repo, url.PathEscape(f.cfg.Branch), strings.Join(segments, "/"))
}

// FetchRaw downloads a file from the raw-content mirror. The request is
// unauthenticated so it does not count against the listing API quota.
func (f *Fetcher) FetchRaw(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: HTTP %d", rawURL, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	return data, nil
}

// DownloadStats counts the outcome of Download.
type DownloadStats struct {
	Downloaded int
	Failed     int
	Errors     []string
}

// Download fetches blobs in batches of BatchSize. Files within a batch are
// downloaded concurrently; visit is then called sequentially, in input order,
// for every file that downloaded successfully. Batches are separated by
// BatchDelay. A failed download is logged and skipped. A non-nil error from
// visit or a cancelled context stops the run.
func (f *Fetcher) Download(ctx context.Context, blobs []Blob, visit func(File) error) (DownloadStats, error) {
	var stats DownloadStats
	size := f.cfg.BatchSize

	for start := 0; start < len(blobs); start += size {
		end := min(start+size, len(blobs))
		batch := blobs[start:end]

		files := make([]*File, len(batch))
		errs := make([]error, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(size)
		for i, b := range batch {
			g.Go(func() error {
				raw := f.RawURL(b.Path)
				data, err := f.FetchRaw(gctx, raw)
				if err != nil {
					errs[i] = err
					return nil
				}
				files[i] = &File{Blob: b, RawURL: raw, Content: data}
				return nil
			})
		}
		_ = g.Wait()
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		for i, file := range files {
			if file == nil {
				stats.Failed++
				stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", batch[i].Path, errs[i]))
				f.logger.Warn("skipping file after failed download", "path", batch[i].Path, "error", errs[i])
				continue
			}
			stats.Downloaded++
			if err := visit(*file); err != nil {
				return stats, err
			}
		}

		if end < len(blobs) && f.cfg.BatchDelay > 0 {
			f.logger.Debug("batch complete, pausing", "done", end, "total", len(blobs), "delay", f.cfg.BatchDelay)
			if err := f.sleep(ctx, f.cfg.BatchDelay); err != nil {
				return stats, err
			}
		}
	}
	return stats, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
