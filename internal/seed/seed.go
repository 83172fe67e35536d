// Package seed copies the sample dataset from a GitHub repository
// directory into object storage, where the data catalog and the query
// engine pick it up.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DefaultAPIBase is the GitHub REST API root.
const DefaultAPIBase = "https://api.github.com"

// Source names a directory in a GitHub repository.
type Source struct {
	Owner  string
	Repo   string
	Branch string
	Path   string
}

// URL returns the contents-API URL listing the directory.
func (s Source) URL(apiBase string) string {
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		strings.TrimSuffix(apiBase, "/"),
		url.PathEscape(s.Owner), url.PathEscape(s.Repo), strings.Trim(s.Path, "/"))
	if s.Branch != "" {
		u += "?ref=" + url.QueryEscape(s.Branch)
	}
	return u
}

// entry is one item of a contents-API directory listing.
type entry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"download_url"`
	Links       struct {
		Self string `json:"self"`
	} `json:"_links"`
}

// Uploader stores one object.
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte) error
	// Destination describes where keys under prefix end up.
	Destination(prefix string) string
}

// Result summarizes a finished copy.
type Result struct {
	Files   int      `json:"files"`
	Bytes   int64    `json:"bytes"`
	Keys    []string `json:"keys"`
	Message string   `json:"message"`
}

// Options configure a Copier.
type Options struct {
	APIBase     string
	Token       string
	Concurrency int
	MaxRetries  uint64
	HTTPClient  *http.Client
}

// Copier walks a repository directory and uploads every file below it.
type Copier struct {
	up   Uploader
	opts Options
}

// NewCopier creates a Copier.
func NewCopier(up Uploader, opts Options) *Copier {
	if opts.APIBase == "" {
		opts.APIBase = DefaultAPIBase
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Copier{up: up, opts: opts}
}

// Copy uploads every file below src to prefix/<relative path>. The first
// fetch or upload error aborts the whole copy.
func (c *Copier) Copy(ctx context.Context, src Source, prefix string) (*Result, error) {
	prefix = strings.Trim(prefix, "/")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)

	var (
		mu    sync.Mutex
		keys  []string
		bytes atomic.Int64
	)

	var walk func(listURL, keyPrefix string) error
	walk = func(listURL, keyPrefix string) error {
		var entries []entry
		if err := c.getJSON(gctx, listURL, &entries); err != nil {
			return fmt.Errorf("list %s: %w", listURL, err)
		}
		for _, e := range entries {
			key := joinKey(keyPrefix, e.Name)
			switch e.Type {
			case "file":
				g.Go(func() error {
					body, err := c.get(gctx, e.DownloadURL)
					if err != nil {
						return fmt.Errorf("download %s: %w", e.Path, err)
					}
					if err := c.up.Upload(gctx, key, body); err != nil {
						return fmt.Errorf("upload %s: %w", key, err)
					}
					bytes.Add(int64(len(body)))
					mu.Lock()
					keys = append(keys, key)
					mu.Unlock()
					log.Debug().Str("key", key).Int("bytes", len(body)).Msg("Uploaded sample file")
					return nil
				})
			case "dir":
				if err := walk(e.Links.Self, key); err != nil {
					return err
				}
			default:
				log.Debug().Str("path", e.Path).Str("type", e.Type).Msg("Skipping entry")
			}
		}
		return nil
	}

	walkErr := walk(src.URL(c.opts.APIBase), prefix)
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if walkErr != nil {
		return nil, walkErr
	}

	res := &Result{
		Files:   len(keys),
		Bytes:   bytes.Load(),
		Keys:    keys,
		Message: "Successfully copied files to " + c.up.Destination(prefix),
	}
	log.Info().Int("files", res.Files).Int64("bytes", res.Bytes).Msg(res.Message)
	return res, nil
}

func joinKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

func (c *Copier) getJSON(ctx context.Context, u string, v any) error {
	body, err := c.get(ctx, u)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode listing: %w", err)
	}
	return nil
}

// statusError is a non-2xx response.
type statusError struct {
	URL  string
	Code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.Code)
}

// get fetches u, retrying network errors, 429 and 5xx responses.
func (c *Copier) get(ctx context.Context, u string) ([]byte, error) {
	if u == "" {
		return nil, errors.New("empty url")
	}

	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		if c.opts.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.opts.Token)
		}
		req.Header.Set("User-Agent", "sqlchat-seed")

		resp, err := c.opts.HTTPClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return &statusError{URL: u, Code: resp.StatusCode}
		}
		if resp.StatusCode >= 300 {
			return backoff.Permanent(&statusError{URL: u, Code: resp.StatusCode})
		}
		body, err = io.ReadAll(resp.Body)
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	policy := backoff.WithContext(backoff.WithMaxRetries(b, c.opts.MaxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return body, nil
}
