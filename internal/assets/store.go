// Package assets loads the immutable template PDF and background image the
// pipeline draws on, caching them after the first fetch.
package assets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	ferrors "github.com/a3tai/mcp-form-filler/internal/errors"
)

const defaultFetchTimeout = 30 * time.Second

// Store resolves asset references (paths relative to a root directory, or
// http(s) URLs) and keeps their bytes cached. Returned slices are shared
// and must be treated as read-only.
type Store struct {
	root    string
	maxSize int64
	client  *http.Client
	cache   *Cache
	group   singleflight.Group
}

// Option configures a Store
type Option func(*Store)

// WithHTTPClient sets the client used for URL assets
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) { s.client = c }
}

// WithCache replaces the default cache
func WithCache(c *Cache) Option {
	return func(s *Store) { s.cache = c }
}

// NewStore creates an asset store rooted at root
func NewStore(root string, maxSize int64, opts ...Option) *Store {
	s := &Store{
		root:    root,
		maxSize: maxSize,
		client:  &http.Client{Timeout: defaultFetchTimeout},
		cache:   NewCache(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the bytes for ref, fetching them on first use
func (s *Store) Load(ctx context.Context, ref string) ([]byte, error) {
	if ref == "" {
		return nil, ferrors.New(ferrors.ErrorTypeAssetLoad, "asset reference cannot be empty")
	}
	key := s.resolve(ref)

	if data, ok := s.cache.Get(key); ok {
		return data, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, loadError(ref, err)
	}

	// The shared fetch is not tied to whichever caller started it; each
	// caller still stops waiting when its own context ends.
	fetchCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		if data, ok := s.cache.Get(key); ok {
			return data, nil
		}
		data, err := s.fetch(fetchCtx, key)
		if err != nil {
			return nil, err
		}
		s.cache.Put(key, data)
		return data, nil
	})

	select {
	case <-ctx.Done():
		return nil, loadError(ref, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, loadError(ref, res.Err)
		}
		return res.Val.([]byte), nil
	}
}

func loadError(ref string, err error) error {
	return ferrors.Wrap(ferrors.ErrorTypeAssetLoad, fmt.Sprintf("failed to load asset %s", ref), err)
}

// Invalidate drops a cached asset so the next Load fetches it again
func (s *Store) Invalidate(ref string) {
	s.cache.Remove(s.resolve(ref))
}

// Stats returns cache statistics
func (s *Store) Stats() CacheStats {
	return s.cache.Stats()
}

func (s *Store) resolve(ref string) string {
	if isURL(ref) || filepath.IsAbs(ref) || s.root == "" {
		return ref
	}
	return filepath.Join(s.root, ref)
}

func (s *Store) fetch(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if isURL(key) {
		return s.fetchURL(ctx, key)
	}
	return s.readFile(key)
}

func (s *Store) readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}
	if s.maxSize > 0 && info.Size() > s.maxSize {
		return nil, fmt.Errorf("file too large: %d bytes (max: %d bytes)", info.Size(), s.maxSize)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("file is empty: %s", path)
	}
	return os.ReadFile(path)
}

func (s *Store) fetchURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var r io.Reader = resp.Body
	if s.maxSize > 0 {
		r = io.LimitReader(resp.Body, s.maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if s.maxSize > 0 && int64(len(data)) > s.maxSize {
		return nil, fmt.Errorf("asset too large (max: %d bytes)", s.maxSize)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("asset is empty")
	}
	return data, nil
}

func isURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}
