// Package catalog resolves symbolic artifact versions against a remotely
// hosted version catalog and downloads the resolved binaries.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	masterminds "github.com/Masterminds/semver/v3"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/trustedanalytics/platform-parent/src/ctxlog"
)

// Latest is the well-known catalog key for the newest release.
const Latest = "latest"

// catalogFile is fetched relative to the catalog base URL.
const catalogFile = "version.json"

// Entry is one catalog directory.
type Entry struct {
	Release int `json:"release"`
}

// Catalog maps catalog directory names to their entries.
type Catalog map[string]Entry

// Outcome records how a requested version was resolved.
type Outcome int

const (
	// ResolvedLatest means "latest" was requested.
	ResolvedLatest Outcome = iota
	// ResolvedRelease means a catalog entry matched the release number.
	ResolvedRelease
	// FellBackToLatest means nothing matched and latest was used.
	FellBackToLatest
)

func (o Outcome) String() string {
	switch o {
	case ResolvedRelease:
		return "release"
	case FellBackToLatest:
		return "fallback"
	default:
		return "latest"
	}
}

// Resolution is the catalog directory and release number a version maps to.
type Resolution struct {
	Dir       string
	Release   int
	Requested string
	Outcome   Outcome
}

// Client fetches catalogs and artifacts. One Client is shared by all
// workers; fetched catalogs are cached per URL.
type Client struct {
	http  *http.Client
	cache *lru.Cache[string, Catalog]
}

// NewClient creates a client with the given timeout in seconds and catalog
// cache size.
func NewClient(timeoutSecs, cacheSize int) (*Client, error) {
	if timeoutSecs <= 0 {
		timeoutSecs = 300
	}
	if cacheSize <= 0 {
		cacheSize = 16
	}
	cache, err := lru.New[string, Catalog](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("catalog: cache: %w", err)
	}
	return &Client{
		http:  &http.Client{Timeout: time.Duration(timeoutSecs) * time.Second},
		cache: cache,
	}, nil
}

// Fetch returns the catalog hosted at base, from cache when possible.
func (c *Client) Fetch(ctx context.Context, base string) (Catalog, error) {
	url := join(base, catalogFile)
	if cat, ok := c.cache.Get(url); ok {
		return cat, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog: GET %s: status %d", url, resp.StatusCode)
	}

	var cat Catalog
	if err := json.NewDecoder(resp.Body).Decode(&cat); err != nil {
		return nil, fmt.Errorf("catalog: decode %s: %w", url, err)
	}
	c.cache.Add(url, cat)
	return cat, nil
}

// Resolve maps version against the catalog at base. Unknown or non-numeric
// versions fall back to latest with a warning; only a failure to fetch the
// catalog is an error.
func (c *Client) Resolve(ctx context.Context, base, version string) (Resolution, error) {
	cat, err := c.Fetch(ctx, base)
	if err != nil {
		return Resolution{}, err
	}
	res := cat.Resolve(version)
	if res.Outcome == FellBackToLatest {
		ctxlog.FromContext(ctx).Warn("unknown catalog release, using latest", "requested", version, "release", res.Release)
	}
	return res, nil
}

// Resolve maps version to a catalog directory. Keys are scanned in sorted
// order so the first match is stable.
func (cat Catalog) Resolve(version string) Resolution {
	v := strings.TrimSpace(version)
	if v == "" || strings.EqualFold(v, Latest) {
		return Resolution{Dir: Latest, Release: cat[Latest].Release, Requested: version, Outcome: ResolvedLatest}
	}

	if want, err := masterminds.NewVersion(v); err == nil {
		keys := make([]string, 0, len(cat))
		for k := range cat {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			got, err := masterminds.NewVersion(strconv.Itoa(cat[k].Release))
			if err != nil {
				continue
			}
			if got.Equal(want) {
				return Resolution{Dir: k, Release: cat[k].Release, Requested: version, Outcome: ResolvedRelease}
			}
		}
	}

	return Resolution{Dir: Latest, Release: cat[Latest].Release, Requested: version, Outcome: FellBackToLatest}
}

// BinaryURL returns the download location of file inside a catalog directory.
func BinaryURL(base, dir, file string) string {
	return join(base, dir, "binaries", file)
}

// Download streams url into dest, creating parent directories. Any network,
// status or write failure is returned and dest is removed.
func (c *Client) Download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("catalog: create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("catalog: GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog: GET %s: status %d", url, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("catalog: creating %s: %w", filepath.Dir(dest), err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("catalog: saving %s: %w", dest, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(dest)
		return fmt.Errorf("catalog: saving %s: %w", dest, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dest)
		return fmt.Errorf("catalog: saving %s: %w", dest, err)
	}
	return nil
}

func join(base string, parts ...string) string {
	out := strings.TrimSuffix(base, "/")
	for _, p := range parts {
		out += "/" + strings.Trim(p, "/")
	}
	return out
}
