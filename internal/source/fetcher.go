package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-compat/internal/catalog"
	"github.com/nerrad567/gray-logic-compat/internal/catalogdb"
	"github.com/nerrad567/gray-logic-compat/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-compat/migrations"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultMaxBytes = 64 << 20
	userAgent       = "compatd/1"
)

// Kind classifies a source location.
type Kind string

// Source kinds.
const (
	KindHTTP   Kind = "http"
	KindFile   Kind = "file"
	KindSQLite Kind = "sqlite"
)

// Config configures a Fetcher. The zero value is usable.
type Config struct {
	// Timeout bounds one HTTP download. Default 30s.
	Timeout time.Duration

	// MaxBytes caps the size of a downloaded or read document. Default 64 MiB.
	MaxBytes int64

	// Client overrides the HTTP client; Timeout is ignored when set.
	Client *http.Client
}

// Fetcher reads catalogue documents from URLs, files and catalogue databases.
// It satisfies engine.Fetcher.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewFetcher creates a Fetcher.
func NewFetcher(cfg Config) *Fetcher {
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Fetcher{client: client, maxBytes: maxBytes}
}

// Classify reports the kind of location and the path or URL to read.
//
//	https://host/devices.json  -> KindHTTP, the URL unchanged
//	file:///srv/devices.json   -> KindFile, /srv/devices.json
//	./devices.json             -> KindFile, ./devices.json
//	sqlite:///var/lib/c.db     -> KindSQLite, /var/lib/c.db
//	sqlite://data/c.db         -> KindSQLite, data/c.db
func Classify(location string) (Kind, string, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", "", fmt.Errorf("%w: empty location", ErrUnsupportedLocation)
	}

	scheme, rest, found := strings.Cut(location, "://")
	if !found {
		return KindFile, location, nil
	}

	switch strings.ToLower(scheme) {
	case "http", "https":
		return KindHTTP, location, nil
	case "file":
		u, err := url.Parse(location)
		if err != nil {
			return "", "", fmt.Errorf("%w: %w", ErrUnsupportedLocation, err)
		}
		path := u.Path
		if u.Host != "" && u.Host != "localhost" {
			path = u.Host + path
		}
		return KindFile, path, nil
	case "sqlite":
		if rest == "" {
			return "", "", fmt.Errorf("%w: sqlite location without a path", ErrUnsupportedLocation)
		}
		return KindSQLite, rest, nil
	default:
		return "", "", fmt.Errorf("%w: scheme %q", ErrUnsupportedLocation, scheme)
	}
}

// Fetch returns the raw catalogue document at location.
//
// HTTP responses outside 2xx are errors. Catalogue databases are read and
// re-encoded in the canonical JSON shape, so every kind yields a document
// catalog.DecodePayload understands. Failures are not retried.
func (f *Fetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	kind, target, err := Classify(location)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindHTTP:
		return f.fetchHTTP(ctx, target)
	case KindSQLite:
		return f.fetchSQLite(ctx, target)
	default:
		return f.readFile(target)
	}
}

func (f *Fetcher) fetchHTTP(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // drain for connection reuse
		return nil, fmt.Errorf("%w: %s returned %s", ErrHTTPStatus, rawURL, resp.Status)
	}

	return f.readAll(resp.Body)
}

func (f *Fetcher) readFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalogue file: %w", err)
	}
	defer file.Close()
	return f.readAll(file)
}

func (f *Fetcher) readAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading catalogue: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.maxBytes)
	}
	return data, nil
}

func (f *Fetcher) fetchSQLite(ctx context.Context, path string) ([]byte, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("opening catalogue database: %w", err)
	}

	db, err := database.Open(ctx, database.Config{Path: path, BusyTimeout: 5})
	if err != nil {
		return nil, err
	}
	defer db.Close() //nolint:errcheck // read-only use

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return nil, fmt.Errorf("migrating catalogue database: %w", err)
	}

	payload, err := catalogdb.NewStore(db.DB).ReadPayload(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.EncodePayload(payload)
}
