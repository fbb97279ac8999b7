package crawler

import (
	"context"
	"time"
)

// Locator is a resolved, concrete source reference for one store's data on
// one date: a URL, an archive member, or both.
type Locator struct {
	// URL of the source document (per-store file, or the archive the
	// member lives in).
	URL string
	// Name identifies the store's file: the filename, archive member
	// name, or API-provided name that store metadata is derived from.
	Name string
}

// ChainCrawler is the per-retailer crawling contract. Implementations bind
// an index resolution strategy, a format adapter and a field mapping into
// one unit; the registry exposes them by chain code.
type ChainCrawler interface {
	// Chain returns the lowercase chain code, stable across runs.
	Chain() string

	// Crawl fetches the chain's full price snapshot for one date. A
	// returned error means index resolution failed and the whole chain
	// run is void; per-store failures are logged and skipped instead.
	Crawl(ctx context.Context, date time.Time) ([]Store, error)
}
