package crawler

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"

	"github.com/vjekoslav/cijene-api/internal/fetch"
	"github.com/vjekoslav/cijene-api/logger"
)

// BaseCrawler provides the functionality shared by all chain crawlers:
// link extraction from HTML indices, date matching, filename/address
// helpers, the per-record parse loop and the per-store worker pool. Chain
// implementations embed it and declare their mapping tables.
type BaseCrawler struct {
	ChainCode string
	BaseURL   string
	Client    fetch.Client
	Mapping   Mapping
	Workers   int
	Log       *logger.Logger
}

func (c *BaseCrawler) Chain() string {
	return c.ChainCode
}

// ParseRows maps raw records into products. A record that fails mapping is
// dropped with a warning; the remaining records still parse.
func (c *BaseCrawler) ParseRows(rows []map[string]string) []Product {
	products := make([]Product, 0, len(rows))
	for _, row := range rows {
		product, err := c.Mapping.Product(row)
		if err != nil {
			c.Log.Warn().Err(err).Msg("Dropping unparseable product row")
			continue
		}
		products = append(products, *product)
	}
	return products
}

// SelectLinks extracts href values matching a CSS selector from an HTML
// index page, resolved against the page URL. Order follows the document;
// duplicate URLs keep their first occurrence, which also makes the
// first-match-wins tie-break for date-filtered lookups deterministic.
func (c *BaseCrawler) SelectLinks(html, selector, pageURL string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		c.Log.Warn().Err(err).Msg("Failed to parse index HTML")
		return nil
	}

	base, _ := url.Parse(pageURL)
	seen := make(map[string]bool)
	var links []string

	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		if base != nil {
			if ref, err := url.Parse(href); err == nil {
				href = base.ResolveReference(ref).String()
			}
		}
		if !seen[href] {
			seen[href] = true
			links = append(links, href)
		}
	})
	return links
}

// MatchDate reports whether s carries exactly the requested date. The
// pattern must capture groups named day, month and year; there is no
// nearest-date fallback.
func MatchDate(pattern *regexp.Regexp, s string, date time.Time) bool {
	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	groups := map[string]string{}
	for i, name := range pattern.SubexpNames() {
		if name != "" && i < len(m) {
			groups[name] = m[i]
		}
	}
	found, err := time.Parse("2.1.2006", fmt.Sprintf("%s.%s.%s",
		strings.TrimLeft(groups["day"], "0"),
		strings.TrimLeft(groups["month"], "0"),
		groups["year"]))
	if err != nil {
		return false
	}
	return found.Year() == date.Year() && found.Month() == date.Month() && found.Day() == date.Day()
}

// CollectStores runs fn for every locator through a bounded worker pool
// and gathers the successfully parsed stores. A failed locator is logged
// and skipped; stores within a chain share no state, so order is not
// meaningful.
func (c *BaseCrawler) CollectStores(ctx context.Context, locators []Locator, fn func(context.Context, Locator) (*Store, error)) []Store {
	workers := c.Workers
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan Locator)
	results := make(chan *Store, len(locators))
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for loc := range jobs {
				store, err := fn(ctx, loc)
				if err != nil {
					c.Log.Warn().
						Err(err).
						Str("url", loc.URL).
						Str("name", loc.Name).
						Msg("Skipping store")
					continue
				}
				results <- store
			}
		}()
	}

	for _, loc := range locators {
		select {
		case <-ctx.Done():
		case jobs <- loc:
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	var stores []Store
	for store := range results {
		if store != nil {
			stores = append(stores, *store)
		}
	}
	return stores
}

// WarnIfNotToday logs the date-agnostic source caveat: chains without
// historical publications can only serve current data.
func (c *BaseCrawler) WarnIfNotToday(date time.Time) {
	now := time.Now()
	if date.Year() == now.Year() && date.Month() == now.Month() && date.Day() == now.Day() {
		return
	}
	c.Log.Warn().
		Str("date", date.Format("2006-01-02")).
		Msg("Source publishes current prices only, requested date ignored")
}

// LogCrawlDone emits the per-chain completion line with counts and timing.
func (c *BaseCrawler) LogCrawlDone(date time.Time, stores []Store, started time.Time) {
	prices := 0
	for _, s := range stores {
		prices += len(s.Items)
	}
	c.Log.Info().
		Str("date", date.Format("2006-01-02")).
		Int("stores", len(stores)).
		Int("prices", prices).
		Dur("elapsed", time.Since(started)).
		Msg("Crawl completed")
}

// TitleCase converts underscore or space separated uppercase fragments
// into title case ("TRG BANA 1" -> "Trg Bana 1").
func TitleCase(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		if len(runes) > 0 {
			runes[0] = unicode.ToUpper(runes[0])
		}
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// StripDiacritics removes combining marks ("Šibenik" -> "Sibenik"), used
// when matching address fragments against known city lists.
func StripDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var zipcodePattern = regexp.MustCompile(`\b(\d{5})\b`)

// ExtractZipcode pulls a five-digit postal code out of free text, or
// returns an empty string.
func ExtractZipcode(text string) string {
	m := zipcodePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}
