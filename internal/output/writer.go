// Package output persists crawl snapshots as one zip archive per chain
// and date, each holding three CSV tables and a manifest.
package output

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vjekoslav/cijene-api/internal/crawler"
	"github.com/vjekoslav/cijene-api/logger"
)

// SchemaVersion identifies the archive layout for downstream importers.
const SchemaVersion = "1.1"

var storeColumns = []string{"store_id", "type", "address", "city", "zipcode"}

var productColumns = []string{"product_id", "barcode", "name", "brand", "category", "unit", "quantity"}

var priceColumns = []string{"store_id", "product_id", "price", "unit_price", "best_price_30", "anchor_price", "special_price"}

// Writer writes chain archives under root as
// <root>/YYYY-MM-DD/<chain>.zip. Rows are sorted and member timestamps
// pinned to the crawl date, so re-running a crawl over the same data
// produces the same bytes apart from the manifest timestamp.
type Writer struct {
	root string
	log  *logger.Logger

	// Now stamps the manifest; overridable for reproducible output.
	Now func() time.Time
}

// NewWriter creates a writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{
		root: dir,
		log:  logger.ForComponent("output"),
		Now:  time.Now,
	}
}

// Write persists one chain's stores and returns the archive path. An
// existing archive for the same chain and date is replaced.
func (w *Writer) Write(chain string, date time.Time, stores []crawler.Store) (string, error) {
	if len(stores) == 0 {
		return "", fmt.Errorf("no stores to write for chain %s", chain)
	}

	storeRows, productRows, priceRows := transform(chain, stores)

	dir := filepath.Join(w.root, date.Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, chain+".zip")
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	manifest := w.manifest(chain, date, len(storeRows), len(productRows), len(priceRows))
	members := []struct {
		name string
		data []byte
	}{
		{"stores.csv", encodeCSV(storeColumns, storeRows)},
		{"products.csv", encodeCSV(productColumns, productRows)},
		{"prices.csv", encodeCSV(priceColumns, priceRows)},
		{"archive-info.txt", []byte(manifest)},
	}

	for _, m := range members {
		header := &zip.FileHeader{
			Name:     m.name,
			Method:   zip.Deflate,
			Modified: date,
		}
		f, err := zw.CreateHeader(header)
		if err != nil {
			return "", fmt.Errorf("failed to create archive member %s: %w", m.name, err)
		}
		if _, err := f.Write(m.data); err != nil {
			return "", fmt.Errorf("failed to write archive member %s: %w", m.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize archive: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write archive: %w", err)
	}

	w.log.Info().
		Str("chain", chain).
		Str("path", path).
		Int("stores", len(storeRows)).
		Int("products", len(productRows)).
		Int("prices", len(priceRows)).
		Msg("Wrote chain archive")
	return path, nil
}

func (w *Writer) manifest(chain string, date time.Time, stores, products, prices int) string {
	return fmt.Sprintf(`Price list archive, schema version %s

chain: %s
date: %s
stores: %d
products: %d
prices: %d
generated: %s

Tables: stores.csv, products.csv, prices.csv. Prices are EUR with two
decimal places; empty cells mean the chain did not publish the value.
`, SchemaVersion, chain, date.Format("2006-01-02"), stores, products, prices,
		w.Now().UTC().Format(time.RFC3339))
}

// transform flattens stores into the three tables. Products are
// deduplicated chain-wide by product ID; rows come out sorted.
func transform(chain string, stores []crawler.Store) (storeRows, productRows, priceRows [][]string) {
	seenProducts := make(map[string]bool)

	for _, store := range stores {
		storeRows = append(storeRows, []string{
			store.StoreID,
			store.StoreType,
			store.StreetAddress,
			store.City,
			store.Zipcode,
		})

		for _, item := range store.Items {
			key := chain + ":" + item.ProductID
			if !seenProducts[key] {
				seenProducts[key] = true
				barcode := item.Barcode
				if barcode == "" {
					barcode = key
				}
				productRows = append(productRows, []string{
					item.ProductID,
					barcode,
					item.Product,
					item.Brand,
					item.Category,
					item.Unit,
					item.Quantity,
				})
			}

			priceRows = append(priceRows, []string{
				store.StoreID,
				item.ProductID,
				item.Price.StringFixed(2),
				item.UnitPrice.StringFixed(2),
				maybe(item.BestPrice30),
				maybe(item.AnchorPrice),
				maybe(item.SpecialPrice),
			})
		}
	}

	sort.Slice(storeRows, func(i, j int) bool {
		return storeRows[i][0] < storeRows[j][0]
	})
	sort.Slice(productRows, func(i, j int) bool {
		return productRows[i][0] < productRows[j][0]
	})
	sort.Slice(priceRows, func(i, j int) bool {
		if priceRows[i][0] != priceRows[j][0] {
			return priceRows[i][0] < priceRows[j][0]
		}
		return priceRows[i][1] < priceRows[j][1]
	})
	return storeRows, productRows, priceRows
}

func maybe(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.StringFixed(2)
}

func encodeCSV(columns []string, rows [][]string) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write(columns)
	w.WriteAll(rows)
	w.Flush()
	return buf.Bytes()
}
