package crawler

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/vjekoslav/cijene-api/pkg/errors"

	"github.com/vjekoslav/cijene-api/internal/fetch"
)

const lidlAnchorColumn = "Sidrena_cijena_na_02.05.2025"

// Lidl publishes one zip archive per day with a windows-1250 CSV per
// store. Store metadata is encoded in the member filenames.
type Lidl struct {
	*BaseCrawler
	indexURL string
}

func NewLidl(base *BaseCrawler) *Lidl {
	base.BaseURL = "https://tvrtka.lidl.hr"
	base.Mapping = Mapping{
		Chain: base.ChainCode,
		Prices: []FieldSpec{
			{Field: "price", Column: "MALOPRODAJNA_CIJENA", Required: true},
			{Field: "unit_price", Column: "CIJENA_ZA_JEDINICU_MJERE", Required: true},
			{Field: "anchor_price", Column: lidlAnchorColumn},
		},
		Fields: []FieldSpec{
			{Field: "product", Column: "NAZIV", Required: true},
			{Field: "product_id", Column: "ŠIFRA", Required: true},
			{Field: "brand", Column: "MARKA"},
			{Field: "quantity", Column: "NETO_KOLIČINA"},
			{Field: "unit", Column: "JEDINICA_MJERE"},
			{Field: "packaging", Column: "PAKIRANJE"},
			{Field: "barcode", Column: "BARKOD"},
			{Field: "category", Column: "KATEGORIJA_PROIZVODA"},
		},
	}
	return &Lidl{
		BaseCrawler: base,
		indexURL:    base.BaseURL + "/cijene",
	}
}

func (c *Lidl) Crawl(ctx context.Context, date time.Time) ([]Store, error) {
	started := time.Now()

	html, err := c.Client.FetchText(ctx, c.indexURL, nil)
	if err != nil {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "failed to fetch price list index", err)
	}

	zipURL := c.findArchiveURL(html, date)
	if zipURL == "" {
		return nil, apperrors.NewIndexResolution(c.ChainCode,
			fmt.Sprintf("no price list archive found for %s", date.Format("2006-01-02")), nil)
	}

	data, err := c.Client.FetchBinary(ctx, zipURL)
	if err != nil {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "failed to download price list archive", err)
	}

	archive, err := OpenArchive(data)
	if err != nil {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "invalid price list archive", err)
	}

	var stores []Store
	for _, member := range archive.Members(".csv") {
		store, err := c.parseMember(archive, member)
		if err != nil {
			c.Log.Warn().Err(err).Str("member", member).Msg("Skipping store")
			continue
		}
		stores = append(stores, *store)
	}

	c.LogCrawlDone(date, stores, started)
	return stores, nil
}

// findArchiveURL picks the zip link whose filename carries the date as
// DD_MM_YYYY.
func (c *Lidl) findArchiveURL(html string, date time.Time) string {
	dateStr := date.Format("02_01_2006")
	for _, link := range c.SelectLinks(html, "a[href]", c.BaseURL) {
		if strings.Contains(link, ".zip") && strings.Contains(link, dateStr) {
			return link
		}
	}
	return ""
}

func (c *Lidl) parseMember(archive *Archive, member string) (*Store, error) {
	store, err := c.parseStoreFromFilename(member)
	if err != nil {
		return nil, err
	}

	raw, err := archive.Read(member)
	if err != nil {
		return nil, apperrors.NewStoreParse(c.ChainCode, "failed to extract archive member", err)
	}
	content, err := fetch.Decode(raw, []string{"windows-1250"})
	if err != nil {
		return nil, apperrors.NewStoreParse(c.ChainCode, "failed to decode archive member", err)
	}

	rows, err := DelimitedRecords(content, ',')
	if err != nil {
		return nil, apperrors.NewStoreParse(c.ChainCode, "failed to parse price CSV", err)
	}

	// The anchor column uses a sentinel for products that were not yet
	// on sale at the reference date.
	for _, row := range rows {
		if strings.Contains(row[lidlAnchorColumn], "Nije_bilo_u_prodaji") {
			row[lidlAnchorColumn] = ""
		}
	}

	store.Items = c.ParseRows(rows)
	return store, nil
}

// parseStoreFromFilename decodes member names like
// "Supermarket 104_Jastrebarsko_Dr. F. Tudmana 30_10450_Jastrebarsko_16.05.2025_7.15h.csv".
func (c *Lidl) parseStoreFromFilename(filename string) (*Store, error) {
	parts := strings.Split(filename, "_")
	if len(parts) < 5 {
		return nil, apperrors.NewStoreParse(c.ChainCode,
			fmt.Sprintf("unparseable member filename %q", filename), nil)
	}
	if !strings.HasPrefix(parts[0], "Supermarket") {
		return nil, apperrors.NewStoreParse(c.ChainCode,
			fmt.Sprintf("unexpected member filename %q", filename), nil)
	}

	city := TitleCase(parts[1])
	return &Store{
		Chain:         c.ChainCode,
		StoreID:       strings.TrimSpace(strings.TrimPrefix(parts[0], "Supermarket")),
		Name:          "Lidl " + city,
		StoreType:     "supermarket",
		City:          city,
		StreetAddress: TitleCase(parts[2]),
		Zipcode:       parts[3],
	}, nil
}
