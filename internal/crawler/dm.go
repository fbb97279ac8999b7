package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/vjekoslav/cijene-api/pkg/errors"
)

// DM publishes one spreadsheet for its whole network, linked from a
// headless CMS feed. Prices are national, so the result is a single
// synthetic location. The sheet has preamble rows above the header and a
// merged "naziv + šifra" header cell spanning two data columns.
type DM struct {
	*BaseCrawler
	contentBaseURL string
	indexURL       string
}

func NewDM(base *BaseCrawler) *DM {
	base.BaseURL = "https://www.dm.hr"
	base.Mapping = Mapping{
		Chain: base.ChainCode,
		Prices: []FieldSpec{
			{Field: "price", Column: "mpc"},
			{Field: "unit_price", Column: "cijena za jedinicu mjere"},
			{Field: "special_price", Column: "mpc za vrijeme posebnog oblika prodaje (rasprodaja proizvoda koji izlaze iz asortimana)"},
			{Field: "best_price_30", Column: "najniza cijena u posljednjih 30 dana prije rasprodaje"},
			{Field: "anchor_price", Column: "sidrena cijena na 2.5.2025. ili na datum ulistanja"},
		},
		Fields: []FieldSpec{
			{Field: "product", Column: "naziv", Required: true},
			{Field: "product_id", Column: "sifra", Required: true},
			{Field: "brand", Column: "marka"},
			{Field: "quantity", Column: "neto kolicina"},
			{Field: "unit", Column: "jedinica mjere"},
			{Field: "barcode", Column: "barkod"},
			{Field: "category", Column: "kategorija proizvoda"},
		},
	}
	contentBase := "https://content.services.dmtech.com/rootpage-dm-shop-hr-hr"
	return &DM{
		BaseCrawler:    base,
		contentBaseURL: contentBase,
		indexURL:       contentBase + "/novo/promocije/nove-oznake-cijena-i-vazeci-cjenik-u-dm-u-2906632?mrclx=false",
	}
}

type dmFeed struct {
	MainData []struct {
		Type string `json:"type"`
		Data struct {
			Headline   string `json:"headline"`
			LinkTarget string `json:"linkTarget"`
		} `json:"data"`
	} `json:"mainData"`
}

var dmHeadlineDatePattern = regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.(\d{4})`)

func (c *DM) Crawl(ctx context.Context, date time.Time) ([]Store, error) {
	started := time.Now()

	content, err := c.Client.FetchText(ctx, c.indexURL, nil)
	if err != nil {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "failed to fetch price list feed", err)
	}

	sheetURL, err := c.findSheetURL(content, date)
	if err != nil {
		return nil, err
	}

	data, err := c.Client.FetchBinary(ctx, sheetURL)
	if err != nil {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "failed to download price list spreadsheet", err)
	}

	rows, err := SheetRecords(data, c.locateHeader)
	if err != nil {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "failed to parse price list spreadsheet", err)
	}

	// Rows before and after the data block have no product code.
	var dataRows []map[string]string
	for _, row := range rows {
		if row["sifra"] != "" {
			dataRows = append(dataRows, row)
		}
	}

	products := c.ParseRows(dataRows)
	if len(products) == 0 {
		return nil, apperrors.NewIndexResolution(c.ChainCode,
			fmt.Sprintf("no products found for %s", date.Format("2006-01-02")), nil)
	}

	stores := []Store{{
		Chain:     c.ChainCode,
		StoreID:   "all",
		Name:      "DM",
		StoreType: "store",
		Items:     products,
	}}
	c.LogCrawlDone(date, stores, started)
	return stores, nil
}

// findSheetURL picks the CMDownload entry whose headline carries the
// requested date.
func (c *DM) findSheetURL(content string, date time.Time) (string, error) {
	var feed dmFeed
	if err := json.Unmarshal([]byte(content), &feed); err != nil {
		return "", apperrors.NewIndexResolution(c.ChainCode, "failed to parse price list feed", err)
	}

	for _, item := range feed.MainData {
		if item.Type != "CMDownload" {
			continue
		}
		if item.Data.Headline == "" || item.Data.LinkTarget == "" {
			continue
		}

		m := dmHeadlineDatePattern.FindStringSubmatch(item.Data.Headline)
		if m == nil {
			continue
		}
		found, err := time.Parse("2.1.2006", fmt.Sprintf("%s.%s.%s",
			strings.TrimLeft(m[1], "0"), strings.TrimLeft(m[2], "0"), m[3]))
		if err != nil {
			c.Log.Warn().Str("headline", item.Data.Headline).Msg("Unparseable date in feed headline")
			continue
		}
		if !sameDay(found, date) {
			continue
		}

		target := item.Data.LinkTarget
		if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
			target = c.contentBaseURL + target
		}
		return target, nil
	}

	return "", apperrors.NewIndexResolution(c.ChainCode,
		fmt.Sprintf("no price list found for %s", date.Format("2006-01-02")), nil)
}

// locateHeader recognizes the header row by its merged "naziv + šifra"
// cell and expands it into the two columns it spans. Header names are
// matched with diacritics stripped and whitespace collapsed.
func (c *DM) locateHeader(cells []string) []string {
	normalized := make([]string, len(cells))
	for i, cell := range cells {
		normalized[i] = strings.Join(strings.Fields(StripDiacritics(strings.ToLower(cell))), " ")
	}

	for i, name := range normalized {
		if name != "naziv + sifra" {
			continue
		}
		if i+1 >= len(normalized) || normalized[i+1] != "" {
			c.Log.Warn().Msg("Expected merged product name and code header cells")
			return nil
		}
		normalized[i] = "naziv"
		normalized[i+1] = "sifra"
		return normalized
	}
	return nil
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
