package crawler

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	apperrors "github.com/vjekoslav/cijene-api/pkg/errors"

	"github.com/vjekoslav/cijene-api/internal/fetch"
)

// Eurospin lists daily zip archives in a select box on its price page.
// Members are windows-1250 CSVs, one per store, with store metadata in
// dash-separated filenames. Older filenames omit the store ID, which is
// then recovered from a known address table.
type Eurospin struct {
	*BaseCrawler
	indexURL string
}

var eurospinStoreIDs = map[string]string{
	"Ulica hrvatskog preporoda 70 Dugo Selo":  "310032",
	"Ulica Rimske centurijacije 100":          "310013",
	"Ulica Juraja Dobrile 1C":                 "310006",
	"Zagrebacka ul 49G":                       "310012",
	"Gacka ulica 70":                          "310017",
	"Ulica Istarskih narodnjaka 17 Stop Shop": "310027",
	"Zagrebacka cesta 162A":                   "310018",
	"Ulica Ote Horvata 1 33000 Virovitica":    "310036",
	"Cesta Dalmatinskih brigada 7a":           "310030",
	"Celine 2":                                "310009",
	"Ulica Mate Vlašica 51A":                  "310010",
	"Koprivnicka ulica 34A":                   "310033",
	"Ulica Furicevo 20":                       "310016",
	"Zvonarska ulica 63":                      "310035",
	"Ulica Petra Svacica 2B":                  "310014",
	"Zagrebacka 52":                           "310004",
	"Ulica Matije Gupca 59":                   "310021",
	"Ulica Mihovila P Miškine 5":              "310024",
	"4 Gardijske Brigade 1":                   "310003",
	"Ulica hrvatskih branitelja 2":            "310005",
	"Ulica Ante Starcevica 20":                "310019",
	"I Štefanovecki zavoj 12":                 "310002",
	"Štrmac 303":                              "310026",
	"Ljudevita Šestica 7":                     "310037",
	"Ulica Vlahe Paljetka 7":                  "310011",
	"Ulica Veceslava Holjevca 15":             "310034",
	"Stop shop":                               "310028",
	"Solinska ulica 84":                       "310015",
	"Obrtnicka ulica 2":                       "310008",
	"Ulica kralja Tomislava 47A":              "310007",
	"Žutska ulica broj 1":                     "310023",
}

func NewEurospin(base *BaseCrawler) *Eurospin {
	base.BaseURL = "https://www.eurospin.hr"
	base.Mapping = Mapping{
		Chain: base.ChainCode,
		Prices: []FieldSpec{
			{Field: "price", Column: "MALOPROD.CIJENA(EUR)", Required: true},
			{Field: "unit_price", Column: "CIJENA_ZA_JEDINICU_MJERE", Required: true},
			{Field: "special_price", Column: "MPC_POSEB.OBLIK_PROD"},
			{Field: "best_price_30", Column: "NAJNIŽA_MPC_U_30DANA"},
			{Field: "anchor_price", Column: "SIDRENA_CIJENA"},
		},
		Fields: []FieldSpec{
			{Field: "product", Column: "NAZIV_PROIZVODA", Required: true},
			{Field: "product_id", Column: "ŠIFRA_PROIZVODA", Required: true},
			{Field: "brand", Column: "MARKA_PROIZVODA"},
			{Field: "quantity", Column: "NETO_KOLIČINA"},
			{Field: "unit", Column: "JEDINICA_MJERE"},
			{Field: "barcode", Column: "BARKOD"},
			{Field: "category", Column: "KATEGORIJA_PROIZVODA"},
		},
	}
	return &Eurospin{
		BaseCrawler: base,
		indexURL:    base.BaseURL + "/cjenik/",
	}
}

func (c *Eurospin) Crawl(ctx context.Context, date time.Time) ([]Store, error) {
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

// findArchiveURL collects zip URLs from option values on the index page
// and picks the one whose filename carries the date as DD.MM.YYYY.
func (c *Eurospin) findArchiveURL(html string, date time.Time) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		c.Log.Warn().Err(err).Msg("Failed to parse index HTML")
		return ""
	}

	dateStr := date.Format("02.01.2006")
	var found string
	doc.Find("option[value$='.zip']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("value")
		if !strings.Contains(path.Base(href), dateStr) {
			return true
		}
		if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
			href = c.BaseURL + href
		}
		found = href
		return false
	})
	return found
}

func (c *Eurospin) parseMember(archive *Archive, member string) (*Store, error) {
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

	rows, err := DelimitedRecords(content, ';')
	if err != nil {
		return nil, apperrors.NewStoreParse(c.ChainCode, "failed to parse price CSV", err)
	}

	store.Items = c.ParseRows(rows)
	return store, nil
}

// parseStoreFromFilename decodes names like
// "supermarket-310037-Ljudevita_Šestica_7-Karlovac-47000-21.05.2025-7.30.csv".
// Six-part names skip the store ID, which is then looked up by address.
func (c *Eurospin) parseStoreFromFilename(filename string) (*Store, error) {
	parts := strings.Split(strings.TrimSuffix(filename, ".csv"), "-")
	if len(parts) < 6 {
		return nil, apperrors.NewStoreParse(c.ChainCode,
			fmt.Sprintf("unparseable member filename %q", filename), nil)
	}

	var storeID, address, city, zipcode string
	if len(parts) == 6 {
		address = strings.ReplaceAll(parts[1], "_", " ")
		city = parts[2]
		zipcode = parts[3]
		storeID = eurospinStoreIDs[address]
		if storeID == "" {
			storeID = address
		}
	} else {
		storeID = parts[1]
		address = strings.ReplaceAll(parts[2], "_", " ")
		city = parts[3]
		zipcode = parts[4]
	}

	return &Store{
		Chain:         c.ChainCode,
		StoreID:       storeID,
		Name:          "Eurospin " + city,
		StoreType:     strings.ToLower(parts[0]),
		City:          city,
		StreetAddress: address,
		Zipcode:       zipcode,
	}, nil
}
