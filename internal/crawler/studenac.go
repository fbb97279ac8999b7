package crawler

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/vjekoslav/cijene-api/pkg/errors"
)

// Studenac publishes a daily zip archive at a predictable URL, with one
// XML document per store carrying both store metadata and products.
type Studenac struct {
	*BaseCrawler
}

func NewStudenac(base *BaseCrawler) *Studenac {
	base.BaseURL = "https://www.studenac.hr"
	base.Mapping = Mapping{
		Chain: base.ChainCode,
		Prices: []FieldSpec{
			{Field: "price", Column: "MaloprodajnaCijena", Required: true},
			{Field: "unit_price", Column: "CijenaPoJedinici", Required: true},
			{Field: "special_price", Column: "MaloprodajnaCijenaAkcija"},
			{Field: "best_price_30", Column: "NajnizaCijena"},
			{Field: "anchor_price", Column: "SidrenaCijena"},
		},
		Fields: []FieldSpec{
			{Field: "product", Column: "NazivProizvoda", Required: true},
			{Field: "product_id", Column: "SifraProizvoda", Required: true},
			{Field: "brand", Column: "MarkaProizvoda"},
			{Field: "quantity", Column: "NetoKolicina"},
			{Field: "unit", Column: "JedinicaMjere"},
			{Field: "barcode", Column: "Barkod"},
			{Field: "category", Column: "KategorijeProizvoda"},
		},
	}
	return &Studenac{BaseCrawler: base}
}

func (c *Studenac) Crawl(ctx context.Context, date time.Time) ([]Store, error) {
	started := time.Now()

	zipURL := fmt.Sprintf("%s/cjenici/PROIZVODI-%s.zip", c.BaseURL, date.Format("2006-01-02"))
	data, err := c.Client.FetchBinary(ctx, zipURL)
	if err != nil {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "failed to download price list archive", err)
	}

	archive, err := OpenArchive(data)
	if err != nil {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "invalid price list archive", err)
	}

	var stores []Store
	for _, member := range archive.Members(".xml") {
		store, err := c.parseMember(archive, member)
		if err != nil {
			c.Log.Warn().Err(err).Str("member", member).Msg("Skipping store")
			continue
		}
		stores = append(stores, *store)
	}
	if len(stores) == 0 {
		return nil, apperrors.NewIndexResolution(c.ChainCode, "no stores extracted from archive", nil)
	}

	c.LogCrawlDone(date, stores, started)
	return stores, nil
}

func (c *Studenac) parseMember(archive *Archive, member string) (*Store, error) {
	content, err := archive.Read(member)
	if err != nil {
		return nil, apperrors.NewStoreParse(c.ChainCode, "failed to extract archive member", err)
	}

	info, err := XMLElement(content, "ProdajniObjekt")
	if err != nil {
		return nil, apperrors.NewStoreParse(c.ChainCode, "no store element in XML", err)
	}

	street, city := c.parseAddress(info["Adresa"])
	store := &Store{
		Chain:         c.ChainCode,
		StoreID:       info["Oznaka"],
		Name:          "Studenac " + info["Oznaka"],
		StoreType:     TitleCase(info["Oblik"]),
		City:          city,
		StreetAddress: street,
	}

	rows, err := XMLRecords(content, "Proizvod")
	if err != nil {
		return nil, apperrors.NewStoreParse(c.ChainCode, "failed to parse price XML", err)
	}

	store.Items = c.ParseRows(rows)
	return store, nil
}

// Addresses come as "<street> <number> <CITY>" with the city in caps at
// the end.
var studenacAddressPattern = regexp.MustCompile(`^(.*?)([A-ZČĆĐŠŽ][A-ZČĆĐŠŽ\s]+)$`)

func (c *Studenac) parseAddress(address string) (street, city string) {
	m := studenacAddressPattern.FindStringSubmatch(address)
	if m == nil {
		c.Log.Warn().Str("address", address).Msg("Could not split address into street and city")
		return TitleCase(address), ""
	}
	return TitleCase(strings.TrimSpace(m[1])), TitleCase(strings.TrimSpace(m[2]))
}
