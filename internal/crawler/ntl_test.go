package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ntlCSV = `Naziv proizvoda;Šifra proizvoda;Marka proizvoda;Neto količina;Jedinica mjere;Barkod;Kategorija proizvoda;Maloprodajna cijena;Cijena za jedinicu mjere;MPC za vrijeme posebnog oblika prodaje;Sidrena cijena na 2.5.2025
Jaja L 10 kom;3301;;10 kom;kom;3850113000018;Jaja;2,89;0,29;;2,79
`

func TestNTLCrawl(t *testing.T) {
	csvURL := "https://www.ntl.hr/files/Supermarket_Ljudevita%20Gaja%201_DUGA%20RESA_47250_263_25052025_07_22_36.csv"

	index := `<html><body><table>
		<tr><td><a href="` + csvURL + `">Duga Resa</a></td></tr>
	</table>
	<a href="https://www.ntl.hr/files/izvan_tablice.csv">ne</a>
	</body></html>`

	// The fake serves decoded text, the same contract FetchText has; the
	// windows-1250 decode path itself is covered by the fetch tests.
	client := &fakeClient{pages: map[string]string{
		"https://www.ntl.hr/cjenici-za-ntl-supermarkete": index,
		csvURL: ntlCSV,
	}}

	c := NewNTL(newTestBase("ntl", client))
	stores, err := c.Crawl(context.Background(), time.Now())
	require.NoError(t, err)
	require.Len(t, stores, 1)

	store := stores[0]
	assert.Equal(t, "263", store.StoreID)
	assert.Equal(t, "supermarket", store.StoreType)
	assert.Equal(t, "Ljudevita Gaja 1", store.StreetAddress)
	assert.Equal(t, "Duga Resa", store.City)
	assert.Equal(t, "47250", store.Zipcode)

	require.Len(t, store.Items, 1)
	jaja := store.Items[0]
	assert.Equal(t, "3301", jaja.ProductID)
	assert.Equal(t, "2.89", jaja.Price.StringFixed(2))
}

func TestNTLCrawlNoLinks(t *testing.T) {
	client := &fakeClient{pages: map[string]string{
		"https://www.ntl.hr/cjenici-za-ntl-supermarkete": "<html><body>prazno</body></html>",
	}}
	c := NewNTL(newTestBase("ntl", client))

	_, err := c.Crawl(context.Background(), time.Now())
	assert.Error(t, err)
}

func TestNTLParseStoreFromURL(t *testing.T) {
	c := NewNTL(newTestBase("ntl", &fakeClient{}))

	store, err := c.parseStoreFromURL("https://www.ntl.hr/files/Supermarket_Trg 1_SOBLINEC_10360_105_25052025_07_22_36.csv")
	require.NoError(t, err)
	assert.Equal(t, "105", store.StoreID)
	assert.Equal(t, "10360", store.Zipcode)
	assert.Equal(t, "Soblinec", store.City)

	_, err = c.parseStoreFromURL("https://www.ntl.hr/files/cjenik.csv")
	assert.Error(t, err)
}
