package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vrutakXML = `<?xml version="1.0" encoding="UTF-8"?>
<cjenik>
  <item>
    <naziv>Vino graševina 0,75l</naziv>
    <sifra>4401</sifra>
    <marka>Kutjevo</marka>
    <nettokolicina>0,75 l</nettokolicina>
    <mjera>kom</mjera>
    <barkod>3850110000012</barkod>
    <kategorija>Vina</kategorija>
    <mpcijena>5,99</mpcijena>
    <mpcijenamjera>7,99</mpcijenamjera>
  </item>
</cjenik>`

func TestVrutakCrawl(t *testing.T) {
	date := time.Date(2025, 5, 16, 0, 0, 0, 0, time.UTC)
	xmlURL := "https://www.vrutak.hr/cjenici/vrutak-hipermarket-dubrava256-10040-01-202505160830.xml"

	index := `<html><body><table><tbody>
		<tr><td>1</td><td>15.05.2025.</td><td><a href="/cjenici/vrutak-hipermarket-dubrava256-10040-01-202505150830.xml">xml</a></td></tr>
		<tr><td>2</td><td>16.05.2025.</td><td><a href="/cjenici/vrutak-hipermarket-dubrava256-10040-01-202505160830.xml">xml</a></td><td>bez linka</td></tr>
	</tbody></table></body></html>`

	client := &fakeClient{pages: map[string]string{
		"https://www.vrutak.hr/cjenik-svih-artikala": index,
		xmlURL: vrutakXML,
	}}

	c := NewVrutak(newTestBase("vrutak", client))
	stores, err := c.Crawl(context.Background(), date)
	require.NoError(t, err)
	require.Len(t, stores, 1)

	store := stores[0]
	assert.Equal(t, "10040", store.StoreID)
	assert.Equal(t, "hipermarket", store.StoreType)
	assert.Equal(t, "Dubrava256", store.StreetAddress)
	assert.Equal(t, "Zagreb", store.City)
	assert.Equal(t, "10000", store.Zipcode)

	require.Len(t, store.Items, 1)
	vino := store.Items[0]
	assert.Equal(t, "4401", vino.ProductID)
	assert.Equal(t, "5.99", vino.Price.StringFixed(2))
	assert.Equal(t, "7.99", vino.UnitPrice.StringFixed(2))
}

func TestVrutakCrawlNoRowForDate(t *testing.T) {
	client := &fakeClient{pages: map[string]string{
		"https://www.vrutak.hr/cjenik-svih-artikala": `<table><tbody>
			<tr><td>1</td><td>15.05.2025.</td><td><a href="/a.xml">xml</a></td></tr>
		</tbody></table>`,
	}}
	c := NewVrutak(newTestBase("vrutak", client))

	_, err := c.Crawl(context.Background(), time.Date(2025, 5, 16, 0, 0, 0, 0, time.UTC))
	assert.Error(t, err)
}

func TestVrutakParseStoreFromURL(t *testing.T) {
	c := NewVrutak(newTestBase("vrutak", &fakeClient{}))

	_, err := c.parseStoreFromURL("https://www.vrutak.hr/cjenici/vrutak-market.xml")
	assert.Error(t, err)
}
