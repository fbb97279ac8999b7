package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ribolaXML = `<?xml version="1.0" encoding="UTF-8"?>
<Cjenik>
  <ProdajniObjekt>
    <Oblik>SUPERMARKET</Oblik>
    <Oznaka>R42</Oznaka>
    <Adresa>PUT BRODARICE 6 KAŠTEL SUĆURAC</Adresa>
  </ProdajniObjekt>
  <Proizvodi>
    <Proizvod>
      <NazivProizvoda>Srdela svježa</NazivProizvoda>
      <SifraProizvoda>2101</SifraProizvoda>
      <NetoKolicina>1 kg</NetoKolicina>
      <JedinicaMjere>kg</JedinicaMjere>
      <MaloprodajnaCijena>3,49</MaloprodajnaCijena>
      <CijenaZaJedinicuMjere>3,49</CijenaZaJedinicuMjere>
      <NajnizaCijena>3,29</NajnizaCijena>
    </Proizvod>
  </Proizvodi>
</Cjenik>`

func TestRibolaCrawl(t *testing.T) {
	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	xmlURL := "https://ribola.hr/cjenici/R42.xml"

	index := `<html><body><a href="` + xmlURL + `">R42</a></body></html>`

	client := &fakeClient{pages: map[string]string{
		"https://ribola.hr/ribola-cjenici/?date=02.06.2025": index,
		xmlURL: ribolaXML,
	}}

	c := NewRibola(newTestBase("ribola", client))
	stores, err := c.Crawl(context.Background(), date)
	require.NoError(t, err)
	require.Len(t, stores, 1)

	store := stores[0]
	assert.Equal(t, "R42", store.StoreID)
	assert.Equal(t, "supermarket", store.StoreType)
	assert.Equal(t, "PUT BRODARICE 6", store.StreetAddress)
	assert.Equal(t, "Kastel Sucurac", store.City)
	assert.Equal(t, "Ribola Kastel Sucurac R42", store.Name)

	require.Len(t, store.Items, 1)
	srdela := store.Items[0]
	assert.Equal(t, "2101", srdela.ProductID)
	assert.Equal(t, "3.49", srdela.Price.StringFixed(2))
	require.NotNil(t, srdela.BestPrice30)
	// No product code synthesis needed, but no published barcode either.
	assert.Equal(t, "ribola:2101", srdela.Barcode)
}

func TestRibolaParseAddress(t *testing.T) {
	c := NewRibola(newTestBase("ribola", &fakeClient{}))

	t.Run("city with diacritics matches plain candidate", func(t *testing.T) {
		street, city := c.parseAddress("PUT BRODARICE 6 KAŠTEL SUĆURAC")
		assert.Equal(t, "PUT BRODARICE 6", street)
		assert.Equal(t, "Kastel Sucurac", city)
	})

	t.Run("plain city", func(t *testing.T) {
		street, city := c.parseAddress("Vukovarska 31 Split")
		assert.Equal(t, "Vukovarska 31", street)
		assert.Equal(t, "Split", city)
	})

	t.Run("unknown city", func(t *testing.T) {
		street, city := c.parseAddress("Trg 1 Negdje")
		assert.Equal(t, "Trg 1 Negdje", street)
		assert.Empty(t, city)
	})
}
