package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trgocentarXML = `<?xml version="1.0" encoding="UTF-8"?>
<cjenici>
  <cjenik>
    <naziv_art>Pivo svijetlo 0,5l</naziv_art>
    <sif_art>1501</sif_art>
    <marka>Ožujsko</marka>
    <net_kol>0,5 l</net_kol>
    <jmj>kom</jmj>
    <ean_kod>3850109000015</ean_kod>
    <naz_kat>Piva</naz_kat>
    <mpc>0,99</mpc>
    <c_jmj>1,98</c_jmj>
    <c_najniza_30>0,95</c_najniza_30>
    <c_020525>0,89</c_020525>
  </cjenik>
</cjenici>`

func TestTrgocentarCrawl(t *testing.T) {
	date := time.Date(2025, 5, 23, 0, 0, 0, 0, time.UTC)
	xmlURL := "https://trgocentar.com/Trgovine-cjenik/SUPERMARKET_VL_NAZORA_58_SV_IVAN_ZELINA_P120_009_230520250745.xml"

	index := `<html><body>
		<a href="SUPERMARKET_VL_NAZORA_58_SV_IVAN_ZELINA_P120_009_230520250745.xml">danas</a>
		<a href="SUPERMARKET_TRG_1_ZABOK_P003_001_220520250745.xml">jučer</a>
	</body></html>`

	client := &fakeClient{pages: map[string]string{
		"https://trgocentar.com/Trgovine-cjenik/": index,
		xmlURL: trgocentarXML,
	}}

	c := NewTrgocentar(newTestBase("trgocentar", client))
	stores, err := c.Crawl(context.Background(), date)
	require.NoError(t, err)
	require.Len(t, stores, 1)

	store := stores[0]
	assert.Equal(t, "P120", store.StoreID)
	assert.Equal(t, "supermarket", store.StoreType)
	assert.Equal(t, "Vl Nazora 58", store.StreetAddress)
	assert.Equal(t, "Sv Ivan Zelina", store.City)
	assert.Equal(t, "Trgocentar Sv Ivan Zelina P120", store.Name)

	require.Len(t, store.Items, 1)
	pivo := store.Items[0]
	assert.Equal(t, "1501", pivo.ProductID)
	assert.Equal(t, "0.99", pivo.Price.StringFixed(2))
	require.NotNil(t, pivo.AnchorPrice)
	assert.Equal(t, "0.89", pivo.AnchorPrice.StringFixed(2))
}

func TestTrgocentarParseStoreFromURL(t *testing.T) {
	c := NewTrgocentar(newTestBase("trgocentar", &fakeClient{}))

	t.Run("unknown city keeps whole text as street", func(t *testing.T) {
		store, err := c.parseStoreFromURL("https://trgocentar.com/x/MARKET_NEPOZNATA_5_P001_001_230520250745.xml")
		require.NoError(t, err)
		assert.Equal(t, "P001", store.StoreID)
		assert.Equal(t, "Nepoznata 5", store.StreetAddress)
		assert.Empty(t, store.City)
	})

	t.Run("unexpected filename", func(t *testing.T) {
		_, err := c.parseStoreFromURL("https://trgocentar.com/x/cjenik.xml")
		assert.Error(t, err)
	})
}
