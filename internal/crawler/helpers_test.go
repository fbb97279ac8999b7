package crawler

import (
	"context"
	"fmt"

	"github.com/vjekoslav/cijene-api/logger"
)

// fakeClient serves canned responses keyed by URL.
type fakeClient struct {
	pages map[string]string
	blobs map[string][]byte
}

func (f *fakeClient) FetchText(_ context.Context, url string, _ []string) (string, error) {
	if page, ok := f.pages[url]; ok {
		return page, nil
	}
	return "", fmt.Errorf("no response configured for %s", url)
}

func (f *fakeClient) FetchBinary(_ context.Context, url string) ([]byte, error) {
	if blob, ok := f.blobs[url]; ok {
		return blob, nil
	}
	return nil, fmt.Errorf("no response configured for %s", url)
}

func newTestBase(chain string, client *fakeClient) *BaseCrawler {
	return &BaseCrawler{
		ChainCode: chain,
		Client:    client,
		Workers:   2,
		Log:       logger.ForChain(chain),
	}
}
