package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	mathrand "math/rand"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	apperrors "github.com/vjekoslav/cijene-api/pkg/errors"
	"github.com/vjekoslav/cijene-api/services/cache"
)

// Client is the fetch capability consumed by chain crawlers. Text fetches
// decode the body using the first candidate encoding that produces valid
// text; binary fetches return the raw bytes.
type Client interface {
	FetchText(ctx context.Context, url string, encodings []string) (string, error)
	FetchBinary(ctx context.Context, url string) ([]byte, error)
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/112.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0.3 Safari/605.1.15",
}

// HTTPClient is the HTTP implementation of Client. Every chain crawler
// owns its own instance; nothing is shared across chains except the
// optional block-marker cache.
type HTTPClient struct {
	chain     string
	client    *http.Client
	retries   int
	blockTime time.Duration
	cacheSvc  cache.CacheService
	rnd       *mathrand.Rand
}

// NewHTTPClient creates a fetch client for one chain. cacheSvc may be nil,
// in which case rate-limit block markers are not recorded.
func NewHTTPClient(chain string, timeout time.Duration, retries int, cacheSvc cache.CacheService) *HTTPClient {
	return &HTTPClient{
		chain:     chain,
		client:    &http.Client{Timeout: timeout},
		retries:   retries,
		blockTime: 5 * time.Minute,
		cacheSvc:  cacheSvc,
		rnd:       mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
	}
}

func (c *HTTPClient) blockKey() string {
	return c.chain + "_rate_limited"
}

// fetch performs the request with retries and returns the raw body.
func (c *HTTPClient) fetch(ctx context.Context, url string) ([]byte, error) {
	if c.cacheSvc != nil {
		if _, err := c.cacheSvc.Get(c.blockKey()); err == nil {
			return nil, apperrors.NewFetch(c.chain, fmt.Sprintf("source is rate limited, skipping %s", url), nil)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, apperrors.NewFetch(c.chain, "fetch canceled", ctx.Err())
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		body, retryable, err := c.fetchOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, apperrors.NewFetch(c.chain, fmt.Sprintf("retries exhausted for %s", url), lastErr)
}

func (c *HTTPClient) fetchOnce(ctx context.Context, url string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, apperrors.NewFetch(c.chain, "failed to create request", err)
	}

	req.Header.Set("User-Agent", userAgents[c.rnd.Intn(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,text/csv;q=0.8,*/*;q=0.7")
	req.Header.Set("Accept-Language", "hr-HR,hr;q=0.9,en-US;q=0.8,en;q=0.7")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, apperrors.NewFetch(c.chain, fmt.Sprintf("failed to fetch %s", url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		if c.cacheSvc != nil {
			c.cacheSvc.Set(c.blockKey(), []byte(resp.Header.Get("Retry-After")), c.blockTime)
		}
		return nil, false, apperrors.NewFetch(c.chain, fmt.Sprintf("rate limited by %s", url), nil)
	}

	if resp.StatusCode != http.StatusOK {
		// Server errors may be transient, client errors are not.
		retryable := resp.StatusCode >= 500
		return nil, retryable, apperrors.NewFetch(c.chain, fmt.Sprintf("unexpected status %d for %s", resp.StatusCode, url), nil)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, apperrors.NewFetch(c.chain, "failed to read response body", err)
	}
	return data, false, nil
}

// FetchText downloads a text resource. When encodings lists candidates,
// the first one that decodes the body into valid text wins; with no
// candidates the encoding is sniffed from the Content-Type and content.
func (c *HTTPClient) FetchText(ctx context.Context, url string, encodings []string) (string, error) {
	body, err := c.fetch(ctx, url)
	if err != nil {
		return "", err
	}

	if len(encodings) == 0 {
		return sniffDecode(body, "")
	}

	for _, name := range encodings {
		text, err := decodeAs(body, name)
		if err == nil {
			return text, nil
		}
	}
	return "", apperrors.NewFetch(c.chain, fmt.Sprintf("could not decode %s with any of %v", url, encodings), nil)
}

// FetchBinary downloads a binary resource.
func (c *HTTPClient) FetchBinary(ctx context.Context, url string) ([]byte, error) {
	return c.fetch(ctx, url)
}

// Decode converts raw bytes to text using the first candidate encoding
// that yields valid text. Chains use it for archive members, which arrive
// as bytes outside the HTTP path.
func Decode(body []byte, encodings []string) (string, error) {
	if len(encodings) == 0 {
		return sniffDecode(body, "")
	}
	for _, name := range encodings {
		text, err := decodeAs(body, name)
		if err == nil {
			return text, nil
		}
	}
	return "", fmt.Errorf("could not decode content with any of %v", encodings)
}

// decodeAs decodes body using a named single-byte encoding or UTF-8.
func decodeAs(body []byte, name string) (string, error) {
	var enc *charmap.Charmap
	switch strings.ToLower(name) {
	case "utf-8", "utf8":
		if !utf8.Valid(body) {
			return "", fmt.Errorf("body is not valid UTF-8")
		}
		return string(body), nil
	case "windows-1250", "cp1250":
		enc = charmap.Windows1250
	case "windows-1252", "cp1252":
		enc = charmap.Windows1252
	case "iso-8859-2", "latin2":
		enc = charmap.ISO8859_2
	case "iso-8859-1", "latin1":
		enc = charmap.ISO8859_1
	default:
		return "", fmt.Errorf("unsupported encoding %q", name)
	}
	return decodeWith(body, enc)
}

func decodeWith(body []byte, enc encoding.Encoding) (string, error) {
	decoded, err := io.ReadAll(enc.NewDecoder().Reader(bytes.NewReader(body)))
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// sniffDecode converts a body of unknown encoding to UTF-8. Valid UTF-8
// is taken as is; anything else goes through content detection, which
// falls back to windows-1252.
func sniffDecode(body []byte, contentType string) (string, error) {
	if utf8.Valid(body) {
		return string(body), nil
	}
	enc, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" {
		return string(body), nil
	}
	return decodeWith(body, enc)
}
