package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType classifies crawl failures by the layer they occur in.
type ErrorType string

const (
	// ErrorTypeFieldMissing is a per-record failure: a required mapped
	// field was empty in the source row.
	ErrorTypeFieldMissing ErrorType = "field_missing"
	// ErrorTypePriceParse is a per-record failure: a required price field
	// could not be parsed into a decimal.
	ErrorTypePriceParse ErrorType = "price_parse"
	// ErrorTypeStoreParse is a per-store failure: one locator's store
	// metadata or product file could not be processed.
	ErrorTypeStoreParse ErrorType = "store_parse"
	// ErrorTypeIndexResolution is fatal for a single chain's run: the
	// chain's index could not be resolved for the requested date.
	ErrorTypeIndexResolution ErrorType = "index_resolution"
	// ErrorTypeFetch represents exhausted retries or a non-success status.
	ErrorTypeFetch ErrorType = "fetch"
)

// CrawlError is the error type used across the crawler. The Type field
// decides where a failure is recovered: record and store errors are
// swallowed by the enclosing loop, index resolution errors abort the chain.
type CrawlError struct {
	Type    ErrorType
	Chain   string
	Message string
	Err     error
}

func (e *CrawlError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Type, e.Chain, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Chain, e.Message)
}

func (e *CrawlError) Unwrap() error {
	return e.Err
}

// New creates a CrawlError.
func New(errType ErrorType, chain, message string, err error) *CrawlError {
	return &CrawlError{Type: errType, Chain: chain, Message: message, Err: err}
}

func NewFieldMissing(chain, field string) *CrawlError {
	return New(ErrorTypeFieldMissing, chain, fmt.Sprintf("missing required field %q", field), nil)
}

func NewPriceParse(chain, field string, err error) *CrawlError {
	return New(ErrorTypePriceParse, chain, fmt.Sprintf("invalid price in field %q", field), err)
}

func NewStoreParse(chain, message string, err error) *CrawlError {
	return New(ErrorTypeStoreParse, chain, message, err)
}

func NewIndexResolution(chain, message string, err error) *CrawlError {
	return New(ErrorTypeIndexResolution, chain, message, err)
}

func NewFetch(chain, message string, err error) *CrawlError {
	return New(ErrorTypeFetch, chain, message, err)
}

func isType(err error, t ErrorType) bool {
	var ce *CrawlError
	if stderrors.As(err, &ce) {
		return ce.Type == t
	}
	return false
}

func IsFieldMissing(err error) bool    { return isType(err, ErrorTypeFieldMissing) }
func IsPriceParse(err error) bool      { return isType(err, ErrorTypePriceParse) }
func IsStoreParse(err error) bool      { return isType(err, ErrorTypeStoreParse) }
func IsIndexResolution(err error) bool { return isType(err, ErrorTypeIndexResolution) }
func IsFetch(err error) bool           { return isType(err, ErrorTypeFetch) }

// IsRecordError reports whether the error should only drop the offending
// product line, not the store.
func IsRecordError(err error) bool {
	return IsFieldMissing(err) || IsPriceParse(err)
}
