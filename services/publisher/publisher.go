package publisher

// Publisher delivers machine-readable crawl results to a downstream
// consumer (the import step that loads archives into the database).
type Publisher interface {
	// Publish publishes one chain's crawl result.
	Publish(chain string, message []byte) error

	// TrimStream trims the stream to the configured maximum length.
	TrimStream() error

	// Close closes the publisher connection.
	Close() error
}
