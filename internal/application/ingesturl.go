package application

import "strings"

// DefaultIngestBaseURL is the ingest endpoint credentials are appended to when
// no base URL is configured.
const DefaultIngestBaseURL = "rtmp://localhost/live"

// URLDeriver builds the canonical ingest URL for a credential.
type URLDeriver struct {
	base string
}

// NewURLDeriver creates a URLDeriver for base. Trailing slashes on base are
// ignored; an empty base falls back to DefaultIngestBaseURL.
func NewURLDeriver(base string) URLDeriver {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = DefaultIngestBaseURL
	}
	return URLDeriver{base: base}
}

// Derive returns base + "/" + credential.
func (d URLDeriver) Derive(credential string) string {
	return d.base + "/" + credential
}

// Base returns the normalized base URL.
func (d URLDeriver) Base() string {
	return d.base
}
