package config

import "net/http"

// Client returns the HTTP client shared by the Micropub client and the media uploader.
// Timeouts surface as transport errors; nothing retries.
func (h HTTPConfig) Client() *http.Client {
	return &http.Client{Timeout: h.Timeout}
}
