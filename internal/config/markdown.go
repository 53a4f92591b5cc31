package config

import "regexp"

const (
	RendererClassic = "classic"
	RendererMmark   = "mmark"
)

var (
	// RegexCallout matches a "// <<N>>" callout in highlighted, HTML-escaped code.
	RegexCallout = regexp.MustCompile(`//\s*&lt;&lt;(\d+)&gt;&gt;`)
)
