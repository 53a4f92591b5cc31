package render

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
)

var pageTemplate = template.Must(template.New("preview").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { max-width: 48rem; margin: 2rem auto; padding: 0 1rem; font-family: sans-serif; line-height: 1.5; }
img { max-width: 100%; }
.callout { font-weight: bold; }
{{.SyntaxCSS}}
</style>
</head>
<body>
<article>
{{.Body}}
</article>
</body>
</html>
`))

// Page wraps rendered HTML in a standalone document with the syntax theme's CSS.
func Page(title string, body []byte, theme string) ([]byte, error) {
	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, struct {
		Title     string
		SyntaxCSS template.CSS
		Body      template.HTML
	}{
		Title:     title,
		SyntaxCSS: GenerateSyntaxCSS(theme),
		Body:      template.HTML(body),
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Preview renders a draft body to a standalone HTML page.
func Preview(title string, md []byte, renderer, theme string) ([]byte, error) {
	body, info := RenderMarkdown(md, renderer, theme)
	if title == "" && info != nil {
		title = info.Title
	}
	return Page(title, body, theme)
}

func GenerateSyntaxCSS(theme string) template.CSS {
	var buf strings.Builder
	style := styles.Get(theme)
	if style == nil {
		style = styles.Fallback
	}

	bg := style.Get(chroma.Background)
	if !bg.Colour.IsSet() {
		// Calculate the color of highlighted text given the background color
		// for when the Chroma theme doesn't supply a default
		luminance := (0.299*float64(bg.Background.Red()) +
			0.587*float64(bg.Background.Green()) +
			0.114*float64(bg.Background.Blue())) / 255
		if luminance > 0.5 {
			buf.WriteString(".chroma { color: #181818; }\n")
		}
	}

	if err := GetFormatter().WriteCSS(&buf, style); err != nil {
		renderLogger.Warn().Err(err).Str("theme", theme).Msg("Failed to generate syntax CSS")
	}
	return template.CSS(buf.String())
}
