// Package content assembles publishable post bodies: Markdown rendering,
// title extraction, word counting, excerpts, and media embedding.
package content

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

// RenderHTML converts generated Markdown into the HTML body sent to the CMS.
func RenderHTML(markdownBody string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(markdownBody), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// ExtractTitle pulls the first heading out of a Markdown draft. When the
// draft has no heading the topic itself is title-cased as a fallback.
func ExtractTitle(markdownBody, topic string) string {
	for _, line := range strings.Split(markdownBody, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			title := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			if title != "" {
				return title
			}
		}
	}
	return cases.Title(language.English).String(strings.TrimSpace(topic))
}

// StripLeadingTitle removes the first top-level heading from a Markdown
// draft; the CMS renders the title separately and duplicating it reads badly.
func StripLeadingTitle(markdownBody string) string {
	lines := strings.Split(markdownBody, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimLeft(strings.Join(lines[i+1:], "\n"), "\n")
		}
		break
	}
	return markdownBody
}

// WordCount counts the words a reader would see. HTML input is reduced to
// its text before counting so markup never inflates the tally.
func WordCount(body string) int {
	text := body
	if strings.Contains(body, "<") {
		if plain, err := PlainText(body); err == nil {
			text = plain
		}
	}
	return len(strings.Fields(text))
}

// PlainText reduces an HTML fragment to its visible text.
func PlainText(htmlBody string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	return strings.Join(strings.Fields(doc.Text()), " "), nil
}

// Excerpt produces a short plain-text summary from the rendered body.
func Excerpt(htmlBody string, maxWords int) (string, error) {
	plain, err := PlainText(htmlBody)
	if err != nil {
		return "", err
	}
	words := strings.Fields(plain)
	if len(words) <= maxWords {
		return plain, nil
	}
	return strings.Join(words[:maxWords], " ") + "…", nil
}

// EmbedVideo injects a video iframe roughly mid-article, between paragraphs,
// mirroring where an editor would drop a supporting clip.
func EmbedVideo(htmlBody, videoRef string) string {
	if strings.TrimSpace(videoRef) == "" {
		return htmlBody
	}
	embed := fmt.Sprintf(`<figure class="video-embed"><iframe src="%s" allowfullscreen loading="lazy"></iframe></figure>`, videoRef)

	const marker = "</p>"
	positions := []int{}
	offset := 0
	for {
		idx := strings.Index(htmlBody[offset:], marker)
		if idx < 0 {
			break
		}
		positions = append(positions, offset+idx+len(marker))
		offset += idx + len(marker)
	}
	if len(positions) < 2 {
		return htmlBody + "\n" + embed
	}
	mid := positions[len(positions)/2]
	return htmlBody[:mid] + "\n" + embed + htmlBody[mid:]
}
