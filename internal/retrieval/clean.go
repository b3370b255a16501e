package retrieval

import (
	"regexp"
	"strings"
)

var (
	reMarkdownImage = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	reHTMLImage     = regexp.MustCompile(`(?is)<img[^>]*>`)
	reHTMLComment   = regexp.MustCompile(`(?s)<!--.*?-->`)
	reBlankRun      = regexp.MustCompile(`\n{3,}`)
)

// CleanText strips crawl noise (images, HTML comments, runs of blank lines)
// from a chunk before it is handed to the dashboard writer.
func CleanText(text string) string {
	text = reMarkdownImage.ReplaceAllString(text, "")
	text = reHTMLImage.ReplaceAllString(text, "")
	text = reHTMLComment.ReplaceAllString(text, "")
	text = reBlankRun.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
