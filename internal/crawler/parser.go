package crawler

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Boilerplate fragments that show up on every page of a typical
// organization site and carry no answerable content.
var junkPhrases = []string{
	"All Rights Reserved",
	"Cookie Policy",
	"Privacy Policy",
	"Terms of Use",
	"Useful Links",
	"Skip to content",
	"Subscribe to our newsletter",
	"Follow us on",
	"©",
}

var blankLines = regexp.MustCompile(`\n\s*\n+`)

// extractMainContent pulls the main textual content out of a parsed page,
// preferring semantic containers over the raw body.
func extractMainContent(selection *goquery.Selection) string {
	doc := selection.Clone()

	doc.Find("script, style, nav, footer, header, aside, noscript, .nav, .navbar, .footer, .header, .sidebar, .advertisement, .ads, .skip-link").Remove()

	contentSelectors := []string{
		"main",
		"article",
		"[role='main']",
		".main-content",
		".content",
		"#content",
		".post",
		".entry",
		"body",
	}

	var content strings.Builder
	found := false
	for _, selector := range contentSelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if len(text) > 100 {
				content.WriteString(text)
				content.WriteString("\n\n")
				found = true
			}
		})
		if found {
			break
		}
	}
	if !found {
		content.WriteString(doc.Find("body").Text())
	}

	return strings.TrimSpace(content.String())
}

// CleanText strips boilerplate phrases, collapses blank runs, and drops
// fragments too short to be a real paragraph.
func CleanText(text string) string {
	for _, junk := range junkPhrases {
		text = strings.ReplaceAll(text, junk, "")
	}

	text = blankLines.ReplaceAllString(text, "\n\n")

	paragraphs := strings.Split(text, "\n\n")
	kept := paragraphs[:0]
	for _, p := range paragraphs {
		lines := strings.Split(p, "\n")
		for i, line := range lines {
			lines[i] = strings.TrimSpace(line)
		}
		p = strings.TrimSpace(strings.Join(lines, "\n"))
		if len(p) >= 30 {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return strings.TrimSpace(text)
	}
	return strings.Join(kept, "\n\n")
}
