package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	noise    = "script, style, nav, footer, header, iframe, noscript, form"
	jobRoots = "div.job-description, section.job-details, #job-content, [itemprop=description]"
	blocks   = "h1, h2, h3, h4, h5, h6, p, li"
)

// HTML extracts the readable text of a job posting page. Page chrome is
// dropped, a recognised job section is preferred over the whole body and
// headings, paragraphs and list items each become one line.
func HTML(page string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("extract: parse html: %w", err)
	}
	doc.Find(noise).Remove()

	root := doc.Find(jobRoots).First()
	if root.Length() == 0 {
		root = doc.Find("body")
	}

	var lines []string
	root.Find(blocks).Each(func(_ int, s *goquery.Selection) {
		// nested blocks (li > p) are emitted by the innermost element
		if s.Find(blocks).Length() > 0 {
			return
		}
		text := strings.Join(strings.Fields(s.Text()), " ")
		if s.Is("li") && text != "" {
			text = "- " + text
		}
		lines = append(lines, text)
	})
	if len(lines) == 0 {
		lines = []string{root.Text()}
	}

	text := Normalize(strings.Join(lines, "\n"))
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}
