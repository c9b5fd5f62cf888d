// Package extract implements the HTML collaborators of the crawl engine: the
// navigation link extractor and the page-to-text converter.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/docscribe/docscribe/internal/crawl"
)

// ErrContentNotFound reports that the content selector matched nothing.
var ErrContentNotFound = errors.New("content not found")

var whitespaceRe = regexp.MustCompile(`[ \t]+`)
var blankLinesRe = regexp.MustCompile(`\n{3,}`)

// Extractor finds navigation links and converts pages to text using goquery.
type Extractor struct{}

// New constructs an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Links returns the unique absolute URLs found under navigationSelector, in
// document order. Fragment-only and non-HTTP links are skipped; links outside
// the base URL's host are skipped because cross-site pages are never part of
// one documentation set.
func (e *Extractor) Links(html []byte, baseURL, navigationSelector string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find(navigationSelector).Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		if abs.Host != base.Host {
			return
		}
		abs.Fragment = ""
		normalized, err := crawl.NormalizeURL(abs.String())
		if err != nil {
			return
		}
		if _, dup := seen[normalized]; dup {
			return
		}
		seen[normalized] = struct{}{}
		links = append(links, normalized)
	})
	return links, nil
}

// Convert extracts the text under the content selector and normalizes its
// whitespace. Exclude selectors are removed before extraction. A page whose
// content selector matches nothing, or yields only whitespace, fails with
// CodeContentMissing.
func (e *Extractor) Convert(html []byte, pageURL string, opts crawl.ConvertOptions) (crawl.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return crawl.Document{}, crawl.NewPageError(pageURL, crawl.CodeUnknown, fmt.Errorf("parse html: %w", err))
	}

	for _, sel := range opts.ExcludeSelectors {
		doc.Find(sel).Remove()
	}

	content := doc.Find(opts.ContentSelector)
	if content.Length() == 0 {
		return crawl.Document{}, crawl.NewPageError(pageURL, crawl.CodeContentMissing, ErrContentNotFound)
	}

	text := normalizeText(content.Text())
	if text == "" {
		return crawl.Document{}, crawl.NewPageError(pageURL, crawl.CodeContentMissing, ErrContentNotFound)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
			title = h1
		} else {
			title = pageURL
		}
	}

	return crawl.Document{Title: title, Text: text}, nil
}

// normalizeText collapses runs of spaces and trims every line, keeping at
// most one blank line between paragraphs.
func normalizeText(raw string) string {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(whitespaceRe.ReplaceAllString(line, " "))
	}
	joined := strings.Join(lines, "\n")
	joined = blankLinesRe.ReplaceAllString(joined, "\n\n")
	return strings.TrimSpace(joined)
}
