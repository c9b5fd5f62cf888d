package worker

import (
	"fmt"
	"strings"
	"time"

	"github.com/docscribe/docscribe/internal/crawl"
)

// Assemble builds the final Markdown artifact from successful page results.
// Pages appear in delivery order. The metadata header and table of contents
// are added only when the plan asks for them.
func Assemble(baseURL, jobID string, plan Plan, pages []crawl.PageResult, generatedAt time.Time) []byte {
	var b strings.Builder

	b.WriteString("# Documentation for ")
	b.WriteString(baseURL)
	b.WriteString("\n\n")

	if plan.Metadata {
		b.WriteString("<!--\n")
		fmt.Fprintf(&b, "  source: %s\n", baseURL)
		fmt.Fprintf(&b, "  job: %s\n", jobID)
		fmt.Fprintf(&b, "  strategy: %s\n", plan.Strategy)
		fmt.Fprintf(&b, "  generated: %s\n", generatedAt.UTC().Format(time.RFC3339))
		fmt.Fprintf(&b, "  pages: %d\n", countSuccessful(pages))
		b.WriteString("-->\n\n")
	}

	if plan.TOC {
		b.WriteString("## Contents\n\n")
		for _, page := range pages {
			if page.Status != crawl.PageSuccess {
				continue
			}
			fmt.Fprintf(&b, "- [%s](#%s)\n", page.Title, anchor(page.Title))
		}
		b.WriteString("\n")
	}

	for _, page := range pages {
		if page.Status != crawl.PageSuccess {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", page.Title)
		fmt.Fprintf(&b, "<!-- %s -->\n\n", page.URL)
		b.WriteString(page.Content)
		b.WriteString("\n\n")
	}

	return []byte(b.String())
}

func countSuccessful(pages []crawl.PageResult) int {
	n := 0
	for _, page := range pages {
		if page.Status == crawl.PageSuccess {
			n++
		}
	}
	return n
}

// anchor converts a heading to the GitHub-style anchor slug.
func anchor(title string) string {
	slug := strings.ToLower(title)
	var b strings.Builder
	for _, r := range slug {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-':
			b.WriteRune('-')
		}
	}
	return b.String()
}
