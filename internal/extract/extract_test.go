package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docscribe/docscribe/internal/crawl"
)

const navPage = `<!DOCTYPE html>
<html>
<head><title>Example Docs</title></head>
<body>
<nav class="sidebar">
  <a href="/guide">Guide</a>
  <a href="/guide">Guide again</a>
  <a href="reference/api">API</a>
  <a href="https://docs.example.com/install#requirements">Install</a>
  <a href="https://other-site.com/page">External</a>
  <a href="#section">Fragment only</a>
  <a href="mailto:team@example.com">Mail</a>
</nav>
<main>Hello</main>
</body>
</html>`

func TestLinksDocumentOrderAndDedup(t *testing.T) {
	t.Parallel()

	links, err := New().Links([]byte(navPage), "https://docs.example.com/", "nav.sidebar")
	require.NoError(t, err)
	require.Equal(t, []string{
		"https://docs.example.com/guide",
		"https://docs.example.com/reference/api",
		"https://docs.example.com/install",
	}, links)
}

func TestLinksSkipsOtherHosts(t *testing.T) {
	t.Parallel()

	links, err := New().Links([]byte(navPage), "https://docs.example.com/", "nav.sidebar")
	require.NoError(t, err)
	for _, link := range links {
		require.NotContains(t, link, "other-site.com")
	}
}

func TestLinksEmptyNavigation(t *testing.T) {
	t.Parallel()

	links, err := New().Links([]byte("<html><body><p>no nav</p></body></html>"), "https://docs.example.com/", "nav")
	require.NoError(t, err)
	require.Empty(t, links)
}

func TestLinksBadBaseURL(t *testing.T) {
	t.Parallel()

	_, err := New().Links([]byte(navPage), "://broken", "nav")
	require.Error(t, err)
}

const contentPage = `<!DOCTYPE html>
<html>
<head><title>Install Guide</title></head>
<body>
<main>
  <div class="ads">BUY NOW</div>
  <h1>Installation</h1>
  <p>Run   the    installer.</p>


  <p>Then restart.</p>
</main>
</body>
</html>`

func TestConvertExtractsAndNormalizes(t *testing.T) {
	t.Parallel()

	doc, err := New().Convert([]byte(contentPage), "https://docs.example.com/install", crawl.ConvertOptions{
		ContentSelector:  "main",
		ExcludeSelectors: []string{".ads"},
	})
	require.NoError(t, err)
	require.Equal(t, "Install Guide", doc.Title)
	require.Contains(t, doc.Text, "Run the installer.")
	require.Contains(t, doc.Text, "Then restart.")
	require.NotContains(t, doc.Text, "BUY NOW")
	require.NotContains(t, doc.Text, "\n\n\n")
}

func TestConvertMissingContentSelector(t *testing.T) {
	t.Parallel()

	_, err := New().Convert([]byte(contentPage), "https://docs.example.com/install", crawl.ConvertOptions{
		ContentSelector: "#does-not-exist",
	})
	var pageErr *crawl.PageError
	require.ErrorAs(t, err, &pageErr)
	require.Equal(t, crawl.CodeContentMissing, pageErr.Code)
}

func TestConvertWhitespaceOnlyContent(t *testing.T) {
	t.Parallel()

	page := `<html><head><title>T</title></head><body><main>
	</main></body></html>`
	_, err := New().Convert([]byte(page), "https://docs.example.com/x", crawl.ConvertOptions{
		ContentSelector: "main",
	})
	var pageErr *crawl.PageError
	require.ErrorAs(t, err, &pageErr)
	require.Equal(t, crawl.CodeContentMissing, pageErr.Code)
}

func TestConvertTitleFallbacks(t *testing.T) {
	t.Parallel()

	e := New()

	h1Page := `<html><body><main><h1>From H1</h1><p>text</p></main></body></html>`
	doc, err := e.Convert([]byte(h1Page), "https://docs.example.com/a", crawl.ConvertOptions{ContentSelector: "main"})
	require.NoError(t, err)
	require.Equal(t, "From H1", doc.Title)

	barePage := `<html><body><main><p>text</p></main></body></html>`
	doc, err = e.Convert([]byte(barePage), "https://docs.example.com/b", crawl.ConvertOptions{ContentSelector: "main"})
	require.NoError(t, err)
	require.Equal(t, "https://docs.example.com/b", doc.Title)
}
