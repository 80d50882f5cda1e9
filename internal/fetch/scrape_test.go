package fetch

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/fanout-go/internal/ingestion"
)

const articleHTML = `<!DOCTYPE html>
<html><head><title> Hello World </title>
<meta name="description" content="A friendly greeting">
<script>var x = 1;</script>
</head>
<body class="home">
<nav>Menu</nav>
<div class="entry-content">Not chosen</div>
<article class="hentry type-post">
<h2>Intro</h2>
<p>First paragraph.</p>
<p>Second <a href="/category/seo-tips/">SEO Tips</a> and <a href="/tag/links/">Links</a></p>
<time datetime="2026-01-02T03:04:05Z">Jan 2</time>
</article>
</body></html>`

func TestScrapePage(t *testing.T) {
	t.Parallel()

	t.Run("Article", func(t *testing.T) {
		t.Parallel()

		const u = "https://example.com/news/hello/"
		item, err := ScrapePage(u, []byte(articleHTML), "text/html; charset=utf-8")
		require.NoError(t, err)

		assert.Equal(t, ingestion.SynthesizeID(u), item["id"])
		assert.Equal(t, map[string]any{"rendered": "Hello World"}, item["title"])
		assert.Equal(t, map[string]any{"rendered": "Intro\nFirst paragraph.\nSecond\nSEO Tips\nand\nLinks\nJan 2"}, item["content"])
		assert.Equal(t, map[string]any{"rendered": "A friendly greeting"}, item["excerpt"])
		assert.Equal(t, "2026-01-02T03:04:05Z", item["date"])
		assert.Equal(t, u, item["link"])
		assert.Equal(t, []any{"SEO Tips"}, item["categories"])
		assert.Equal(t, []any{"Links"}, item["tags"])
		assert.Equal(t, "post", item["type"], "news URLs are posts")
	})

	t.Run("SelectorPriority", func(t *testing.T) {
		t.Parallel()

		page := `<html><body><div id="content">Outer</div><div class="post-content">Inner</div></body></html>`
		item, err := ScrapePage("https://example.com/x/", []byte(page), "")
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"rendered": "Inner"}, item["content"], ".post-content outranks #content")
	})

	t.Run("BodyFallback", func(t *testing.T) {
		t.Parallel()

		page := `<html><body><h1>Only Heading</h1><nav>Menu</nav><header>Top</header>
<div>Body text</div><script>x()</script><footer>Foot</footer>
<meta property="article:published_time" content="2025-12-01"></body></html>`
		item, err := ScrapePage("https://example.com/about/", []byte(page), "")
		require.NoError(t, err)

		assert.Equal(t, map[string]any{"rendered": "Only Heading"}, item["title"])
		assert.Equal(t, map[string]any{"rendered": "Only Heading\nBody text"}, item["content"])
		assert.Equal(t, map[string]any{"rendered": ""}, item["excerpt"])
		assert.Equal(t, "2025-12-01", item["date"])
		assert.Equal(t, "page", item["type"])
		assert.Equal(t, []any{}, item["categories"])
	})

	t.Run("PostDetection", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name string
			page string
			want string
		}{
			{"ArticleClass", `<article class="blog-entry">x</article>`, "post"},
			{"BodyClass", `<body class="single-post">x</body>`, "post"},
			{"PlainArticle", `<article class="entry">x</article>`, "page"},
		}
		for _, tt := range tests {
			item, err := ScrapePage("https://example.com/x/", []byte(tt.page), "")
			require.NoError(t, err, tt.name)
			assert.Equal(t, tt.want, item["type"], tt.name)
		}
	})

	t.Run("TaxonomyLinkLimit", func(t *testing.T) {
		t.Parallel()

		var b strings.Builder
		b.WriteString(`<html><body><a href="/category/empty/"> </a>`)
		for i := 0; i < 11; i++ {
			fmt.Fprintf(&b, `<a href="/category/c%d/">C%d</a>`, i, i)
		}
		b.WriteString(`</body></html>`)

		item, err := ScrapePage("https://example.com/x/", []byte(b.String()), "")
		require.NoError(t, err)

		names := item["categories"].([]any)
		assert.Len(t, names, maxTaxonomyLinks-1, "the limit applies before empty names are dropped")
		assert.Equal(t, "C0", names[0])
		assert.Equal(t, "C8", names[len(names)-1])
	})
}
