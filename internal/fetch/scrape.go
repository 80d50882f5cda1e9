package fetch

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/Benny93/fanout-go/internal/ingestion"
)

// maxTaxonomyLinks is how many category or tag links are read per page.
const maxTaxonomyLinks = 10

// contentSelectors are tried in order; the first match holds the body.
var contentSelectors = []string{
	"article",
	".entry-content",
	".post-content",
	".content",
	"main",
	"#content",
	".main-content",
}

// fallbackSkip lists elements dropped when the whole body is used.
var fallbackSkip = map[string]bool{"script": true, "style": true, "nav": true, "header": true, "footer": true}

var (
	postArticleClass = regexp.MustCompile(`post|blog`)
	postBodyClass    = regexp.MustCompile(`single-post|post-type-post`)
	categoryHref     = regexp.MustCompile(`/category/|/categories/`)
	tagHref          = regexp.MustCompile(`/tag/|/tags/`)
)

// ScrapePage turns an HTML page into a scraped-dialect bundle item:
// nested rendered title, content and excerpt, a synthesized numeric id,
// category and tag names, and a type of post or page.
func ScrapePage(pageURL string, body []byte, contentType string) (ingestion.Item, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("detecting charset: %w", err)
	}
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	kind := "page"
	if looksLikePost(doc, pageURL) {
		kind = "post"
	}

	return ingestion.Item{
		"id":         ingestion.SynthesizeID(pageURL),
		"title":      map[string]any{"rendered": pageTitle(doc)},
		"link":       pageURL,
		"content":    map[string]any{"rendered": pageContent(doc)},
		"excerpt":    map[string]any{"rendered": metaContent(doc, "name", "description")},
		"date":       publishedDate(doc),
		"categories": linkNames(doc, categoryHref),
		"tags":       linkNames(doc, tagHref),
		"type":       kind,
	}, nil
}

func pageTitle(doc *html.Node) string {
	if n := findFirst(doc, byTag("title")); n != nil {
		return strings.TrimSpace(textOf(n, nil, " "))
	}
	if n := findFirst(doc, byTag("h1")); n != nil {
		return strings.TrimSpace(textOf(n, nil, " "))
	}
	return ""
}

func pageContent(doc *html.Node) string {
	for _, selector := range contentSelectors {
		if n := findFirst(doc, parseSelector(selector)); n != nil {
			return textOf(n, nil, "\n")
		}
	}
	if body := findFirst(doc, byTag("body")); body != nil {
		return textOf(body, fallbackSkip, "\n")
	}
	return ""
}

func looksLikePost(doc *html.Node, pageURL string) bool {
	lower := strings.ToLower(pageURL)
	if strings.Contains(lower, "/blog/") || strings.Contains(lower, "/news/") {
		return true
	}
	article := findFirst(doc, func(n *html.Node) bool {
		return n.Data == "article" && hasClassMatching(n, postArticleClass)
	})
	if article != nil {
		return true
	}
	return findFirst(doc, func(n *html.Node) bool { return hasClassMatching(n, postBodyClass) }) != nil
}

func publishedDate(doc *html.Node) string {
	if n := findFirst(doc, byTag("time")); n != nil {
		if dt, ok := attr(n, "datetime"); ok && dt != "" {
			return dt
		}
	}
	return metaContent(doc, "property", "article:published_time")
}

func metaContent(doc *html.Node, key, value string) string {
	n := findFirst(doc, func(n *html.Node) bool {
		if n.Data != "meta" {
			return false
		}
		v, ok := attr(n, key)
		return ok && v == value
	})
	if n == nil {
		return ""
	}
	content, _ := attr(n, "content")
	return content
}

// linkNames returns the trimmed text of the first maxTaxonomyLinks
// anchors whose href matches, dropping empty ones.
func linkNames(doc *html.Node, href *regexp.Regexp) []any {
	links := findAll(doc, func(n *html.Node) bool {
		if n.Data != "a" {
			return false
		}
		v, ok := attr(n, "href")
		return ok && href.MatchString(v)
	})
	if len(links) > maxTaxonomyLinks {
		links = links[:maxTaxonomyLinks]
	}

	names := []any{}
	for _, link := range links {
		if name := strings.TrimSpace(textOf(link, nil, " ")); name != "" {
			names = append(names, name)
		}
	}
	return names
}

type matcher func(*html.Node) bool

func byTag(tag string) matcher {
	return func(n *html.Node) bool { return n.Data == tag }
}

// parseSelector supports the three simple forms used above: tag,
// .class and #id.
func parseSelector(selector string) matcher {
	switch {
	case strings.HasPrefix(selector, "#"):
		id := selector[1:]
		return func(n *html.Node) bool {
			v, ok := attr(n, "id")
			return ok && v == id
		}
	case strings.HasPrefix(selector, "."):
		class := selector[1:]
		return func(n *html.Node) bool {
			for _, c := range classes(n) {
				if c == class {
					return true
				}
			}
			return false
		}
	default:
		return byTag(selector)
	}
}

// findFirst returns the first element in document order that matches.
func findFirst(n *html.Node, match matcher) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func findAll(n *html.Node, match matcher) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			found = append(found, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return found
}

// textOf joins the trimmed, non-empty text nodes under n with sep.
// Script and style contents are never included; skip names further
// elements to leave out.
func textOf(n *html.Node, skip map[string]bool, sep string) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" || skip[n.Data] {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, sep)
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func classes(n *html.Node) []string {
	v, _ := attr(n, "class")
	return strings.Fields(v)
}

func hasClassMatching(n *html.Node, re *regexp.Regexp) bool {
	for _, c := range classes(n) {
		if re.MatchString(c) {
			return true
		}
	}
	return false
}
