package fetch

import (
	"bytes"
	"context"
	"encoding/xml"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/Benny93/fanout-go/internal/ingestion"
)

const acceptXML = "application/xml,text/xml;q=0.9,*/*;q=0.8"

// URLClass is how a sitemap URL is routed into the bundle.
type URLClass int

const (
	ClassPost URLClass = iota
	ClassPage
	ClassCategory
	ClassTag
	ClassMedia
	// ClassSitemap marks nested sitemap files listed as plain URLs.
	ClassSitemap
)

var (
	mediaExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".pdf", ".mp4", ".mp3"}
	pagePatterns    = []string{"/page/", "/about", "/contact", "/privacy", "/terms", "/services", "/products"}
)

// ClassifyURL routes a URL by its path patterns. Anything unmatched is
// assumed to be a post.
func ClassifyURL(u string) URLClass {
	lower := strings.ToLower(u)
	switch {
	case strings.Contains(lower, "sitemap") && strings.HasSuffix(lower, ".xml"):
		return ClassSitemap
	case strings.Contains(lower, "/category/") || strings.Contains(lower, "/categories/"):
		return ClassCategory
	case strings.Contains(lower, "/tag/") || strings.Contains(lower, "/tags/"):
		return ClassTag
	case strings.Contains(lower, "/wp-content/uploads/") || containsAny(lower, mediaExtensions):
		return ClassMedia
	case containsAny(lower, pagePatterns):
		return ClassPage
	default:
		return ClassPost
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// sitemapDocument decodes both <urlset> and <sitemapindex>. Unqualified
// field tags match any namespace.
type sitemapDocument struct {
	XMLName  xml.Name
	URLs     []sitemapLoc `xml:"url"`
	Sitemaps []sitemapLoc `xml:"sitemap"`
}

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// SitemapFetcher walks a sitemap (recursively through sitemap indexes)
// and scrapes every listed content URL.
type SitemapFetcher struct {
	siteURL    string
	sitemapURL string
	client     *Client
	logger     *zap.Logger
}

// NewSitemapFetcher creates a fetcher. sitemapURL may be absolute,
// relative to the site, or empty for /sitemap.xml.
func NewSitemapFetcher(siteURL, sitemapURL string, opts ...Option) *SitemapFetcher {
	site := strings.TrimRight(siteURL, "/")
	client := newClient(DefaultPageInterval, opts)
	return &SitemapFetcher{
		siteURL:    site,
		sitemapURL: ResolveSitemapURL(site, sitemapURL),
		client:     client,
		logger:     client.logger.Named("sitemap"),
	}
}

// ResolveSitemapURL makes a sitemap location absolute.
func ResolveSitemapURL(siteURL, sitemapURL string) string {
	site := strings.TrimRight(siteURL, "/")
	switch {
	case sitemapURL == "":
		return site + "/sitemap.xml"
	case strings.HasPrefix(sitemapURL, "http://"), strings.HasPrefix(sitemapURL, "https://"):
		return sitemapURL
	default:
		return site + "/" + strings.TrimLeft(sitemapURL, "/")
	}
}

// Name identifies the source in logs.
func (f *SitemapFetcher) Name() string {
	return "sitemap"
}

// SitemapURL returns the resolved root sitemap location.
func (f *SitemapFetcher) SitemapURL() string {
	return f.sitemapURL
}

// Fetch collects the sitemap URLs and builds a scraped-dialect bundle.
// Categories and tags carry only their URL; posts and pages are
// scraped. Pages that cannot be scraped are logged and left out.
func (f *SitemapFetcher) Fetch(ctx context.Context) (*ingestion.RawContentBundle, error) {
	f.logger.Info("fetching content from sitemap", zap.String("sitemap", f.sitemapURL))

	urls := f.CollectURLs(ctx)
	f.logger.Info("sitemap URLs found", zap.Int("urls", len(urls)))

	bundle := &ingestion.RawContentBundle{}
	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return nil, &ingestion.PhaseError{Phase: ingestion.PhaseFetch, Err: err}
		}

		switch ClassifyURL(u) {
		case ClassSitemap:
			continue
		case ClassCategory:
			bundle.Categories = append(bundle.Categories, ingestion.Item{"url": u})
		case ClassTag:
			bundle.Tags = append(bundle.Tags, ingestion.Item{"url": u})
		case ClassMedia:
			bundle.Media = append(bundle.Media, ingestion.Item{"url": u})
		case ClassPage:
			if item := f.scrape(ctx, u); item != nil {
				bundle.Pages = append(bundle.Pages, item)
			}
		default:
			if item := f.scrape(ctx, u); item != nil {
				bundle.Posts = append(bundle.Posts, item)
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, &ingestion.PhaseError{Phase: ingestion.PhaseFetch, Err: err}
	}

	f.logger.Info("content fetched",
		zap.Int("posts", len(bundle.Posts)),
		zap.Int("pages", len(bundle.Pages)),
		zap.Int("categories", len(bundle.Categories)),
		zap.Int("tags", len(bundle.Tags)),
	)
	return bundle, nil
}

func (f *SitemapFetcher) scrape(ctx context.Context, u string) ingestion.Item {
	resp, err := f.client.Get(ctx, u, "text/html,application/xhtml+xml")
	if err != nil {
		f.logger.Warn("fetching page failed", zap.String("url", u), zap.Error(err))
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		f.logger.Warn("unexpected page status", zap.String("url", u), zap.Int("status", resp.StatusCode))
		return nil
	}
	item, err := ScrapePage(u, resp.Body, resp.ContentType)
	if err != nil {
		f.logger.Warn("parsing page failed", zap.String("url", u), zap.Error(err))
		return nil
	}
	return item
}

// CollectURLs returns every <url><loc> reachable from the root sitemap,
// deduplicated in document order. Each sitemap is fetched at most once.
func (f *SitemapFetcher) CollectURLs(ctx context.Context) []string {
	w := &sitemapWalk{
		fetcher: f,
		visited: make(map[string]bool),
		seen:    make(map[string]bool),
	}
	w.walk(ctx, f.sitemapURL)
	return w.urls
}

type sitemapWalk struct {
	fetcher *SitemapFetcher
	visited map[string]bool
	seen    map[string]bool
	urls    []string
}

func (w *sitemapWalk) walk(ctx context.Context, sitemapURL string) {
	if w.visited[sitemapURL] || ctx.Err() != nil {
		return
	}
	w.visited[sitemapURL] = true

	logger := w.fetcher.logger.With(zap.String("sitemap", sitemapURL))
	logger.Info("fetching sitemap")

	doc, ok := w.fetch(ctx, sitemapURL, logger)
	if !ok {
		return
	}

	if doc.XMLName.Local == "sitemapindex" {
		for _, nested := range doc.Sitemaps {
			loc := strings.TrimSpace(nested.Loc)
			if loc == "" {
				continue
			}
			loc = resolveReference(sitemapURL, loc)
			logger.Info("found nested sitemap", zap.String("nested", loc))
			w.walk(ctx, loc)
		}
		return
	}

	for _, entry := range doc.URLs {
		loc := strings.TrimSpace(entry.Loc)
		if loc == "" || w.seen[loc] {
			continue
		}
		w.seen[loc] = true
		w.urls = append(w.urls, loc)
	}
	logger.Info("extracted sitemap URLs", zap.Int("urls", len(doc.URLs)))
}

func (w *sitemapWalk) fetch(ctx context.Context, sitemapURL string, logger *zap.Logger) (*sitemapDocument, bool) {
	resp, err := w.fetcher.client.Get(ctx, sitemapURL, acceptXML)
	if err != nil {
		logger.Error("fetching sitemap failed", zap.Error(err))
		return nil, false
	}
	if resp.StatusCode != http.StatusOK {
		logger.Error("unexpected sitemap status", zap.Int("status", resp.StatusCode))
		return nil, false
	}

	body := bytes.TrimPrefix(resp.Body, []byte("\ufeff"))
	trimmed := bytes.TrimSpace(body)
	switch {
	case len(trimmed) == 0:
		logger.Error("received empty sitemap")
		return nil, false
	case looksLikeHTML(trimmed):
		logger.Error("received HTML instead of XML; the sitemap URL may be wrong or redirect to a page",
			zap.String("content_type", resp.ContentType),
			zap.String("response", preview(trimmed)),
		)
		return nil, false
	case trimmed[0] != '<':
		logger.Error("response does not look like XML", zap.String("response", preview(trimmed)))
		return nil, false
	}

	var doc sitemapDocument
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = charset.NewReaderLabel
	if err := dec.Decode(&doc); err != nil {
		logger.Error("parsing sitemap XML failed",
			zap.Error(err),
			zap.String("content_type", resp.ContentType),
			zap.String("response", preview(trimmed)),
		)
		return nil, false
	}
	return &doc, true
}

func looksLikeHTML(body []byte) bool {
	head := bytes.ToLower(body[:min(len(body), 64)])
	return bytes.HasPrefix(head, []byte("<!doctype")) || bytes.HasPrefix(head, []byte("<html"))
}

// resolveReference resolves a possibly relative location against base.
func resolveReference(base, ref string) string {
	if strings.HasPrefix(ref, "http") {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
