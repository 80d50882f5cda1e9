package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Benny93/fanout-go/internal/ingestion"
)

// Page sizes used against the REST API.
const (
	contentPerPage  = 100
	taxonomyPerPage = 100
	mediaPerPage    = 50
)

// invalidPageCode is the error code WordPress returns for a page number
// past the last page.
const invalidPageCode = "rest_post_invalid_page_number"

const acceptJSON = "application/json"

// WordPressFetcher reads content from the WordPress REST API
// (/wp-json/wp/v2).
type WordPressFetcher struct {
	siteURL string
	apiBase string
	client  *Client
	logger  *zap.Logger
}

// NewWordPressFetcher creates a fetcher for siteURL. Requests are paced
// at DefaultAPIInterval unless WithInterval says otherwise.
func NewWordPressFetcher(siteURL string, opts ...Option) *WordPressFetcher {
	site := strings.TrimRight(siteURL, "/")
	client := newClient(DefaultAPIInterval, opts)
	return &WordPressFetcher{
		siteURL: site,
		apiBase: site + "/wp-json/wp/v2",
		client:  client,
		logger:  client.logger.Named("wordpress"),
	}
}

// Name identifies the source in logs.
func (f *WordPressFetcher) Name() string {
	return "wordpress api"
}

// Fetch reads every collection. Failures of a single collection are
// logged and leave it empty; only cancellation is returned as an error.
func (f *WordPressFetcher) Fetch(ctx context.Context) (*ingestion.RawContentBundle, error) {
	f.logger.Info("fetching content", zap.String("site", f.siteURL))

	if !f.TestConnection(ctx) {
		f.logger.Warn("API connection test failed, continuing anyway")
	}

	bundle := &ingestion.RawContentBundle{
		Posts:      f.fetchPaginated(ctx, "posts"),
		Pages:      f.fetchPaginated(ctx, "pages"),
		Categories: f.fetchList(ctx, "categories", taxonomyPerPage),
		Tags:       f.fetchList(ctx, "tags", taxonomyPerPage),
		Media:      f.fetchList(ctx, "media", mediaPerPage),
	}
	if err := ctx.Err(); err != nil {
		return nil, &ingestion.PhaseError{Phase: ingestion.PhaseFetch, Err: err}
	}

	f.logger.Info("content fetched",
		zap.Int("posts", len(bundle.Posts)),
		zap.Int("pages", len(bundle.Pages)),
	)
	return bundle, nil
}

// TestConnection probes the posts endpoint and logs a diagnosis when it
// is not reachable.
func (f *WordPressFetcher) TestConnection(ctx context.Context) bool {
	probe := f.endpoint("posts", url.Values{"per_page": {"1"}})
	f.logger.Info("testing API connection", zap.String("url", probe))

	resp, err := f.client.Get(ctx, probe, acceptJSON)
	if err != nil {
		f.logger.Error("failed to connect to REST API, verify the site URL", zap.Error(err))
		return false
	}

	switch resp.StatusCode {
	case http.StatusOK:
		f.logger.Info("REST API is accessible")
		return true
	case http.StatusForbidden:
		fields := []zap.Field{zap.String("url", probe), zap.String("response", preview(resp.Body))}
		if looksLikeCloudflare(resp.Body) {
			fields = append(fields, zap.Bool("cloudflare_challenge", true))
		}
		f.logger.Error("REST API access forbidden; bot protection or a security plugin is likely blocking requests", fields...)
	case http.StatusNotFound:
		f.logger.Error("REST API endpoint not found; check that the REST API is enabled", zap.String("url", probe))
	case http.StatusUnauthorized:
		f.logger.Error("REST API requires authentication", zap.String("response", preview(resp.Body)))
	default:
		f.logger.Warn("unexpected API status", zap.Int("status", resp.StatusCode), zap.String("response", preview(resp.Body)))
	}
	return false
}

// fetchPaginated pages through a content collection until an empty
// page, the past-the-end 400, or any other failure.
func (f *WordPressFetcher) fetchPaginated(ctx context.Context, collection string) []ingestion.Item {
	var items []ingestion.Item
	logger := f.logger.With(zap.String("collection", collection))

	for page := 1; ; page++ {
		endpoint := f.endpoint(collection, url.Values{
			"per_page": {strconv.Itoa(contentPerPage)},
			"page":     {strconv.Itoa(page)},
			"_embed":   {"true"},
		})

		resp, err := f.client.Get(ctx, endpoint, acceptJSON)
		if err != nil {
			logger.Error("request failed", zap.Error(err))
			break
		}

		if resp.StatusCode == http.StatusBadRequest {
			if apiErrorCode(resp.Body) == invalidPageCode {
				logger.Info("reached end of collection", zap.Int("pages", page-1))
			} else {
				logger.Warn("bad request", zap.String("response", preview(resp.Body)))
			}
			break
		}
		if resp.StatusCode != http.StatusOK {
			logger.Warn("unexpected status", zap.Int("status", resp.StatusCode), zap.Int("page", page), zap.String("response", preview(resp.Body)))
			break
		}

		batch, err := decodeItems(resp.Body)
		if err != nil {
			logger.Error("decoding page", zap.Int("page", page), zap.Error(err))
			break
		}
		logger.Info("received page", zap.Int("page", page), zap.Int("items", len(batch)))
		if len(batch) == 0 {
			break
		}
		items = append(items, batch...)
	}

	logger.Info("collection fetched", zap.Int("total", len(items)))
	return items
}

// fetchList reads one page of a collection. Any failure yields an empty
// list.
func (f *WordPressFetcher) fetchList(ctx context.Context, collection string, perPage int) []ingestion.Item {
	endpoint := f.endpoint(collection, url.Values{"per_page": {strconv.Itoa(perPage)}})
	resp, err := f.client.Get(ctx, endpoint, acceptJSON)
	if err != nil {
		f.logger.Warn("request failed", zap.String("collection", collection), zap.Error(err))
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		f.logger.Warn("unexpected status", zap.String("collection", collection), zap.Int("status", resp.StatusCode))
		return nil
	}
	items, err := decodeItems(resp.Body)
	if err != nil {
		f.logger.Warn("decoding collection", zap.String("collection", collection), zap.Error(err))
		return nil
	}
	return items
}

func (f *WordPressFetcher) endpoint(collection string, query url.Values) string {
	return f.apiBase + "/" + collection + "?" + query.Encode()
}

// decodeItems decodes a JSON array, keeping numbers as json.Number the
// way ingestion.DecodeBundle does. Elements that are not objects become
// nil items so the builder can count them as skipped.
func decodeItems(body []byte) ([]ingestion.Item, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var list []any
	if err := dec.Decode(&list); err != nil {
		return nil, fmt.Errorf("decoding items: %w", err)
	}

	items := make([]ingestion.Item, 0, len(list))
	for _, elem := range list {
		m, _ := elem.(map[string]any)
		items = append(items, ingestion.Item(m))
	}
	return items, nil
}

func apiErrorCode(body []byte) string {
	var payload struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Code
}

func looksLikeCloudflare(body []byte) bool {
	lower := bytes.ToLower(body)
	return bytes.Contains(lower, []byte("cloudflare")) || bytes.Contains(body, []byte("__CF$cv$params"))
}
