package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Benny93/fanout-go/internal/graph"
)

func TestNormalizeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"Empty", "", ""},
		{"PlainText", "hello", "hello"},
		{"StripsTags", "<p>Hello <b>world</b></p>", "Hello world"},
		{"CollapsesWhitespace", "  a \n\n\t b  ", "a b"},
		{"TagAcrossLines", "x<a\nhref='y'>z", "xz"},
		{"NonGreedy", "<i>a</i> b <i>c</i>", "a b c"},
		{"UnclosedTagKept", "5 < 6 and more", "5 < 6 and more"},
		{"OnlyMarkup", "<div><br/></div>", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NormalizeText(tt.in))
		})
	}
}

func TestSynthesizeID(t *testing.T) {
	t.Parallel()

	t.Run("IsDeterministic", func(t *testing.T) {
		t.Parallel()

		url := "https://example.com/category/news/"
		assert.Equal(t, SynthesizeID(url), SynthesizeID(url))
		assert.Equal(t,
			SyntheticTaxonomyNodeID(graph.KindCategory, url),
			SyntheticTaxonomyNodeID(graph.KindCategory, url),
		)
	})

	t.Run("StaysInRange", func(t *testing.T) {
		t.Parallel()

		for _, url := range []string{"", "a", "https://example.com/tag/go/", "https://example.com/x?y=z"} {
			id := SynthesizeID(url)
			assert.GreaterOrEqual(t, id, int64(0))
			assert.Less(t, id, int64(SyntheticIDModulus))
		}
	})

	t.Run("DiffersByURL", func(t *testing.T) {
		t.Parallel()
		assert.NotEqual(t, SynthesizeID("https://example.com/tag/a/"), SynthesizeID("https://example.com/tag/b/"))
	})
}

func TestTaxonomyNodeIDs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "cat_3", TaxonomyNodeID(graph.KindCategory, "3"))
	assert.Equal(t, "tag_3", TaxonomyNodeID(graph.KindTag, "3"))
	assert.Equal(t, "page_9", PageNodeID("9"))
}

func TestTaxonomyNameFromURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url      string
		wantName string
		wantSlug string
	}{
		{"https://example.com/category/seo-tips/", "Seo Tips", "seo-tips"},
		{"https://example.com/tag/golang", "Golang", "golang"},
		{"https://example.com/category/a-b-c//", "A B C", "a-b-c"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()
			name, slug := TaxonomyNameFromURL(tt.url)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantSlug, slug)
		})
	}
}
