// Package ingestion turns raw site content into a content graph.
//
// Sources deliver a RawContentBundle in one of two dialects: the
// structured REST dialect (nested "rendered" text holders, numeric
// taxonomy IDs) or the scraped dialect (flat strings, taxonomy names and
// URLs). The Builder accepts both per item, without a global mode switch.
package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/Benny93/fanout-go/internal/graph"
)

// Item is one loosely-typed record from a content source. A nil Item
// stands for an element that was not a JSON object.
type Item map[string]any

// RawContentBundle is everything a content source produced for one run.
type RawContentBundle struct {
	Posts      []Item `json:"posts"`
	Pages      []Item `json:"pages"`
	Categories []Item `json:"categories"`
	Tags       []Item `json:"tags"`
	Media      []Item `json:"media"`
}

// bundleFields lists the collections in the order they are decoded.
var bundleFields = []string{"posts", "pages", "categories", "tags", "media"}

// DecodeBundle reads a JSON bundle. Numbers are kept as json.Number so
// integer IDs survive intact. A document that is not an object, or a
// collection that is not an array, is a structural error.
func DecodeBundle(r io.Reader) (*RawContentBundle, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, &PhaseError{Phase: PhaseDecode, Err: fmt.Errorf("%w: %v", ErrMalformedBundle, err)}
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, &PhaseError{Phase: PhaseDecode, Err: fmt.Errorf("%w: document is %T, want object", ErrMalformedBundle, doc)}
	}

	bundle := &RawContentBundle{}
	targets := map[string]*[]Item{
		"posts":      &bundle.Posts,
		"pages":      &bundle.Pages,
		"categories": &bundle.Categories,
		"tags":       &bundle.Tags,
		"media":      &bundle.Media,
	}

	for _, field := range bundleFields {
		raw, present := obj[field]
		if !present || raw == nil {
			continue
		}
		list, ok := raw.([]any)
		if !ok {
			return nil, &PhaseError{Phase: PhaseDecode, Err: fmt.Errorf("%w: %s is %T, want array", ErrMalformedBundle, field, raw)}
		}
		items := make([]Item, 0, len(list))
		for _, elem := range list {
			m, _ := elem.(map[string]any)
			items = append(items, Item(m))
		}
		*targets[field] = items
	}

	return bundle, nil
}

// EncodeBundle writes the bundle as indented JSON.
func EncodeBundle(w io.Writer, bundle *RawContentBundle) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(bundle)
}

// TextShape reports which dialect a text field arrived in.
type TextShape int

const (
	TextAbsent TextShape = iota
	TextFlat
	TextNested
)

// TextValue is a title, content or excerpt field resolved from either
// a flat string or a {"rendered": "..."} holder.
type TextValue struct {
	Shape TextShape
	Text  string
}

// ResolveText resolves a raw field value. Absent values and holders
// without "rendered" yield empty text; any other shape is an error.
func ResolveText(v any) (TextValue, error) {
	switch val := v.(type) {
	case nil:
		return TextValue{Shape: TextAbsent}, nil
	case string:
		return TextValue{Shape: TextFlat, Text: val}, nil
	case map[string]any:
		rendered, ok := val["rendered"]
		if !ok || rendered == nil {
			return TextValue{Shape: TextNested}, nil
		}
		s, ok := rendered.(string)
		if !ok {
			return TextValue{}, fmt.Errorf("rendered text is %T, want string", rendered)
		}
		return TextValue{Shape: TextNested, Text: s}, nil
	case map[string]string:
		return TextValue{Shape: TextNested, Text: val["rendered"]}, nil
	case Item:
		return ResolveText(map[string]any(val))
	default:
		return TextValue{}, fmt.Errorf("text field is %T, want string or rendered holder", v)
	}
}

// textField resolves the named field of an item.
func textField(item Item, key string) (string, error) {
	tv, err := ResolveText(item[key])
	if err != nil {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	return tv.Text, nil
}

// stringField returns an optional plain string field.
func stringField(item Item, key string) (string, error) {
	switch val := item[key].(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	default:
		return "", fmt.Errorf("%s is %T, want string", key, val)
	}
}

// nativeID formats a source identifier. Integers are rendered without a
// fractional part; non-empty strings are used verbatim.
func nativeID(v any) (string, bool) {
	if n, ok := integerValue(v); ok {
		return strconv.FormatInt(n, 10), true
	}
	switch val := v.(type) {
	case string:
		return val, val != ""
	case json.Number:
		return val.String(), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	}
	return "", false
}

// integerValue extracts an integer from JSON or Go numeric values.
func integerValue(v any) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		if val > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	case float64:
		if val == math.Trunc(val) && !math.IsInf(val, 0) {
			return int64(val), true
		}
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n, true
		}
	}
	return 0, false
}

// parseRefs converts a categories/tags container into references.
// Integers become ID references and strings become name references;
// other elements are ignored. A container that is not a list is an error.
func parseRefs(v any) ([]graph.TaxonomyRef, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case []any:
		refs := make([]graph.TaxonomyRef, 0, len(val))
		for _, elem := range val {
			if n, ok := integerValue(elem); ok {
				refs = append(refs, graph.TaxonomyRef{ID: n})
				continue
			}
			if s, ok := elem.(string); ok {
				refs = append(refs, graph.TaxonomyRef{Name: s, ByName: true})
			}
		}
		return refs, nil
	case []int:
		refs := make([]graph.TaxonomyRef, 0, len(val))
		for _, n := range val {
			refs = append(refs, graph.TaxonomyRef{ID: int64(n)})
		}
		return refs, nil
	case []int64:
		refs := make([]graph.TaxonomyRef, 0, len(val))
		for _, n := range val {
			refs = append(refs, graph.TaxonomyRef{ID: n})
		}
		return refs, nil
	case []string:
		refs := make([]graph.TaxonomyRef, 0, len(val))
		for _, s := range val {
			refs = append(refs, graph.TaxonomyRef{Name: s, ByName: true})
		}
		return refs, nil
	case string, map[string]any:
		return nil, fmt.Errorf("%w: got %T", errIgnoredContainer, v)
	default:
		return nil, fmt.Errorf("taxonomy container is %T, want list", v)
	}
}

// errIgnoredContainer marks a taxonomy container that is the wrong shape
// for one item but still iterable upstream, such as a bare name string.
var errIgnoredContainer = errors.New("taxonomy container is not a list")
