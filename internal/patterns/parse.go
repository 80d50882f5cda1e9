package patterns

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var (
	fenceOpen     = regexp.MustCompile("(?m)^```(?:json)?\\s*")
	fenceClose    = regexp.MustCompile("(?m)\\s*```\\s*$")
	outerObject   = regexp.MustCompile(`\{[\s\S]*\}`)
	quotedQuery   = regexp.MustCompile(`"([^"]+\?)"`)
	unquotedQuery = regexp.MustCompile(`([^"]+\?)`)
)

// errNoObject is returned when a response holds no JSON object.
var errNoObject = errors.New("no JSON object in response")

// ParseResponse converts a model response into QueryPatterns. Code
// fences are stripped and the outermost {...} is decoded. The aliases
// current_coverage and recommendations are accepted. When no object can
// be decoded, questions quoted in the text become the complex queries.
//
// The returned error reports why the fallback was used; the patterns are
// always usable.
func ParseResponse(text string) (*QueryPatterns, error) {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = fenceOpen.ReplaceAllString(cleaned, "")
		cleaned = fenceClose.ReplaceAllString(cleaned, "")
	}

	match := outerObject.FindString(cleaned)
	if match == "" {
		return fallback(text), errNoObject
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		return fallback(text), err
	}

	p := Empty()
	p.ComplexQueries = stringList(raw["complex_queries"])
	p.Decompositions = stringListMap(raw["decompositions"])
	p.Gaps = stringList(raw["gaps"])

	p.CoverageAnalysis = objectField(raw["coverage_analysis"])
	if len(p.CoverageAnalysis) == 0 {
		p.CoverageAnalysis = objectField(raw["current_coverage"])
	}

	p.Opportunities = stringList(raw["opportunities"])
	if len(p.Opportunities) == 0 {
		p.Opportunities = stringList(raw["recommendations"])
	}

	return p, nil
}

// fallback extracts questions from free text.
func fallback(text string) *QueryPatterns {
	p := Empty()
	for _, m := range quotedQuery.FindAllStringSubmatch(text, -1) {
		p.ComplexQueries = append(p.ComplexQueries, m[1])
	}
	if len(p.ComplexQueries) == 0 {
		for _, m := range unquotedQuery.FindAllStringSubmatch(text, -1) {
			p.ComplexQueries = append(p.ComplexQueries, m[1])
		}
	}
	return p
}

// stringList decodes a JSON array, rendering non-string items as JSON
// text. Anything that is not an array yields an empty list.
func stringList(raw json.RawMessage) []string {
	out := []string{}
	if len(raw) == 0 {
		return out
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return out
	}
	for _, item := range items {
		if strings.TrimSpace(string(item)) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		out = append(out, string(item))
	}
	return out
}

func stringListMap(raw json.RawMessage) map[string][]string {
	out := map[string][]string{}
	if len(raw) == 0 {
		return out
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return out
	}
	for key, value := range obj {
		out[key] = stringList(value)
	}
	return out
}

func objectField(raw json.RawMessage) map[string]any {
	out := map[string]any{}
	if len(raw) == 0 {
		return out
	}
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}
