package ai

import (
	"encoding/json"
	"strings"

	"github.com/1weso1/aw-nexus-folio-sub001/pkg/models"
)

// Parsed is a value decoded from a model response, tagged with how it was
// obtained.
type Parsed[T any] struct {
	Value   T
	Quality models.Quality
}

// Structured reports whether the value came from a strict JSON parse.
func (p Parsed[T]) Structured() bool {
	return p.Quality == models.QualityStructured
}

// ParseResponse decodes content in two stages. First the content is stripped
// of code fences and decoded as JSON into T; if that succeeds and valid
// accepts the value, the result is Structured. Otherwise heuristic extracts a
// value from the raw text and the result is Heuristic. ErrEmptyResponse is
// returned only when both stages produce nothing.
func ParseResponse[T any](content string, valid func(T) bool, heuristic func(string) (T, bool)) (Parsed[T], error) {
	if v, ok := decodeJSON[T](content); ok && (valid == nil || valid(v)) {
		return Parsed[T]{Value: v, Quality: models.QualityStructured}, nil
	}
	if v, ok := heuristic(content); ok {
		return Parsed[T]{Value: v, Quality: models.QualityHeuristic}, nil
	}
	var zero T
	return Parsed[T]{Value: zero}, ErrEmptyResponse
}

func decodeJSON[T any](content string) (T, bool) {
	var v T
	body := StripFences(content)
	if err := json.Unmarshal([]byte(body), &v); err == nil {
		return v, true
	}
	// Models sometimes wrap the object in prose.
	if start, end := strings.Index(body, "{"), strings.LastIndex(body, "}"); start >= 0 && end > start {
		if err := json.Unmarshal([]byte(body[start:end+1]), &v); err == nil {
			return v, true
		}
	}
	return v, false
}

// StripFences removes a surrounding ``` or ```json code fence.
func StripFences(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
		s = s[nl+1:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Paragraphs splits text on blank lines and drops empty paragraphs.
func Paragraphs(text string) []string {
	text = strings.ReplaceAll(StripFences(text), "\r\n", "\n")
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ListItems returns the lines of text that look like list items, with the
// bullet or number removed.
func ListItems(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		item, ok := trimBullet(line)
		if ok && item != "" {
			out = append(out, item)
		}
	}
	return out
}

func trimBullet(line string) (string, bool) {
	for _, prefix := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(line[len(prefix):]), true
		}
	}
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i+1 < len(line) && (line[i] == '.' || line[i] == ')') && line[i+1] == ' ' {
		return strings.TrimSpace(line[i+2:]), true
	}
	return "", false
}

// Truncate shortens s to at most max runes, cutting at a word boundary when
// one is available.
func Truncate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	cut := string(r[:max])
	if i := strings.LastIndexByte(cut, ' '); i > max/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:-")
}
