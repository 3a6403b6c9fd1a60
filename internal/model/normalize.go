package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rcliao/studymap/internal/apperr"
)

// ErrMalformedMindMap is returned when generator output has no usable
// topic list.
var ErrMalformedMindMap = apperr.New(apperr.KindMalformed, "malformed_mind_map",
	errors.New("the generated mind map could not be understood"))

// ImportanceRange bounds topic importance, inclusive.
type ImportanceRange struct {
	Min int `toml:"min" json:"min"`
	Max int `toml:"max" json:"max"`
}

// DefaultImportanceRange is [0,10]. Some generators score on [1,10]; that is
// a configuration choice.
var DefaultImportanceRange = ImportanceRange{Min: 0, Max: 10}

// Valid reports whether the bounds are ordered.
func (r ImportanceRange) Valid() bool { return r.Min <= r.Max }

// Warning records something the normalizer dropped or adjusted.
type Warning struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (w Warning) String() string { return w.Path + ": " + w.Message }

// ParseMindMap decodes and normalizes untrusted generator output.
func ParseMindMap(raw []byte, rng ImportanceRange) (MindMap, []Warning, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return MindMap{}, nil, fmt.Errorf("%w: %v", ErrMalformedMindMap, err)
	}
	return NormalizeMindMap(doc, rng)
}

// NormalizeMindMap converts an already-decoded JSON value into a MindMap.
// Accepted shapes are {"topics": [...]}, a bare topic array, and
// {"mindMapData": "<json>"}. Malformed nodes are dropped with a warning; a
// document that yields no top-level topic is an error.
func NormalizeMindMap(doc any, rng ImportanceRange) (MindMap, []Warning, error) {
	if !rng.Valid() {
		rng = DefaultImportanceRange
	}
	var items []any
	switch v := doc.(type) {
	case []any:
		items = v
	case map[string]any:
		if inner, ok := v["mindMapData"].(string); ok {
			return ParseMindMap([]byte(inner), rng)
		}
		topics, ok := v["topics"]
		if !ok {
			return MindMap{}, nil, fmt.Errorf("%w: missing topics", ErrMalformedMindMap)
		}
		if items, ok = topics.([]any); !ok {
			return MindMap{}, nil, fmt.Errorf("%w: topics is not a list", ErrMalformedMindMap)
		}
	default:
		return MindMap{}, nil, fmt.Errorf("%w: unexpected document type %T", ErrMalformedMindMap, doc)
	}

	n := &normalizer{rng: rng}
	m := MindMap{Topics: n.topics(items, "topics", true)}
	if len(m.Topics) == 0 {
		return MindMap{}, n.warnings, fmt.Errorf("%w: no usable topics", ErrMalformedMindMap)
	}
	return m, n.warnings, nil
}

type normalizer struct {
	rng      ImportanceRange
	warnings []Warning
}

func (n *normalizer) warn(path, format string, args ...any) {
	n.warnings = append(n.warnings, Warning{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (n *normalizer) topics(items []any, path string, top bool) []Topic {
	out := make([]Topic, 0, len(items))
	for i, item := range items {
		p := fmt.Sprintf("%s[%d]", path, i)
		if t, ok := n.topic(item, p, top); ok {
			out = append(out, t)
		}
	}
	return out
}

func (n *normalizer) topic(v any, path string, top bool) (Topic, bool) {
	switch node := v.(type) {
	case nil:
		return Topic{}, false
	case string:
		name := strings.TrimSpace(node)
		if name == "" {
			n.warn(path, "blank topic dropped")
			return Topic{}, false
		}
		if top {
			n.warn(path, "top-level topic %q has no importance", name)
		}
		return Leaf(name), true
	case map[string]any:
		return n.object(node, path, top)
	default:
		n.warn(path, "unsupported node type %T dropped", v)
		return Topic{}, false
	}
}

func (n *normalizer) object(node map[string]any, path string, top bool) (Topic, bool) {
	name := firstString(node, "topic", "name")
	if name == "" {
		n.warn(path, "topic without a name dropped")
		return Topic{}, false
	}
	t := Topic{Kind: KindNode, Name: name, Definition: firstString(node, "definition")}

	if raw, ok := firstPresent(node, "weightage", "importance"); ok && raw != nil {
		if imp, ok := n.importance(raw, path); ok {
			t.Importance = &imp
		}
	}
	if top && t.Importance == nil {
		n.warn(path, "top-level topic %q has no importance", name)
	}

	if raw, ok := firstPresent(node, "subtopics", "children"); ok && raw != nil {
		children, isList := raw.([]any)
		if !isList {
			n.warn(path, "subtopics of %q is not a list; dropped", name)
		} else {
			t.Children = n.topics(children, path+".subtopics", false)
		}
	}
	return t, true
}

func (n *normalizer) importance(raw any, path string) (int, bool) {
	var f float64
	switch v := raw.(type) {
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			n.warn(path, "importance %q is not a number; dropped", v.String())
			return 0, false
		}
		f = parsed
	case float64:
		f = v
	case int:
		f = float64(v)
	default:
		n.warn(path, "importance of type %T dropped", raw)
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		n.warn(path, "importance is not finite; dropped")
		return 0, false
	}
	imp := int(math.Round(f))
	if float64(imp) != f {
		n.warn(path, "importance %v rounded to %d", f, imp)
	}
	switch {
	case imp < n.rng.Min:
		n.warn(path, "importance %d clamped to %d", imp, n.rng.Min)
		imp = n.rng.Min
	case imp > n.rng.Max:
		n.warn(path, "importance %d clamped to %d", imp, n.rng.Max)
		imp = n.rng.Max
	}
	return imp, true
}

func firstPresent(node map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := node[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func firstString(node map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := node[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
