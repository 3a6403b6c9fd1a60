// Package model defines the mind map, syllabus and study-aid data types.
package model

import (
	"encoding/json"
	"fmt"
	"iter"
	"math"
	"sort"
	"strings"
)

// DefaultPathSeparator joins a topic's name to its ancestors in breadcrumbs.
const DefaultPathSeparator = " > "

// TopicKind tags the two shapes a Topic can take.
type TopicKind int

const (
	// KindNode is a topic with metadata and (possibly no) children.
	KindNode TopicKind = iota
	// KindLeaf is the bare-string shorthand: a name and nothing else.
	KindLeaf
)

// Topic is one node of a mind map.
type Topic struct {
	Kind       TopicKind
	Name       string
	Definition string
	Importance *int
	Children   []Topic
}

// Leaf returns a shorthand leaf topic.
func Leaf(name string) Topic {
	return Topic{Kind: KindLeaf, Name: name}
}

// Node returns a topic with metadata. importance < 0 means "absent".
func Node(name, definition string, importance int, children ...Topic) Topic {
	t := Topic{Kind: KindNode, Name: name, Definition: definition, Children: children}
	if importance >= 0 {
		t.Importance = &importance
	}
	return t
}

// IsLeaf reports whether t is the bare-string shorthand.
func (t Topic) IsLeaf() bool { return t.Kind == KindLeaf }

type topicJSON struct {
	Topic      string  `json:"topic"`
	Definition string  `json:"definition,omitempty"`
	Weightage  *int    `json:"weightage,omitempty"`
	Subtopics  []Topic `json:"subtopics"`
}

func (t Topic) MarshalJSON() ([]byte, error) {
	if t.Kind == KindLeaf {
		return json.Marshal(t.Name)
	}
	subs := t.Children
	if subs == nil {
		subs = []Topic{}
	}
	return json.Marshal(topicJSON{
		Topic:      t.Name,
		Definition: t.Definition,
		Weightage:  t.Importance,
		Subtopics:  subs,
	})
}

// UnmarshalJSON reads the stored form written by MarshalJSON. Untrusted
// generator output goes through ParseMindMap instead.
func (t *Topic) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		*t = Leaf(name)
		return nil
	}
	var raw topicJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("topic: %w", err)
	}
	*t = Topic{
		Kind:       KindNode,
		Name:       raw.Topic,
		Definition: raw.Definition,
		Importance: raw.Weightage,
	}
	if len(raw.Subtopics) > 0 {
		t.Children = raw.Subtopics
	}
	return nil
}

// MindMap is the ordered list of top-level topics derived from one syllabus.
type MindMap struct {
	Topics []Topic `json:"topics"`
}

// IsEmpty reports whether m has no usable topics.
func (m MindMap) IsEmpty() bool { return CountNodes(m) == 0 }

// CountNodes counts every topic and subtopic, leaves included.
func CountNodes(m MindMap) int {
	return countTopics(m.Topics)
}

func countTopics(topics []Topic) int {
	n := 0
	for _, t := range topics {
		if t.Name == "" {
			continue
		}
		n += 1 + countTopics(t.Children)
	}
	return n
}

// AverageTopLevelImportance is the mean importance of the top-level topics
// that carry one, or 0 when none do.
func AverageTopLevelImportance(m MindMap) float64 {
	sum, n := 0, 0
	for _, t := range m.Topics {
		if t.Name == "" || t.Importance == nil {
			continue
		}
		sum += *t.Importance
		n++
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

// RoundImportance rounds to one decimal place for display.
func RoundImportance(v float64) float64 {
	return math.Round(v*10) / 10
}

// TopicPaths yields a breadcrumb for every topic in pre-order. The sequence
// is finite and may be ranged over any number of times.
func TopicPaths(m MindMap, sep string) iter.Seq[string] {
	if sep == "" {
		sep = DefaultPathSeparator
	}
	return func(yield func(string) bool) {
		walkPaths(m.Topics, "", sep, yield)
	}
}

func walkPaths(topics []Topic, prefix, sep string, yield func(string) bool) bool {
	for _, t := range topics {
		if t.Name == "" {
			continue
		}
		path := t.Name
		if prefix != "" {
			path = prefix + sep + t.Name
		}
		if !yield(path) {
			return false
		}
		if !walkPaths(t.Children, path, sep, yield) {
			return false
		}
	}
	return true
}

// Outline renders m as an indented bullet list.
func Outline(m MindMap) string {
	var b strings.Builder
	writeOutline(&b, m.Topics, 0)
	return strings.TrimRight(b.String(), "\n")
}

func writeOutline(b *strings.Builder, topics []Topic, depth int) {
	for _, t := range topics {
		if t.Name == "" {
			continue
		}
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString("- ")
		b.WriteString(t.Name)
		if t.Importance != nil {
			fmt.Fprintf(b, " (importance %d)", *t.Importance)
		}
		if t.Definition != "" {
			b.WriteString(": ")
			b.WriteString(t.Definition)
		}
		b.WriteByte('\n')
		writeOutline(b, t.Children, depth+1)
	}
}

// RankedTopic is a top-level topic with its importance.
type RankedTopic struct {
	Name       string `json:"name"`
	Importance int    `json:"importance"`
}

// MindMapStats are the dashboard figures for one mind map.
type MindMapStats struct {
	TopLevel          int           `json:"top_level"`
	TotalNodes        int           `json:"total_nodes"`
	AverageImportance float64       `json:"average_importance"`
	Ranked            []RankedTopic `json:"ranked"`
}

// Stats computes dashboard figures. AverageImportance keeps full precision.
func Stats(m MindMap) MindMapStats {
	st := MindMapStats{
		TotalNodes:        CountNodes(m),
		AverageImportance: AverageTopLevelImportance(m),
		Ranked:            []RankedTopic{},
	}
	for _, t := range m.Topics {
		if t.Name == "" {
			continue
		}
		st.TopLevel++
		if t.Importance != nil {
			st.Ranked = append(st.Ranked, RankedTopic{Name: t.Name, Importance: *t.Importance})
		}
	}
	sort.SliceStable(st.Ranked, func(i, j int) bool {
		return st.Ranked[i].Importance > st.Ranked[j].Importance
	})
	return st
}
