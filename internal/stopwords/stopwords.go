// Package stopwords holds the stopword sets used to thin a text before it is
// laid out as a word cloud.
package stopwords

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed baseline.txt
var baselineList string

var baseline = parseList(baselineList)

// Set is an immutable set of words. Lookups lowercase the token only, so a
// mixed-case entry never matches anything.
type Set struct {
	words map[string]struct{}
}

// Baseline returns the built-in English stopword set.
func Baseline() Set { return baseline }

// New builds a set from words as given. Entries are trimmed and blanks are dropped.
func New(words ...string) Set {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w != "" {
			m[w] = struct{}{}
		}
	}
	return Set{words: m}
}

// Union returns a set containing every word of every input set.
func Union(sets ...Set) Set {
	n := 0
	for _, s := range sets {
		n += len(s.words)
	}
	m := make(map[string]struct{}, n)
	for _, s := range sets {
		for w := range s.words {
			m[w] = struct{}{}
		}
	}
	return Set{words: m}
}

// Build combines the baseline (when enabled) with the caller's extra words.
func Build(useBaseline bool, base Set, additional []string) Set {
	extra := New(additional...)
	if !useBaseline {
		return extra
	}
	return Union(base, extra)
}

// Contains reports whether the lowercase form of word is in the set.
func (s Set) Contains(word string) bool {
	_, ok := s.words[strings.ToLower(word)]
	return ok
}

func (s Set) Len() int { return len(s.words) }

// Words returns the members in sorted order.
func (s Set) Words() []string {
	out := make([]string, 0, len(s.words))
	for w := range s.words {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// Filter drops every whitespace-separated token whose lowercase form is in
// set and joins the survivors with single spaces.
func Filter(text string, set Set) string {
	tokens := strings.Fields(text)
	kept := tokens[:0:0]
	for _, tok := range tokens {
		if !set.Contains(tok) {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}

// fileFormat is the YAML layout accepted by LoadFile. A bare YAML list is
// also accepted and treated as mode "extend".
type fileFormat struct {
	Mode      string   `yaml:"mode"`
	Stopwords []string `yaml:"stopwords"`
}

// LoadFile reads a YAML stopword list and merges it with base. With
// mode: replace the file's words are used instead of base.
func LoadFile(path string, base Set) (Set, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Set{}, fmt.Errorf("read stopwords file: %w", err)
	}
	return Parse(b, base)
}

func Parse(data []byte, base Set) (Set, error) {
	var list []string
	if err := yaml.Unmarshal(data, &list); err == nil {
		return Union(base, New(lowered(list)...)), nil
	}

	var doc fileFormat
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Set{}, fmt.Errorf("parse stopwords yaml: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(doc.Mode)) {
	case "", "extend":
		return Union(base, New(lowered(doc.Stopwords)...)), nil
	case "replace":
		return New(lowered(doc.Stopwords)...), nil
	default:
		return Set{}, fmt.Errorf("stopwords yaml: unknown mode %q (want extend or replace)", doc.Mode)
	}
}

func parseList(s string) Set {
	var words []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	return New(lowered(words)...)
}

// lowered is applied to baseline sources only. Caller words keep their case.
func lowered(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strings.ToLower(w)
	}
	return out
}
