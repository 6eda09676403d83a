// Package wordfreq builds case-sensitive word frequency tables.
package wordfreq

import (
	"sort"
	"strings"
)

type Entry struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// Table is ordered by count descending. Words with equal counts keep the
// order in which they first appeared in the text.
type Table []Entry

// Tokenize splits text on runs of Unicode whitespace. Tokens are exact
// substrings: no case folding, no punctuation stripping.
func Tokenize(text string) []string {
	return strings.Fields(text)
}

// Count tokenizes text and tallies each distinct token.
func Count(text string) Table {
	return CountTokens(Tokenize(text))
}

func CountTokens(tokens []string) Table {
	index := make(map[string]int, len(tokens))
	table := make(Table, 0)
	for _, tok := range tokens {
		if i, ok := index[tok]; ok {
			table[i].Count++
			continue
		}
		index[tok] = len(table)
		table = append(table, Entry{Word: tok, Count: 1})
	}
	sort.SliceStable(table, func(i, j int) bool {
		return table[i].Count > table[j].Count
	})
	return table
}

func (t Table) Len() int { return len(t) }

// Total is the number of tokens the table was built from.
func (t Table) Total() int {
	n := 0
	for _, e := range t {
		n += e.Count
	}
	return n
}

// Top returns the words of the first n entries.
func (t Table) Top(n int) []string {
	if n > len(t) {
		n = len(t)
	}
	if n < 0 {
		n = 0
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = t[i].Word
	}
	return out
}

// Head returns at most the first n entries.
func (t Table) Head(n int) Table {
	if n < 0 {
		n = 0
	}
	if n > len(t) {
		n = len(t)
	}
	return t[:n]
}

// Lookup returns the count for word, or 0.
func (t Table) Lookup(word string) int {
	for _, e := range t {
		if e.Word == word {
			return e.Count
		}
	}
	return 0
}
