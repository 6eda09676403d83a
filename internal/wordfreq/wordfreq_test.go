package wordfreq

import (
	"reflect"
	"testing"
)

func TestCountCatSatOnTheMat(t *testing.T) {
	got := Count("the cat sat on the mat")
	want := Table{
		{"the", 2},
		{"cat", 1},
		{"sat", 1},
		{"on", 1},
		{"mat", 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Count() = %v, want %v", got, want)
	}
}

func TestCountIsCaseSensitiveAndKeepsPunctuation(t *testing.T) {
	got := Count("The the THE the. the")
	if got.Lookup("the") != 2 || got.Lookup("The") != 1 || got.Lookup("THE") != 1 || got.Lookup("the.") != 1 {
		t.Fatalf("unexpected table %v", got)
	}
	if got[0].Word != "the" {
		t.Fatalf("expected most frequent word first, got %v", got)
	}
}

func TestCountEmptyAndWhitespaceOnly(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\t\r\n"} {
		if got := Count(in); got.Len() != 0 {
			t.Fatalf("Count(%q) = %v, want empty", in, got)
		}
	}
}

func TestCountTotalsMatchTokenCount(t *testing.T) {
	texts := []string{
		"a b c a b a",
		"  leading and trailing  ",
		"tabs\tand\nnewlines and unicode spaces",
		"repeated repeated repeated",
	}
	for _, text := range texts {
		table := Count(text)
		if table.Total() != len(Tokenize(text)) {
			t.Fatalf("%q: total %d != token count %d", text, table.Total(), len(Tokenize(text)))
		}
		seen := map[string]bool{}
		for i, e := range table {
			if e.Count < 1 {
				t.Fatalf("%q: entry %v has count < 1", text, e)
			}
			if seen[e.Word] {
				t.Fatalf("%q: duplicate word %q", text, e.Word)
			}
			seen[e.Word] = true
			if i > 0 && table[i-1].Count < e.Count {
				t.Fatalf("%q: table not sorted at %d: %v", text, i, table)
			}
		}
	}
}

func TestTokenizeSplitsOnUnicodeWhitespace(t *testing.T) {
	got := Tokenize("one two　three  four")
	want := []string{"one", "two", "three", "four"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize() = %v, want %v", got, want)
	}
}

func TestTopAndHead(t *testing.T) {
	table := Count("c b a b c c")
	if got := table.Top(2); !reflect.DeepEqual(got, []string{"c", "b"}) {
		t.Fatalf("Top(2) = %v", got)
	}
	if got := table.Top(10); len(got) != 3 {
		t.Fatalf("Top(10) = %v, want all 3 words", got)
	}
	if got := table.Head(1); len(got) != 1 || got[0].Word != "c" {
		t.Fatalf("Head(1) = %v", got)
	}
	if got := table.Top(-1); len(got) != 0 {
		t.Fatalf("Top(-1) = %v", got)
	}
}
