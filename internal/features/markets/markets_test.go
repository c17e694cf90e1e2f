package markets

import (
	"fmt"
	"math/rand/v2"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestIsRelevant(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		keywords []string
		want     bool
	}{
		{"substring match", "Will X happen", []string{"x"}, true},
		{"case insensitive title", "BITCOIN above 100k?", []string{"bitcoin"}, true},
		{"inside word", "unrelated", []string{"relate"}, true},
		{"no match", "unrelated", []string{"x", "trump"}, false},
		{"second keyword", "Fed rate cut in March", []string{"ecb", "fed"}, true},
		{"empty keywords", "anything", nil, false},
		{"empty title", "", []string{"x"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRelevant(tc.title, tc.keywords); got != tc.want {
				t.Fatalf("IsRelevant(%q, %q) = %v, want %v", tc.title, tc.keywords, got, tc.want)
			}
		})
	}
}

func TestIsRelevantMatchesSubstringDefinition(t *testing.T) {
	titles := []string{"Will X happen", "ELECTION 2028", "ai regulation bill", "", "Über uns"}
	keywordSets := [][]string{nil, {"x"}, {"election", "ai"}, {"über"}, {"zzz"}}
	for _, title := range titles {
		for _, kws := range keywordSets {
			want := false
			for _, k := range kws {
				if strings.Contains(strings.ToLower(title), strings.ToLower(k)) {
					want = true
				}
			}
			if got := IsRelevant(title, NormalizeKeywords(kws)); got != want {
				t.Fatalf("IsRelevant(%q, %q) = %v, want %v", title, kws, got, want)
			}
		}
	}
}

func TestNormalizeKeywords(t *testing.T) {
	got := NormalizeKeywords([]string{" Trump ", "", "AI", "ai", "  "})
	want := []string{"trump", "ai"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestChunkMessageKeepsLinesWhole(t *testing.T) {
	lines := []string{"aaaa\n", "bbbb\n", "cccc\n", "dd\n"}
	got := ChunkMessage(lines, 10)
	want := []string{"aaaa\nbbbb\n", "cccc\ndd\n"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestChunkMessageOversizedLineStandsAlone(t *testing.T) {
	long := strings.Repeat("x", 25) + "\n"
	got := ChunkMessage([]string{"a\n", long, "b\n"}, 10)
	want := []string{"a\n", long, "b\n"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}

	got = ChunkMessage([]string{long}, 10)
	if len(got) != 1 || got[0] != long {
		t.Fatalf("expected single oversized chunk without empty chunks, got %q", got)
	}
}

func TestChunkMessageProperties(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for round := 0; round < 200; round++ {
		limit := 5 + r.IntN(60)
		lines := make([]string, r.IntN(30))
		for i := range lines {
			lines[i] = strings.Repeat("é", r.IntN(80)) + "\n"
		}

		chunks := ChunkMessage(lines, limit)
		if strings.Join(chunks, "") != strings.Join(lines, "") {
			t.Fatalf("round %d: concatenation mismatch", round)
		}
		for _, c := range chunks {
			if c == "" {
				t.Fatalf("round %d: empty chunk", round)
			}
			if utf8.RuneCountInString(c) <= limit {
				continue
			}
			// Only a single oversized line may exceed the limit.
			if strings.Count(c, "\n") != 1 {
				t.Fatalf("round %d: chunk of %d chars exceeds limit %d", round, utf8.RuneCountInString(c), limit)
			}
		}
	}
}

func TestSummaryLinesAndAlert(t *testing.T) {
	lines := SummaryLines([]SummaryEntry{
		{Title: "will x happen", URL: EventURL("", "x-slug")},
		{Title: "will y happen", URL: EventURL("https://example.test/e", "y-slug")},
	})
	if len(lines) != 3 || lines[0] != SummaryHeader {
		t.Fatalf("unexpected lines %q", lines)
	}
	if lines[1] != "1. will x happen\nhttps://polymarket.com/event/x-slug\n\n" {
		t.Fatalf("unexpected first entry %q", lines[1])
	}
	if lines[2] != "2. will y happen\nhttps://example.test/e/y-slug\n\n" {
		t.Fatalf("unexpected second entry %q", lines[2])
	}

	alert := FormatAlert("will x happen", EventURL("", "x-slug"))
	want := fmt.Sprintf("🚨 New Market!\n\n%s\n\n%s", "will x happen", "https://polymarket.com/event/x-slug")
	if alert != want {
		t.Fatalf("got %q, want %q", alert, want)
	}
}
