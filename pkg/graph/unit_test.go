package graph

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func sentenceTexts(text string) []string {
	runes := []rune(text)
	var out []string
	for _, s := range splitSentenceSpans(runes, 0, len(runes)) {
		out = append(out, string(runes[s.start:s.end]))
	}
	return out
}

func TestSplitSentenceSpans(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "empty input",
			text: "",
			want: nil,
		},
		{
			name: "single sentence",
			text: "Hello world.",
			want: []string{"Hello world."},
		},
		{
			name: "multiple sentences",
			text: "Hello world. This is a test! How are you?",
			want: []string{"Hello world.", "This is a test!", "How are you?"},
		},
		{
			name: "paragraphs",
			text: "First sentence.\n\nSecond sentence.\n\nThird sentence.",
			want: []string{"First sentence.", "Second sentence.", "Third sentence."},
		},
		{
			name: "decimal numbers stay in the sentence",
			text: "The premium rose by 3.5 percent. Claims fell.",
			want: []string{"The premium rose by 3.5 percent.", "Claims fell."},
		},
		{
			name: "numbered listing",
			text: "Covered perils: 1. flood and 2. fire. Nothing else.",
			want: []string{"Covered perils: 1. flood and 2. fire.", "Nothing else."},
		},
		{
			name: "closing quote stays attached",
			text: `He said "stop." Then he left.`,
			want: []string{`He said "stop."`, "Then he left."},
		},
		{
			name: "trailing text without terminator",
			text: "Complete. Incomplete tail",
			want: []string{"Complete.", "Incomplete tail"},
		},
		{
			name: "korean text",
			text: "마포구는 홍수 위험이 높다. 보험이 필요하다.",
			want: []string{"마포구는 홍수 위험이 높다.", "보험이 필요하다."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sentenceTexts(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestChunkDocumentRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  ChunkConfig
	}{
		{"OverlapEqualsSize", ChunkConfig{ChunkSize: 10, ChunkOverlap: 10}},
		{"OverlapExceedsSize", ChunkConfig{ChunkSize: 10, ChunkOverlap: 11}},
		{"ZeroSize", ChunkConfig{ChunkSize: 0}},
		{"NegativeOverlap", ChunkConfig{ChunkSize: 10, ChunkOverlap: -1}},
		{"UnknownMode", ChunkConfig{ChunkSize: 10, Mode: "paragraph"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			units, err := ChunkDocument("doc", "Some non-empty text.", tt.cfg)
			var cerr *ChunkingConfigurationError
			if !errors.As(err, &cerr) {
				t.Fatalf("expected ChunkingConfigurationError, got %v", err)
			}
			if units != nil {
				t.Fatalf("expected no units, got %d", len(units))
			}
		})
	}

	if _, err := NewChunker(ChunkConfig{ChunkSize: 10, ChunkOverlap: 10}); err == nil {
		t.Fatal("NewChunker should validate its config")
	}
}

func TestChunkDocumentEmptyInput(t *testing.T) {
	for _, mode := range []ChunkMode{ChunkModeSimple, ChunkModeBoundary, ChunkModePolicy} {
		units, err := ChunkDocument("doc", " \n\t ", ChunkConfig{ChunkSize: 100, ChunkOverlap: 10, Mode: mode})
		if err != nil {
			t.Fatalf("%s: %v", mode, err)
		}
		if len(units) != 0 {
			t.Fatalf("%s: expected no units, got %d", mode, len(units))
		}
	}
}

func TestChunkSimple(t *testing.T) {
	text := strings.Repeat("abcdefghij", 25) // 250 runes
	cfg := ChunkConfig{ChunkSize: 100, ChunkOverlap: 20, Mode: ChunkModeSimple}

	units, err := ChunkDocument("doc", text, cfg)
	if err != nil {
		t.Fatal(err)
	}
	// starts at 0, 80, 160 and the last window ends at 250
	if len(units) != 3 {
		t.Fatalf("expected 3 units, got %d", len(units))
	}

	var rebuilt strings.Builder
	prevEnd := 0
	for i, u := range units {
		if u.ID != fmt.Sprintf("doc_chunk_%d", i) || u.ChunkIndex != i || u.DocumentID != "doc" {
			t.Fatalf("unexpected identity for unit %d: %+v", i, u)
		}
		if n := utf8.RuneCountInString(u.Text); n > cfg.ChunkSize {
			t.Fatalf("unit %d has %d runes", i, n)
		}
		if string([]rune(text)[u.Start:u.End]) != u.Text {
			t.Fatalf("unit %d offsets do not match its text", i)
		}
		if i > 0 && prevEnd-u.Start != cfg.ChunkOverlap {
			t.Fatalf("unit %d overlaps by %d", i, prevEnd-u.Start)
		}
		rebuilt.WriteString(string([]rune(u.Text)[max(0, prevEnd-u.Start):]))
		prevEnd = u.End
	}
	if rebuilt.String() != text {
		t.Fatal("dropping overlaps does not reconstruct the text")
	}
}

func TestChunkSimpleMultibyte(t *testing.T) {
	text := strings.Repeat("보험", 30)
	units, err := ChunkDocument("doc", text, ChunkConfig{ChunkSize: 25, ChunkOverlap: 5, Mode: ChunkModeSimple})
	if err != nil {
		t.Fatal(err)
	}
	for _, u := range units {
		if !utf8.ValidString(u.Text) {
			t.Fatalf("unit %s split a rune", u.ID)
		}
	}
	if units[len(units)-1].End != utf8.RuneCountInString(text) {
		t.Fatal("last unit must end at the end of the text")
	}
}

func TestChunkBoundaryNeverSplitsSentences(t *testing.T) {
	var b strings.Builder
	for i := range 40 {
		b.WriteString(strings.Repeat("word ", 3+i%7))
		b.WriteString("end.")
		if i%9 == 8 {
			b.WriteString("\n\n")
		} else {
			b.WriteString(" ")
		}
	}
	text := b.String()
	sentences := sentenceTexts(text)
	cfg := ChunkConfig{ChunkSize: 120, ChunkOverlap: 40, PreserveBoundaries: true}

	units, err := ChunkDocument("doc", text, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(units) < 2 {
		t.Fatalf("expected several units, got %d", len(units))
	}

	known := make(map[string]bool, len(sentences))
	for _, s := range sentences {
		known[s] = true
	}
	seen := make(map[string]bool)
	for i, u := range units {
		if n := utf8.RuneCountInString(u.Text); n > cfg.ChunkSize {
			t.Fatalf("unit %d has %d runes", i, n)
		}
		for _, s := range sentenceTexts(u.Text) {
			if !known[s] {
				t.Fatalf("unit %d contains a partial sentence %q", i, s)
			}
			seen[s] = true
		}
		if i > 0 && u.Start < units[i-1].Start {
			t.Fatalf("unit %d starts before its predecessor", i)
		}
	}
	if len(seen) != len(known) {
		t.Fatalf("units cover %d of %d sentences", len(seen), len(known))
	}
}

func TestChunkBoundaryOverlapSeed(t *testing.T) {
	text := "Alpha one. Beta two. Gamma three. Delta four."
	units, err := ChunkDocument("doc", text, ChunkConfig{ChunkSize: 25, ChunkOverlap: 12, PreserveBoundaries: true})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Alpha one. Beta two.", "Beta two. Gamma three.", "Gamma three. Delta four."}
	var got []string
	for _, u := range units {
		got = append(got, u.Text)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestChunkBoundaryLongSentence(t *testing.T) {
	long := strings.Repeat("x", 50) + "."
	text := "Short one. " + long + " Short two."
	units, err := ChunkDocument("doc", text, ChunkConfig{ChunkSize: 20, ChunkOverlap: 5, PreserveBoundaries: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 3 || units[1].Text != long {
		t.Fatalf("expected the long sentence as its own unit, got %+v", units)
	}
}

func TestChunkPolicy(t *testing.T) {
	text := "General terms apply.\n" +
		"Article 1 Scope. This policy covers flood damage.\n" +
		"Article 2 Exclusions. " + strings.Repeat("War and nuclear risks are excluded. ", 4) + "\n" +
		"Article 3 Claims. Report within 30 days."
	cfg := ChunkConfig{ChunkSize: 80, ChunkOverlap: 10, Mode: ChunkModePolicy}

	units, err := ChunkDocument("policy", text, cfg)
	if err != nil {
		t.Fatal(err)
	}

	var preamble, clauses, sections int
	headings := map[string]bool{}
	for _, u := range units {
		switch u.Metadata["type"] {
		case PolicyClause:
			clauses++
		case PolicySection:
			sections++
		default:
			t.Fatalf("unit %s has no policy type: %v", u.ID, u.Metadata)
		}
		if h := u.Metadata["clause"]; h != "" {
			headings[h] = true
		} else {
			preamble++
		}
		if utf8.RuneCountInString(u.Text) > cfg.ChunkSize {
			t.Fatalf("unit %s exceeds the chunk size", u.ID)
		}
	}
	if preamble != 1 {
		t.Fatalf("expected one preamble unit, got %d", preamble)
	}
	if clauses != 2 {
		t.Fatalf("expected Article 1 and 3 as whole clauses, got %d", clauses)
	}
	if sections < 3 {
		t.Fatalf("expected the oversized clause to be re-chunked, got %d sections", sections)
	}
	for _, h := range []string{"Article 1", "Article 2", "Article 3"} {
		if !headings[h] {
			t.Fatalf("missing clause heading %q in %v", h, headings)
		}
	}
}

func TestChunkPolicyKoreanMarkers(t *testing.T) {
	text := "제1조 (목적) 이 약관은 홍수 피해를 보상한다.\n제2조 (보험금) 보험금은 30일 이내 지급한다."
	units, err := ChunkDocument("policy", text, ChunkConfig{ChunkSize: 200, ChunkOverlap: 20, Mode: ChunkModePolicy})
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 2 {
		t.Fatalf("expected 2 clauses, got %d", len(units))
	}
	if units[0].Metadata["clause"] != "제1조 (목적)" || units[0].Metadata["type"] != PolicyClause {
		t.Fatalf("unexpected metadata %v", units[0].Metadata)
	}
	if string([]rune(text)[units[1].Start:units[1].End]) != units[1].Text {
		t.Fatal("clause offsets must be rune offsets")
	}
}

func TestChunkPolicyWithoutMarkers(t *testing.T) {
	units, err := ChunkDocument("doc", "Plain text. No clauses here.", ChunkConfig{ChunkSize: 100, ChunkOverlap: 10, Mode: ChunkModePolicy})
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 1 || units[0].Metadata["type"] != PolicySection {
		t.Fatalf("expected one policy_section unit, got %+v", units)
	}
}

func TestParseChunkMode(t *testing.T) {
	tests := []struct {
		in      string
		want    ChunkMode
		wantErr bool
	}{
		{"", ChunkModeBoundary, false},
		{"Simple", ChunkModeSimple, false},
		{" policy ", ChunkModePolicy, false},
		{"tokens", "", true},
	}
	for _, tt := range tests {
		got, err := ParseChunkMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Fatalf("ParseChunkMode(%q) = (%q, %v)", tt.in, got, err)
		}
	}
}
