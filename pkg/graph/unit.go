package graph

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/OFFIS-RIT/kiwi-insure/pkg/common"
)

// ChunkMode selects the splitting strategy of a Chunker.
type ChunkMode string

const (
	ChunkModeSimple   ChunkMode = "simple"
	ChunkModeBoundary ChunkMode = "boundary"
	ChunkModePolicy   ChunkMode = "policy"
)

// Metadata values set on policy units under the "type" key.
const (
	PolicyClause  = "policy_clause"
	PolicySection = "policy_section"
)

// ChunkConfig configures a Chunker. Sizes are counted in characters (runes).
//
// When Mode is empty, PreserveBoundaries picks between boundary and simple
// mode.
type ChunkConfig struct {
	ChunkSize          int
	ChunkOverlap       int
	PreserveBoundaries bool
	Mode               ChunkMode
}

// DefaultChunkConfig returns a boundary preserving config of 1000/200.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{ChunkSize: 1000, ChunkOverlap: 200, PreserveBoundaries: true}
}

// ParseChunkMode maps a config string onto a ChunkMode.
func ParseChunkMode(s string) (ChunkMode, error) {
	switch m := ChunkMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ChunkModeSimple, ChunkModeBoundary, ChunkModePolicy:
		return m, nil
	case "":
		return ChunkModeBoundary, nil
	default:
		return "", fmt.Errorf("unknown chunk mode %q", s)
	}
}

func (c ChunkConfig) mode() ChunkMode {
	if c.Mode != "" {
		return c.Mode
	}
	if c.PreserveBoundaries {
		return ChunkModeBoundary
	}
	return ChunkModeSimple
}

// Validate rejects parameters under which chunking would not terminate.
func (c ChunkConfig) Validate() error {
	fail := func(reason string) error {
		return &ChunkingConfigurationError{ChunkSize: c.ChunkSize, ChunkOverlap: c.ChunkOverlap, Reason: reason}
	}
	switch {
	case c.ChunkSize <= 0:
		return fail("chunk size must be positive")
	case c.ChunkOverlap < 0:
		return fail("overlap must not be negative")
	case c.ChunkOverlap >= c.ChunkSize:
		return fail("overlap must be smaller than chunk size")
	}
	switch c.mode() {
	case ChunkModeSimple, ChunkModeBoundary, ChunkModePolicy:
	default:
		return fail(fmt.Sprintf("unknown mode %q", c.Mode))
	}
	return nil
}

// Chunker splits documents into ordered text units.
type Chunker struct {
	cfg ChunkConfig
}

// NewChunker validates cfg and returns a Chunker for it.
func NewChunker(cfg ChunkConfig) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{cfg: cfg}, nil
}

// Config returns the chunker configuration.
func (c *Chunker) Config() ChunkConfig { return c.cfg }

// ChunkDocument splits text into units with IDs {documentID}_chunk_{i}.
// Whitespace-only text yields no units.
func (c *Chunker) ChunkDocument(documentID, text string) ([]common.Unit, error) {
	return ChunkDocument(documentID, text, c.cfg)
}

// ChunkDocument is the functional form of Chunker.ChunkDocument.
func ChunkDocument(documentID, text string, cfg ChunkConfig) ([]common.Unit, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	runes := []rune(text)
	var pieces []piece
	switch cfg.mode() {
	case ChunkModeSimple:
		pieces = chunkSimple(runes, cfg.ChunkSize, cfg.ChunkOverlap)
	case ChunkModeBoundary:
		pieces = chunkBoundary(runes, 0, len(runes), cfg.ChunkSize, cfg.ChunkOverlap)
	case ChunkModePolicy:
		pieces = chunkPolicy(runes, cfg.ChunkSize, cfg.ChunkOverlap)
	}

	units := make([]common.Unit, 0, len(pieces))
	for i, p := range pieces {
		units = append(units, common.Unit{
			ID:         fmt.Sprintf("%s_chunk_%d", documentID, i),
			DocumentID: documentID,
			ChunkIndex: i,
			Start:      p.start,
			End:        p.end,
			Text:       p.text,
			Metadata:   p.meta,
		})
	}
	return units, nil
}

type piece struct {
	start int
	end   int
	text  string
	meta  map[string]string
}

func chunkSimple(runes []rune, size, overlap int) []piece {
	var out []piece
	for offset := 0; offset < len(runes); {
		end := min(offset+size, len(runes))
		out = append(out, piece{start: offset, end: end, text: string(runes[offset:end])})
		if end == len(runes) {
			break
		}
		offset = end - overlap
	}
	return out
}

// span is a sentence as rune offsets into the document.
type span struct {
	start int
	end   int
	para  int
}

func (s span) len() int { return s.end - s.start }

// chunkBoundary packs whole sentences of runes[from:to] greedily into units of
// at most size runes. A sentence longer than size becomes its own unit.
// Each new unit is seeded with the trailing sentences of the previous one
// that fit into overlap runes.
func chunkBoundary(runes []rune, from, to, size, overlap int) []piece {
	sentences := splitSentenceSpans(runes, from, to)
	if len(sentences) == 0 {
		return nil
	}

	var (
		out    []piece
		buf    []span
		bufLen int
	)
	sepLen := func(prev, next span) int {
		if prev.para != next.para {
			return 2
		}
		return 1
	}
	flush := func() {
		if len(buf) == 0 {
			return
		}
		var b strings.Builder
		for i, s := range buf {
			if i > 0 {
				if sepLen(buf[i-1], s) == 2 {
					b.WriteString("\n\n")
				} else {
					b.WriteString(" ")
				}
			}
			b.WriteString(string(runes[s.start:s.end]))
		}
		out = append(out, piece{start: buf[0].start, end: buf[len(buf)-1].end, text: b.String()})
	}

	for _, s := range sentences {
		if len(buf) == 0 {
			buf, bufLen = append(buf, s), s.len()
			continue
		}
		if bufLen+sepLen(buf[len(buf)-1], s)+s.len() <= size {
			bufLen += sepLen(buf[len(buf)-1], s) + s.len()
			buf = append(buf, s)
			continue
		}

		flush()
		seed, seedLen := overlapSeed(buf, overlap, sepLen)
		if len(seed) > 0 && seedLen+sepLen(seed[len(seed)-1], s)+s.len() > size {
			seed, seedLen = nil, 0
		}
		buf = append(seed, s)
		if seedLen > 0 {
			bufLen = seedLen + sepLen(seed[len(seed)-1], s) + s.len()
		} else {
			bufLen = s.len()
		}
	}
	flush()
	return out
}

// overlapSeed returns the longest proper suffix of buf whose rendered length
// is at most overlap, i.e. the sentences that start inside the trailing
// overlap window.
func overlapSeed(buf []span, overlap int, sepLen func(a, b span) int) ([]span, int) {
	if overlap <= 0 {
		return nil, 0
	}
	n, total := 0, 0
	for i := len(buf) - 1; i > 0; i-- {
		add := buf[i].len()
		if n > 0 {
			add += sepLen(buf[i], buf[i+1])
		}
		if total+add > overlap {
			break
		}
		total += add
		n++
	}
	if n == 0 {
		return nil, 0
	}
	seed := make([]span, n)
	copy(seed, buf[len(buf)-n:])
	return seed, total
}

// splitSentenceSpans segments runes[from:to] into paragraphs on blank lines
// and paragraphs into sentences on '.', '!' and '?'. A period after a digit
// that is followed by a space ("1. ") is a listing marker, not a sentence end.
// Closing quotes and brackets stay with their sentence.
func splitSentenceSpans(runes []rune, from, to int) []span {
	var out []span
	para := 0
	start := -1
	newlines := 0

	closeAt := func(end int) {
		if start >= 0 {
			end = trimRightSpace(runes, start, end)
			if end > start {
				out = append(out, span{start: start, end: end, para: para})
			}
		}
		start = -1
	}

	for i := from; i < to; i++ {
		r := runes[i]
		if r == '\n' {
			newlines++
			if newlines == 2 {
				closeAt(i)
				if len(out) > 0 && out[len(out)-1].para == para {
					para++
				}
			}
			continue
		}
		if unicode.IsSpace(r) {
			continue
		}
		newlines = 0
		if start < 0 {
			start = i
		}
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if r == '.' && i > from && unicode.IsDigit(runes[i-1]) && i+1 < to && runes[i+1] == ' ' {
			continue
		}

		j := i + 1
		for j < to && (runes[j] == '.' || runes[j] == '!' || runes[j] == '?') {
			j++
		}
		for j < to && strings.ContainsRune("\"')]}", runes[j]) {
			j++
		}
		if j < to && !unicode.IsSpace(runes[j]) {
			// "3.5", "e.g.x" and the like
			i = j - 1
			continue
		}
		closeAt(j)
		i = j - 1
	}
	closeAt(to)
	return out
}

func trimRightSpace(runes []rune, start, end int) int {
	for end > start && unicode.IsSpace(runes[end-1]) {
		end--
	}
	return end
}

func trimLeftSpace(runes []rune, start, end int) int {
	for start < end && unicode.IsSpace(runes[start]) {
		start++
	}
	return start
}

var clauseMarker = regexp.MustCompile(`(?m)^[ \t]*(제\s*\d+\s*조(?:의\s*\d+)?(?:\s*\([^)\n]*\))?|Article\s+\d+[A-Za-z]?|Section\s+\d+(?:\.\d+)*|§\s*\d+)`)

// chunkPolicy splits runes on clause markers at line starts. Clauses that fit
// into size become one policy_clause unit. Longer clauses and any preamble
// are re-chunked in boundary mode with halved parameters and tagged
// policy_section. Text without markers falls back to boundary mode.
func chunkPolicy(runes []rune, size, overlap int) []piece {
	text := string(runes)
	matches := clauseMarker.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		out := chunkBoundary(runes, 0, len(runes), size, overlap)
		for i := range out {
			out[i].meta = map[string]string{"type": PolicySection}
		}
		return out
	}

	byteToRune := runeIndexer(text)
	halfSize := max(1, size/2)
	halfOverlap := min(overlap/2, halfSize-1)

	var out []piece
	emit := func(start, end int, heading string, isClause bool) {
		start = trimLeftSpace(runes, start, end)
		end = trimRightSpace(runes, start, end)
		if end <= start {
			return
		}
		meta := func(kind string) map[string]string {
			m := map[string]string{"type": kind}
			if heading != "" {
				m["clause"] = heading
			}
			return m
		}
		if isClause && end-start <= size {
			out = append(out, piece{start: start, end: end, text: string(runes[start:end]), meta: meta(PolicyClause)})
			return
		}
		if end-start <= size {
			out = append(out, piece{start: start, end: end, text: string(runes[start:end]), meta: meta(PolicySection)})
			return
		}
		for _, p := range chunkBoundary(runes, start, end, halfSize, halfOverlap) {
			p.meta = meta(PolicySection)
			out = append(out, p)
		}
	}

	first := byteToRune(matches[0][0])
	emit(0, first, "", false)
	for i, m := range matches {
		start := byteToRune(m[0])
		end := len(runes)
		if i+1 < len(matches) {
			end = byteToRune(matches[i+1][0])
		}
		heading := strings.Join(strings.Fields(text[m[2]:m[3]]), " ")
		emit(start, end, heading, true)
	}
	return out
}

// runeIndexer converts byte offsets of s into rune offsets.
func runeIndexer(s string) func(int) int {
	idx := make(map[int]int, len(s))
	n := 0
	for b := range s {
		idx[b] = n
		n++
	}
	idx[len(s)] = n
	return func(b int) int { return idx[b] }
}
