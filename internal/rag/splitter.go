package rag

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 4000
	DefaultChunkOverlap = 800
)

// SentenceSplitter packs whole sentences into chunks of at most ChunkSize characters.
// Consecutive chunks share up to ChunkOverlap characters of trailing sentences.
type SentenceSplitter struct {
	ChunkSize    int
	ChunkOverlap int
}

func NewSentenceSplitter() SentenceSplitter {
	return SentenceSplitter{ChunkSize: DefaultChunkSize, ChunkOverlap: DefaultChunkOverlap}
}

func (s SentenceSplitter) params() (int, int) {
	size, overlap := s.ChunkSize, s.ChunkOverlap
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 5
	}
	return size, overlap
}

// Split returns the chunks of text in document order.
func (s SentenceSplitter) Split(text string) []string {
	size, overlap := s.params()

	var pieces []string
	for _, sentence := range sentences(text) {
		pieces = append(pieces, fit(sentence, size)...)
	}

	var (
		chunks []string
		cur    []string
		curLen int
	)
	for _, p := range pieces {
		pl := utf8.RuneCountInString(p)
		if len(cur) > 0 && curLen+1+pl > size {
			chunks = append(chunks, strings.Join(cur, " "))
			cur = tail(cur, min(overlap, size-pl-1))
			curLen = joinedLen(cur)
		}
		if len(cur) > 0 {
			curLen++
		}
		cur = append(cur, p)
		curLen += pl
	}
	if len(cur) > 0 {
		chunks = append(chunks, strings.Join(cur, " "))
	}
	return chunks
}

// sentences splits at terminal punctuation followed by whitespace and at blank lines.
// Whitespace inside a sentence collapses to single spaces.
func sentences(text string) []string {
	var (
		out []string
		b   strings.Builder
	)
	flush := func() {
		if s := strings.Join(strings.Fields(b.String()), " "); s != "" {
			out = append(out, s)
		}
		b.Reset()
	}
	rs := []rune(text)
	for i, r := range rs {
		b.WriteRune(r)
		switch {
		case r == '.' || r == '!' || r == '?':
			if i+1 == len(rs) || unicode.IsSpace(rs[i+1]) {
				flush()
			}
		case r == '\n' && i+1 < len(rs) && rs[i+1] == '\n':
			flush()
		}
	}
	flush()
	return out
}

// fit breaks a sentence longer than size into word runs, and words longer than size into runes.
func fit(sentence string, size int) []string {
	if utf8.RuneCountInString(sentence) <= size {
		return []string{sentence}
	}
	var (
		out    []string
		cur    []string
		curLen int
	)
	for _, w := range strings.Fields(sentence) {
		rs := []rune(w)
		for len(rs) > size {
			if len(cur) > 0 {
				out = append(out, strings.Join(cur, " "))
				cur, curLen = nil, 0
			}
			out = append(out, string(rs[:size]))
			rs = rs[size:]
		}
		if len(rs) == 0 {
			continue
		}
		if len(cur) > 0 && curLen+1+len(rs) > size {
			out = append(out, strings.Join(cur, " "))
			cur, curLen = nil, 0
		}
		if len(cur) > 0 {
			curLen++
		}
		cur = append(cur, string(rs))
		curLen += len(rs)
	}
	if len(cur) > 0 {
		out = append(out, strings.Join(cur, " "))
	}
	return out
}

// tail returns the longest suffix of pieces whose joined length is at most limit.
func tail(pieces []string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	total := 0
	start := len(pieces)
	for i := len(pieces) - 1; i >= 0; i-- {
		n := utf8.RuneCountInString(pieces[i])
		if start < len(pieces) {
			n++
		}
		if total+n > limit {
			break
		}
		total += n
		start = i
	}
	return append([]string(nil), pieces[start:]...)
}

func joinedLen(pieces []string) int {
	if len(pieces) == 0 {
		return 0
	}
	n := len(pieces) - 1
	for _, p := range pieces {
		n += utf8.RuneCountInString(p)
	}
	return n
}
