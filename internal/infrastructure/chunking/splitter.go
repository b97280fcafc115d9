package chunking

import (
	"strings"
	"unicode/utf8"
)

const defaultMaxBytes = 12000

// Splitter cuts document text into pieces of at most MaxBytes bytes. Cuts always fall on a rune
// boundary and prefer a line break or a space in the second half of the window. With Overlap
// zero, concatenating the pieces reproduces the input byte for byte.
type Splitter struct {
	MaxBytes int
	Overlap  int
	// Keep lists values that must not straddle a cut, such as the values being redacted.
	Keep []string
}

func NewSplitter(maxBytes, overlap int, keep ...string) *Splitter {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxBytes {
		overlap = maxBytes / 4
	}
	return &Splitter{
		MaxBytes: maxBytes,
		Overlap:  overlap,
		Keep:     keep,
	}
}

func (s *Splitter) Split(text string) []string {
	if text == "" {
		return nil
	}

	out := make([]string, 0, len(text)/s.MaxBytes+1)
	for start := 0; ; {
		rest := text[start:]
		if len(rest) <= s.MaxBytes {
			out = append(out, rest)
			return out
		}
		cut := s.cut(rest)
		out = append(out, rest[:cut])

		next := start + cut
		if s.Overlap > 0 && cut > s.Overlap {
			back := next - s.Overlap
			for back < next && !utf8.RuneStart(text[back]) {
				back++
			}
			next = back
		}
		start = next
	}
}

// cut returns the length of the first piece of text, which is longer than MaxBytes.
func (s *Splitter) cut(text string) int {
	limit := s.MaxBytes
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	if limit == 0 {
		_, size := utf8.DecodeRuneInString(text)
		return size
	}

	cut := limit
	if i := strings.LastIndexByte(text[:limit], '\n'); i >= limit/2 {
		cut = i + 1
	} else if i := strings.LastIndexAny(text[:limit], " \t"); i >= limit/2 {
		cut = i + 1
	}
	return s.avoidKept(text, cut)
}

// avoidKept moves cut back to the start of any kept value that would otherwise be split.
func (s *Splitter) avoidKept(text string, cut int) int {
	for moved := true; moved; {
		moved = false
		for _, value := range s.Keep {
			if value == "" || len(value) >= cut {
				continue
			}
			from := cut - len(value) + 1
			to := cut + len(value) - 1
			if to > len(text) {
				to = len(text)
			}
			i := strings.Index(text[from:to], value)
			if i < 0 {
				continue
			}
			if start := from + i; start < cut && start > 0 {
				cut = start
				moved = true
			}
		}
	}
	return cut
}
