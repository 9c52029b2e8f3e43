package ingest

import (
	"strings"
	"unicode/utf8"
)

var boundarySeparators = []string{"\n\n", "\n", ". ", " "}

// Splitter cuts text into overlapping segments of a bounded target size.
// It prefers natural boundaries (paragraph, line, sentence, word) in the
// back half of the window and hard-cuts when none exists. Splitting is
// deterministic: the same text always yields the same segments.
type Splitter struct {
	size    int
	overlap int
}

func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = 1200
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 4
	}
	return &Splitter{size: size, overlap: overlap}
}

func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= s.size {
		return []string{text}
	}
	var segments []string
	start := 0
	for start < len(text) {
		end := start + s.size
		if end >= len(text) {
			if seg := strings.TrimSpace(text[start:]); seg != "" {
				segments = append(segments, seg)
			}
			break
		}
		cut := s.cutPoint(text, start, end)
		if seg := strings.TrimSpace(text[start:cut]); seg != "" {
			segments = append(segments, seg)
		}
		next := cut - s.overlap
		for next > start && !utf8.RuneStart(text[next]) {
			next--
		}
		// The window must advance even when the overlap would rewind past
		// the previous start.
		if next <= start {
			next = cut
		}
		start = next
	}
	return segments
}

func (s *Splitter) cutPoint(text string, start, end int) int {
	window := text[start:end]
	min := s.size / 2
	for _, sep := range boundarySeparators {
		if idx := strings.LastIndex(window, sep); idx >= min {
			return start + idx + len(sep)
		}
	}
	for end > start+1 && !utf8.RuneStart(text[end]) {
		end--
	}
	return end
}
