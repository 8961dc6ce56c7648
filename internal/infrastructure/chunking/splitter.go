package chunking

import "strings"

// Splitter cuts text into fixed-size windows with a shared overlap between
// consecutive windows. It operates on runes so multi-byte scripts are not
// cut mid-character.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

// NewSplitter builds a splitter. The overlap < chunkSize invariant is
// enforced by config validation at startup; the fallbacks here only guard
// direct construction.
func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

// Split produces the windows for one source unit. A unit shorter than the
// chunk size yields exactly one chunk; whitespace-only windows are dropped.
func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := s.ChunkSize - s.Overlap
	if step <= 0 {
		step = s.ChunkSize
	}

	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + s.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunk := string(runes[start:end])
		if strings.TrimSpace(chunk) != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}
