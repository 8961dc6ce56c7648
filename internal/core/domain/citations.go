package domain

import (
	"regexp"
	"strconv"
)

var citationPattern = regexp.MustCompile(`(?i)\bsource\s+(\d+)\b`)

// CitedIndexes extracts the 1-based context-block indexes the answer
// actually referenced, in ascending order. When the answer cited nothing
// explicitly the result is nil and every retrieved chunk remains a
// candidate source.
func CitedIndexes(answer string, sourceCount int) []int {
	seen := make(map[int]bool)
	for _, match := range citationPattern.FindAllStringSubmatch(answer, -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil || n < 1 || n > sourceCount {
			continue
		}
		seen[n] = true
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]int, 0, len(seen))
	for n := 1; n <= sourceCount; n++ {
		if seen[n] {
			out = append(out, n)
		}
	}
	return out
}
