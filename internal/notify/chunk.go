package notify

import (
	"strings"
	"unicode/utf8"
)

// lineSeparator joins the lines of a chunk into the delivered text.
const lineSeparator = "\n"

// Chunk is one deliverable message body.
// CharCount is the rune count of Text(), separators included.
type Chunk struct {
	Lines     []string
	CharCount int
}

// Text joins the chunk lines into the message body.
func (c Chunk) Text() string {
	return strings.Join(c.Lines, lineSeparator)
}

// Oversized reports whether the chunk is a single line that is longer than maxChars on its own.
func (c Chunk) Oversized(maxChars int) bool {
	return len(c.Lines) == 1 && c.CharCount > maxChars
}

// ChunkLines packs lines, in order, into chunks holding at most maxLines lines and
// maxChars runes each. Both bounds are inclusive.
//
// A line that alone exceeds maxChars is emitted as a chunk of its own instead of being
// split or dropped, so that chunk is the only kind allowed to break the char bound.
// Empty input yields no chunks.
func ChunkLines(lines []string, maxLines, maxChars int) []Chunk {
	if len(lines) == 0 {
		return nil
	}
	maxLines = max(maxLines, 1)
	maxChars = max(maxChars, 1)

	var chunks []Chunk
	var cur Chunk

	for _, line := range lines {
		size := utf8.RuneCountInString(line)

		next := cur.CharCount + size
		if len(cur.Lines) > 0 {
			next += utf8.RuneCountInString(lineSeparator)
		}

		if len(cur.Lines) > 0 && (len(cur.Lines)+1 > maxLines || next > maxChars) {
			chunks = append(chunks, cur)
			cur = Chunk{}
			next = size
		}

		cur.Lines = append(cur.Lines, line)
		cur.CharCount = next
	}

	return append(chunks, cur)
}
