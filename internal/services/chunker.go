package services

import (
	"strings"
	"unicode/utf8"
)

type TextChunker interface {
	ChunkText(text string, maxChunkSize int, overlapLines int) []string
}

type lineChunker struct{}

func NewTextChunker() TextChunker {
	return &lineChunker{}
}

// ChunkText groups non-blank lines into chunks of at most maxChunkSize runes.
// Each chunk after the first repeats the last overlapLines lines of the
// previous one. A single line longer than maxChunkSize is split on word
// boundaries.
func (c *lineChunker) ChunkText(text string, maxChunkSize int, overlapLines int) []string {
	if maxChunkSize <= 0 {
		maxChunkSize = 1000
	}
	if overlapLines < 0 {
		overlapLines = 0
	}

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		lines = append(lines, splitLongLine(line, maxChunkSize)...)
	}

	var chunks []string
	var current []string
	size := 0
	fresh := false

	for _, line := range lines {
		n := utf8.RuneCountInString(line) + 1
		if size+n > maxChunkSize+1 && fresh {
			chunks = append(chunks, strings.Join(current, "\n"))

			keep := overlapLines
			if keep > len(current) {
				keep = len(current)
			}
			current = append([]string(nil), current[len(current)-keep:]...)
			size = 0
			for _, l := range current {
				size += utf8.RuneCountInString(l) + 1
			}
			fresh = false
		}
		// Drop carried lines that leave no room for this one.
		for size+n > maxChunkSize+1 && len(current) > 0 {
			size -= utf8.RuneCountInString(current[0]) + 1
			current = current[1:]
		}
		current = append(current, line)
		size += n
		fresh = true
	}

	if fresh {
		chunks = append(chunks, strings.Join(current, "\n"))
	}

	return chunks
}

func splitLongLine(line string, max int) []string {
	if utf8.RuneCountInString(line) <= max {
		return []string{line}
	}

	var parts []string
	var b strings.Builder
	for _, word := range strings.Fields(line) {
		for utf8.RuneCountInString(word) > max {
			if b.Len() > 0 {
				parts = append(parts, b.String())
				b.Reset()
			}
			runes := []rune(word)
			parts = append(parts, string(runes[:max]))
			word = string(runes[max:])
		}
		if b.Len() > 0 && utf8.RuneCountInString(b.String())+1+utf8.RuneCountInString(word) > max {
			parts = append(parts, b.String())
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(word)
	}
	if b.Len() > 0 {
		parts = append(parts, b.String())
	}
	return parts
}
