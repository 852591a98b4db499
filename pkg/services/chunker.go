package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/scopeline-ai/scopeline-engine/pkg/models"
)

// SplitIntoChunks cuts signal text into extraction units of roughly
// chunkSize characters, preferring paragraph boundaries, then sentence
// boundaries, before cutting mid-text. Chunk ids are stable within a run
// ("chunk-1", "chunk-2", ...) and referenced by evidence entries.
func SplitIntoChunks(text string, chunkSize int) []models.SignalChunk {
	if chunkSize <= 0 {
		chunkSize = 6000
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	var chunks []models.SignalChunk
	remaining := trimmed
	for len(remaining) > 0 {
		cut := len(remaining)
		if cut > chunkSize {
			cut = findCutPoint(remaining, chunkSize)
		}

		piece := strings.TrimSpace(remaining[:cut])
		if piece != "" {
			chunks = append(chunks, models.SignalChunk{
				ID:   fmt.Sprintf("chunk-%d", len(chunks)+1),
				Text: piece,
			})
		}
		remaining = strings.TrimSpace(remaining[cut:])
	}

	return chunks
}

// findCutPoint scans backward from limit for a paragraph break, then a
// sentence end, then a space. Falls back to a hard cut at limit.
func findCutPoint(text string, limit int) int {
	window := text[:limit]

	if idx := strings.LastIndex(window, "\n\n"); idx > limit/2 {
		return idx
	}

	for _, sep := range []string{". ", ".\n", "! ", "? "} {
		if idx := strings.LastIndex(window, sep); idx > limit/2 {
			return idx + len(sep)
		}
	}

	if idx := strings.LastIndex(window, " "); idx > limit/2 {
		return idx
	}

	// Hard cut: back the index up to a rune boundary so multibyte text is
	// never split mid-rune.
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	if cut == 0 {
		cut = limit
		for cut < len(text) && !utf8.RuneStart(text[cut]) {
			cut++
		}
	}
	return cut
}
