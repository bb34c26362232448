package text

import "strings"

// Chunk splits text into sentence-aligned chunks of at most maxChars characters.
// Sentences are accumulated greedily; a fragment that would push the buffer past
// maxChars starts a new chunk instead. A single fragment longer than maxChars is
// kept whole rather than split mid-sentence.
func Chunk(text string, maxChars int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var out []string
	var cur strings.Builder
	for _, part := range splitSentences(text) {
		if part == "" {
			continue
		}
		if cur.Len() > 0 && cur.Len()+len(part)+1 > maxChars {
			out = append(out, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(part)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

// splitSentences breaks text at each ". " boundary, keeping the period with the
// fragment it terminates.
func splitSentences(text string) []string {
	parts := strings.Split(text, ". ")
	for i := 0; i < len(parts)-1; i++ {
		parts[i] += "."
	}
	return parts
}
