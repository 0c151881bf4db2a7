// Package segment flags likely speaker boundaries in timed transcript segments.
//
// This is a heuristic, not diarization: it has no notion of voice identity and
// will mis-segment monologue containing rhetorical questions or unrelated uses
// of "I"/"you". Good enough to break composed transcripts into readable turns.
package segment

import "strings"

// Segment is one timed piece of a transcription result.
// Start and End are seconds relative to the dispatched audio buffer.
type Segment struct {
	Text  string
	Start float64
	End   float64
}

// pauseThreshold is the gap, in seconds, long enough to suggest a turn change.
const pauseThreshold = 1.0

// Boundary reports whether segs[i] likely starts a new speaker turn.
// Pure and deterministic: same input, same answer.
func Boundary(segs []Segment, i int) bool {
	if i == 0 {
		return true
	}

	prev, curr := segs[i-1], segs[i]

	if curr.Start-prev.End > pauseThreshold {
		return true
	}

	prevText := strings.TrimSpace(prev.Text)
	currText := strings.TrimSpace(curr.Text)
	if strings.HasSuffix(prevText, "?") && !strings.HasSuffix(currText, "?") {
		return true
	}

	// Pronoun flip: "I ... " answered by "you ...", or the reverse,
	// suggests two-party dialogue.
	prevWords := words(prevText)
	currWords := words(currText)
	if (prevWords["i"] && currWords["you"]) || (prevWords["you"] && currWords["i"]) {
		return true
	}

	return false
}

// Compose joins segment texts into a single string with a line break at each
// interior boundary. Blank segments are skipped before boundary detection.
// The second return reports whether any interior break was inserted.
func Compose(segs []Segment) (string, bool) {
	var spoken []Segment
	for _, s := range segs {
		if strings.TrimSpace(s.Text) != "" {
			spoken = append(spoken, s)
		}
	}
	if len(spoken) == 0 {
		return "", false
	}

	var lines []string
	var current []string
	for i, s := range spoken {
		if i > 0 && Boundary(spoken, i) && len(current) > 0 {
			lines = append(lines, strings.Join(current, " "))
			current = current[:0]
		}
		current = append(current, strings.TrimSpace(s.Text))
	}
	lines = append(lines, strings.Join(current, " "))

	return strings.Join(lines, "\n"), len(lines) > 1
}

// words returns the lowercase word set of text, stripped of edge punctuation.
func words(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:'\"")
		if w != "" {
			set[w] = true
		}
	}
	return set
}
