package bridge

import (
	"strings"
	"sync"
)

// Turn is one committed utterance in a call's conversation log.
type Turn struct {
	Role string `json:"role"` // "user" | "assistant"
	Text string `json:"text"`
}

// ConversationLog accumulates turns in real speaking order. Assistant text is
// committed at sentence boundaries, user text when the upstream service
// finalizes an utterance, so log order follows completion signals rather than
// delta arrival order.
type ConversationLog struct {
	mu    sync.Mutex
	turns []Turn
}

// Commit appends a turn. Empty (after trimming) text is dropped.
func (l *ConversationLog) Commit(role, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns = append(l.turns, Turn{Role: role, Text: text})
}

// Turns returns a copy of the committed turns.
func (l *ConversationLog) Turns() []Turn {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

// Len returns the number of committed turns.
func (l *ConversationLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.turns)
}

// AssistantBuffer accumulates assistant transcript deltas until a sentence
// boundary, and watches the uncommitted text for the end-of-call marker.
// The marker never contains terminal punctuation, so it can never be split
// across a committed sentence; scanning only the pending text is sufficient
// even when the marker itself arrives split across deltas.
type AssistantBuffer struct {
	marker  string
	pending string
}

// NewAssistantBuffer creates a buffer watching for the given marker.
func NewAssistantBuffer(marker string) *AssistantBuffer {
	return &AssistantBuffer{marker: marker}
}

// Append adds one transcript delta. It returns the sentences completed by
// this delta, in order, with the end-of-call marker already stripped, and
// whether the marker was seen.
func (b *AssistantBuffer) Append(delta string) (sentences []string, endCall bool) {
	b.pending += delta

	if b.marker != "" && strings.Contains(b.pending, b.marker) {
		b.pending = strings.ReplaceAll(b.pending, b.marker, "")
		endCall = true
	}

	for {
		sentence, rest, ok := splitSentence(b.pending)
		if !ok {
			break
		}
		b.pending = rest
		if s := strings.TrimSpace(sentence); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences, endCall
}

// Flush returns any uncommitted remainder and resets the buffer. Called on
// teardown so a final partial sentence still reaches the log.
func (b *AssistantBuffer) Flush() string {
	s := strings.TrimSpace(b.pending)
	b.pending = ""
	return s
}

// Pending returns the uncommitted text.
func (b *AssistantBuffer) Pending() string {
	return b.pending
}

// splitSentence finds the first complete sentence: text up to terminal
// punctuation followed by whitespace or end-of-buffer.
func splitSentence(s string) (sentence, rest string, ok bool) {
	for i := 0; i < len(s); i++ {
		if !isTerminal(s[i]) {
			continue
		}
		// Consume any run of terminal punctuation ("?!", "...").
		j := i + 1
		for j < len(s) && isTerminal(s[j]) {
			j++
		}
		if j == len(s) {
			return s, "", true
		}
		if s[j] == ' ' || s[j] == '\t' || s[j] == '\n' {
			return s[:j], s[j+1:], true
		}
		// Mid-token punctuation (e.g. "3.5"), keep scanning.
		i = j - 1
	}
	return "", s, false
}

func isTerminal(c byte) bool {
	return c == '.' || c == '!' || c == '?'
}
