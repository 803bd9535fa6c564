package agent

import "sync"

// summaryLength is how much of an older answer is kept when summarizing
const summaryLength = 100

// Turn is one request and the model's answer
type Turn struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// History keeps the most recent turns of a conversation
type History struct {
	mu    sync.Mutex
	turns []Turn
	max   int
}

// NewHistory creates a history holding at most max turns. max <= 0 keeps
// nothing.
func NewHistory(max int) *History {
	return &History{max: max}
}

// Add appends a turn, dropping the oldest beyond the limit
func (h *History) Add(turn Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.max <= 0 {
		return
	}

	h.turns = append(h.turns, turn)
	if over := len(h.turns) - h.max; over > 0 {
		h.turns = append([]Turn(nil), h.turns[over:]...)
	}
}

// Turns returns a copy of the stored turns, oldest first
func (h *History) Turns() []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]Turn(nil), h.turns...)
}

// Len returns the number of stored turns
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.turns)
}

// Clear forgets every turn
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.turns = nil
}

// ForPrompt returns the last n turns. With summarize, every answer but the
// most recent is cut to summaryLength characters.
func (h *History) ForPrompt(n int, summarize bool) []Turn {
	turns := h.Turns()
	if n <= 0 || len(turns) == 0 {
		return nil
	}

	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}

	if summarize {
		for i := 0; i < len(turns)-1; i++ {
			turns[i].Assistant = truncate(turns[i].Assistant, summaryLength)
		}
	}

	return turns
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return string(r[:n]) + "..."
}
