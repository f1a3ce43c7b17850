package usecase

import "medical-assistant/internal/domain"

// BuildWindow returns the last windowSize turns of history followed by
// newTurn, oldest first. history is never modified.
func BuildWindow(history domain.ConversationHistory, newTurn domain.ConversationTurn, windowSize int) []domain.ConversationTurn {
	if windowSize < 0 {
		windowSize = 0
	}
	start := len(history) - windowSize
	if start < 0 {
		start = 0
	}

	out := make([]domain.ConversationTurn, 0, len(history)-start+1)
	out = append(out, history[start:]...)
	return append(out, newTurn)
}
