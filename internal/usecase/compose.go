package usecase

import (
	"strings"

	"medical-assistant/internal/domain"
	"medical-assistant/internal/persona"
)

// Compose renders one provider request. history holds the windowed prior
// turns only; the framed user message for in is always the last message and
// is the only one carrying persona framing.
func Compose(model string, p persona.Persona, in domain.Input, history []domain.ConversationTurn) domain.ProviderRequest {
	var (
		msg         domain.ChatMessage
		withHistory = true
	)

	switch {
	case strings.TrimSpace(in.MedicalData) != "":
		msg = domain.ChatMessage{
			Role:    domain.RoleUser,
			Content: p.DataPrefix + truncateRunes(strings.TrimSpace(in.MedicalData), p.DataBudget),
		}
		withHistory = p.DataIncludesHistory
	case in.Attachment != nil && in.Attachment.Kind == domain.AttachmentImage:
		msg = domain.ChatMessage{
			Role: domain.RoleUser,
			Parts: []domain.ContentPart{
				{Type: domain.PartText, Text: p.SystemPrompt},
				{Type: domain.PartImage, ImageURL: in.Attachment.DataURL()},
			},
		}
	default:
		msg = domain.ChatMessage{
			Role:    domain.RoleUser,
			Content: p.TextPrefix + truncateRunes(textOf(in), p.TextBudget),
		}
	}

	messages := make([]domain.ChatMessage, 0, len(history)+1)
	if withHistory {
		for _, t := range history {
			messages = append(messages, t.Message())
		}
	}
	messages = append(messages, msg)

	return domain.ProviderRequest{
		Model:           model,
		Messages:        messages,
		MaxOutputTokens: p.MaxOutputTokens,
	}
}

func textOf(in domain.Input) string {
	if in.Attachment != nil && in.Attachment.Kind == domain.AttachmentDocument {
		return "User uploaded a document: " + in.Attachment.OriginalFilename
	}
	return strings.TrimSpace(in.Message)
}

// truncateRunes cuts s to at most limit runes. limit <= 0 means no limit.
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
