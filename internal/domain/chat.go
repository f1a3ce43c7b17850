package domain

import "encoding/json"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ContentPart is one element of a multimodal message body.
type ContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

const (
	PartText  = "text"
	PartImage = "image_url"
)

// ChatMessage is the provider-agnostic chat message shape used by the usecase
// and LLM integrations. When Parts is non-empty the message is multimodal and
// Content is ignored on the wire.
type ChatMessage struct {
	Role    string
	Content string
	Parts   []ContentPart
}

type wireMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

func (m ChatMessage) MarshalJSON() ([]byte, error) {
	w := wireMessage{Role: m.Role, Content: m.Content}
	if len(m.Parts) > 0 {
		w.Content = m.Parts
	}
	return json.Marshal(w)
}

// ProviderRequest is the fully composed payload for one completion call.
type ProviderRequest struct {
	Model           string
	Messages        []ChatMessage
	MaxOutputTokens int
}
