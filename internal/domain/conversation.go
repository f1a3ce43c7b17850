package domain

import "time"

// ConversationTurn is a single immutable entry of a chat session.
type ConversationTurn struct {
	Role    string
	Content string
	Parts   []ContentPart
}

// ConversationHistory is ordered oldest first and only ever grows by append.
type ConversationHistory []ConversationTurn

// UserTurn returns a plain-text user turn.
func UserTurn(text string) ConversationTurn {
	return ConversationTurn{Role: RoleUser, Content: text}
}

// AssistantTurn returns a plain-text assistant turn.
func AssistantTurn(text string) ConversationTurn {
	return ConversationTurn{Role: RoleAssistant, Content: text}
}

// Message converts the turn to its wire form.
func (t ConversationTurn) Message() ChatMessage {
	return ChatMessage{Role: t.Role, Content: t.Content, Parts: t.Parts}
}

// SessionKey identifies one chat session: one user talking to one persona.
type SessionKey struct {
	UserID    string
	PersonaID string
}

func (k SessionKey) String() string {
	return k.UserID + "#" + k.PersonaID
}

// AttachmentKind distinguishes the upload branches.
type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentDocument AttachmentKind = "document"
)

// AttachmentPayload is created at upload time and consumed once by the
// composer. History keeps only Placeholder().
type AttachmentPayload struct {
	Kind             AttachmentKind
	EncodedBytes     string
	OriginalFilename string
	MediaType        string
}

// Placeholder is the text marker stored in history instead of the bytes.
func (a AttachmentPayload) Placeholder() string {
	return "[" + string(a.Kind) + " uploaded: " + a.OriginalFilename + "]"
}

// DataURL renders the attachment as an inline data URL.
func (a AttachmentPayload) DataURL() string {
	mediaType := a.MediaType
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	return "data:" + mediaType + ";base64," + a.EncodedBytes
}

// Input is what a user sends in one turn: free text, structured medical data,
// or an attachment.
type Input struct {
	Message     string
	MedicalData string
	Attachment  *AttachmentPayload
}

// CompletionStatus is the normalized outcome of one provider call.
type CompletionStatus string

const (
	CompletionOK            CompletionStatus = "ok"
	CompletionProviderError CompletionStatus = "provider_error"
	CompletionEmpty         CompletionStatus = "empty_response"
)

// CompletionResult is produced per call and never persisted as a whole.
type CompletionResult struct {
	Status CompletionStatus
	Text   string
}

func (r CompletionResult) OK() bool {
	return r.Status == CompletionOK
}

// LogEntry is one append-only audit record of a completed exchange.
type LogEntry struct {
	UserID        string
	PersonaID     string
	SessionStart  time.Time
	Timestamp     time.Time
	UserText      string
	AssistantText string
}
