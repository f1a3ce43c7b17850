package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"medical-assistant/internal/domain"
	"medical-assistant/internal/persona"
)

// PersonaLookup resolves persona ids.
type PersonaLookup interface {
	Lookup(id string) (persona.Persona, error)
	List() []persona.Persona
}

// HistoryStore persists conversation turns per session, oldest first.
type HistoryStore interface {
	LoadHistory(ctx context.Context, key domain.SessionKey, limit int) (domain.ConversationHistory, error)
	AppendTurns(ctx context.Context, key domain.SessionKey, turns ...domain.ConversationTurn) error
	ClearHistory(ctx context.Context, key domain.SessionKey) error
}

// LogWriter records completed exchanges. It is append-only.
type LogWriter interface {
	AppendLog(ctx context.Context, entry domain.LogEntry) error
}

// AttachmentStore keeps uploaded bytes and returns where they were put.
type AttachmentStore interface {
	Store(ctx context.Context, userID, filename string, data []byte) (string, error)
}

// Completer produces one normalized completion.
type Completer interface {
	Complete(ctx context.Context, req domain.ProviderRequest) domain.CompletionResult
}

type ChatInput struct {
	UserID       string
	PersonaID    string
	Message      string
	MedicalData  string
	SessionStart time.Time
}

type ChatOutput struct {
	Reply        string
	SessionStart time.Time
}

type sessionState struct {
	mu    sync.Mutex
	start time.Time
}

type ChatService struct {
	personas    PersonaLookup
	history     HistoryStore
	logs        LogWriter
	attachments AttachmentStore
	completer   Completer
	model       string
	now         func() time.Time

	mu       sync.Mutex
	sessions map[domain.SessionKey]*sessionState
}

func NewChatService(personas PersonaLookup, history HistoryStore, logs LogWriter, attachments AttachmentStore, completer Completer, model string) (*ChatService, error) {
	if personas == nil {
		return nil, errors.New("usecase: persona lookup must not be nil")
	}
	if history == nil {
		return nil, errors.New("usecase: history store must not be nil")
	}
	if logs == nil {
		return nil, errors.New("usecase: log writer must not be nil")
	}
	if attachments == nil {
		return nil, errors.New("usecase: attachment store must not be nil")
	}
	if completer == nil {
		return nil, errors.New("usecase: completer must not be nil")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("usecase: model must not be empty")
	}

	return &ChatService{
		personas:    personas,
		history:     history,
		logs:        logs,
		attachments: attachments,
		completer:   completer,
		model:       strings.TrimSpace(model),
		now:         func() time.Time { return time.Now().UTC() },
		sessions:    make(map[domain.SessionKey]*sessionState),
	}, nil
}

// Personas lists the available personas in display order.
func (s *ChatService) Personas() []persona.Persona {
	return s.personas.List()
}

func (s *ChatService) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	p, key, err := s.resolve(in.UserID, in.PersonaID)
	if err != nil {
		return ChatOutput{}, err
	}

	message := strings.TrimSpace(in.Message)
	data := strings.TrimSpace(in.MedicalData)
	if message == "" && data == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}

	userText := message
	if data != "" {
		userText = data
	}

	reply, start, err := s.exchange(ctx, key, p, domain.Input{Message: message, MedicalData: data}, userText, in.SessionStart)
	if err != nil {
		return ChatOutput{}, err
	}
	return ChatOutput{Reply: reply, SessionStart: start}, nil
}

// Reset drops the stored history for one session and starts a new log
// session on the next exchange.
func (s *ChatService) Reset(ctx context.Context, userID, personaID string) error {
	_, key, err := s.resolve(userID, personaID)
	if err != nil {
		return err
	}

	st := s.session(key)
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := s.history.ClearHistory(ctx, key); err != nil {
		slog.Error("history clear failed", "err", err, "session", key.String())
		return newError(ErrorInternal, "history_clear_error", err)
	}
	st.start = time.Time{}
	return nil
}

func (s *ChatService) resolve(userID, personaID string) (persona.Persona, domain.SessionKey, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return persona.Persona{}, domain.SessionKey{}, newError(ErrorUnauthenticated, "missing_user", nil)
	}

	p, err := s.personas.Lookup(personaID)
	if err != nil {
		var unknown *persona.UnknownPersonaError
		if errors.As(err, &unknown) {
			return persona.Persona{}, domain.SessionKey{}, newError(ErrorUnknownPersona, "unknown_persona", err)
		}
		return persona.Persona{}, domain.SessionKey{}, newError(ErrorInternal, "persona_lookup_error", err)
	}
	return p, domain.SessionKey{UserID: userID, PersonaID: p.ID}, nil
}

func (s *ChatService) session(key domain.SessionKey) *sessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[key]
	if !ok {
		st = &sessionState{}
		s.sessions[key] = st
	}
	return st
}

// exchange runs one turn under the session lock. userText is what history
// and the log keep for the user side.
func (s *ChatService) exchange(ctx context.Context, key domain.SessionKey, p persona.Persona, in domain.Input, userText string, start time.Time) (string, time.Time, error) {
	st := s.session(key)
	st.mu.Lock()
	defer st.mu.Unlock()

	if start.IsZero() {
		if st.start.IsZero() {
			st.start = s.now()
		}
		start = st.start
	}

	history, err := s.history.LoadHistory(ctx, key, p.HistoryWindow)
	if err != nil {
		slog.Error("history load failed", "err", err, "session", key.String())
		return "", start, newError(ErrorInternal, "history_load_error", err)
	}

	userTurn := domain.UserTurn(userText)
	window := BuildWindow(history, userTurn, p.HistoryWindow)
	req := Compose(s.model, p, in, window[:len(window)-1])

	result := s.completer.Complete(ctx, req)
	if !result.OK() {
		slog.Warn("no response from llm", "status", result.Status, "persona", p.ID)
		return "", start, newError(ErrorNoResponse, string(result.Status), nil)
	}

	if err := s.history.AppendTurns(ctx, key, userTurn, domain.AssistantTurn(result.Text)); err != nil {
		slog.Error("history append failed", "err", err, "session", key.String())
	}

	entry := domain.LogEntry{
		UserID:        key.UserID,
		PersonaID:     key.PersonaID,
		SessionStart:  start,
		Timestamp:     s.now(),
		UserText:      userText,
		AssistantText: result.Text,
	}
	if err := s.logs.AppendLog(ctx, entry); err != nil {
		slog.Error("session log write failed", "err", err, "session", key.String())
	}

	return result.Text, start, nil
}
