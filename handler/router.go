package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"medical-assistant/internal/usecase"
)

const (
	userHeader = "X-User-Email"

	// multipartOverhead bounds the form framing around the file part.
	multipartOverhead = 64 << 10
)

type server struct {
	uc             ChatUseCase
	maxUploadBytes int64
}

// NewRouter serves the same routes as Handler over plain HTTP. The caller
// identity comes from the X-User-Email header set by the fronting proxy.
func NewRouter(uc ChatUseCase, maxUploadBytes int64) (http.Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	s := &server{uc: uc, maxUploadBytes: maxUploadBytes}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(withCorrelationID)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, errNotFound)
	})

	r.Get("/personas", s.listPersonas)
	r.Group(func(r chi.Router) {
		r.Use(requireUser)
		r.Post("/chat/{persona}", s.chat)
		r.Delete("/chat/{persona}", s.reset)
		r.Post("/upload/{persona}", s.upload)
		r.Post("/upload", s.upload)
	})
	return r, nil
}

func withCorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(correlationHeader, correlationID(r.Header.Get(correlationHeader)))
		next.ServeHTTP(w, r)
	})
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID(r) == "" {
			respondError(w, r, errNotAuthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(userHeader))
}

func personaParam(r *http.Request) string {
	if p := chi.URLParam(r, "persona"); p != "" {
		return p
	}
	return r.URL.Query().Get("chat_type")
}

func (s *server) listPersonas(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, personasResponse{Personas: s.uc.Personas()})
}

func (s *server) chat(w http.ResponseWriter, r *http.Request) {
	var in chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxUploadBytes)).Decode(&in); err != nil {
		respondError(w, r, invalidBody(err))
		return
	}

	out, err := s.uc.Chat(r.Context(), usecase.ChatInput{
		UserID:      userID(r),
		PersonaID:   personaParam(r),
		Message:     in.Message,
		MedicalData: in.MedicalData,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, chatResponse{Response: out.Reply})
}

func (s *server) upload(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.maxUploadBytes+multipartOverhead)
	name, data, err := readUpload(r.Header.Get("Content-Type"), body, s.maxUploadBytes)
	if err != nil {
		respondError(w, r, err)
		return
	}

	out, err := s.uc.Upload(r.Context(), usecase.UploadInput{
		UserID:    userID(r),
		PersonaID: personaParam(r),
		Filename:  name,
		Data:      data,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newUploadResponse(out))
}

func (s *server) reset(w http.ResponseWriter, r *http.Request) {
	if err := s.uc.Reset(r.Context(), userID(r), personaParam(r)); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resetResponse{Success: true})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "err", err)
	}
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := toErrorResponse(err)
	attrs := []any{"err", err, "status", status, "method", r.Method, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context())}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", attrs...)
	} else {
		slog.Warn("request rejected", attrs...)
	}
	respondJSON(w, status, body)
}
