package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"medical-assistant/internal/persona"
	"medical-assistant/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	uploadField       = "file"

	defaultMaxUploadBytes = 10 << 20
)

// ChatUseCase is the application surface both transports drive.
type ChatUseCase interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
	Upload(ctx context.Context, in usecase.UploadInput) (usecase.UploadOutput, error)
	Reset(ctx context.Context, userID, personaID string) error
	Personas() []persona.Persona
}

type chatRequest struct {
	Message     string `json:"message"`
	MedicalData string `json:"medical_data"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type uploadResponse struct {
	Response  string `json:"response"`
	ImageData string `json:"image_data,omitempty"`
	FilePath  string `json:"file_path,omitempty"`
}

type resetResponse struct {
	Success bool `json:"success"`
}

type personasResponse struct {
	Personas []persona.Persona `json:"personas"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

var (
	errNoFile        = errors.New("no file provided")
	errFileTooLarge  = errors.New("file too large")
	errNotMultipart  = errors.New("expected multipart/form-data")
	errNotFound      = errors.New("not found")
	errNotAuthorized = errors.New("missing user identity")
)

func newUploadResponse(out usecase.UploadOutput) uploadResponse {
	resp := uploadResponse{Response: out.Reply, ImageData: out.ImageData}
	if out.ImageData == "" {
		resp.FilePath = out.FilePath
	}
	return resp
}

func toErrorResponse(err error) (int, errorResponse) {
	switch {
	case errors.Is(err, errNotFound):
		return http.StatusNotFound, errorResponse{Error: "NOT_FOUND"}
	case errors.Is(err, errNotAuthorized):
		return http.StatusUnauthorized, errorResponse{Error: string(usecase.ErrorUnauthenticated)}
	case errors.Is(err, errFileTooLarge):
		return http.StatusRequestEntityTooLarge, errorResponse{Error: string(usecase.ErrorInvalidInput), Message: err.Error()}
	case errors.Is(err, errNoFile), errors.Is(err, errNotMultipart):
		return http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Message: err.Error()}
	}

	var usecaseErr *usecase.Error
	if !errors.As(err, &usecaseErr) {
		return http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal)}
	}

	switch usecaseErr.Code {
	case usecase.ErrorInvalidInput, usecase.ErrorUnknownPersona:
		return http.StatusBadRequest, errorResponse{Error: string(usecaseErr.Code), Message: usecaseErr.Reason}
	case usecase.ErrorUnauthenticated:
		return http.StatusUnauthorized, errorResponse{Error: string(usecaseErr.Code)}
	case usecase.ErrorNoResponse:
		return http.StatusBadGateway, errorResponse{Error: string(usecaseErr.Code), Message: "No response from LLM"}
	default:
		return http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal)}
	}
}

func invalidBody(err error) error {
	return &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_body", Err: err}
}

func correlationID(v string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return uuid.NewString()
}

// readUpload returns the name and bytes of the "file" part of a multipart
// body. Bytes beyond limit yield errFileTooLarge.
func readUpload(contentType string, body io.Reader, limit int64) (string, []byte, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "multipart/form-data" || params["boundary"] == "" {
		return "", nil, errNotMultipart
	}
	if limit <= 0 {
		limit = defaultMaxUploadBytes
	}

	mr := multipart.NewReader(body, params["boundary"])
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return "", nil, errNoFile
		}
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", errNotMultipart, err)
		}
		if part.FormName() != uploadField {
			_ = part.Close()
			continue
		}

		name := part.FileName()
		data, err := io.ReadAll(io.LimitReader(part, limit+1))
		_ = part.Close()
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", errNotMultipart, err)
		}
		if int64(len(data)) > limit {
			return "", nil, errFileTooLarge
		}
		if strings.TrimSpace(name) == "" || len(data) == 0 {
			return "", nil, errNoFile
		}
		return name, data, nil
	}
}

// parseAuthTime accepts the unix-seconds auth_time claim as a string or a
// JSON number.
func parseAuthTime(v any) time.Time {
	var secs int64
	switch t := v.(type) {
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return time.Time{}
		}
		secs = n
	case float64:
		secs = int64(t)
	case int64:
		secs = t
	default:
		return time.Time{}
	}
	if secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}
