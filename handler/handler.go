package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"medical-assistant/internal/usecase"
)

// Handler serves API Gateway proxy events.
type Handler struct {
	uc             ChatUseCase
	maxUploadBytes int64
}

type route int

const (
	routeNone route = iota
	routePersonas
	routeChat
	routeReset
	routeUpload
)

func NewHandler(uc ChatUseCase, maxUploadBytes int64) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{uc: uc, maxUploadBytes: maxUploadBytes}, nil
}

func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(headerValue(req.Headers, correlationHeader))
	logger := slog.With("correlation_id", corrID, "method", req.HTTPMethod, "path", req.Path)

	rt, personaID := matchRoute(req.HTTPMethod, req.Path, req.QueryStringParameters)
	if rt == routeNone {
		return h.fail(logger, corrID, errNotFound), nil
	}
	if rt == routePersonas {
		return jsonResponse(http.StatusOK, corrID, personasResponse{Personas: h.uc.Personas()}), nil
	}

	userID, authTime := identity(req.RequestContext.Authorizer)
	if userID == "" {
		return h.fail(logger, corrID, errNotAuthorized), nil
	}
	logger = logger.With("persona", personaID)

	body, err := requestBody(req)
	if err != nil {
		return h.fail(logger, corrID, invalidBody(err)), nil
	}

	switch rt {
	case routeChat:
		var in chatRequest
		if err := json.Unmarshal(body, &in); err != nil {
			return h.fail(logger, corrID, invalidBody(err)), nil
		}
		out, err := h.uc.Chat(ctx, usecase.ChatInput{
			UserID:       userID,
			PersonaID:    personaID,
			Message:      in.Message,
			MedicalData:  in.MedicalData,
			SessionStart: authTime,
		})
		if err != nil {
			return h.fail(logger, corrID, err), nil
		}
		return jsonResponse(http.StatusOK, corrID, chatResponse{Response: out.Reply}), nil

	case routeUpload:
		name, data, err := readUpload(headerValue(req.Headers, "Content-Type"), bytes.NewReader(body), h.maxUploadBytes)
		if err != nil {
			return h.fail(logger, corrID, err), nil
		}
		out, err := h.uc.Upload(ctx, usecase.UploadInput{
			UserID:       userID,
			PersonaID:    personaID,
			Filename:     name,
			Data:         data,
			SessionStart: authTime,
		})
		if err != nil {
			return h.fail(logger, corrID, err), nil
		}
		return jsonResponse(http.StatusOK, corrID, newUploadResponse(out)), nil

	default:
		if err := h.uc.Reset(ctx, userID, personaID); err != nil {
			return h.fail(logger, corrID, err), nil
		}
		return jsonResponse(http.StatusOK, corrID, resetResponse{Success: true}), nil
	}
}

func (h *Handler) fail(logger *slog.Logger, corrID string, err error) events.APIGatewayProxyResponse {
	status, body := toErrorResponse(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "err", err, "status", status)
	} else {
		logger.Warn("request rejected", "err", err, "status", status)
	}
	return jsonResponse(status, corrID, body)
}

func matchRoute(method, path string, query map[string]string) (route, string) {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case method == http.MethodGet && len(segs) == 1 && segs[0] == "personas":
		return routePersonas, ""
	case len(segs) == 2 && segs[0] == "chat" && method == http.MethodPost:
		return routeChat, segs[1]
	case len(segs) == 2 && segs[0] == "chat" && method == http.MethodDelete:
		return routeReset, segs[1]
	case len(segs) == 2 && segs[0] == "upload" && method == http.MethodPost:
		return routeUpload, segs[1]
	case len(segs) == 1 && segs[0] == "upload" && method == http.MethodPost:
		return routeUpload, query["chat_type"]
	}
	return routeNone, ""
}

// identity reads the Cognito authorizer claims, falling back to the custom
// authorizer principal.
func identity(authorizer map[string]interface{}) (string, time.Time) {
	if claims, ok := authorizer["claims"].(map[string]interface{}); ok {
		if email, ok := claims["email"].(string); ok && strings.TrimSpace(email) != "" {
			return strings.TrimSpace(email), parseAuthTime(claims["auth_time"])
		}
	}
	if principal, ok := authorizer["principalId"].(string); ok {
		return strings.TrimSpace(principal), time.Time{}
	}
	return "", time.Time{}
}

func requestBody(req events.APIGatewayProxyRequest) ([]byte, error) {
	if !req.IsBase64Encoded {
		return []byte(req.Body), nil
	}
	return base64.StdEncoding.DecodeString(req.Body)
}

func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func jsonResponse(status int, corrID string, body any) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		raw = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(raw),
	}
}
