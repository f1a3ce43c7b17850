package usecase

import (
	"context"
	"encoding/base64"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"medical-assistant/internal/domain"
)

var imageExtensions = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

type UploadInput struct {
	UserID       string
	PersonaID    string
	Filename     string
	Data         []byte
	SessionStart time.Time
}

type UploadOutput struct {
	Reply        string
	Kind         domain.AttachmentKind
	FilePath     string
	ImageData    string
	SessionStart time.Time
}

func (s *ChatService) Upload(ctx context.Context, in UploadInput) (UploadOutput, error) {
	p, key, err := s.resolve(in.UserID, in.PersonaID)
	if err != nil {
		return UploadOutput{}, err
	}

	name := SecureFilename(in.Filename)
	if name == "" {
		return UploadOutput{}, newError(ErrorInvalidInput, "invalid_filename", nil)
	}
	if len(in.Data) == 0 {
		return UploadOutput{}, newError(ErrorInvalidInput, "empty_file", nil)
	}

	path, err := s.attachments.Store(ctx, key.UserID, name, in.Data)
	if err != nil {
		slog.Error("attachment store failed", "err", err, "user", key.UserID, "file", name)
		return UploadOutput{}, newError(ErrorInternal, "attachment_store_error", err)
	}

	payload := classify(name, in.Data)
	reply, start, err := s.exchange(ctx, key, p, domain.Input{Attachment: &payload}, payload.Placeholder(), in.SessionStart)
	if err != nil {
		return UploadOutput{}, err
	}

	out := UploadOutput{Reply: reply, Kind: payload.Kind, FilePath: path, SessionStart: start}
	if payload.Kind == domain.AttachmentImage {
		out.ImageData = payload.DataURL()
	}
	return out, nil
}

func classify(name string, data []byte) domain.AttachmentPayload {
	ext := strings.ToLower(filepath.Ext(name))
	mediaType, ok := imageExtensions[ext]
	if !ok {
		return domain.AttachmentPayload{
			Kind:             domain.AttachmentDocument,
			OriginalFilename: name,
			MediaType:        mime.TypeByExtension(ext),
		}
	}
	return domain.AttachmentPayload{
		Kind:             domain.AttachmentImage,
		EncodedBytes:     base64.StdEncoding.EncodeToString(data),
		OriginalFilename: name,
		MediaType:        mediaType,
	}
}

// SecureFilename reduces name to a single safe path element made of ASCII
// letters, digits, dots, dashes and underscores. It returns "" when nothing
// usable is left.
func SecureFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}

	var b strings.Builder
	for _, r := range strings.Join(strings.Fields(name), "_") {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "._")
}
