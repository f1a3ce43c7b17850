// Package storage keeps uploads and session transcripts on the local
// filesystem under one data directory, laid out per user:
//
//	<dir>/<user>/upload/<file>
//	<dir>/<user>/chat/<session start>/chat_session.txt
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"medical-assistant/internal/domain"
)

const (
	sessionLayout  = "2006-01-02_15-04-05"
	transcriptName = "chat_session.txt"
	dirPerm        = 0o750
	filePerm       = 0o640
)

// Files implements both the attachment store and the session log writer.
type Files struct {
	dir string
	mu  sync.Mutex
}

func New(dir string) (*Files, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("storage: data directory must not be empty")
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("storage: create data directory: %w", err)
	}
	return &Files{dir: dir}, nil
}

// Store writes data to <dir>/<user>/upload/<filename> and returns the path.
// An existing file of the same name is replaced.
func (f *Files) Store(_ context.Context, userID, filename string, data []byte) (string, error) {
	user, err := pathElem(userID)
	if err != nil {
		return "", fmt.Errorf("storage: user: %w", err)
	}
	name, err := pathElem(filename)
	if err != nil {
		return "", fmt.Errorf("storage: filename: %w", err)
	}

	dir := filepath.Join(f.dir, user, "upload")
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("storage: create upload directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, filePerm); err != nil {
		return "", fmt.Errorf("storage: write upload: %w", err)
	}
	return path, nil
}

// AppendLog adds one "User:/LLM:" block to the session transcript.
func (f *Files) AppendLog(_ context.Context, entry domain.LogEntry) error {
	user, err := pathElem(entry.UserID)
	if err != nil {
		return fmt.Errorf("storage: user: %w", err)
	}

	dir := filepath.Join(f.dir, user, "chat", entry.SessionStart.UTC().Format(sessionLayout))
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("storage: create chat directory: %w", err)
	}

	block := fmt.Sprintf("User: %s\nLLM: %s\n", entry.UserText, entry.AssistantText)

	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(filepath.Join(dir, transcriptName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("storage: open transcript: %w", err)
	}
	if _, err := file.WriteString(block); err != nil {
		_ = file.Close()
		return fmt.Errorf("storage: write transcript: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("storage: close transcript: %w", err)
	}
	return nil
}

// pathElem accepts s only if it is usable as a single directory entry.
func pathElem(s string) (string, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "", s == ".", s == "..":
		return "", fmt.Errorf("invalid path element %q", s)
	case strings.ContainsAny(s, `/\`), strings.ContainsRune(s, 0):
		return "", fmt.Errorf("path element %q contains a separator", s)
	}
	return s, nil
}
