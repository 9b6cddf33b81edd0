package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"resuchain/resume-pipeline/internal/apperror"
)

// StorageGateway persists uploaded blobs under collision-resistant names.
// Delete of an absent locator is not an error.
type StorageGateway interface {
	Store(ctx context.Context, originalName string, data []byte) (string, error)
	Read(ctx context.Context, locator string) ([]byte, error)
	Delete(ctx context.Context, locator string) error
}

// IDGenerator produces the distinguishing part of every locator.
type IDGenerator func() string

func NewUUIDGenerator() IDGenerator {
	return uuid.NewString
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// BuildLocator joins a generated id with the sanitized original name, so
// the extension survives for format detection.
func BuildLocator(id, originalName string) string {
	name := filepath.Base(strings.ReplaceAll(originalName, `\`, "/"))
	name = unsafeNameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "upload"
	}
	if ext := filepath.Ext(originalName); ext != "" && !strings.HasSuffix(strings.ToLower(name), strings.ToLower(ext)) {
		name += strings.ToLower(ext)
	}
	return fmt.Sprintf("%s_%s", id, name)
}

type localStorage struct {
	uploadPath string
	newID      IDGenerator
}

func NewLocalStorage(uploadPath string, newID IDGenerator) (StorageGateway, error) {
	if newID == nil {
		newID = NewUUIDGenerator()
	}

	s := &localStorage{
		uploadPath: uploadPath,
		newID:      newID,
	}
	if err := s.ensureUploadDir(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *localStorage) ensureUploadDir() error {
	if err := os.MkdirAll(s.uploadPath, 0755); err != nil {
		return apperror.StorageFailure("failed to create upload directory", err)
	}

	return nil
}

// Store implements StorageGateway.
func (s *localStorage) Store(_ context.Context, originalName string, data []byte) (string, error) {
	locator := BuildLocator(s.newID(), originalName)

	// O_EXCL keeps an id collision from overwriting another record's blob.
	dst, err := os.OpenFile(s.path(locator), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", apperror.StorageFailure("failed to create destination file", err)
	}

	if _, err := dst.Write(data); err != nil {
		dst.Close()
		os.Remove(s.path(locator))
		return "", apperror.StorageFailure("failed to save file", err)
	}

	if err := dst.Close(); err != nil {
		return "", apperror.StorageFailure("failed to save file", err)
	}

	return locator, nil
}

// Read implements StorageGateway.
func (s *localStorage) Read(_ context.Context, locator string) ([]byte, error) {
	data, err := os.ReadFile(s.path(locator))
	if err != nil {
		return nil, apperror.StorageFailure("failed to read file", err)
	}
	return data, nil
}

// Delete implements StorageGateway.
func (s *localStorage) Delete(_ context.Context, locator string) error {
	if err := os.Remove(s.path(locator)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return apperror.StorageFailure("failed to delete file", err)
	}
	return nil
}

func (s *localStorage) path(locator string) string {
	return filepath.Join(s.uploadPath, filepath.Base(locator))
}
