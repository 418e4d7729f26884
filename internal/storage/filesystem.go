// Package storage implements the narrow store contract the orchestrator
// depends on: Put persists media bytes and returns a durable reference,
// Sign mints a time-limited access URL for that reference.
package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Ref is a durable reference to stored media, relative to the store root.
type Ref string

// FileStore persists media on the local filesystem and signs access URLs
// with an HMAC token. It serves development and single-node deployments; an
// object store can implement the same contract.
type FileStore struct {
	basePath string
	baseURL  string
	secret   []byte
	now      func() time.Time
}

// NewFileStore initializes a FileStore rooted at basePath. baseURL is the
// public prefix signed URLs are built under.
func NewFileStore(basePath, baseURL, signSecret string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if strings.TrimSpace(signSecret) == "" {
		return nil, errors.New("storage: sign secret is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{
		basePath: basePath,
		baseURL:  strings.TrimRight(baseURL, "/"),
		secret:   []byte(signSecret),
		now:      time.Now,
	}, nil
}

// Put persists data under path and returns the canonical reference. The
// content type picks the file extension when path has none. Keys are
// cleaned to prevent directory traversal.
func (s *FileStore) Put(ctx context.Context, path string, data []byte, contentType string) (Ref, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(path)
	if err != nil {
		return "", err
	}
	cleanKey = ensureExtension(cleanKey, contentType)
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return Ref(cleanKey), nil
}

// Sign returns a time-limited URL for the reference. The token covers the
// reference and the expiry, so neither can be swapped.
func (s *FileStore) Sign(ref Ref, ttl time.Duration) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if ref == "" {
		return "", errors.New("storage: ref is required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	expires := s.now().Add(ttl).Unix()
	token := s.token(ref, expires)
	return fmt.Sprintf("%s/media/%s?exp=%d&sig=%s", s.baseURL, ref, expires, token), nil
}

// Verify checks a signed token for the reference. Used by the media handler
// before serving bytes.
func (s *FileStore) Verify(ref Ref, expires int64, token string) bool {
	if s == nil || ref == "" || token == "" {
		return false
	}
	if s.now().Unix() > expires {
		return false
	}
	expected := s.token(ref, expires)
	return hmac.Equal([]byte(expected), []byte(token))
}

// Read loads stored media bytes for a reference.
func (s *FileStore) Read(ref Ref) ([]byte, error) {
	cleanKey, err := sanitizeKey(string(ref))
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.basePath, filepath.FromSlash(cleanKey)))
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", cleanKey, err)
	}
	return data, nil
}

func (s *FileStore) token(ref Ref, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(string(ref) + "\n" + strconv.FormatInt(expires, 10)))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}

func ensureExtension(key, contentType string) string {
	if filepath.Ext(key) != "" {
		return key
	}
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/png":
		return key + ".png"
	case "image/jpeg", "image/jpg":
		return key + ".jpg"
	case "video/mp4":
		return key + ".mp4"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return key + exts[0]
	}
	return key + ".bin"
}
