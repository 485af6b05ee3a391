package storage

import (
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/mlavigne/notify-api/internal/config"
	apperrors "github.com/mlavigne/notify-api/pkg/errors"
)

// PublicPrefix is where stored paths are served from.
const PublicPrefix = "/uploads"

const (
	notificationSubdir = "notification-images"
	profileSubdir      = "profile-pictures"
)

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
}

// Store accepts an uploaded binary and returns the relative path it is
// served under. Everything else about media is opaque to the rest of the
// system. Remove discards a stored upload by that same path, for callers
// whose surrounding operation was rejected after the save.
type Store interface {
	SaveNotificationMedia(fh *multipart.FileHeader) (string, error)
	SaveProfilePicture(fh *multipart.FileHeader) (string, error)
	Remove(relPath string) error
}

// LocalStore writes uploads to a directory on local disk, with
// timestamp-random filenames so originals never collide.
type LocalStore struct {
	baseDir              string
	maxNotificationBytes int64
	maxProfileBytes      int64
}

func NewLocalStore(cfg config.UploadsConfig) *LocalStore {
	return &LocalStore{
		baseDir:              cfg.Dir,
		maxNotificationBytes: cfg.MaxNotificationMB << 20,
		maxProfileBytes:      cfg.MaxProfileSizeMB << 20,
	}
}

func (s *LocalStore) SaveNotificationMedia(fh *multipart.FileHeader) (string, error) {
	return s.save(fh, notificationSubdir, s.maxNotificationBytes)
}

func (s *LocalStore) SaveProfilePicture(fh *multipart.FileHeader) (string, error) {
	return s.save(fh, profileSubdir, s.maxProfileBytes)
}

// Remove deletes a stored upload given the relative path a save returned.
func (s *LocalStore) Remove(relPath string) error {
	rel, ok := strings.CutPrefix(relPath, PublicPrefix+"/")
	if !ok || strings.Contains(rel, "..") {
		return apperrors.Validation("not a stored upload path", nil)
	}
	return os.Remove(filepath.Join(s.baseDir, filepath.FromSlash(rel)))
}

func (s *LocalStore) save(fh *multipart.FileHeader, subdir string, maxBytes int64) (string, error) {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedExtensions[ext] {
		return "", apperrors.Validation("only images (JPG, PNG) and videos (MP4, MOV, AVI, MKV) are allowed", nil)
	}
	if maxBytes > 0 && fh.Size > maxBytes {
		return "", apperrors.Validation(fmt.Sprintf("file exceeds the %dMB limit", maxBytes>>20), nil)
	}

	dir := filepath.Join(s.baseDir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	name := fmt.Sprintf("%d-%d%s", time.Now().UnixMilli(), rand.Int63n(1e9), ext)

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return path.Join(PublicPrefix, subdir, name), nil
}
