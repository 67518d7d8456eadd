package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"xclone/internal/middleware"
	"xclone/internal/models"
	"xclone/internal/observability"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	// MediaURLPrefix is where stored files are served from.
	MediaURLPrefix = "/api/posts/uploads"

	DefaultMediaMaxFileSizeMB = 50
	sniffLen                  = 3072
)

// UploadedFile is one file part of a post submission.
type UploadedFile struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// AcceptedMedia is the result of storing a post's files. Release it if the post
// is not persisted.
type AcceptedMedia struct {
	Items []models.MediaItem
	Kind  *models.MediaKind
	paths []string
}

// MediaService validates, classifies and stores post attachments on disk.
type MediaService struct {
	uploadDir   string
	maxFileSize int64
}

func NewMediaService(uploadDir string, maxFileSizeMB int) *MediaService {
	if maxFileSizeMB <= 0 {
		maxFileSizeMB = DefaultMediaMaxFileSizeMB
	}
	return &MediaService{
		uploadDir:   uploadDir,
		maxFileSize: int64(maxFileSizeMB) * 1024 * 1024,
	}
}

// UploadDir returns the directory stored files live in.
func (s *MediaService) UploadDir() string {
	return s.uploadDir
}

// Accept stores every file or none of them. Any failure removes the files
// written so far before returning.
func (s *MediaService) Accept(ctx context.Context, files []UploadedFile) (*AcceptedMedia, error) {
	if len(files) > models.MaxMediaPerPost {
		return nil, models.NewValidationError(fmt.Sprintf("At most %d media files are allowed", models.MaxMediaPerPost))
	}

	accepted := &AcceptedMedia{Items: []models.MediaItem{}}
	if len(files) == 0 {
		return accepted, nil
	}

	if err := os.MkdirAll(s.uploadDir, 0o750); err != nil {
		return nil, models.NewInternalError(err)
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			s.Release(accepted)
			return nil, models.NewInternalError(err)
		}
		item, storedPath, err := s.store(f)
		if err != nil {
			observability.MediaFilesTotal.WithLabelValues("unknown", "rejected").Inc()
			s.Release(accepted)
			return nil, err
		}
		accepted.Items = append(accepted.Items, item)
		accepted.paths = append(accepted.paths, storedPath)
		observability.MediaFilesTotal.WithLabelValues(string(item.Kind), "stored").Inc()
	}

	accepted.Kind = models.DeriveMediaKind(accepted.Items)
	return accepted, nil
}

// Release deletes every file in accepted. It is safe to call with nil.
func (s *MediaService) Release(accepted *AcceptedMedia) {
	if accepted == nil {
		return
	}
	for _, p := range accepted.paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			middleware.Logger.Warn("failed to remove media file", slog.String("path", p), slog.String("error", err.Error()))
		}
	}
	accepted.paths = nil
}

func (s *MediaService) store(f UploadedFile) (models.MediaItem, string, error) {
	if f.Size > s.maxFileSize {
		return models.MediaItem{}, "", s.tooLarge(f.Filename)
	}

	src, err := f.Open()
	if err != nil {
		return models.MediaItem{}, "", models.NewInternalError(err)
	}
	defer src.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(src, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return models.MediaItem{}, "", models.NewInternalError(err)
	}
	head = head[:n]
	if n == 0 {
		return models.MediaItem{}, "", models.NewValidationError(fmt.Sprintf("File %q is empty", f.Filename))
	}

	detected := mimetype.Detect(head)
	kind, ok := classifyMIME(detected.String())
	if !ok && detected.Is("application/octet-stream") {
		kind, ok = classifyMIME(f.ContentType)
	}
	if !ok {
		return models.MediaItem{}, "", models.NewValidationError(fmt.Sprintf("File %q is not an image or video", f.Filename))
	}

	ext := detected.Extension()
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(f.Filename))
	}
	name := uuid.NewString() + ext
	dst := filepath.Join(s.uploadDir, name)

	if err := s.write(dst, head, src); err != nil {
		_ = os.Remove(dst)
		if errors.Is(err, errFileTooLarge) {
			return models.MediaItem{}, "", s.tooLarge(f.Filename)
		}
		return models.MediaItem{}, "", models.NewInternalError(err)
	}

	return models.MediaItem{URL: path.Join(MediaURLPrefix, name), Kind: kind}, dst, nil
}

var errFileTooLarge = errors.New("file too large")

// write copies head and the rest of src to dst, stopping once the size limit
// is passed.
func (s *MediaService) write(dst string, head []byte, src io.Reader) error {
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}

	if _, err := out.Write(head); err != nil {
		_ = out.Close()
		return err
	}
	remaining := s.maxFileSize - int64(len(head))
	copied, err := io.Copy(out, io.LimitReader(src, remaining+1))
	if err != nil {
		_ = out.Close()
		return err
	}
	if copied > remaining {
		_ = out.Close()
		return errFileTooLarge
	}
	return out.Close()
}

func (s *MediaService) tooLarge(filename string) error {
	return models.NewValidationError(fmt.Sprintf("File %q is too large (max %dMB)", filename, s.maxFileSize/(1024*1024)))
}

func classifyMIME(contentType string) (models.MediaKind, bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return models.MediaKindImage, true
	case strings.HasPrefix(mediaType, "video/"):
		return models.MediaKindVideo, true
	default:
		return "", false
	}
}
