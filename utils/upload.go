package utils

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"
)

const (
	MaxUploadFiles    = 5
	MaxImageDimension = 2000
)

var (
	ErrImageOnly     = errors.New("Image only!")
	ErrTooManyFiles  = fmt.Errorf("at most %d images can be uploaded at once", MaxUploadFiles)
	ErrNoFilesToSave = errors.New("File is missing or invalid.")
)

var allowedImageTypes = map[string][]string{
	".jpg":  {"image/jpeg", "image/jpg"},
	".jpeg": {"image/jpeg", "image/jpg"},
	".png":  {"image/png"},
	".webp": {"image/webp"},
}

// ImageStore writes validated uploads to a local directory served under urlPrefix.
type ImageStore struct {
	dir       string
	urlPrefix string
}

func NewImageStore(dir, urlPrefix string) *ImageStore {
	return &ImageStore{dir: dir, urlPrefix: strings.TrimRight(urlPrefix, "/")}
}

func (s *ImageStore) Dir() string { return s.dir }

// CheckImageType accepts a file only when both its extension and declared MIME type are allowed.
func CheckImageType(filename, contentType string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	mimes, ok := allowedImageTypes[ext]
	if !ok {
		return ErrImageOnly
	}
	contentType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	for _, m := range mimes {
		if m == contentType {
			return nil
		}
	}
	return ErrImageOnly
}

// SaveAll validates every file before writing any of them and returns their public paths.
func (s *ImageStore) SaveAll(files []*multipart.FileHeader) ([]string, error) {
	if len(files) == 0 {
		return nil, ErrNoFilesToSave
	}
	if len(files) > MaxUploadFiles {
		return nil, ErrTooManyFiles
	}
	for _, fh := range files {
		if err := CheckImageType(fh.Filename, fh.Header.Get("Content-Type")); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}

	paths := make([]string, 0, len(files))
	for _, fh := range files {
		name, err := s.save(fh)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path.Join(s.urlPrefix, name))
	}
	return paths, nil
}

func (s *ImageStore) save(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	raw, err := io.ReadAll(src)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	return s.Store(fh.Filename, raw)
}

// Store decodes raw to prove it is an image, downsizes oversized jpeg/png files,
// and writes it under a random name that keeps the original extension.
func (s *ImageStore) Store(filename string, raw []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", ErrImageOnly
	}

	name := uuid.New().String() + ext
	dst := filepath.Join(s.dir, name)

	b := img.Bounds()
	if format != "webp" && (b.Dx() > MaxImageDimension || b.Dy() > MaxImageDimension) {
		fitted := imaging.Fit(img, MaxImageDimension, MaxImageDimension, imaging.Lanczos)
		if err := imaging.Save(fitted, dst); err != nil {
			return "", fmt.Errorf("save resized image: %w", err)
		}
		return name, nil
	}

	if err := os.WriteFile(dst, raw, 0o644); err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}
	return name, nil
}
