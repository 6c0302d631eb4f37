package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register gif
	"image/jpeg"
	"image/png"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

var (
	ErrUnsupportedType  = errors.New("unsupported file type")
	ErrTooLarge         = errors.New("file too large")
	ErrUnsupportedImage = errors.New("file is not a supported image")
)

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
}

type Options struct {
	Dir       string
	URLPrefix string
	MaxBytes  int64
	// MaxDimension bounds the longer side of stored jpeg/png images; 0 keeps
	// the original size. Gifs are never resized so animations survive.
	MaxDimension int
}

// Store keeps profile images on local disk and hands out URL paths under
// URLPrefix, which the HTTP server exposes as static files.
type Store struct {
	dir      string
	prefix   string
	maxBytes int64
	maxDim   int
	log      *zap.Logger
}

func NewStore(opts Options, log *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{
		dir:      opts.Dir,
		prefix:   "/" + strings.Trim(opts.URLPrefix, "/"),
		maxBytes: opts.MaxBytes,
		maxDim:   opts.MaxDimension,
		log:      log,
	}, nil
}

// MaxBytes is the largest accepted upload.
func (s *Store) MaxBytes() int64 {
	return s.maxBytes
}

// Validate checks the declared type and size of an upload before any byte is read.
func (s *Store) Validate(contentType string, size int64) error {
	if !allowedTypes[mediaType(contentType)] {
		return ErrUnsupportedType
	}
	if size > s.maxBytes {
		return ErrTooLarge
	}
	return nil
}

// Save stores an uploaded image and returns its public path.
func (s *Store) Save(ctx context.Context, filename, contentType string, size int64, r io.Reader) (string, error) {
	if err := s.Validate(contentType, size); err != nil {
		return "", err
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return "", ErrTooLarge
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", ErrUnsupportedImage
	}

	if s.maxDim > 0 && format != "gif" && (cfg.Width > s.maxDim || cfg.Height > s.maxDim) {
		data, err = s.shrink(data, format)
		if err != nil {
			return "", err
		}
	}

	name := "profile-" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + uuid.NewString()[:8] + extension(format)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}

	s.log.Debug("profile image stored",
		zap.String("original", filename),
		zap.String("stored", name),
		zap.Int("bytes", len(data)),
	)
	return s.prefix + "/" + name, nil
}

// Release removes the file behind a path returned by Save. Missing files are
// not an error.
func (s *Store) Release(ctx context.Context, ref string) error {
	if ref == "" {
		return nil
	}
	name, ok := strings.CutPrefix(ref, s.prefix+"/")
	if !ok || name == "" || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("profile %q is not managed by this store", ref)
	}

	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove profile %q: %w", ref, err)
	}
	return nil
}

func (s *Store) shrink(data []byte, format string) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrUnsupportedImage
	}

	w, h := fit(src.Bounds().Dx(), src.Bounds().Dy(), s.maxDim)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if format == "png" {
		err = png.Encode(&buf, dst)
	} else {
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		return nil, fmt.Errorf("encode resized image: %w", err)
	}
	return buf.Bytes(), nil
}

// fit scales w x h so that the longer side equals limit.
func fit(w, h, limit int) (int, int) {
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

func extension(format string) string {
	switch format {
	case "jpeg":
		return ".jpg"
	case "png":
		return ".png"
	case "gif":
		return ".gif"
	default:
		return ""
	}
}
