// Package facesearch finds event photos that contain the face of a reference
// picture by comparing it against every image in a directory, one at a time.
package facesearch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"eventpilot/internal/apperr"
	"eventpilot/internal/config"
	"eventpilot/internal/logger"
)

const (
	DefaultThreshold    = 80
	DefaultMaxImageSize = 5 * 1024 * 1024

	ReasonTooLarge = "too_large"
)

var (
	ErrNoImage           = apperr.BadRequest("IMAGE_REQUIRED", "الرجاء رفع صورة")
	ErrReferenceTooLarge = apperr.BadRequest("IMAGE_TOO_LARGE", "حجم الصورة المرجعية كبير جداً (الحد الأقصى 5MB)")
	ErrNotConfigured     = apperr.New(http.StatusInternalServerError, "FACE_SEARCH_NOT_CONFIGURED", "AWS Rekognition غير مهيأ")
	ErrDirMissing        = apperr.New(http.StatusInternalServerError, "IMAGES_DIR_MISSING", "مجلد الصور غير موجود")
	ErrNoImages          = apperr.BadRequest("NO_IMAGES", "لا توجد صور في المجلد")
	ErrSearchFailed      = apperr.New(http.StatusInternalServerError, "FACE_SEARCH_FAILED", "حدث خطأ أثناء البحث")
)

// Comparison is the outcome of comparing the reference face with one image.
// Reason is set when the comparer could not judge the image.
type Comparison struct {
	Match      bool
	Similarity float32
	Reason     string
}

// Comparer compares the face in source with the faces in target.
// Recoverable per-image problems are reported through Comparison.Reason;
// a returned error aborts the whole search.
type Comparer interface {
	Compare(ctx context.Context, source, target []byte, threshold float32) (Comparison, error)
}

type Match struct {
	Filename   string  `json:"filename"`
	Similarity float32 `json:"similarity"`
}

type Skipped struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

type Result struct {
	Matches []Match `json:"matches"`
	Total   int     `json:"total"`
	Skipped int     `json:"skipped"`
}

type Service struct {
	Comparer     Comparer
	Dir          string
	Threshold    float32
	MaxImageSize int64
	Logger       *logger.Logger
}

// NewService builds the search over cfg.ImagesDir. comparer may be nil when
// face comparison is not configured; searches then fail with ErrNotConfigured.
func NewService(comparer Comparer, cfg config.FaceSearchConfig, log *logger.Logger) *Service {
	s := &Service{
		Comparer:     comparer,
		Dir:          cfg.ImagesDir,
		Threshold:    cfg.Threshold,
		MaxImageSize: cfg.MaxImageSize,
		Logger:       log,
	}
	if s.Threshold <= 0 {
		s.Threshold = DefaultThreshold
	}
	if s.MaxImageSize <= 0 {
		s.MaxImageSize = DefaultMaxImageSize
	}
	return s
}

// Configured reports whether a face comparer is available.
func (s *Service) Configured() bool {
	return s.Comparer != nil
}

func isImage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

// imageFiles lists the directory's images in directory order.
func (s *Service) imageFiles() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrDirMissing
		}
		return nil, fmt.Errorf("read images dir %s: %w", s.Dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && isImage(e.Name()) {
			files = append(files, e.Name())
		}
	}
	return files, nil
}

// Search compares reference with every image of the directory and returns
// the matching files, best first.
func (s *Service) Search(ctx context.Context, reference []byte) (*Result, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	if len(reference) == 0 {
		return nil, ErrNoImage
	}
	if int64(len(reference)) > s.MaxImageSize {
		return nil, ErrReferenceTooLarge
	}

	files, err := s.imageFiles()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNoImages
	}
	s.Logger.Info("FACE_SEARCH", fmt.Sprintf("Reference image %.2fMB, processing %d images", float64(len(reference))/1024/1024, len(files)))

	matches := []Match{}
	var skipped []Skipped
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(s.Dir, name)
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
		if info.Size() > s.MaxImageSize {
			s.Logger.Debug("FACE_SEARCH", fmt.Sprintf("Skipping %s: too large (%.2fMB)", name, float64(info.Size())/1024/1024))
			skipped = append(skipped, Skipped{Filename: name, Reason: ReasonTooLarge})
			continue
		}

		target, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		cmp, err := s.Comparer.Compare(ctx, reference, target, s.Threshold)
		if err != nil {
			s.Logger.Error("FACE_SEARCH", fmt.Sprintf("Compare %s: %v", name, err))
			return nil, fmt.Errorf("%w: %s: %v", ErrSearchFailed, name, err)
		}
		switch {
		case cmp.Match:
			s.Logger.Debug("FACE_SEARCH", fmt.Sprintf("Match found: %s (%.1f%%)", name, cmp.Similarity))
			matches = append(matches, Match{Filename: name, Similarity: cmp.Similarity})
		case cmp.Reason != "":
			s.Logger.Debug("FACE_SEARCH", fmt.Sprintf("Skipped %s: %s", name, cmp.Reason))
			skipped = append(skipped, Skipped{Filename: name, Reason: cmp.Reason})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	s.Logger.Info("FACE_SEARCH", fmt.Sprintf("Found %d matches, skipped %d images", len(matches), len(skipped)))
	return &Result{Matches: matches, Total: len(files), Skipped: len(skipped)}, nil
}
