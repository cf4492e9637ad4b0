package gallery

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"eventpilot/internal/apperr"
	"eventpilot/internal/gallery/db"
	"eventpilot/internal/logger"
	"eventpilot/internal/models"
	"eventpilot/internal/session"
	"eventpilot/internal/storage"
	"eventpilot/internal/utils"
	"eventpilot/internal/validation"

	"github.com/google/uuid"
)

const (
	MaxUploadSize = 10 * 1024 * 1024

	StatusPending   = "pending"
	StatusUploading = "uploading"

	defaultPageSize = 50
	maxPageSize     = 100
	previewSize     = 20
)

var contentTypeExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

var (
	ErrGalleryNotFound    = apperr.NotFound("GALLERY_NOT_FOUND", "المعرض غير موجود")
	ErrImageNotFound      = apperr.NotFound("IMAGE_NOT_FOUND", "الصورة غير موجودة")
	ErrStorageDisabled    = apperr.New(http.StatusServiceUnavailable, "STORAGE_NOT_CONFIGURED", "تخزين الصور غير مهيأ")
	ErrInvalidContentType = apperr.BadRequest("INVALID_CONTENT_TYPE", "نوع الملف غير مدعوم (JPEG, PNG, WebP فقط)")
	ErrFileTooLarge       = apperr.BadRequest("FILE_TOO_LARGE", "حجم الملف كبير جداً (الحد الأقصى 10MB)")
	ErrDuplicateImage     = apperr.Conflict("DUPLICATE_IMAGE", "توجد صورة بنفس الاسم في هذا المعرض")
	ErrForeignKey         = apperr.BadRequest("INVALID_OBJECT_KEY", "مفتاح الملف لا يتبع هذا المعرض")
)

// ObjectStore is the object storage the gallery uploads to.
type ObjectStore interface {
	PresignPut(ctx context.Context, key, contentType string, size int64) (string, error)
	URL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

var _ ObjectStore = (*storage.S3Store)(nil)

type Service struct {
	DB     *db.DB
	Store  ObjectStore
	Logger *logger.Logger
	Now    func() time.Time
}

// NewService builds the gallery service. store may be nil; uploads and image
// URLs then fail with ErrStorageDisabled.
func NewService(store *db.DB, objects ObjectStore, log *logger.Logger) *Service {
	return &Service{DB: store, Store: objects, Logger: log, Now: time.Now}
}

// Configured reports whether uploads can be signed.
func (s *Service) Configured() bool {
	return s.Store != nil
}

func (s *Service) get(ctx context.Context, id string) (*models.Gallery, error) {
	g, err := s.DB.GetGallery(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get gallery %s: %w", id, err)
	}
	if g == nil {
		return nil, ErrGalleryNotFound
	}
	return g, nil
}

type CreateInput struct {
	SessionID string `json:"sessionId" validate:"required"`
	Title     string `json:"title"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Gallery, error) {
	if err := validation.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrBadInput, err)
	}
	sess, err := s.DB.GetSession(ctx, in.SessionID)
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", in.SessionID, err)
	}
	if sess == nil {
		return nil, session.ErrSessionNotFound
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = "معرض صور " + sess.Title
	}
	g := &models.Gallery{
		ID:        utils.NewID(),
		SessionID: sess.ID,
		Title:     title,
		Status:    StatusPending,
		CreatedAt: s.Now(),
	}
	if err := s.DB.CreateGallery(ctx, g); err != nil {
		return nil, fmt.Errorf("create gallery: %w", err)
	}
	s.Logger.Info("GALLERY", fmt.Sprintf("Created gallery %s for session %s", g.ID, sess.ID))
	return g, nil
}

// Summary is a gallery as listed under its session.
type Summary struct {
	models.Gallery
	ImageCount int `json:"imageCount"`
}

func (s *Service) ListBySession(ctx context.Context, sessionID string) ([]Summary, error) {
	galleries, err := s.DB.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list galleries of %s: %w", sessionID, err)
	}
	ids := make([]string, len(galleries))
	for i, g := range galleries {
		ids[i] = g.ID
	}
	counts, err := s.DB.ImageCounts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("count gallery images: %w", err)
	}
	out := make([]Summary, len(galleries))
	for i, g := range galleries {
		out[i] = Summary{Gallery: g, ImageCount: counts[g.ID]}
	}
	return out, nil
}

// Detail is a gallery with its session and newest images.
type Detail struct {
	models.Gallery
	Session    *models.Session       `json:"session"`
	ImageCount int                   `json:"imageCount"`
	Images     []models.GalleryImage `json:"images"`
}

func (s *Service) Get(ctx context.Context, id string) (*Detail, error) {
	g, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	sess, err := s.DB.GetSession(ctx, g.SessionID)
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", g.SessionID, err)
	}
	count, err := s.DB.CountImages(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("count images of %s: %w", id, err)
	}
	page, err := s.Images(ctx, id, previewSize, "")
	if err != nil {
		return nil, err
	}
	return &Detail{Gallery: *g, Session: sess, ImageCount: count, Images: page.Images}, nil
}

// Delete removes the gallery. Stored objects are removed best effort.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.get(ctx, id); err != nil {
		return err
	}
	keys, err := s.DB.ImageKeys(ctx, id)
	if err != nil {
		return fmt.Errorf("list images of %s: %w", id, err)
	}
	if s.Store != nil {
		for _, key := range keys {
			if err := s.Store.Delete(ctx, key); err != nil {
				s.Logger.Warn("GALLERY", fmt.Sprintf("Delete object %s: %v", key, err))
			}
		}
	}
	if err := s.DB.DeleteGallery(ctx, id); err != nil {
		return fmt.Errorf("delete gallery %s: %w", id, err)
	}
	s.Logger.Info("GALLERY", fmt.Sprintf("Deleted gallery %s (%d images)", id, len(keys)))
	return nil
}

type UploadRequest struct {
	Filename    string `json:"filename" validate:"required"`
	ContentType string `json:"contentType" validate:"required"`
	Size        int64  `json:"size" validate:"required,gt=0"`
}

// UploadTicket lets the browser PUT the file straight to storage.
type UploadTicket struct {
	UploadURL string    `json:"uploadUrl"`
	Key       string    `json:"key"`
	ImageURL  string    `json:"imageUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func checkUpload(contentType string, size int64) (string, error) {
	ext, ok := contentTypeExt[contentType]
	if !ok {
		return "", ErrInvalidContentType
	}
	if size > MaxUploadSize {
		return "", ErrFileTooLarge
	}
	return ext, nil
}

func keyPrefix(galleryID string) string {
	return "galleries/" + galleryID + "/"
}

// UploadURL signs an upload of one image into the gallery.
func (s *Service) UploadURL(ctx context.Context, galleryID string, in UploadRequest) (*UploadTicket, error) {
	if err := validation.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrBadInput, err)
	}
	if s.Store == nil {
		return nil, ErrStorageDisabled
	}
	ext, err := checkUpload(in.ContentType, in.Size)
	if err != nil {
		return nil, err
	}
	if _, err := s.get(ctx, galleryID); err != nil {
		return nil, err
	}

	key := keyPrefix(galleryID) + uuid.NewString() + ext
	uploadURL, err := s.Store.PresignPut(ctx, key, in.ContentType, in.Size)
	if err != nil {
		return nil, err
	}
	imageURL, err := s.Store.URL(ctx, key)
	if err != nil {
		return nil, err
	}
	return &UploadTicket{
		UploadURL: uploadURL,
		Key:       key,
		ImageURL:  imageURL,
		ExpiresAt: s.Now().Add(storage.UploadURLExpiry),
	}, nil
}

type ConfirmInput struct {
	Key         string `json:"key" validate:"required"`
	Filename    string `json:"filename" validate:"required"`
	Size        int64  `json:"size" validate:"required,gt=0"`
	ContentType string `json:"contentType" validate:"required"`
}

// ConfirmUpload records an image the browser finished uploading.
func (s *Service) ConfirmUpload(ctx context.Context, galleryID string, in ConfirmInput) (*models.GalleryImage, error) {
	if err := validation.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrBadInput, err)
	}
	if _, err := checkUpload(in.ContentType, in.Size); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(in.Key, keyPrefix(galleryID)) || path.Clean(in.Key) != in.Key {
		return nil, ErrForeignKey
	}
	g, err := s.get(ctx, galleryID)
	if err != nil {
		return nil, err
	}
	filename := strings.TrimSpace(in.Filename)
	dup, err := s.DB.ImageByFilename(ctx, galleryID, filename)
	if err != nil {
		return nil, fmt.Errorf("check filename %s: %w", filename, err)
	}
	if dup != nil {
		return nil, ErrDuplicateImage
	}

	img := &models.GalleryImage{
		ID:          utils.NewID(),
		GalleryID:   galleryID,
		ObjectKey:   in.Key,
		Filename:    filename,
		Size:        in.Size,
		ContentType: in.ContentType,
		UploadedAt:  s.Now(),
	}
	if err := s.DB.CreateImage(ctx, img); err != nil {
		return nil, fmt.Errorf("save image %s: %w", in.Key, err)
	}
	if g.Status != StatusUploading {
		if err := s.DB.SetStatus(ctx, galleryID, StatusUploading); err != nil {
			return nil, fmt.Errorf("update gallery %s: %w", galleryID, err)
		}
	}
	if s.Store != nil {
		if img.URL, err = s.Store.URL(ctx, img.ObjectKey); err != nil {
			s.Logger.Warn("GALLERY", fmt.Sprintf("Build URL for %s: %v", img.ObjectKey, err))
		}
	}
	return img, nil
}

// ImagePage is one page of a gallery's images, newest first.
type ImagePage struct {
	Images     []models.GalleryImage `json:"images"`
	NextCursor string                `json:"nextCursor,omitempty"`
}

// Images pages through the gallery. cursor is the NextCursor of the
// previous page.
func (s *Service) Images(ctx context.Context, galleryID string, limit int, cursor string) (*ImagePage, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	var after *models.GalleryImage
	if cursor != "" {
		img, err := s.DB.GetImage(ctx, galleryID, cursor)
		if err != nil {
			return nil, fmt.Errorf("get cursor image %s: %w", cursor, err)
		}
		if img == nil {
			return nil, ErrImageNotFound
		}
		after = img
	}

	images, err := s.DB.Images(ctx, galleryID, limit+1, after)
	if err != nil {
		return nil, fmt.Errorf("list images of %s: %w", galleryID, err)
	}
	page := &ImagePage{Images: images}
	if len(images) > limit {
		page.Images = images[:limit]
		page.NextCursor = images[limit-1].ID
	}
	if page.Images == nil {
		page.Images = []models.GalleryImage{}
	}
	if s.Store != nil {
		for i := range page.Images {
			u, err := s.Store.URL(ctx, page.Images[i].ObjectKey)
			if err != nil {
				return nil, err
			}
			page.Images[i].URL = u
		}
	}
	return page, nil
}
