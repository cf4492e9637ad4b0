package gallery_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"eventpilot/internal/apperr"
	"eventpilot/internal/database/sqlitetest"
	"eventpilot/internal/gallery"
	"eventpilot/internal/gallery/db"
	"eventpilot/internal/logger"
	"eventpilot/internal/models"
	"eventpilot/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) PresignPut(ctx context.Context, key, contentType string, size int64) (string, error) {
	args := m.Called(ctx, key, contentType, size)
	return args.String(0), args.Error(1)
}

func (m *MockStore) URL(_ context.Context, key string) (string, error) {
	return "https://cdn.example/" + key, nil
}

func (m *MockStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

var fixedNow = time.Date(2026, time.October, 20, 18, 0, 0, 0, time.UTC)

func newService(t *testing.T, store gallery.ObjectStore) *gallery.Service {
	t.Helper()
	bunDB := sqlitetest.Open(t)
	_, err := bunDB.NewInsert().Model(&models.Session{
		ID: "s1", SessionNumber: 1, Title: "ثلوثية الأعمال", Date: fixedNow, Status: models.SessionOpen, CreatedAt: fixedNow,
	}).Exec(context.Background())
	require.NoError(t, err)

	svc := gallery.NewService(&db.DB{Bun: bunDB}, store, logger.NewWithWriter(io.Discard, "debug"))
	clock := fixedNow
	svc.Now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return svc
}

func confirm(t *testing.T, svc *gallery.Service, galleryID, name string) *models.GalleryImage {
	t.Helper()
	img, err := svc.ConfirmUpload(context.Background(), galleryID, gallery.ConfirmInput{
		Key:         "galleries/" + galleryID + "/" + name,
		Filename:    name,
		Size:        2048,
		ContentType: "image/jpeg",
	})
	require.NoError(t, err)
	return img
}

func TestCreateAndList(t *testing.T) {
	svc := newService(t, &MockStore{})
	ctx := context.Background()

	g, err := svc.Create(ctx, gallery.CreateInput{SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, "معرض صور ثلوثية الأعمال", g.Title)
	assert.Equal(t, gallery.StatusPending, g.Status)

	named, err := svc.Create(ctx, gallery.CreateInput{SessionID: "s1", Title: " Day two "})
	require.NoError(t, err)
	assert.Equal(t, "Day two", named.Title)

	_, err = svc.Create(ctx, gallery.CreateInput{SessionID: "missing"})
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	_, err = svc.Create(ctx, gallery.CreateInput{})
	assert.ErrorIs(t, err, apperr.ErrBadInput)

	confirm(t, svc, g.ID, "a.jpg")
	confirm(t, svc, g.ID, "b.jpg")

	list, err := svc.ListBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, named.ID, list[0].ID, "newest first")
	assert.Equal(t, 0, list[0].ImageCount)
	assert.Equal(t, 2, list[1].ImageCount)
	assert.Equal(t, gallery.StatusUploading, list[1].Status)
}

func TestUploadURL(t *testing.T) {
	store := &MockStore{}
	svc := newService(t, store)
	ctx := context.Background()
	g, err := svc.Create(ctx, gallery.CreateInput{SessionID: "s1"})
	require.NoError(t, err)

	store.On("PresignPut", mock.Anything, mock.MatchedBy(func(key string) bool {
		return len(key) > len("galleries/"+g.ID+"/") && key[len(key)-5:] == ".webp"
	}), "image/webp", int64(4096)).Return("https://s3.example/put", nil).Once()

	ticket, err := svc.UploadURL(ctx, g.ID, gallery.UploadRequest{Filename: "photo.webp", ContentType: "image/webp", Size: 4096})
	require.NoError(t, err)
	assert.Equal(t, "https://s3.example/put", ticket.UploadURL)
	assert.Regexp(t, `^galleries/`+g.ID+`/[0-9a-f-]{36}\.webp$`, ticket.Key)
	assert.Equal(t, "https://cdn.example/"+ticket.Key, ticket.ImageURL)
	assert.Equal(t, 15*time.Minute, ticket.ExpiresAt.Sub(fixedNow.Add(2*time.Second)))
	store.AssertExpectations(t)

	_, err = svc.UploadURL(ctx, g.ID, gallery.UploadRequest{Filename: "a.gif", ContentType: "image/gif", Size: 10})
	assert.ErrorIs(t, err, gallery.ErrInvalidContentType)
	_, err = svc.UploadURL(ctx, g.ID, gallery.UploadRequest{Filename: "a.jpg", ContentType: "image/jpeg", Size: gallery.MaxUploadSize + 1})
	assert.ErrorIs(t, err, gallery.ErrFileTooLarge)
	_, err = svc.UploadURL(ctx, "missing", gallery.UploadRequest{Filename: "a.jpg", ContentType: "image/jpeg", Size: 10})
	assert.ErrorIs(t, err, gallery.ErrGalleryNotFound)

	_, err = newService(t, nil).UploadURL(ctx, g.ID, gallery.UploadRequest{Filename: "a.jpg", ContentType: "image/jpeg", Size: 10})
	assert.ErrorIs(t, err, gallery.ErrStorageDisabled)
}

func TestConfirmUploadRules(t *testing.T) {
	svc := newService(t, &MockStore{})
	ctx := context.Background()
	g, err := svc.Create(ctx, gallery.CreateInput{SessionID: "s1"})
	require.NoError(t, err)

	img := confirm(t, svc, g.ID, "a.jpg")
	assert.Equal(t, "https://cdn.example/galleries/"+g.ID+"/a.jpg", img.URL)

	_, err = svc.ConfirmUpload(ctx, g.ID, gallery.ConfirmInput{Key: "galleries/" + g.ID + "/other.jpg", Filename: "a.jpg", Size: 1, ContentType: "image/jpeg"})
	assert.ErrorIs(t, err, gallery.ErrDuplicateImage)

	_, err = svc.ConfirmUpload(ctx, g.ID, gallery.ConfirmInput{Key: "galleries/someone-else/x.jpg", Filename: "x.jpg", Size: 1, ContentType: "image/jpeg"})
	assert.ErrorIs(t, err, gallery.ErrForeignKey)
	_, err = svc.ConfirmUpload(ctx, g.ID, gallery.ConfirmInput{Key: "galleries/" + g.ID + "/../x.jpg", Filename: "x.jpg", Size: 1, ContentType: "image/jpeg"})
	assert.ErrorIs(t, err, gallery.ErrForeignKey)
}

func TestImagesPaging(t *testing.T) {
	svc := newService(t, &MockStore{})
	ctx := context.Background()
	g, err := svc.Create(ctx, gallery.CreateInput{SessionID: "s1"})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		confirm(t, svc, g.ID, fmt.Sprintf("img-%d.jpg", i))
	}

	first, err := svc.Images(ctx, g.ID, 2, "")
	require.NoError(t, err)
	require.Len(t, first.Images, 2)
	assert.Equal(t, "img-4.jpg", first.Images[0].Filename)
	assert.NotEmpty(t, first.NextCursor)

	second, err := svc.Images(ctx, g.ID, 2, first.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, []string{"img-2.jpg", "img-1.jpg"}, []string{second.Images[0].Filename, second.Images[1].Filename})

	last, err := svc.Images(ctx, g.ID, 2, second.NextCursor)
	require.NoError(t, err)
	require.Len(t, last.Images, 1)
	assert.Empty(t, last.NextCursor)

	detail, err := svc.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, detail.ImageCount)
	assert.Len(t, detail.Images, 5)
	assert.Equal(t, "s1", detail.Session.ID)
}

func TestDeleteRemovesObjectsBestEffort(t *testing.T) {
	store := &MockStore{}
	svc := newService(t, store)
	ctx := context.Background()
	g, err := svc.Create(ctx, gallery.CreateInput{SessionID: "s1"})
	require.NoError(t, err)
	a := confirm(t, svc, g.ID, "a.jpg")
	b := confirm(t, svc, g.ID, "b.jpg")

	store.On("Delete", mock.Anything, a.ObjectKey).Return(errors.New("network down")).Once()
	store.On("Delete", mock.Anything, b.ObjectKey).Return(nil).Once()

	require.NoError(t, svc.Delete(ctx, g.ID))
	store.AssertExpectations(t)

	_, err = svc.Get(ctx, g.ID)
	assert.ErrorIs(t, err, gallery.ErrGalleryNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, g.ID), gallery.ErrGalleryNotFound)
}
