package facesearch_api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"eventpilot/internal/config"
	"eventpilot/internal/facesearch"
	"eventpilot/internal/facesearch/facesearch_api"
	"eventpilot/internal/logger"
	"eventpilot/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type matchAll struct{}

func (matchAll) Compare(context.Context, []byte, []byte, float32) (facesearch.Comparison, error) {
	return facesearch.Comparison{Match: true, Similarity: 90}, nil
}

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "group.jpg"), []byte("jpeg"), 0o644))

	log := logger.NewWithWriter(io.Discard, "debug")
	svc := facesearch.NewService(matchAll{}, config.FaceSearchConfig{ImagesDir: dir}, log)
	svc.MaxImageSize = 16
	r := chi.NewRouter()
	facesearch_api.NewHandler(svc, log).AdminRoutes(r)
	return r
}

func upload(t *testing.T, router http.Handler, field string, data []byte) (*httptest.ResponseRecorder, utils.APIResponse) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, "me.jpg")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/face-search", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp utils.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestFaceSearchEndpoint(t *testing.T) {
	router := newRouter(t)

	rec, resp := upload(t, router, "image", []byte("face"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(1), data["total"])
	assert.Equal(t, float64(0), data["skipped"])
	matches := data["matches"].([]interface{})
	require.Len(t, matches, 1)
	assert.Equal(t, "group.jpg", matches[0].(map[string]interface{})["filename"])
}

func TestFaceSearchEndpointRejectsBadUploads(t *testing.T) {
	router := newRouter(t)

	rec, resp := upload(t, router, "photo", []byte("face"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "IMAGE_REQUIRED", resp.Error)

	rec, resp = upload(t, router, "image", bytes.Repeat([]byte("f"), 17))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "IMAGE_TOO_LARGE", resp.Error)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/face-search", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFaceSearchEndpointWithoutComparer(t *testing.T) {
	log := logger.NewWithWriter(io.Discard, "debug")
	r := chi.NewRouter()
	facesearch_api.NewHandler(facesearch.NewService(nil, config.FaceSearchConfig{ImagesDir: t.TempDir()}, log), log).AdminRoutes(r)

	// configuration is reported before anything about the upload
	rec, resp := upload(t, r, "photo", []byte("face"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "FACE_SEARCH_NOT_CONFIGURED", resp.Error)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/face-search", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
