package gallery_api

import (
	"fmt"
	"net/http"
	"strconv"

	"eventpilot/internal/gallery"
	"eventpilot/internal/logger"
	"eventpilot/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *gallery.Service
	Logger  *logger.Logger
}

func NewHandler(service *gallery.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/galleries/status", h.Status)
	r.Post("/galleries", h.Create)
	r.Get("/sessions/{id}/galleries", h.ListBySession)
	r.Get("/galleries/{id}", h.Get)
	r.Delete("/galleries/{id}", h.Delete)
	r.Get("/galleries/{id}/images", h.Images)
	r.Post("/galleries/{id}/upload-url", h.UploadURL)
	r.Post("/galleries/{id}/images", h.ConfirmUpload)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	utils.WriteError(w, err)
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccess(w, http.StatusOK, "Gallery storage status", map[string]bool{"configured": h.Service.Configured()})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in gallery.CreateInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		h.fail(w, "CreateGallery", err)
		return
	}
	g, err := h.Service.Create(r.Context(), in)
	if err != nil {
		h.fail(w, "CreateGallery", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "تم إنشاء المعرض", g)
}

func (h *Handler) ListBySession(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.ListBySession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "ListGalleries", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Galleries retrieved", out)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "GetGallery", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Gallery retrieved", d)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "DeleteGallery", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "تم حذف المعرض", nil)
}

func (h *Handler) Images(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	page, err := h.Service.Images(r.Context(), chi.URLParam(r, "id"), limit, r.URL.Query().Get("cursor"))
	if err != nil {
		h.fail(w, "GalleryImages", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Images retrieved", page)
}

func (h *Handler) UploadURL(w http.ResponseWriter, r *http.Request) {
	var in gallery.UploadRequest
	if err := utils.DecodeJSON(r, &in); err != nil {
		h.fail(w, "UploadURL", err)
		return
	}
	ticket, err := h.Service.UploadURL(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, "UploadURL", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Upload URL created", ticket)
}

func (h *Handler) ConfirmUpload(w http.ResponseWriter, r *http.Request) {
	var in gallery.ConfirmInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		h.fail(w, "ConfirmUpload", err)
		return
	}
	img, err := h.Service.ConfirmUpload(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, "ConfirmUpload", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "تم رفع الصورة", img)
}
