package facesearch_api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"eventpilot/internal/facesearch"
	"eventpilot/internal/logger"
	"eventpilot/internal/utils"

	"github.com/go-chi/chi/v5"
)

const formMemory = 8 << 20

type Handler struct {
	Service *facesearch.Service
	Logger  *logger.Logger
}

func NewHandler(service *facesearch.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) AdminRoutes(r chi.Router) {
	r.Post("/face-search", h.Search)
}

// Search takes the reference photo from the "image" form field.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	if !h.Service.Configured() {
		h.Logger.Warn("API", "Face search requested but Rekognition is not configured")
		utils.WriteError(w, facesearch.ErrNotConfigured)
		return
	}
	if err := r.ParseMultipartForm(formMemory); err != nil {
		utils.WriteError(w, facesearch.ErrNoImage)
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			utils.WriteError(w, facesearch.ErrNoImage)
			return
		}
		h.Logger.Error("API", fmt.Sprintf("Read face search upload: %v", err))
		utils.WriteError(w, facesearch.ErrSearchFailed)
		return
	}
	defer file.Close()

	// one byte over the limit is enough to reject the upload
	reference, err := io.ReadAll(io.LimitReader(file, h.Service.MaxImageSize+1))
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Read face search upload: %v", err))
		utils.WriteError(w, facesearch.ErrSearchFailed)
		return
	}

	res, err := h.Service.Search(r.Context(), reference)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Face search: %v", err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Face search completed", res)
}
