package registration_api

import (
	"fmt"
	"net/http"
	"strconv"

	"eventpilot/internal/logger"
	"eventpilot/internal/pdf"
	"eventpilot/internal/registration"
	"eventpilot/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *registration.Service
	Logger  *logger.Logger
}

func NewHandler(service *registration.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) PublicRoutes(r chi.Router) {
	r.Post("/registrations/guest", h.GuestRegister)
	r.Get("/registrations/{id}/confirmation", h.Confirmation)
	r.Get("/registrations/{id}/qr-pdf", h.QRPDF)
}

func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/sessions/{id}/registrations", h.ListBySession)
	r.Get("/sessions/{id}/registrations/export", h.ExportCSV)
	r.Post("/sessions/{id}/registrations/approve-all", h.ApproveAll)
	r.Post("/registrations/{id}/approve", h.Approve)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	utils.WriteError(w, err)
}

func (h *Handler) GuestRegister(w http.ResponseWriter, r *http.Request) {
	var req registration.GuestRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, "GuestRegister", err)
		return
	}
	res, err := h.Service.GuestRegister(r.Context(), req)
	if err != nil {
		h.fail(w, "GuestRegister", err)
		return
	}
	msg := "تم التسجيل بنجاح"
	if !res.IsApproved {
		msg = "تم استلام طلب التسجيل وسيتم مراجعته"
	}
	utils.WriteSuccess(w, http.StatusCreated, msg, res)
}

func (h *Handler) Confirmation(w http.ResponseWriter, r *http.Request) {
	conf, err := h.Service.Confirmation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "Confirmation", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Registration retrieved", conf)
}

// QRPDF serves the check-in card inline, or as an attachment with
// ?download=true.
func (h *Handler) QRPDF(w http.ResponseWriter, r *http.Request) {
	card, err := h.Service.QRPDF(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "QRPDF", err)
		return
	}
	download := r.URL.Query().Get("download") == "true"

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", pdf.ContentDisposition(download, card.ASCIIName, card.UTF8Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(card.Content)))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(card.Content); err != nil {
		h.Logger.Error("API", fmt.Sprintf("QRPDF: write response: %v", err))
	}
}

func (h *Handler) ListBySession(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.ListBySession(r.Context(), chi.URLParam(r, "id"), registration.ListOptions{
		Search:            r.URL.Query().Get("search"),
		IncludeUnapproved: utils.QueryBool(r, "includeUnapproved"),
		IncludeInvited:    utils.QueryBool(r, "includeInvited"),
	})
	if err != nil {
		h.fail(w, "ListBySession", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Registrations retrieved", items)
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Notes string `json:"notes"`
	}
	if r.ContentLength > 0 {
		if err := utils.DecodeJSON(r, &body); err != nil {
			h.fail(w, "Approve", err)
			return
		}
	}
	if err := h.Service.Approve(r.Context(), chi.URLParam(r, "id"), body.Notes); err != nil {
		h.fail(w, "Approve", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "تمت الموافقة على التسجيل", nil)
}

func (h *Handler) ApproveAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.Service.ApproveAll(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "ApproveAll", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "تمت الموافقة على جميع التسجيلات", map[string]int{"approvedCount": n})
}

func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	data, err := h.Service.ExportCSV(r.Context(), sessionID)
	if err != nil {
		h.fail(w, "ExportCSV", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="registrations-%s.csv"`, sessionID))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ExportCSV: write response: %v", err))
	}
}
