package sponsor_api

import (
	"fmt"
	"net/http"

	"eventpilot/internal/logger"
	"eventpilot/internal/sponsor"
	"eventpilot/internal/sponsor/db"
	"eventpilot/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *sponsor.Service
	Logger  *logger.Logger
}

func NewHandler(service *sponsor.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) PublicRoutes(r chi.Router) {
	r.Get("/sessions/{id}/sponsorships", h.SessionSponsorships)
}

func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/sponsors", h.List)
	r.Post("/sponsors", h.Create)
	r.Get("/sponsors/export", h.ExportCSV)
	r.Get("/sponsors/{id}", h.Get)
	r.Put("/sponsors/{id}", h.Update)
	r.Delete("/sponsors/{id}", h.Delete)
	r.Delete("/sponsors/{id}/hard", h.HardDelete)
	r.Post("/sponsors/{id}/user", h.LinkToUser)
	r.Delete("/sponsors/{id}/user", h.UnlinkFromUser)
	r.Post("/sessions/{id}/sponsorships", h.LinkToSession)
	r.Put("/sponsorships/{id}", h.UpdateSponsorship)
	r.Delete("/sponsorships/{id}", h.UnlinkFromSession)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	utils.WriteError(w, err)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.Service.List(r.Context(), db.ListFilter{
		Search: q.Get("search"),
		Type:   q.Get("type"),
		Active: utils.QueryBool(r, "isActive"),
	}, utils.QueryInt(r, "page", 1), utils.QueryInt(r, "pageSize", sponsor.DefaultPageSize))
	if err != nil {
		h.fail(w, "ListSponsors", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Sponsors retrieved", page)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "GetSponsor", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Sponsor retrieved", d)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in sponsor.SponsorInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		h.fail(w, "CreateSponsor", err)
		return
	}
	sp, err := h.Service.Create(r.Context(), in)
	if err != nil {
		h.fail(w, "CreateSponsor", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "تم إضافة الراعي", sp)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var in sponsor.SponsorInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		h.fail(w, "UpdateSponsor", err)
		return
	}
	sp, err := h.Service.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, "UpdateSponsor", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "تم تحديث الراعي", sp)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "DeleteSponsor", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HardDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.HardDelete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "HardDeleteSponsor", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) LinkToUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"userId" validate:"required"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		h.fail(w, "LinkToUser", err)
		return
	}
	sp, err := h.Service.LinkToUser(r.Context(), chi.URLParam(r, "id"), body.UserID)
	if err != nil {
		h.fail(w, "LinkToUser", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "تم ربط الراعي بالمستخدم", sp)
}

func (h *Handler) UnlinkFromUser(w http.ResponseWriter, r *http.Request) {
	sp, err := h.Service.UnlinkFromUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "UnlinkFromUser", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "تم إلغاء ربط الراعي", sp)
}

func (h *Handler) SessionSponsorships(w http.ResponseWriter, r *http.Request) {
	slots, err := h.Service.SessionSponsorships(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "SessionSponsorships", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Sponsorships retrieved", slots)
}

func (h *Handler) LinkToSession(w http.ResponseWriter, r *http.Request) {
	var in sponsor.SponsorshipInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		h.fail(w, "LinkToSession", err)
		return
	}
	es, err := h.Service.LinkToSession(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, "LinkToSession", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "تم ربط الرعاية بالجلسة", es)
}

func (h *Handler) UpdateSponsorship(w http.ResponseWriter, r *http.Request) {
	var in sponsor.SponsorshipInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		h.fail(w, "UpdateSponsorship", err)
		return
	}
	es, err := h.Service.UpdateSponsorship(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, "UpdateSponsorship", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "تم تحديث الرعاية", es)
}

func (h *Handler) UnlinkFromSession(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.UnlinkFromSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "UnlinkFromSession", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	data, err := h.Service.ExportCSV(r.Context())
	if err != nil {
		h.fail(w, "ExportSponsors", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="sponsors.csv"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ExportSponsors: write response: %v", err))
	}
}
