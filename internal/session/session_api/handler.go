package session_api

import (
	"fmt"
	"net/http"

	"eventpilot/internal/logger"
	"eventpilot/internal/session"
	"eventpilot/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *session.Service
	Logger  *logger.Logger
}

func NewHandler(service *session.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

// PublicRoutes mounts the read-only session endpoints.
func (h *Handler) PublicRoutes(r chi.Router) {
	r.Get("/sessions", h.ListSessions)
	r.Get("/sessions/upcoming", h.Upcoming)
	r.Get("/sessions/slug/{slug}", h.GetSessionBySlug)
	r.Get("/sessions/{id}", h.GetSession)
	r.Get("/sessions/{id}/countdown", h.Countdown)
}

// AdminRoutes mounts session management for admins.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Post("/sessions", h.CreateSession)
	r.Put("/sessions/{id}", h.UpdateSession)
	r.Post("/sessions/{id}/status", h.SetStatus)
	r.Post("/sessions/{id}/invites", h.CreateInvite)
	r.Get("/sessions/{id}/invites", h.ListInvites)
	r.Post("/sessions/{id}/guests", h.AttachGuest)
	r.Delete("/sessions/{id}/guests/{guestId}", h.DetachGuest)
	r.Post("/guests", h.CreateGuest)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	utils.WriteError(w, err)
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.Service.ListSessions(r.Context(), q.Get("status"), q.Get("search"),
		utils.QueryInt(r, "page", 1), utils.QueryInt(r, "pageSize", session.DefaultPageSize))
	if err != nil {
		h.fail(w, "ListSessions", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Sessions retrieved", page)
}

func (h *Handler) Upcoming(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.Service.Upcoming(r.Context(), utils.QueryInt(r, "limit", 10))
	if err != nil {
		h.fail(w, "Upcoming", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Upcoming sessions retrieved", sessions)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	details, err := h.Service.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "GetSession", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Session retrieved", details)
}

func (h *Handler) GetSessionBySlug(w http.ResponseWriter, r *http.Request) {
	details, err := h.Service.GetSessionBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, "GetSessionBySlug", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Session retrieved", details)
}

func (h *Handler) Countdown(w http.ResponseWriter, r *http.Request) {
	cd, err := h.Service.Countdown(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "Countdown", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Countdown retrieved", cd)
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var in session.SessionInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		h.fail(w, "CreateSession", err)
		return
	}
	sess, err := h.Service.CreateSession(r.Context(), in)
	if err != nil {
		h.fail(w, "CreateSession", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("CreateSession: created %s", sess.ID))
	utils.WriteSuccess(w, http.StatusCreated, "تم إنشاء الجلسة", sess)
}

func (h *Handler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	var in session.SessionInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		h.fail(w, "UpdateSession", err)
		return
	}
	sess, err := h.Service.UpdateSession(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, "UpdateSession", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "تم تحديث الجلسة", sess)
}

func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status" validate:"required"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		h.fail(w, "SetStatus", err)
		return
	}
	sess, err := h.Service.SetStatus(r.Context(), chi.URLParam(r, "id"), body.Status)
	if err != nil {
		h.fail(w, "SetStatus", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "تم تحديث حالة الجلسة", sess)
}

func (h *Handler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	var in session.InviteInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		h.fail(w, "CreateInvite", err)
		return
	}
	inv, err := h.Service.CreateInvite(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, "CreateInvite", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "تم إنشاء الدعوة", inv)
}

func (h *Handler) ListInvites(w http.ResponseWriter, r *http.Request) {
	invites, err := h.Service.ListInvites(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "ListInvites", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Invites retrieved", invites)
}

func (h *Handler) CreateGuest(w http.ResponseWriter, r *http.Request) {
	var in session.GuestInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		h.fail(w, "CreateGuest", err)
		return
	}
	g, err := h.Service.CreateGuest(r.Context(), in)
	if err != nil {
		h.fail(w, "CreateGuest", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "تم إضافة الضيف", g)
}

func (h *Handler) AttachGuest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		GuestID      string `json:"guestId" validate:"required"`
		DisplayOrder int    `json:"displayOrder"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		h.fail(w, "AttachGuest", err)
		return
	}
	sg, err := h.Service.AttachGuest(r.Context(), chi.URLParam(r, "id"), body.GuestID, body.DisplayOrder)
	if err != nil {
		h.fail(w, "AttachGuest", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "تم ربط الضيف بالجلسة", sg)
}

func (h *Handler) DetachGuest(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DetachGuest(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "guestId")); err != nil {
		h.fail(w, "DetachGuest", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
