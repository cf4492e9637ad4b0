package attendance_api

import (
	"fmt"
	"net/http"

	"eventpilot/internal/apperr"
	"eventpilot/internal/attendance"
	"eventpilot/internal/auth"
	"eventpilot/internal/logger"
	"eventpilot/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *attendance.Service
	Logger  *logger.Logger
}

func NewHandler(service *attendance.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

// UserRoutes need a signed-in user.
func (h *Handler) UserRoutes(r chi.Router) {
	r.Get("/sessions/{id}/my-qr", h.MyQR)
}

func (h *Handler) AdminRoutes(r chi.Router) {
	r.Post("/attendance/check-in", h.CheckInQR)
	r.Post("/registrations/{id}/attendance", h.Mark)
	r.Get("/sessions/{id}/attendance", h.SessionAttendance)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	utils.WriteError(w, err)
}

func (h *Handler) CheckInQR(w http.ResponseWriter, r *http.Request) {
	var body struct {
		QRData string `json:"qrData" validate:"required"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		h.fail(w, "CheckInQR", err)
		return
	}
	res, err := h.Service.CheckInQR(r.Context(), body.QRData)
	if err != nil {
		h.fail(w, "CheckInQR", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "تم تسجيل الحضور", res)
}

func (h *Handler) Mark(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Attended bool `json:"attended"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		h.fail(w, "Mark", err)
		return
	}
	a, err := h.Service.Mark(r.Context(), chi.URLParam(r, "id"), body.Attended)
	if err != nil {
		h.fail(w, "Mark", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "تم تحديث الحضور", a)
}

func (h *Handler) SessionAttendance(w http.ResponseWriter, r *http.Request) {
	report, err := h.Service.SessionAttendance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "SessionAttendance", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Attendance retrieved", report)
}

func (h *Handler) MyQR(w http.ResponseWriter, r *http.Request) {
	email := auth.Email(r.Context())
	if email == "" {
		h.fail(w, "MyQR", apperr.ErrUnauthorized)
		return
	}
	res, err := h.Service.MyQR(r.Context(), email, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "MyQR", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "QR retrieved", res)
}
