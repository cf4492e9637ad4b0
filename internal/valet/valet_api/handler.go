package valet_api

import (
	"fmt"
	"net/http"
	"time"

	"eventpilot/internal/apperr"
	"eventpilot/internal/auth"
	"eventpilot/internal/logger"
	"eventpilot/internal/models"
	"eventpilot/internal/sse"
	"eventpilot/internal/utils"
	"eventpilot/internal/valet"

	"github.com/go-chi/chi/v5"
)

const heartbeat = 15 * time.Second

type Handler struct {
	Service   *valet.Service
	Employees *valet.Employees
	Hub       *sse.Hub
	Logger    *logger.Logger
}

func NewHandler(service *valet.Service, employees *valet.Employees, hub *sse.Hub, log *logger.Logger) *Handler {
	return &Handler{Service: service, Employees: employees, Hub: hub, Logger: log}
}

// PublicRoutes serves the guest tracking page and the employee login.
func (h *Handler) PublicRoutes(r chi.Router) {
	r.Get("/valet/track/{token}", h.Track)
	r.Post("/valet/track/{token}/request", h.RequestByToken)
	r.Post("/valet/login", h.Login)
}

// ValetRoutes need a valet employee token.
func (h *Handler) ValetRoutes(r chi.Router) {
	r.Post("/valet/logout", h.Logout)
	r.Get("/valet/me", h.Me)
	r.Get("/valet/me/sessions", h.MySessions)
	r.Get("/valet/sessions/{id}", h.SessionForValet)
	r.Get("/valet/sessions/{id}/queue", h.Queue)
	r.Get("/valet/sessions/{id}/stats", h.Stats)
	r.Get("/valet/sessions/{id}/stream", h.Stream)
	r.Get("/valet/sessions/{id}/search", h.SearchGuests)
	r.Post("/valet/guest-by-qr", h.GuestByQR)
	r.Post("/valet/park", h.Park)
	r.Post("/valet/records/{id}/request", h.RequestRetrieval)
	r.Post("/valet/registrations/{id}/request", h.RequestByRegistration)
	r.Post("/valet/records/{id}/fetching", h.MarkFetching)
	r.Post("/valet/records/{id}/ready", h.MarkReady)
	r.Post("/valet/records/{id}/retrieved", h.MarkRetrieved)
}

// UserRoutes need a signed-in user.
func (h *Handler) UserRoutes(r chi.Router) {
	r.Get("/registrations/{id}/valet", h.MyValetStatus)
}

// AdminRoutes manage employees, session settings and records by hand.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/valet/employees", h.ListEmployees)
	r.Post("/valet/employees", h.CreateEmployee)
	r.Put("/valet/employees/{id}", h.UpdateEmployee)
	r.Delete("/valet/employees/{id}", h.DeactivateEmployee)
	r.Post("/valet/employees/{id}/sessions/{sessionId}", h.Assign)
	r.Delete("/valet/employees/{id}/sessions/{sessionId}", h.Unassign)
	r.Get("/sessions/{id}/valet/employees", h.SessionEmployees)
	r.Get("/sessions/{id}/valet/records", h.SessionRecords)
	r.Get("/sessions/{id}/valet/stats", h.Stats)
	r.Get("/sessions/{id}/valet/config", h.SessionConfig)
	r.Put("/sessions/{id}/valet/config", h.UpdateSessionConfig)
	r.Post("/sessions/{id}/valet/broadcast", h.Broadcast)
	r.Post("/valet/admin/records/{id}/status", h.OverrideStatus)
	r.Post("/valet/admin/records/{id}/vip", h.SetVIP)
	r.Post("/valet/admin/registrations/{id}/vip", h.SetVIPByRegistration)
	r.Post("/valet/admin/registrations/{id}/request", h.RequestByRegistration)
	r.Put("/valet/admin/records/{id}/vehicle", h.UpdateVehicle)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	utils.WriteError(w, err)
}

func (h *Handler) Track(w http.ResponseWriter, r *http.Request) {
	t, err := h.Service.Track(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.fail(w, "Track", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Valet status retrieved", t)
}

func (h *Handler) RequestByToken(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.RequestRetrievalByToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.fail(w, "RequestByToken", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, res.Message, res)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, "Login", err)
		return
	}
	res, err := h.Employees.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(w, "Login", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "تم تسجيل الدخول", res)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Employees.Logout(r.Context(), auth.ValetFrom(r.Context())); err != nil {
		h.fail(w, "Logout", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "تم تسجيل الخروج", nil)
}

// employeeID is the caller's id; ValetMiddleware guarantees the claims.
func employeeID(r *http.Request) string {
	if c := auth.ValetFrom(r.Context()); c != nil {
		return c.EmployeeID
	}
	return ""
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	c := auth.ValetFrom(r.Context())
	if c == nil {
		utils.WriteError(w, apperr.ErrUnauthorized)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Employee retrieved", map[string]string{
		"id":       c.EmployeeID,
		"username": c.Username,
		"name":     c.Name,
	})
}

func (h *Handler) MySessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.Employees.MySessions(r.Context(), employeeID(r))
	if err != nil {
		h.fail(w, "MySessions", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Sessions retrieved", sessions)
}

func (h *Handler) SessionForValet(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Employees.SessionFor(r.Context(), employeeID(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "SessionForValet", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Session retrieved", sess)
}

func (h *Handler) Queue(w http.ResponseWriter, r *http.Request) {
	queue, err := h.Service.Queue(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "Queue", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Queue retrieved", queue)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Service.Stats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "Stats", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Stats retrieved", st)
}

// Stream sends the current queue, then every status change of the session.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	queue, err := h.Service.Queue(r.Context(), sessionID)
	if err != nil {
		h.fail(w, "Stream", err)
		return
	}

	events := h.Hub.Subscribe(r.Context(), valet.StreamTopic(sessionID))
	sse.SetupHeaders(w)
	w.WriteHeader(http.StatusOK)
	if err := sse.WriteEvent(w, sse.Event{Type: "queue", Data: queue}); err != nil {
		return
	}
	h.Logger.Debug("SSE", fmt.Sprintf("Valet stream opened for %s (%d clients)", sessionID, h.Hub.ClientCount(valet.StreamTopic(sessionID))))

	if err := sse.Stream(w, r, events, heartbeat); err != nil {
		h.Logger.Debug("SSE", fmt.Sprintf("Valet stream for %s ended: %v", sessionID, err))
	}
}

func (h *Handler) SearchGuests(w http.ResponseWriter, r *http.Request) {
	matches, err := h.Service.SearchGuests(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, "SearchGuests", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Guests retrieved", matches)
}

type qrRequest struct {
	QRData string `json:"qrData" validate:"required"`
}

func (h *Handler) GuestByQR(w http.ResponseWriter, r *http.Request) {
	var req qrRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, "GuestByQR", err)
		return
	}
	m, err := h.Service.GuestByQR(r.Context(), req.QRData)
	if err != nil {
		h.fail(w, "GuestByQR", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Guest retrieved", m)
}

func (h *Handler) Park(w http.ResponseWriter, r *http.Request) {
	var in valet.ParkInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		h.fail(w, "Park", err)
		return
	}
	rec, err := h.Service.Park(r.Context(), in, employeeID(r))
	if err != nil {
		h.fail(w, "Park", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "تم ركن السيارة", rec)
}

func (h *Handler) RequestRetrieval(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.RequestRetrieval(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "RequestRetrieval", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, res.Message, res)
}

func (h *Handler) RequestByRegistration(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.RequestRetrievalByRegistration(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "RequestByRegistration", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, res.Message, res)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op, msg string,
	fn func(*http.Request, string) (*models.ValetRecord, error)) {
	rec, err := fn(r, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, op, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, msg, rec)
}

func (h *Handler) MarkFetching(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "MarkFetching", "جاري إحضار السيارة", func(r *http.Request, id string) (*models.ValetRecord, error) {
		return h.Service.MarkFetching(r.Context(), id)
	})
}

func (h *Handler) MarkReady(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "MarkReady", "السيارة جاهزة", func(r *http.Request, id string) (*models.ValetRecord, error) {
		return h.Service.MarkReady(r.Context(), id)
	})
}

func (h *Handler) MarkRetrieved(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "MarkRetrieved", "تم تسليم السيارة", func(r *http.Request, id string) (*models.ValetRecord, error) {
		return h.Service.MarkRetrieved(r.Context(), id)
	})
}

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	out, err := h.Employees.List(r.Context())
	if err != nil {
		h.fail(w, "ListEmployees", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Employees retrieved", out)
}

func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var in valet.EmployeeInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		h.fail(w, "CreateEmployee", err)
		return
	}
	emp, err := h.Employees.Create(r.Context(), in)
	if err != nil {
		h.fail(w, "CreateEmployee", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "تم إضافة الموظف", emp)
}

func (h *Handler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	var in valet.EmployeeUpdate
	if err := utils.DecodeJSON(r, &in); err != nil {
		h.fail(w, "UpdateEmployee", err)
		return
	}
	emp, err := h.Employees.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, "UpdateEmployee", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "تم تحديث الموظف", emp)
}

func (h *Handler) DeactivateEmployee(w http.ResponseWriter, r *http.Request) {
	if err := h.Employees.Deactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "DeactivateEmployee", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "تم تعطيل الموظف", nil)
}

func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	a, err := h.Employees.Assign(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "sessionId"))
	if err != nil {
		h.fail(w, "Assign", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "تم تعيين الموظف", a)
}

func (h *Handler) Unassign(w http.ResponseWriter, r *http.Request) {
	if err := h.Employees.Unassign(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "sessionId")); err != nil {
		h.fail(w, "Unassign", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "تم إلغاء تعيين الموظف", nil)
}

func (h *Handler) SessionEmployees(w http.ResponseWriter, r *http.Request) {
	out, err := h.Employees.SessionEmployees(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "SessionEmployees", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Employees retrieved", out)
}

func (h *Handler) SessionRecords(w http.ResponseWriter, r *http.Request) {
	recs, err := h.Service.SessionRecords(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "SessionRecords", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Records retrieved", recs)
}

type overrideRequest struct {
	Status models.ValetStatus `json:"status" validate:"required,valetstatus"`
	Reason string             `json:"reason"`
}

func (h *Handler) OverrideStatus(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, "OverrideStatus", err)
		return
	}
	rec, err := h.Service.OverrideStatus(r.Context(), chi.URLParam(r, "id"), req.Status, req.Reason, auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, "OverrideStatus", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "تم تحديث الحالة", rec)
}

type vipRequest struct {
	IsVIP bool `json:"isVip"`
}

func (h *Handler) SetVIP(w http.ResponseWriter, r *http.Request) {
	var req vipRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, "SetVIP", err)
		return
	}
	rec, err := h.Service.SetVIP(r.Context(), chi.URLParam(r, "id"), req.IsVIP, auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, "SetVIP", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "تم تحديث حالة VIP", rec)
}

func (h *Handler) SetVIPByRegistration(w http.ResponseWriter, r *http.Request) {
	var req vipRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, "SetVIPByRegistration", err)
		return
	}
	rec, err := h.Service.SetVIPByRegistration(r.Context(), chi.URLParam(r, "id"), req.IsVIP, auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, "SetVIPByRegistration", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "تم تحديث حالة VIP", rec)
}

func (h *Handler) UpdateVehicle(w http.ResponseWriter, r *http.Request) {
	var in valet.VehicleInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		h.fail(w, "UpdateVehicle", err)
		return
	}
	rec, err := h.Service.UpdateVehicle(r.Context(), chi.URLParam(r, "id"), in, auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, "UpdateVehicle", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "تم تحديث بيانات السيارة", rec)
}

func (h *Handler) MyValetStatus(w http.ResponseWriter, r *http.Request) {
	email := auth.Email(r.Context())
	if email == "" {
		h.fail(w, "MyValetStatus", apperr.ErrUnauthorized)
		return
	}
	res, err := h.Service.MyValetStatus(r.Context(), email, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "MyValetStatus", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Valet status retrieved", res)
}

func (h *Handler) SessionConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Service.SessionConfig(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "SessionConfig", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Valet config retrieved", cfg)
}

func (h *Handler) UpdateSessionConfig(w http.ResponseWriter, r *http.Request) {
	var in valet.SessionConfig
	if err := utils.DecodeJSON(r, &in); err != nil {
		h.fail(w, "UpdateSessionConfig", err)
		return
	}
	cfg, err := h.Service.UpdateSessionConfig(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, "UpdateSessionConfig", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "تم تحديث إعدادات الفاليه", cfg)
}

type broadcastRequest struct {
	Message string `json:"message" validate:"required"`
}

func (h *Handler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, "Broadcast", err)
		return
	}
	res, err := h.Service.Broadcast(r.Context(), chi.URLParam(r, "id"), req.Message)
	if err != nil {
		h.fail(w, "Broadcast", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, fmt.Sprintf("تم إرسال الرسالة إلى %d ضيف", res.Sent), res)
}
