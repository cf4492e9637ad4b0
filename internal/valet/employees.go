package valet

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"eventpilot/internal/apperr"
	"eventpilot/internal/auth"
	"eventpilot/internal/logger"
	"eventpilot/internal/models"
	"eventpilot/internal/session"
	"eventpilot/internal/utils"
	"eventpilot/internal/validation"
	"eventpilot/internal/valet/db"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmployeeNotFound   = apperr.NotFound("EMPLOYEE_NOT_FOUND", "الموظف غير موجود")
	ErrUsernameTaken      = apperr.Conflict("USERNAME_TAKEN", "اسم المستخدم موجود مسبقاً")
	ErrAlreadyAssigned    = apperr.Conflict("ALREADY_ASSIGNED", "الموظف مسجل مسبقاً لهذا الحدث")
	ErrNotAssigned        = apperr.NotFound("NOT_ASSIGNED", "لم يتم العثور على الحدث أو لست مسجلاً له")
	ErrInvalidCredentials = apperr.New(http.StatusUnauthorized, "INVALID_CREDENTIALS", "اسم المستخدم أو كلمة المرور غير صحيحة")
	ErrEmployeeInactive   = apperr.New(http.StatusForbidden, "EMPLOYEE_INACTIVE", "هذا الحساب غير مفعل")
)

// Employees manages valet staff accounts and their session assignments.
type Employees struct {
	DB     *db.DB
	Tokens *auth.ValetTokens
	Logger *logger.Logger
	Now    func() time.Time
}

func NewEmployees(store *db.DB, tokens *auth.ValetTokens, log *logger.Logger) *Employees {
	return &Employees{DB: store, Tokens: tokens, Logger: log, Now: time.Now}
}

type EmployeeInput struct {
	Name     string `json:"name" validate:"required"`
	Username string `json:"username" validate:"required,min=3"`
	Password string `json:"password" validate:"required,min=6"`
	Phone    string `json:"phone"`
}

type EmployeeUpdate struct {
	Name     *string `json:"name" validate:"omitempty,min=1"`
	Username *string `json:"username" validate:"omitempty,min=3"`
	Password *string `json:"password" validate:"omitempty,min=6"`
	Phone    *string `json:"phone"`
	IsActive *bool   `json:"isActive"`
}

func formatPhone(phone string) string {
	if strings.TrimSpace(phone) == "" {
		return ""
	}
	return validation.FormatPhone(phone)
}

func (e *Employees) get(ctx context.Context, id string) (*models.ValetEmployee, error) {
	emp, err := e.DB.GetEmployee(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get employee %s: %w", id, err)
	}
	if emp == nil {
		return nil, ErrEmployeeNotFound
	}
	return emp, nil
}

func (e *Employees) Create(ctx context.Context, in EmployeeInput) (*models.ValetEmployee, error) {
	if err := validation.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrBadInput, err)
	}
	username := strings.ToLower(strings.TrimSpace(in.Username))
	taken, err := e.DB.UsernameTaken(ctx, username, "")
	if err != nil {
		return nil, fmt.Errorf("check username %s: %w", username, err)
	}
	if taken {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	emp := &models.ValetEmployee{
		ID:           utils.NewID(),
		Name:         strings.TrimSpace(in.Name),
		Username:     username,
		PasswordHash: string(hash),
		Phone:        formatPhone(in.Phone),
		IsActive:     true,
		CreatedAt:    e.Now(),
	}
	if err := e.DB.CreateEmployee(ctx, emp); err != nil {
		return nil, fmt.Errorf("create employee: %w", err)
	}
	e.Logger.Info("VALET", fmt.Sprintf("Created valet employee %s (%s)", emp.ID, emp.Username))
	return emp, nil
}

func (e *Employees) Update(ctx context.Context, id string, in EmployeeUpdate) (*models.ValetEmployee, error) {
	if err := validation.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrBadInput, err)
	}
	emp, err := e.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Username != nil {
		username := strings.ToLower(strings.TrimSpace(*in.Username))
		taken, err := e.DB.UsernameTaken(ctx, username, id)
		if err != nil {
			return nil, fmt.Errorf("check username %s: %w", username, err)
		}
		if taken {
			return nil, ErrUsernameTaken
		}
		emp.Username = username
	}
	if in.Name != nil {
		emp.Name = strings.TrimSpace(*in.Name)
	}
	if in.Phone != nil {
		emp.Phone = formatPhone(*in.Phone)
	}
	if in.IsActive != nil {
		emp.IsActive = *in.IsActive
	}
	if in.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		emp.PasswordHash = string(hash)
	}

	if err := e.DB.UpdateEmployee(ctx, emp); err != nil {
		return nil, fmt.Errorf("update employee %s: %w", id, err)
	}
	return emp, nil
}

func (e *Employees) List(ctx context.Context) ([]models.ValetEmployee, error) {
	out, err := e.DB.ListEmployees(ctx)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	return out, nil
}

// Deactivate keeps the employee's history; they can no longer log in.
func (e *Employees) Deactivate(ctx context.Context, id string) error {
	active := false
	_, err := e.Update(ctx, id, EmployeeUpdate{IsActive: &active})
	return err
}

func (e *Employees) Assign(ctx context.Context, employeeID, sessionID string) (*models.ValetAssignment, error) {
	emp, err := e.get(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	sess, err := e.DB.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	if sess == nil {
		return nil, session.ErrSessionNotFound
	}

	exists, err := e.DB.AssignmentExists(ctx, employeeID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("check assignment: %w", err)
	}
	if exists {
		return nil, ErrAlreadyAssigned
	}

	a := &models.ValetAssignment{
		ID:         utils.NewID(),
		EmployeeID: employeeID,
		SessionID:  sessionID,
		CreatedAt:  e.Now(),
	}
	if err := e.DB.CreateAssignment(ctx, a); err != nil {
		return nil, fmt.Errorf("assign %s to %s: %w", employeeID, sessionID, err)
	}
	a.Employee = emp
	a.Session = sess
	return a, nil
}

func (e *Employees) Unassign(ctx context.Context, employeeID, sessionID string) error {
	removed, err := e.DB.DeleteAssignment(ctx, employeeID, sessionID)
	if err != nil {
		return fmt.Errorf("unassign %s from %s: %w", employeeID, sessionID, err)
	}
	if !removed {
		return ErrNotAssigned
	}
	return nil
}

// AssignedEmployee is an employee as listed for one session.
type AssignedEmployee struct {
	models.ValetEmployee
	AssignedAt time.Time `json:"assignedAt"`
}

func (e *Employees) SessionEmployees(ctx context.Context, sessionID string) ([]AssignedEmployee, error) {
	rows, err := e.DB.SessionAssignments(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list employees of %s: %w", sessionID, err)
	}
	out := make([]AssignedEmployee, 0, len(rows))
	for _, a := range rows {
		if a.Employee == nil {
			continue
		}
		out = append(out, AssignedEmployee{ValetEmployee: *a.Employee, AssignedAt: a.CreatedAt})
	}
	return out, nil
}

// MySessions lists the valet-enabled sessions an employee works at.
func (e *Employees) MySessions(ctx context.Context, employeeID string) ([]models.Session, error) {
	rows, err := e.DB.EmployeeAssignments(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("list sessions of %s: %w", employeeID, err)
	}
	out := []models.Session{}
	for _, a := range rows {
		if a.Session != nil && a.Session.ValetEnabled {
			out = append(out, *a.Session)
		}
	}
	return out, nil
}

// SessionFor returns the session only if the employee is assigned to it.
func (e *Employees) SessionFor(ctx context.Context, employeeID, sessionID string) (*models.Session, error) {
	ok, err := e.DB.AssignmentExists(ctx, employeeID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("check assignment: %w", err)
	}
	if !ok {
		return nil, ErrNotAssigned
	}
	sess, err := e.DB.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	if sess == nil {
		return nil, ErrNotAssigned
	}
	return sess, nil
}

type LoginResult struct {
	Token     string               `json:"token"`
	ExpiresAt time.Time            `json:"expiresAt"`
	Employee  models.ValetEmployee `json:"employee"`
}

// Login checks the employee's password and issues a valet token.
func (e *Employees) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	emp, err := e.DB.GetEmployeeByUsername(ctx, strings.ToLower(strings.TrimSpace(username)))
	if err != nil {
		return nil, fmt.Errorf("get employee %s: %w", username, err)
	}
	if emp == nil {
		return nil, ErrInvalidCredentials
	}
	if !emp.IsActive {
		return nil, ErrEmployeeInactive
	}
	if err := bcrypt.CompareHashAndPassword([]byte(emp.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			e.Logger.LogSecurity("VALET_LOGIN_FAILED", "Bad password for "+emp.Username)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("compare password: %w", err)
	}

	token, expiresAt, err := e.Tokens.Issue(emp.ID, emp.Username, emp.Name)
	if err != nil {
		return nil, err
	}
	e.Logger.Info("VALET", fmt.Sprintf("Employee %s logged in", emp.Username))
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Employee: *emp}, nil
}

// Logout revokes the caller's token until it would have expired.
func (e *Employees) Logout(ctx context.Context, claims *auth.ValetClaims) error {
	if err := e.Tokens.Revoke(ctx, claims); err != nil {
		return fmt.Errorf("revoke valet token: %w", err)
	}
	return nil
}
