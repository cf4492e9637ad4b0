package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Registration is one seat at a session. Companions are registrations whose
// InvitedByRegistrationID points at the primary registrant.
type Registration struct {
	bun.BaseModel `bun:"table:registrations"`

	ID                      string    `bun:"id,pk" json:"id"`
	SessionID               string    `bun:"session_id,notnull" json:"sessionId"`
	UserID                  string    `bun:"user_id,nullzero" json:"userId,omitempty"`
	InvitedByRegistrationID string    `bun:"invited_by_registration_id,nullzero" json:"invitedByRegistrationId,omitempty"`
	IsApproved              bool      `bun:"is_approved,notnull" json:"isApproved"`
	ApprovalNotes           string    `bun:"approval_notes,nullzero" json:"approvalNotes,omitempty"`
	GuestName               string    `bun:"guest_name,nullzero" json:"guestName,omitempty"`
	GuestEmail              string    `bun:"guest_email,nullzero" json:"guestEmail,omitempty"`
	GuestPhone              string    `bun:"guest_phone,nullzero" json:"guestPhone,omitempty"`
	GuestCompanyName        string    `bun:"guest_company_name,nullzero" json:"guestCompanyName,omitempty"`
	GuestPosition           string    `bun:"guest_position,nullzero" json:"guestPosition,omitempty"`
	GuestWantsToHost        bool      `bun:"guest_wants_to_host,notnull" json:"guestWantsToHost"`
	GuestHostingTypes       []string  `bun:"guest_hosting_types,type:jsonb" json:"guestHostingTypes,omitempty"`
	WantsToSponsor          bool      `bun:"wants_to_sponsor,notnull" json:"wantsToSponsor"`
	SponsorshipTypes        []string  `bun:"sponsorship_types,type:jsonb" json:"sponsorshipTypes,omitempty"`
	SponsorType             string    `bun:"sponsor_type,nullzero" json:"sponsorType,omitempty"`
	NeedsValet              bool      `bun:"needs_valet,notnull" json:"needsValet"`
	RegisteredAt            time.Time `bun:"registered_at,notnull" json:"registeredAt"`

	User    *User    `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Session *Session `bun:"rel:belongs-to,join:session_id=id" json:"session,omitempty"`
}

// IsCompanion reports whether the registration was added by another registrant.
func (r *Registration) IsCompanion() bool {
	return r.InvitedByRegistrationID != ""
}

// DisplayName prefers the linked user's name over the guest fields.
func (r *Registration) DisplayName() string {
	if r.User != nil && r.User.Name != "" {
		return r.User.Name
	}
	return r.GuestName
}

func (r *Registration) ContactEmail() string {
	if r.User != nil && r.User.Email != "" {
		return r.User.Email
	}
	return r.GuestEmail
}

func (r *Registration) ContactPhone() string {
	if r.User != nil && r.User.Phone != "" {
		return r.User.Phone
	}
	return r.GuestPhone
}

type Attendance struct {
	bun.BaseModel `bun:"table:attendances"`

	ID             string     `bun:"id,pk" json:"id"`
	RegistrationID string     `bun:"registration_id,unique,notnull" json:"registrationId"`
	SessionID      string     `bun:"session_id,notnull" json:"sessionId"`
	UserID         string     `bun:"user_id,nullzero" json:"userId,omitempty"`
	Attended       bool       `bun:"attended,notnull" json:"attended"`
	CheckInTime    *time.Time `bun:"check_in_time,nullzero" json:"checkInTime,omitempty"`
	QRVerified     bool       `bun:"qr_verified,notnull" json:"qrVerified"`
}
