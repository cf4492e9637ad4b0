package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	SessionOpen      = "open"
	SessionClosed    = "closed"
	SessionCompleted = "completed"
	SessionCancelled = "cancelled"
)

// Session is one scheduled gathering ("ثلوثية") that users register for.
type Session struct {
	bun.BaseModel `bun:"table:sessions"`

	ID                   string     `bun:"id,pk" json:"id"`
	SessionNumber        int        `bun:"session_number,unique,notnull" json:"sessionNumber"`
	Title                string     `bun:"title,notnull" json:"title"`
	Slug                 string     `bun:"slug,unique,nullzero" json:"slug,omitempty"`
	Description          string     `bun:"description,nullzero" json:"description,omitempty"`
	Date                 time.Time  `bun:"date,notnull" json:"date"`
	Location             string     `bun:"location,nullzero" json:"location,omitempty"`
	LocationURL          string     `bun:"location_url,nullzero" json:"locationUrl,omitempty"`
	Status               string     `bun:"status,notnull" json:"status"`
	MaxParticipants      int        `bun:"max_participants,notnull" json:"maxParticipants"`
	MaxCompanions        int        `bun:"max_companions,notnull" json:"maxCompanions"`
	RequiresApproval     bool       `bun:"requires_approval,notnull" json:"requiresApproval"`
	InviteOnly           bool       `bun:"invite_only,notnull" json:"inviteOnly"`
	RegistrationDeadline *time.Time `bun:"registration_deadline,nullzero" json:"registrationDeadline,omitempty"`
	ValetEnabled         bool       `bun:"valet_enabled,notnull" json:"valetEnabled"`
	ValetLotCapacity     int        `bun:"valet_lot_capacity,notnull" json:"valetLotCapacity"`
	ValetRetrievalNotice int        `bun:"valet_retrieval_notice,notnull" json:"valetRetrievalNotice"`
	CreatedAt            time.Time  `bun:"created_at,notnull" json:"createdAt"`
}

type Invite struct {
	bun.BaseModel `bun:"table:invites"`

	ID        string     `bun:"id,pk" json:"id"`
	SessionID string     `bun:"session_id,notnull" json:"sessionId"`
	Token     string     `bun:"token,unique,notnull" json:"token"`
	Email     string     `bun:"email,nullzero" json:"email,omitempty"`
	Used      bool       `bun:"used,notnull" json:"used"`
	ExpiresAt *time.Time `bun:"expires_at,nullzero" json:"expiresAt,omitempty"`
	CreatedAt time.Time  `bun:"created_at,notnull" json:"createdAt"`
}

// Guest is a speaker or honored guest shown on session pages and cards.
type Guest struct {
	bun.BaseModel `bun:"table:guests"`

	ID        string    `bun:"id,pk" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Title     string    `bun:"title,nullzero" json:"title,omitempty"`
	JobTitle  string    `bun:"job_title,nullzero" json:"jobTitle,omitempty"`
	Company   string    `bun:"company,nullzero" json:"company,omitempty"`
	ImageURL  string    `bun:"image_url,nullzero" json:"imageUrl,omitempty"`
	IsActive  bool      `bun:"is_active,notnull" json:"isActive"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
}

type SessionGuest struct {
	bun.BaseModel `bun:"table:session_guests"`

	ID           string `bun:"id,pk" json:"id"`
	SessionID    string `bun:"session_id,notnull" json:"sessionId"`
	GuestID      string `bun:"guest_id,notnull" json:"guestId"`
	DisplayOrder int    `bun:"display_order,notnull" json:"displayOrder"`

	Guest *Guest `bun:"rel:belongs-to,join:guest_id=id" json:"guest,omitempty"`
}
