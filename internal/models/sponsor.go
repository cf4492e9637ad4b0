package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	SponsorTypePerson  = "person"
	SponsorTypeCompany = "company"
)

const (
	SponsorshipDinner   = "dinner"
	SponsorshipBeverage = "beverage"
	SponsorshipDessert  = "dessert"
	SponsorshipOther    = "other"
)

// SponsorshipTypes lists the slot kinds a session can have, in display order.
var SponsorshipTypes = []string{SponsorshipDinner, SponsorshipBeverage, SponsorshipDessert, SponsorshipOther}

// SponsorshipLabels are the Arabic labels shown for each slot kind.
var SponsorshipLabels = map[string]string{
	SponsorshipDinner:   "عشاء",
	SponsorshipBeverage: "مشروبات",
	SponsorshipDessert:  "حلا",
	SponsorshipOther:    "أخرى",
}

func IsSponsorshipType(t string) bool {
	_, ok := SponsorshipLabels[t]
	return ok
}

type Sponsor struct {
	bun.BaseModel `bun:"table:sponsors"`

	ID               string    `bun:"id,pk" json:"id"`
	UserID           string    `bun:"user_id,unique,nullzero" json:"userId,omitempty"`
	Name             string    `bun:"name,notnull" json:"name"`
	Email            string    `bun:"email,nullzero" json:"email,omitempty"`
	Phone            string    `bun:"phone,nullzero" json:"phone,omitempty"`
	Type             string    `bun:"type,notnull" json:"type"`
	LogoURL          string    `bun:"logo_url,nullzero" json:"logoUrl,omitempty"`
	SponsorshipTypes []string  `bun:"sponsorship_types,type:jsonb" json:"sponsorshipTypes,omitempty"`
	IsActive         bool      `bun:"is_active,notnull" json:"isActive"`
	CreatedAt        time.Time `bun:"created_at,notnull" json:"createdAt"`
}

// EventSponsorship fills one slot of a session, either by a sponsor or by the
// session host itself.
type EventSponsorship struct {
	bun.BaseModel `bun:"table:event_sponsorships"`

	ID              string    `bun:"id,pk" json:"id"`
	SessionID       string    `bun:"session_id,notnull" json:"sessionId"`
	SponsorID       string    `bun:"sponsor_id,nullzero" json:"sponsorId,omitempty"`
	SponsorshipType string    `bun:"sponsorship_type,notnull" json:"sponsorshipType"`
	IsSelfSponsored bool      `bun:"is_self_sponsored,notnull" json:"isSelfSponsored"`
	Notes           string    `bun:"notes,nullzero" json:"notes,omitempty"`
	DisplayOrder    int       `bun:"display_order,notnull" json:"displayOrder"`
	CreatedAt       time.Time `bun:"created_at,notnull" json:"createdAt"`

	Sponsor *Sponsor `bun:"rel:belongs-to,join:sponsor_id=id" json:"sponsor,omitempty"`
}

// EventCatering is the pre-sponsor hosting table, kept only as a migration source.
type EventCatering struct {
	bun.BaseModel `bun:"table:event_caterings"`

	ID             string    `bun:"id,pk" json:"id"`
	SessionID      string    `bun:"session_id,notnull" json:"sessionId"`
	HostID         string    `bun:"host_id,nullzero" json:"hostId,omitempty"`
	HostingType    string    `bun:"hosting_type,notnull" json:"hostingType"`
	IsSelfCatering bool      `bun:"is_self_catering,notnull" json:"isSelfCatering"`
	Notes          string    `bun:"notes,nullzero" json:"notes,omitempty"`
	CreatedAt      time.Time `bun:"created_at,notnull" json:"createdAt"`
}
