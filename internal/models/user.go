package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	RoleUser       = "USER"
	RoleAdmin      = "ADMIN"
	RoleSuperAdmin = "SUPER_ADMIN"
)

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID           string    `bun:"id,pk" json:"id"`
	Name         string    `bun:"name,notnull" json:"name"`
	Username     string    `bun:"username,unique,notnull" json:"username"`
	Email        string    `bun:"email,unique,notnull" json:"email"`
	Phone        string    `bun:"phone,unique,nullzero" json:"phone,omitempty"`
	PasswordHash string    `bun:"password_hash,nullzero" json:"-"`
	Role         string    `bun:"role,notnull" json:"role"`
	CompanyName  string    `bun:"company_name,nullzero" json:"companyName,omitempty"`
	Position     string    `bun:"position,nullzero" json:"position,omitempty"`
	WantsToHost  bool      `bun:"wants_to_host,notnull" json:"wantsToHost"`
	HostingTypes []string  `bun:"hosting_types,type:jsonb" json:"hostingTypes,omitempty"`
	IsActive     bool      `bun:"is_active,notnull" json:"isActive"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"createdAt"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperAdmin
}
