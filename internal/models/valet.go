package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ValetStatus string

const (
	ValetExpected  ValetStatus = "expected"
	ValetParked    ValetStatus = "parked"
	ValetRequested ValetStatus = "requested"
	ValetFetching  ValetStatus = "fetching"
	ValetReady     ValetStatus = "ready"
	ValetRetrieved ValetStatus = "retrieved"
)

func (s ValetStatus) Valid() bool {
	switch s {
	case ValetExpected, ValetParked, ValetRequested, ValetFetching, ValetReady, ValetRetrieved:
		return true
	}
	return false
}

// InQueue reports whether the car is somewhere between request and hand-over.
func (s ValetStatus) InQueue() bool {
	return s == ValetRequested || s == ValetFetching || s == ValetReady
}

// OccupiesLot reports whether the car takes a slot in the parking lot.
func (s ValetStatus) OccupiesLot() bool {
	return s == ValetParked || s.InQueue()
}

const (
	PriorityNormal = 0
	PriorityVIP    = 100
)

type ValetRecord struct {
	bun.BaseModel `bun:"table:valet_records"`

	ID                   string      `bun:"id,pk" json:"id"`
	RegistrationID       string      `bun:"registration_id,unique,notnull" json:"registrationId"`
	SessionID            string      `bun:"session_id,notnull" json:"sessionId"`
	GuestName            string      `bun:"guest_name,notnull" json:"guestName"`
	GuestPhone           string      `bun:"guest_phone,nullzero" json:"guestPhone,omitempty"`
	TicketNumber         int         `bun:"ticket_number,nullzero" json:"ticketNumber,omitempty"`
	TrackingToken        string      `bun:"tracking_token,unique,nullzero" json:"trackingToken,omitempty"`
	VehicleMake          string      `bun:"vehicle_make,nullzero" json:"vehicleMake,omitempty"`
	VehicleModel         string      `bun:"vehicle_model,nullzero" json:"vehicleModel,omitempty"`
	VehicleColor         string      `bun:"vehicle_color,nullzero" json:"vehicleColor,omitempty"`
	VehiclePlate         string      `bun:"vehicle_plate,nullzero" json:"vehiclePlate,omitempty"`
	ParkingSlot          string      `bun:"parking_slot,nullzero" json:"parkingSlot,omitempty"`
	Status               ValetStatus `bun:"status,notnull" json:"status"`
	IsVIP                bool        `bun:"is_vip,notnull" json:"isVip"`
	RetrievalPriority    int         `bun:"retrieval_priority,notnull" json:"retrievalPriority"`
	ParkedAt             *time.Time  `bun:"parked_at,nullzero" json:"parkedAt,omitempty"`
	RetrievalRequestedAt *time.Time  `bun:"retrieval_requested_at,nullzero" json:"retrievalRequestedAt,omitempty"`
	FetchingStartedAt    *time.Time  `bun:"fetching_started_at,nullzero" json:"fetchingStartedAt,omitempty"`
	VehicleReadyAt       *time.Time  `bun:"vehicle_ready_at,nullzero" json:"vehicleReadyAt,omitempty"`
	RetrievedAt          *time.Time  `bun:"retrieved_at,nullzero" json:"retrievedAt,omitempty"`
	ParkedByEmployeeID   string      `bun:"parked_by_employee_id,nullzero" json:"parkedByEmployeeId,omitempty"`
	LastAdminActionAt    *time.Time  `bun:"last_admin_action_at,nullzero" json:"lastAdminActionAt,omitempty"`
	LastAdminActionBy    string      `bun:"last_admin_action_by,nullzero" json:"lastAdminActionBy,omitempty"`
	LastAdminActionType  string      `bun:"last_admin_action_type,nullzero" json:"lastAdminActionType,omitempty"`
	LastAdminActionNote  string      `bun:"last_admin_action_note,nullzero" json:"lastAdminActionNote,omitempty"`
	CreatedAt            time.Time   `bun:"created_at,notnull" json:"createdAt"`

	Session      *Session      `bun:"rel:belongs-to,join:session_id=id" json:"session,omitempty"`
	Registration *Registration `bun:"rel:belongs-to,join:registration_id=id" json:"-"`
}

// VehicleDescription is the "color make model" line used in notifications.
func (r *ValetRecord) VehicleDescription() string {
	out := ""
	for _, part := range []string{r.VehicleColor, r.VehicleMake, r.VehicleModel} {
		if part == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += part
	}
	return out
}

type ValetEmployee struct {
	bun.BaseModel `bun:"table:valet_employees"`

	ID           string    `bun:"id,pk" json:"id"`
	Name         string    `bun:"name,notnull" json:"name"`
	Username     string    `bun:"username,unique,notnull" json:"username"`
	PasswordHash string    `bun:"password_hash,notnull" json:"-"`
	Phone        string    `bun:"phone,nullzero" json:"phone,omitempty"`
	IsActive     bool      `bun:"is_active,notnull" json:"isActive"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"createdAt"`
}

type ValetAssignment struct {
	bun.BaseModel `bun:"table:valet_assignments"`

	ID         string    `bun:"id,pk" json:"id"`
	EmployeeID string    `bun:"employee_id,notnull,unique:employee_session" json:"employeeId"`
	SessionID  string    `bun:"session_id,notnull,unique:employee_session" json:"sessionId"`
	CreatedAt  time.Time `bun:"created_at,notnull" json:"createdAt"`

	Employee *ValetEmployee `bun:"rel:belongs-to,join:employee_id=id" json:"employee,omitempty"`
	Session  *Session       `bun:"rel:belongs-to,join:session_id=id" json:"session,omitempty"`
}
