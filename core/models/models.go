package models

import (
	"strings"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank orders priorities for queue display: urgent first.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

func (p Priority) Valid() bool { return p.Rank() > 0 }

func ParsePriority(raw string) Priority {
	return Priority(strings.ToLower(strings.TrimSpace(raw)))
}

const (
	EntityTypeVisitor     = "visitor"
	EntityTypeAppointment = "appointment"

	NotificationTypeVisitor     = "visitor"
	NotificationTypeAppointment = "appointment"

	ActivityTypeVisitor     = "visitor"
	ActivityTypeAppointment = "appointment"
	ActivityTypeSystem      = "system"
)

const (
	ActionCreated          = "created"
	ActionUpdated          = "updated"
	ActionRouted           = "routed"
	ActionCompleted        = "completed"
	ActionCancelled        = "cancelled"
	ActionDeleted          = "deleted"
	ActionNotificationSent = "notification_sent"
)

// Actor identifies who performed an audited action.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var (
	ActorAutoRouter          = Actor{ID: "system", Name: "Auto-Router"}
	ActorNotificationService = Actor{ID: "system", Name: "Notification Service"}
	DefaultReceptionist      = Actor{ID: "receptionist-1", Name: "Receptionist"}
)

// Ticket is a visitor ticket. ID and TicketNumber never change after creation.
type Ticket struct {
	ID                 string     `json:"id"`
	TicketNumber       string     `json:"ticket_number"`
	Name               string     `json:"name"`
	Phone              string     `json:"phone"`
	Email              string     `json:"email,omitempty"`
	Company            string     `json:"company,omitempty"`
	PurposeOfVisit     string     `json:"purpose_of_visit"`
	Priority           Priority   `json:"priority"`
	Notes              string     `json:"notes,omitempty"`
	HostStaffID        string     `json:"host_staff_id,omitempty"`
	HostStaffName      string     `json:"host_staff_name,omitempty"`
	Status             string     `json:"status"`
	SatisfactionRating *int       `json:"satisfaction_rating,omitempty"`
	CheckInTime        time.Time  `json:"check_in_time"`
	CheckOutTime       *time.Time `json:"check_out_time,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	Version            int64      `json:"version"`
}

func (t Ticket) Routed() bool { return t.HostStaffID != "" }

// TicketDraft carries the visitor fields collected at check-in.
type TicketDraft struct {
	Name           string   `json:"name" validate:"required,max=200"`
	Phone          string   `json:"phone" validate:"required,max=50"`
	Email          string   `json:"email,omitempty" validate:"omitempty,email"`
	Company        string   `json:"company,omitempty" validate:"max=200"`
	PurposeOfVisit string   `json:"purpose_of_visit" validate:"required,max=1000"`
	Priority       Priority `json:"priority,omitempty" validate:"omitempty,oneof=low normal high urgent"`
	Notes          string   `json:"notes,omitempty"`
}

// TicketPatch is a partial ticket update. Nil fields are left untouched and
// identity fields are not representable. ExpectedVersion, when set, turns the
// update into a compare-and-swap.
type TicketPatch struct {
	Status             *string
	Priority           *Priority
	Notes              *string
	HostStaffID        *string
	HostStaffName      *string
	SatisfactionRating *int
	CheckOutTime       *time.Time
	ExpectedVersion    *int64
}

// Apply merges the patch into t. Store implementations call it before
// refreshing UpdatedAt and Version.
func (p TicketPatch) Apply(t Ticket) Ticket {
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	if p.HostStaffID != nil {
		t.HostStaffID = *p.HostStaffID
	}
	if p.HostStaffName != nil {
		t.HostStaffName = *p.HostStaffName
	}
	if p.SatisfactionRating != nil {
		rating := *p.SatisfactionRating
		t.SatisfactionRating = &rating
	}
	if p.CheckOutTime != nil {
		out := *p.CheckOutTime
		t.CheckOutTime = &out
	}
	return t
}

// Appointment is a booked visit with one staff member. ID and
// AppointmentNumber never change after creation.
type Appointment struct {
	ID                string    `json:"id"`
	AppointmentNumber string    `json:"appointment_number"`
	VisitorName       string    `json:"visitor_name"`
	VisitorPhone      string    `json:"visitor_phone"`
	VisitorEmail      string    `json:"visitor_email,omitempty"`
	VisitorCompany    string    `json:"visitor_company,omitempty"`
	StaffID           string    `json:"staff_id"`
	StaffName         string    `json:"staff_name"`
	ScheduledAt       time.Time `json:"scheduled_at"`
	DurationMinutes   int       `json:"duration_minutes"`
	Purpose           string    `json:"purpose"`
	Location          string    `json:"location,omitempty"`
	MeetingRoom       string    `json:"meeting_room,omitempty"`
	Status            string    `json:"status"`
	Priority          Priority  `json:"priority"`
	Notes             string    `json:"notes,omitempty"`
	ReminderSent      bool      `json:"reminder_sent"`
	ConfirmationSent  bool      `json:"confirmation_sent"`
	CreatedBy         string    `json:"created_by"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	Version           int64     `json:"version"`
}

// AppointmentDraft is what the desk collects when booking. A zero
// DurationMinutes means the default slot length.
type AppointmentDraft struct {
	VisitorName     string    `json:"visitor_name" validate:"required,max=200"`
	VisitorPhone    string    `json:"visitor_phone" validate:"required,max=50"`
	VisitorEmail    string    `json:"visitor_email,omitempty" validate:"omitempty,email"`
	VisitorCompany  string    `json:"visitor_company,omitempty" validate:"max=200"`
	StaffID         string    `json:"staff_id" validate:"required"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes,omitempty" validate:"omitempty,min=5,max=480"`
	Purpose         string    `json:"purpose" validate:"required,max=1000"`
	Location        string    `json:"location,omitempty" validate:"max=200"`
	MeetingRoom     string    `json:"meeting_room,omitempty" validate:"max=100"`
	Priority        Priority  `json:"priority,omitempty" validate:"omitempty,oneof=low normal high urgent"`
	Notes           string    `json:"notes,omitempty"`
}

// AppointmentPatch is a partial appointment update with the same nil and
// ExpectedVersion rules as TicketPatch.
type AppointmentPatch struct {
	Status           *string
	ScheduledAt      *time.Time
	DurationMinutes  *int
	Location         *string
	MeetingRoom      *string
	Notes            *string
	ReminderSent     *bool
	ConfirmationSent *bool
	ExpectedVersion  *int64
}

func (p AppointmentPatch) Apply(a Appointment) Appointment {
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.ScheduledAt != nil {
		a.ScheduledAt = *p.ScheduledAt
	}
	if p.DurationMinutes != nil {
		a.DurationMinutes = *p.DurationMinutes
	}
	if p.Location != nil {
		a.Location = *p.Location
	}
	if p.MeetingRoom != nil {
		a.MeetingRoom = *p.MeetingRoom
	}
	if p.Notes != nil {
		a.Notes = *p.Notes
	}
	if p.ReminderSent != nil {
		a.ReminderSent = *p.ReminderSent
	}
	if p.ConfirmationSent != nil {
		a.ConfirmationSent = *p.ConfirmationSent
	}
	return a
}

type NotificationPreferences struct {
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
	Push  bool `json:"push"`
}

type Staff struct {
	ID                      string                  `json:"id"`
	Name                    string                  `json:"name"`
	Email                   string                  `json:"email,omitempty"`
	Phone                   string                  `json:"phone,omitempty"`
	Department              string                  `json:"department"`
	Position                string                  `json:"position"`
	IsAvailable             bool                    `json:"is_available"`
	NotificationPreferences NotificationPreferences `json:"notification_preferences"`
}

type Notification struct {
	ID                string    `json:"id"`
	Type              string    `json:"type"`
	Title             string    `json:"title"`
	Message           string    `json:"message"`
	RecipientID       string    `json:"recipient_id"`
	RecipientName     string    `json:"recipient_name"`
	RelatedEntityID   string    `json:"related_entity_id"`
	RelatedEntityType string    `json:"related_entity_type"`
	Priority          Priority  `json:"priority"`
	IsRead            bool      `json:"is_read"`
	CreatedAt         time.Time `json:"created_at"`
}

type ActivityLogEntry struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	Action          string    `json:"action"`
	Description     string    `json:"description"`
	EntityID        string    `json:"entity_id"`
	EntityType      string    `json:"entity_type"`
	PerformedBy     string    `json:"performed_by"`
	PerformedByName string    `json:"performed_by_name"`
	Timestamp       time.Time `json:"timestamp"`
}

func StringPtr(v string) *string { return &v }

func Int64Ptr(v int64) *int64 { return &v }

func BoolPtr(v bool) *bool { return &v }

func TimePtr(v time.Time) *time.Time { return &v }
