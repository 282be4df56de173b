package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventStatus string

const (
	EventPending  EventStatus = "pending"
	EventApproved EventStatus = "approved"
	EventDenied   EventStatus = "denied"
)

type TicketStatus string

const (
	TicketActive   TicketStatus = "active"
	TicketRefunded TicketStatus = "refunded"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Promoter is the contact who submitted an event.
type Promoter struct {
	FirstName    string `json:"firstName" validate:"required"`
	LastName     string `json:"lastName" validate:"required"`
	BusinessName string `json:"businessName"`
	Phone        string `json:"phone"`
}

type TicketType struct {
	Label    string          `json:"type" validate:"required"`
	Price    decimal.Decimal `json:"price"`
	Includes string          `json:"includes"`
}

// Event is a promoter submission. Only approved events are listed publicly
// and accept purchases.
type Event struct {
	ID          uuid.UUID    `json:"id"`
	Name        string       `json:"eventName"`
	Description string       `json:"eventDescription"`
	Date        time.Time    `json:"eventDate"`
	Time        string       `json:"eventTime"`
	Location    string       `json:"eventLocation"`
	Promoter    Promoter     `json:"promoter"`
	Status      EventStatus  `json:"status"`
	SubmittedAt time.Time    `json:"submittedAt"`
	TicketTypes []TicketType `json:"tickets"`
	TicketCount int          `json:"ticketCount"`
	TicketsSold int          `json:"ticketsSold"`
}

// FindTicketType resolves a ticket type by its label within the event.
func (e *Event) FindTicketType(label string) (TicketType, bool) {
	for _, tt := range e.TicketTypes {
		if tt.Label == label {
			return tt, true
		}
	}
	return TicketType{}, false
}

// Remaining is the number of tickets that can still be sold.
func (e *Event) Remaining() int {
	if r := e.TicketCount - e.TicketsSold; r > 0 {
		return r
	}
	return 0
}

func (e *Event) Purchasable() bool {
	return e.Status == EventApproved
}

// Customer is the contact snapshot stored on every ticket, registered or not.
type Customer struct {
	FirstName string `json:"customerFirstName"`
	LastName  string `json:"customerLastName"`
	Email     string `json:"customerEmail"`
}

// Ticket is one ledger row. EventID and Price never change after insert.
type Ticket struct {
	ID          uuid.UUID       `json:"id"`
	EventID     uuid.UUID       `json:"eventId"`
	TicketType  string          `json:"ticketType"`
	Price       decimal.Decimal `json:"price"`
	PurchasedAt time.Time       `json:"purchaseDate"`
	Status      TicketStatus    `json:"status"`
	UserID      *uuid.UUID      `json:"userId"`
	Customer    Customer        `json:"customer"`
	IsCheckedIn bool            `json:"isCheckedIn"`
	CheckedInAt *time.Time      `json:"checkedInAt"`
	CheckedInBy *uuid.UUID      `json:"checkedInBy"`
}

func (t *Ticket) Active() bool {
	return t.Status == TicketActive
}

type User struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IssuedTicket carries what a confirmation needs to render one ticket.
type IssuedTicket struct {
	TicketID   uuid.UUID       `json:"ticketId"`
	EventID    uuid.UUID       `json:"eventId"`
	EventName  string          `json:"eventName"`
	EventDate  time.Time       `json:"eventDate"`
	EventTime  string          `json:"eventTime"`
	TicketType string          `json:"ticketType"`
	Price      decimal.Decimal `json:"price"`
}

// NewIssuedTicket joins a ledger row with its event.
func NewIssuedTicket(t Ticket, e Event) IssuedTicket {
	return IssuedTicket{
		TicketID:   t.ID,
		EventID:    e.ID,
		EventName:  e.Name,
		EventDate:  e.Date,
		EventTime:  e.Time,
		TicketType: t.TicketType,
		Price:      t.Price,
	}
}

type CheckInStats struct {
	EventName      string `json:"eventName"`
	TotalTickets   int    `json:"totalTickets"`
	CheckedInCount int    `json:"checkedInCount"`
}

// Sale is a ledger row as shown on the admin sales table.
type Sale struct {
	Ticket
	EventName string `json:"eventName"`
}

type SalesFilter struct {
	Search  string
	EventID *uuid.UUID
	// Since excludes tickets of events dated before it.
	Since time.Time
}
