package domain

import "github.com/google/uuid"

// Contact is the customer information supplied with a purchase.
type Contact struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required"`
}

func (c Contact) Customer() Customer {
	return Customer{FirstName: c.FirstName, LastName: c.LastName, Email: c.Email}
}

// Purchaser is either a Guest or a Registered customer. It is resolved once
// when a purchase starts and copied onto every ticket it creates.
type Purchaser interface {
	Contact() Contact
	UserID() (uuid.UUID, bool)
	purchaser()
}

type Guest struct {
	Info Contact
}

func (g Guest) Contact() Contact          { return g.Info }
func (g Guest) UserID() (uuid.UUID, bool) { return uuid.Nil, false }
func (Guest) purchaser()                  {}

type Registered struct {
	User uuid.UUID
	Info Contact
}

func (r Registered) Contact() Contact          { return r.Info }
func (r Registered) UserID() (uuid.UUID, bool) { return r.User, true }
func (Registered) purchaser()                  {}

// NewPurchaser picks the Registered variant when a user id is present.
func NewPurchaser(c Contact, userID *uuid.UUID) Purchaser {
	if userID != nil && *userID != uuid.Nil {
		return Registered{User: *userID, Info: c}
	}
	return Guest{Info: c}
}

type TicketLine struct {
	TicketType string `json:"ticketType"`
	Quantity   int    `json:"quantity"`
}

type PurchaseGroup struct {
	EventID uuid.UUID    `json:"eventId"`
	Lines   []TicketLine `json:"selectedTickets"`
}

// Cart is one purchase invocation. All groups commit together or not at all.
type Cart struct {
	Groups []PurchaseGroup
	Buyer  Purchaser
}
