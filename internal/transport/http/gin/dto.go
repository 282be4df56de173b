package httpgin

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tixmarket/internal/domain"
	"github.com/kirinyoku/tixmarket/internal/service/catalog"
	"github.com/shopspring/decimal"
)

type PurchaseItem struct {
	EventID         string              `json:"eventId" binding:"required"`
	SelectedTickets []domain.TicketLine `json:"selectedTickets"`
}

type PurchaseRequest struct {
	Purchases    []PurchaseItem `json:"purchases" binding:"required"`
	CustomerInfo domain.Contact `json:"customerInfo"`
}

// groups converts the request body to purchase groups. Event ids are the
// only thing checked here; the purchase engine validates the rest.
func (r PurchaseRequest) groups() ([]domain.PurchaseGroup, error) {
	out := make([]domain.PurchaseGroup, 0, len(r.Purchases))
	for i, p := range r.Purchases {
		id, err := uuid.Parse(strings.TrimSpace(p.EventID))
		if err != nil {
			return nil, fmt.Errorf("purchases[%d].eventId is not a valid id", i)
		}
		out = append(out, domain.PurchaseGroup{EventID: id, Lines: p.SelectedTickets})
	}
	return out, nil
}

type PurchaseResponse struct {
	Message  string                `json:"message"`
	Tickets  []domain.IssuedTicket `json:"tickets"`
	Subtotal decimal.Decimal       `json:"subtotal"`
}

type EventRequest struct {
	Name        string              `json:"eventName"`
	Description string              `json:"eventDescription"`
	Date        string              `json:"eventDate" binding:"required"`
	Time        string              `json:"eventTime"`
	Location    string              `json:"eventLocation"`
	Promoter    domain.Promoter     `json:"promoter"`
	Tickets     []domain.TicketType `json:"tickets"`
	TicketCount int                 `json:"ticketCount"`
}

func (r EventRequest) input() (catalog.EventInput, error) {
	date, err := parseDate(r.Date)
	if err != nil {
		return catalog.EventInput{}, err
	}

	return catalog.EventInput{
		Name:        r.Name,
		Description: r.Description,
		Date:        date,
		Time:        r.Time,
		Location:    r.Location,
		Promoter:    r.Promoter,
		TicketTypes: r.Tickets,
		TicketCount: r.TicketCount,
	}, nil
}

// parseDate accepts a calendar date (2006-01-02) or an RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("eventDate must be YYYY-MM-DD or RFC 3339")
	}
	return t.UTC(), nil
}

type StatusRequest struct {
	Status domain.EventStatus `json:"status" binding:"required,oneof=approved denied"`
}

type CheckInRequest struct {
	TicketID string `json:"ticketId" binding:"required"`
	EventID  string `json:"eventId" binding:"required"`
}

type CheckInResponse struct {
	Message string        `json:"message"`
	Ticket  domain.Ticket `json:"ticket"`
}

type RoleRequest struct {
	Role domain.Role `json:"role" binding:"required"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ResendResponse struct {
	Message   string `json:"message"`
	Recipient string `json:"recipient"`
}
