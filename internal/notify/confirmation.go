package notify

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tixmarket/internal/domain"
	"github.com/kirinyoku/tixmarket/internal/qr"
	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindPurchaseConfirmed Kind = "purchase_confirmed"
	KindTicketResent      Kind = "ticket_resent"
)

type TicketLine struct {
	TicketID   uuid.UUID       `json:"ticketId"`
	EventID    uuid.UUID       `json:"eventId"`
	EventName  string          `json:"eventName"`
	EventDate  time.Time       `json:"eventDate"`
	EventTime  string          `json:"eventTime"`
	TicketType string          `json:"ticketType"`
	Price      decimal.Decimal `json:"price"`
	QRPayload  string          `json:"qrPayload"`
	QRDataURL  string          `json:"qrDataUrl,omitempty"`
}

// Confirmation is everything a delivery channel needs to tell a customer about
// their tickets. Guests get inline QR images because they have no account to
// look the tickets up in.
type Confirmation struct {
	Kind      Kind         `json:"kind"`
	Recipient string       `json:"recipient"`
	FirstName string       `json:"firstName"`
	Guest     bool         `json:"guest"`
	Tickets   []TicketLine `json:"tickets"`
	CreatedAt time.Time    `json:"createdAt"`
}

// NewConfirmation renders issued tickets for customer. QR images are embedded
// when withQR is true; the payload is always present.
func NewConfirmation(
	kind Kind,
	customer domain.Customer,
	guest bool,
	issued []domain.IssuedTicket,
	withQR bool,
) (Confirmation, error) {
	c := Confirmation{
		Kind:      kind,
		Recipient: customer.Email,
		FirstName: customer.FirstName,
		Guest:     guest,
		Tickets:   make([]TicketLine, 0, len(issued)),
		CreatedAt: time.Now().UTC(),
	}

	for _, it := range issued {
		line := TicketLine{
			TicketID:   it.TicketID,
			EventID:    it.EventID,
			EventName:  it.EventName,
			EventDate:  it.EventDate,
			EventTime:  FormatTime12h(it.EventTime),
			TicketType: it.TicketType,
			Price:      it.Price,
			QRPayload:  qr.Payload(it.TicketID),
		}
		if withQR {
			url, err := qr.DataURL(it.TicketID)
			if err != nil {
				return Confirmation{}, err
			}
			line.QRDataURL = url
		}
		c.Tickets = append(c.Tickets, line)
	}

	return c, nil
}

// FormatTime12h turns "19:30" into "7:30 PM". Input it cannot read is
// returned unchanged.
func FormatTime12h(hhmm string) string {
	if hhmm == "" {
		return ""
	}

	hour, minute, ok := strings.Cut(hhmm, ":")
	if !ok {
		return hhmm
	}

	h, err := strconv.Atoi(hour)
	if err != nil || h < 0 || h > 23 {
		return hhmm
	}

	suffix := "AM"
	if h >= 12 {
		suffix = "PM"
	}
	h %= 12
	if h == 0 {
		h = 12
	}

	return strconv.Itoa(h) + ":" + minute + " " + suffix
}
