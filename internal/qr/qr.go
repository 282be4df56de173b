// Package qr encodes ticket ids into the QR payload printed on confirmations
// and decodes what the entrance scanner reads back.
package qr

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
)

const size = 150

var ErrMalformedPayload = errors.New("malformed qr payload")

// Payload is the string encoded in a ticket's QR code: the canonical ticket id.
func Payload(ticketID uuid.UUID) string {
	return ticketID.String()
}

// ParsePayload accepts what a scanner produced. Surrounding whitespace is
// ignored; anything that is not a ticket id is ErrMalformedPayload.
func ParsePayload(raw string) (uuid.UUID, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return uuid.Nil, ErrMalformedPayload
	}

	id, err := uuid.Parse(s)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrMalformedPayload, s)
	}

	return id, nil
}

// PNG renders the payload for ticketID.
func PNG(ticketID uuid.UUID) ([]byte, error) {
	png, err := qrcode.Encode(Payload(ticketID), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("qr.PNG: %w", err)
	}
	return png, nil
}

// DataURL renders the payload as an inline image for HTML mail bodies.
func DataURL(ticketID uuid.UUID) (string, error) {
	png, err := PNG(ticketID)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
