package httpgin

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/tixmarket/internal/auth"
	"github.com/kirinyoku/tixmarket/internal/domain"
	"github.com/kirinyoku/tixmarket/internal/service/catalog"
	"github.com/kirinyoku/tixmarket/internal/service/checkin"
	"github.com/kirinyoku/tixmarket/internal/service/purchase"
	"github.com/kirinyoku/tixmarket/internal/service/refund"
	"github.com/kirinyoku/tixmarket/internal/service/sales"
	"github.com/kirinyoku/tixmarket/internal/service/users"
)

type ErrorResponse struct {
	Code        string            `json:"code"`
	Error       string            `json:"error"`
	Remaining   *int              `json:"remaining,omitempty"`
	CheckedInAt string            `json:"checked_in_at,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
}

type errorMapping struct {
	target error
	status int
	code   string
	msg    string
}

// mappings are checked in order; the first errors.Is match wins.
var mappings = []errorMapping{
	{auth.ErrMissingToken, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required"},
	{auth.ErrInvalidToken, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token"},

	{purchase.ErrInvalidCart, http.StatusBadRequest, "INVALID_CART", ""},
	{purchase.ErrEventUnavailable, http.StatusUnprocessableEntity, "EVENT_UNAVAILABLE", "event is not available for purchase"},
	{purchase.ErrUnknownTicketType, http.StatusUnprocessableEntity, "UNKNOWN_TICKET_TYPE", ""},
	{purchase.ErrInvalidQuantity, http.StatusUnprocessableEntity, "INVALID_QUANTITY", ""},
	{purchase.ErrCapacityExceeded, http.StatusConflict, "CAPACITY_EXCEEDED", ""},
	{purchase.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED", "too many purchase attempts"},

	{checkin.ErrMalformedID, http.StatusBadRequest, "MALFORMED_ID", "malformed ticket or event id"},
	{checkin.ErrTicketNotFound, http.StatusNotFound, "TICKET_NOT_FOUND", "ticket not found"},
	{checkin.ErrEventMismatch, http.StatusBadRequest, "EVENT_MISMATCH", "ticket is not for this event"},
	{checkin.ErrAlreadyRedeemed, http.StatusConflict, "ALREADY_REDEEMED", "ticket already checked in"},
	{checkin.ErrTicketRefunded, http.StatusConflict, "TICKET_REFUNDED", "ticket has been refunded"},
	{checkin.ErrEventNotFound, http.StatusNotFound, "EVENT_NOT_FOUND", "event not found"},

	{refund.ErrMalformedID, http.StatusBadRequest, "MALFORMED_ID", "malformed ticket id"},
	{refund.ErrTicketNotFound, http.StatusNotFound, "TICKET_NOT_FOUND", "ticket not found"},
	{refund.ErrAlreadyRefunded, http.StatusConflict, "ALREADY_REFUNDED", "ticket already refunded"},
	{refund.ErrEventNotFound, http.StatusNotFound, "EVENT_NOT_FOUND", "event not found"},
	{refund.ErrNothingToRefund, http.StatusConflict, "NOTHING_TO_REFUND", "no active tickets to refund"},

	{catalog.ErrEventNotFound, http.StatusNotFound, "EVENT_NOT_FOUND", "event not found"},
	{catalog.ErrInvalidEvent, http.StatusBadRequest, "INVALID_EVENT", "invalid event"},
	{catalog.ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION", "event has already been reviewed"},
	{catalog.ErrCapacityBelowSold, http.StatusConflict, "CAPACITY_BELOW_SOLD", "ticket count is below tickets already sold"},
	{catalog.ErrEventHasActiveTickets, http.StatusConflict, "EVENT_HAS_ACTIVE_TICKETS", "refund active tickets before deleting the event"},

	{users.ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND", "user not found"},
	{users.ErrNotAdmin, http.StatusForbidden, "FORBIDDEN", "admin role required"},
	{users.ErrSelfRoleChange, http.StatusForbidden, "SELF_ROLE_CHANGE", "cannot change your own role"},
	{users.ErrInvalidRole, http.StatusBadRequest, "INVALID_ROLE", "role must be user or admin"},
	{users.ErrEmailTaken, http.StatusConflict, "EMAIL_TAKEN", "email already registered"},
	{users.ErrInvalidUser, http.StatusBadRequest, "INVALID_USER", "invalid user"},

	{sales.ErrTicketNotFound, http.StatusNotFound, "TICKET_NOT_FOUND", "ticket not found"},
	{sales.ErrTicketRefunded, http.StatusConflict, "TICKET_REFUNDED", "ticket has been refunded"},
}

// respondErr writes the error body for err. Errors no mapping knows are
// storage failures: logged in full, reported without detail.
func respondErr(c *gin.Context, log *slog.Logger, err error) {
	for _, m := range mappings {
		if !errors.Is(err, m.target) {
			continue
		}

		body := ErrorResponse{Code: m.code, Error: m.msg}
		if body.Error == "" {
			body.Error = detail(err)
		}
		decorate(c, err, &body)

		_ = c.Error(err).SetType(gin.ErrorTypePublic)
		c.AbortWithStatusJSON(m.status, body)
		return
	}

	reqID, _ := c.Get(requestIDKey)
	log.ErrorContext(c.Request.Context(), "storage failure",
		slog.Any("request_id", reqID),
		slog.String("route", c.FullPath()),
		slog.String("error", err.Error()),
	)

	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
		Code:  "STORAGE_FAILURE",
		Error: "internal error, try again later",
	})
}

// decorate copies typed error details into the response.
func decorate(c *gin.Context, err error, body *ErrorResponse) {
	var capErr *purchase.CapacityExceededError
	if errors.As(err, &capErr) {
		remaining := capErr.Remaining
		body.Remaining = &remaining
	}

	var redeemed *checkin.AlreadyRedeemedError
	if errors.As(err, &redeemed) && !redeemed.CheckedInAt.IsZero() {
		body.CheckedInAt = redeemed.CheckedInAt.UTC().Format(time.RFC3339)
	}

	var limited *purchase.RateLimitedError
	if errors.As(err, &limited) {
		secs := int(limited.RetryAfter.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.Itoa(secs))
	}

	var (
		cart  *purchase.InvalidCartError
		event *catalog.InvalidEventError
		verr  *domain.ValidationError
	)
	switch {
	case errors.As(err, &cart):
		verr = cart.Fields
	case errors.As(err, &event):
		verr = event.Fields
	default:
		_ = errors.As(err, &verr)
	}
	if verr.HasErrors() {
		body.Fields = verr.FieldErrors
	}
}

// detail is the message of the innermost typed error, without the op chain.
func detail(err error) string {
	var (
		cart   *purchase.InvalidCartError
		tt     *purchase.UnknownTicketTypeError
		qty    *purchase.InvalidQuantityError
		capErr *purchase.CapacityExceededError
	)

	switch {
	case errors.As(err, &cart):
		return cart.Error()
	case errors.As(err, &tt):
		return tt.Error()
	case errors.As(err, &qty):
		return qty.Error()
	case errors.As(err, &capErr):
		return capErr.Error()
	}

	return err.Error()
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Code: "BAD_REQUEST", Error: msg})
}
