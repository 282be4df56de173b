package httpgin

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/tixmarket/internal/service"
	"github.com/kirinyoku/tixmarket/internal/service/refund"
	"github.com/kirinyoku/tixmarket/internal/service/users"
)

type RefundResponse struct {
	Message string `json:"message"`
	*refund.Result
}

type BulkRefundResponse struct {
	Message string `json:"message"`
	*refund.BulkResult
}

func staffID(c *gin.Context) uuid.UUID {
	id, _ := identityFrom(c)
	return id.UserID
}

// @Summary  Check a ticket in at the entrance
// @Tags     checkin
// @Security BearerAuth
// @Param    req  body  CheckInRequest  true  "scanned ticket and event"
// @Success  200  {object}  CheckInResponse
// @Failure  400  {object}  ErrorResponse  "malformed id / wrong event"
// @Failure  404  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse  "already redeemed / refunded"
// @Router   /api/admin/checkin [post]
func handleCheckIn(svcs *service.Services, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CheckInRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		t, err := svcs.CheckIn.CheckIn(c.Request.Context(), req.TicketID, req.EventID, staffID(c))
		if err != nil {
			respondErr(c, log, err)
			return
		}
		c.JSON(http.StatusOK, CheckInResponse{Message: "Check-in successful", Ticket: *t})
	}
}

// @Summary  Events open for check-in
// @Tags     checkin
// @Security BearerAuth
// @Success  200  {array}  domain.Event
// @Router   /api/admin/checkin/events [get]
func handleManageableEvents(svcs *service.Services, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		events, err := svcs.CheckIn.ManageableEvents(c.Request.Context())
		if err != nil {
			respondErr(c, log, err)
			return
		}
		c.JSON(http.StatusOK, orEmpty(events))
	}
}

// @Summary  Check-in progress for an event
// @Tags     checkin
// @Security BearerAuth
// @Param    eventId  path  string  true  "Event ID (uuid)"
// @Success  200  {object}  domain.CheckInStats
// @Failure  404  {object}  ErrorResponse
// @Router   /api/admin/checkin/stats/{eventId} [get]
func handleCheckInStats(svcs *service.Services, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "eventId")
		if !ok {
			return
		}
		stats, err := svcs.CheckIn.Stats(c.Request.Context(), id)
		if err != nil {
			respondErr(c, log, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

// @Summary  All submissions, newest first
// @Tags     submissions
// @Security BearerAuth
// @Success  200  {array}  domain.Event
// @Router   /api/admin/submissions [get]
func handleListSubmissions(svcs *service.Services, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		events, err := svcs.Catalog.ListAll(c.Request.Context())
		if err != nil {
			respondErr(c, log, err)
			return
		}
		c.JSON(http.StatusOK, orEmpty(events))
	}
}

// @Summary  Edit an event
// @Tags     submissions
// @Security BearerAuth
// @Param    id   path  string        true  "Event ID (uuid)"
// @Param    req  body  EventRequest  true  "new details"
// @Success  200  {object}  domain.Event
// @Failure  409  {object}  ErrorResponse  "capacity below sold"
// @Router   /api/admin/submissions/{id} [put]
func handleUpdateEvent(svcs *service.Services, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req EventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		in, err := req.input()
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		e, err := svcs.Catalog.Update(c.Request.Context(), id, in)
		if err != nil {
			respondErr(c, log, err)
			return
		}
		c.JSON(http.StatusOK, e)
	}
}

// @Summary  Approve or deny a pending event
// @Tags     submissions
// @Security BearerAuth
// @Param    id   path  string         true  "Event ID (uuid)"
// @Param    req  body  StatusRequest  true  "approved or denied"
// @Success  200  {object}  MessageResponse
// @Failure  409  {object}  ErrorResponse  "already reviewed"
// @Router   /api/admin/submissions/{id}/status [patch]
func handleSetStatus(svcs *service.Services, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req StatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := svcs.Catalog.SetStatus(c.Request.Context(), id, req.Status); err != nil {
			respondErr(c, log, err)
			return
		}
		c.JSON(http.StatusOK, MessageResponse{Message: "Event " + string(req.Status)})
	}
}

// @Summary  Delete an event without active tickets
// @Tags     submissions
// @Security BearerAuth
// @Param    id  path  string  true  "Event ID (uuid)"
// @Success  200  {object}  MessageResponse
// @Failure  409  {object}  ErrorResponse  "active tickets remain"
// @Router   /api/admin/submissions/{id} [delete]
func handleDeleteEvent(svcs *service.Services, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		if err := svcs.Catalog.Delete(c.Request.Context(), id); err != nil {
			respondErr(c, log, err)
			return
		}
		c.JSON(http.StatusOK, MessageResponse{Message: "Event deleted"})
	}
}

// @Summary  Recompute tickets sold from the ledger
// @Tags     submissions
// @Security BearerAuth
// @Param    id  path  string  true  "Event ID (uuid)"
// @Success  200  {object}  catalog.Reconciliation
// @Router   /api/admin/submissions/{id}/reconcile [post]
func handleReconcile(svcs *service.Services, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		r, err := svcs.Catalog.Reconcile(c.Request.Context(), id)
		if err != nil {
			respondErr(c, log, err)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

// @Summary  Sales table
// @Tags     sales
// @Security BearerAuth
// @Param    search   query  string  false  "ticket id, customer name or email"
// @Param    eventId  query  string  false  "Event ID (uuid)"
// @Success  200  {array}  domain.Sale
// @Router   /api/admin/sales [get]
func handleListSales(svcs *service.Services, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var eventID *uuid.UUID
		if raw := c.Query("eventId"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				badRequest(c, "invalid eventId")
				return
			}
			eventID = &id
		}
		rows, err := svcs.Sales.List(c.Request.Context(), c.Query("search"), eventID)
		if err != nil {
			respondErr(c, log, err)
			return
		}
		c.JSON(http.StatusOK, orEmpty(rows))
	}
}

// @Summary  Send a ticket's confirmation again
// @Tags     sales
// @Security BearerAuth
// @Param    ticketId  path  string  true  "Ticket ID (uuid)"
// @Success  202  {object}  ResendResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /api/admin/tickets/{ticketId}/resend [post]
func handleResend(svcs *service.Services, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "ticketId")
		if !ok {
			return
		}
		to, err := svcs.Sales.Resend(c.Request.Context(), id)
		if err != nil {
			respondErr(c, log, err)
			return
		}
		c.JSON(http.StatusAccepted, ResendResponse{Message: "Ticket resent", Recipient: to})
	}
}

// @Summary  Refund one ticket
// @Tags     refunds
// @Security BearerAuth
// @Param    ticketId  path  string  true  "Ticket ID"
// @Success  200  {object}  RefundResponse
// @Failure  404  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse  "already refunded"
// @Router   /api/admin/refunds/tickets/{ticketId} [post]
func handleRefundTicket(svcs *service.Services, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svcs.Refund.Refund(c.Request.Context(), c.Param("ticketId"), staffID(c))
		if err != nil {
			respondErr(c, log, err)
			return
		}
		c.JSON(http.StatusOK, RefundResponse{Message: "Ticket refunded", Result: res})
	}
}

// @Summary  Refund every active ticket of an event
// @Tags     refunds
// @Security BearerAuth
// @Param    eventId  path  string  true  "Event ID (uuid)"
// @Success  200  {object}  BulkRefundResponse
// @Failure  404  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse  "nothing to refund"
// @Router   /api/admin/refunds/events/{eventId} [post]
func handleRefundEvent(svcs *service.Services, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "eventId")
		if !ok {
			return
		}
		res, err := svcs.Refund.RefundEvent(c.Request.Context(), id, staffID(c))
		if err != nil {
			respondErr(c, log, err)
			return
		}
		c.JSON(http.StatusOK, BulkRefundResponse{Message: "Event refunded", BulkResult: res})
	}
}

// @Summary  List users
// @Tags     users
// @Security BearerAuth
// @Success  200  {array}  domain.User
// @Router   /api/admin/users [get]
func handleListUsers(svcs *service.Services, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svcs.Users.List(c.Request.Context())
		if err != nil {
			respondErr(c, log, err)
			return
		}
		c.JSON(http.StatusOK, orEmpty(list))
	}
}

// @Summary  Provision a user record
// @Tags     users
// @Security BearerAuth
// @Param    req  body  users.Input  true  "user"
// @Success  201  {object}  domain.User
// @Failure  409  {object}  ErrorResponse  "email taken"
// @Router   /api/admin/users [post]
func handleCreateUser(svcs *service.Services, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in users.Input
		if err := c.ShouldBindJSON(&in); err != nil {
			badRequest(c, err.Error())
			return
		}
		u, err := svcs.Users.Create(c.Request.Context(), in)
		if err != nil {
			respondErr(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, u)
	}
}

// @Summary  Get a user
// @Tags     users
// @Security BearerAuth
// @Param    id  path  string  true  "User ID (uuid)"
// @Success  200  {object}  domain.User
// @Failure  404  {object}  ErrorResponse
// @Router   /api/admin/users/{id} [get]
func handleGetUser(svcs *service.Services, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		u, err := svcs.Users.Get(c.Request.Context(), id)
		if err != nil {
			respondErr(c, log, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

// @Summary  Change a user's role
// @Tags     users
// @Security BearerAuth
// @Param    id   path  string       true  "User ID (uuid)"
// @Param    req  body  RoleRequest  true  "user or admin"
// @Success  200  {object}  domain.User
// @Failure  403  {object}  ErrorResponse  "own role"
// @Router   /api/admin/users/{id}/role [patch]
func handleSetRole(svcs *service.Services, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req RoleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		u, err := svcs.Users.SetRole(c.Request.Context(), staffID(c), id, req.Role)
		if err != nil {
			respondErr(c, log, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}
