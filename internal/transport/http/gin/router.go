package httpgin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/tixmarket/internal/auth"
	"github.com/kirinyoku/tixmarket/internal/domain"
	"github.com/kirinyoku/tixmarket/internal/metrics"
	redisrepo "github.com/kirinyoku/tixmarket/internal/repository/redis"
	"github.com/kirinyoku/tixmarket/internal/service"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const idemLockTTL = 60 * time.Second

// NewRouter builds the HTTP API. idem may be nil, in which case
// Idempotency-Key headers are ignored.
func NewRouter(
	svcs *service.Services,
	verifier *auth.Verifier,
	idem *redisrepo.IdempotencyStore,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(
		gin.Recovery(),
		LoggingMiddleware(logger),
		RequestIDMiddleware(),
		MetricsMiddleware(),
		CORS(),
		Authenticate(verifier, logger),
	)
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	// Public API
	api.GET("/events", handleListEvents(svcs, logger))
	api.GET("/events/:id", handleGetEvent(svcs, logger))
	api.POST("/submit", handleSubmitEvent(svcs, logger))
	api.POST("/purchase-tickets", handlePurchase(svcs, idem, logger))

	// Signed-in customers
	me := api.Group("/users", RequireAuth(logger))
	{
		me.GET("/profile", handleProfile(svcs, logger))
		me.GET("/tickets", handleMyTickets(svcs, logger))
	}

	admin := api.Group("/admin", RequireAuth(logger), RequireAdmin(svcs.Users, logger))
	{
		admin.POST("/checkin", handleCheckIn(svcs, logger))
		admin.GET("/checkin/events", handleManageableEvents(svcs, logger))
		admin.GET("/checkin/stats/:eventId", handleCheckInStats(svcs, logger))

		admin.GET("/submissions", handleListSubmissions(svcs, logger))
		admin.PUT("/submissions/:id", handleUpdateEvent(svcs, logger))
		admin.PATCH("/submissions/:id/status", handleSetStatus(svcs, logger))
		admin.DELETE("/submissions/:id", handleDeleteEvent(svcs, logger))
		admin.POST("/submissions/:id/reconcile", handleReconcile(svcs, logger))

		admin.GET("/sales", handleListSales(svcs, logger))
		admin.POST("/tickets/:ticketId/resend", handleResend(svcs, logger))

		admin.POST("/refunds/tickets/:ticketId", handleRefundTicket(svcs, logger))
		admin.POST("/refunds/events/:eventId", handleRefundEvent(svcs, logger))

		admin.GET("/users", handleListUsers(svcs, logger))
		admin.POST("/users", handleCreateUser(svcs, logger))
		admin.GET("/users/:id", handleGetUser(svcs, logger))
		admin.PATCH("/users/:id/role", handleSetRole(svcs, logger))
	}

	return r
}

// @Summary  List approved events
// @Tags     events
// @Success  200  {array}   domain.Event
// @Header   200  {string}  ETag  "weak content hash"
// @Router   /api/events [get]
func handleListEvents(svcs *service.Services, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		events, err := svcs.Catalog.ListApproved(c.Request.Context())
		if err != nil {
			respondErr(c, log, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, orEmpty(events), "public, max-age=15")
	}
}

// @Summary  Get an approved event
// @Tags     events
// @Param    id   path  string  true  "Event ID (uuid)"
// @Success  200  {object}  domain.Event
// @Failure  404  {object}  ErrorResponse
// @Router   /api/events/{id} [get]
func handleGetEvent(svcs *service.Services, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		e, err := svcs.Catalog.Get(c.Request.Context(), id)
		if err != nil {
			respondErr(c, log, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, e, "public, max-age=60")
	}
}

// @Summary  Submit an event for review
// @Tags     events
// @Param    req  body  EventRequest  true  "submission"
// @Success  201  {object}  domain.Event
// @Failure  400  {object}  ErrorResponse
// @Router   /api/submit [post]
func handleSubmitEvent(svcs *service.Services, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
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
		e, err := svcs.Catalog.Submit(c.Request.Context(), in)
		if err != nil {
			respondErr(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, e)
	}
}

// @Summary  Purchase tickets (idempotent)
// @Tags     purchase
// @Param    req  body    PurchaseRequest  true  "cart and customer"
// @Param    Idempotency-Key  header  string  false  "replays the first response"
// @Success  201  {object}  PurchaseResponse
// @Failure  400  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse  "capacity exceeded / idem in progress"
// @Failure  422  {object}  ErrorResponse  "unavailable event, unknown type, bad quantity"
// @Failure  429  {object}  ErrorResponse  "rate limited"
// @Router   /api/purchase-tickets [post]
func handlePurchase(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	log *slog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var req PurchaseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		groups, err := req.groups()
		if err != nil {
			badRequest(c, err.Error())
			return
		}

		var userID *uuid.UUID
		if id, ok := identityFrom(c); ok {
			userID = &id.UserID
		}
		cart := domain.Cart{Groups: groups, Buyer: domain.NewPurchaser(req.CustomerInfo, userID)}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemPurchase(callerKey(c), idemKey)

			if replayStored(c, idem, idemStorageKey, idemKey) {
				return
			}

			locked, err := idem.AcquireLock(ctx, idemStorageKey, idemLockTTL)
			if err != nil {
				respondErr(c, log, err)
				return
			}
			if !locked {
				if replayStored(c, idem, idemStorageKey, idemKey) {
					return
				}
				c.Header("Retry-After", "1")
				c.AbortWithStatusJSON(http.StatusConflict, ErrorResponse{
					Code:  "IDEMPOTENCY_IN_PROGRESS",
					Error: "a request with this idempotency key is in progress",
				})
				return
			}
		}

		res, err := svcs.Purchase.Purchase(ctx, cart, "ip:"+c.ClientIP())
		if err != nil {
			if idemStorageKey != "" {
				_ = idem.Release(ctx, idemStorageKey)
			}
			respondErr(c, log, err)
			return
		}

		resp := PurchaseResponse{
			Message:  "Purchase successful",
			Tickets:  res.Tickets,
			Subtotal: res.Subtotal,
		}

		if idemStorageKey != "" {
			b, _ := json.Marshal(resp)
			_ = idem.SaveResult(ctx, idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

func replayStored(c *gin.Context, idem *redisrepo.IdempotencyStore, storageKey, idemKey string) bool {
	payload, ok, _ := idem.GetResult(c.Request.Context(), storageKey)
	if !ok {
		return false
	}
	c.Header("Idempotency-Key", idemKey)
	c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
	return true
}

// @Summary  Current user's profile
// @Tags     users
// @Security BearerAuth
// @Success  200  {object}  domain.User
// @Failure  401  {object}  ErrorResponse
// @Router   /api/users/profile [get]
func handleProfile(svcs *service.Services, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := identityFrom(c)
		u, err := svcs.Users.Get(c.Request.Context(), id.UserID)
		if err != nil {
			respondErr(c, log, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

// @Summary  Current user's tickets, newest first
// @Tags     users
// @Security BearerAuth
// @Success  200  {array}  sales.OwnedTicket
// @Router   /api/users/tickets [get]
func handleMyTickets(svcs *service.Services, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := identityFrom(c)
		tickets, err := svcs.Sales.UserTickets(c.Request.Context(), id.UserID)
		if err != nil {
			respondErr(c, log, err)
			return
		}
		c.JSON(http.StatusOK, tickets)
	}
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Code:  "MALFORMED_ID",
			Error: "invalid " + name,
		})
		return uuid.Nil, false
	}
	return id, true
}
