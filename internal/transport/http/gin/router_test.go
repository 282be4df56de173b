package httpgin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/tixmarket/internal/auth"
	"github.com/kirinyoku/tixmarket/internal/domain"
	"github.com/kirinyoku/tixmarket/internal/repository/memory"
	"github.com/kirinyoku/tixmarket/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "router-test-secret"

type fixture struct {
	store  *memory.Store
	router *gin.Engine
	tokens *auth.Verifier
	event  *domain.Event
	admin  domain.User
	member domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	fees, err := domain.NewFeeSchedule(decimal.RequireFromString("0.10"))
	require.NoError(t, err)

	svcs := service.NewServices(service.Deps{Store: store, Log: log}, service.Config{Fees: fees})
	verifier := auth.NewVerifier(testSecret)

	f := &fixture{
		store:  store,
		router: NewRouter(svcs, verifier, nil, log),
		tokens: verifier,
		admin:  domain.User{ID: uuid.New(), FirstName: "Grace", LastName: "Hopper", Email: "grace@example.com", Role: domain.RoleAdmin},
		member: domain.User{ID: uuid.New(), FirstName: "Alan", LastName: "Turing", Email: "alan@example.com", Role: domain.RoleUser},
	}

	ctx := context.Background()
	require.NoError(t, store.Users().Create(ctx, &f.admin))
	require.NoError(t, store.Users().Create(ctx, &f.member))

	f.event = &domain.Event{
		ID:          uuid.New(),
		Name:        "Jazz Night",
		Date:        time.Now().Add(48 * time.Hour).UTC(),
		Time:        "20:00",
		Location:    "Blue Room",
		Status:      domain.EventApproved,
		SubmittedAt: time.Now(),
		TicketTypes: []domain.TicketType{{Label: "GA", Price: decimal.RequireFromString("22.00")}},
		TicketCount: 3,
	}
	require.NoError(t, store.Events().Create(ctx, f.event))

	return f
}

func (f *fixture) token(t *testing.T, u domain.User) string {
	t.Helper()
	tok, err := f.tokens.Issue(auth.Identity{UserID: u.ID, Role: u.Role}, time.Hour)
	require.NoError(t, err)
	return tok
}

func (f *fixture) do(t *testing.T, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func purchaseBody(eventID uuid.UUID, qty int) gin.H {
	return gin.H{
		"purchases": []gin.H{{
			"eventId":         eventID.String(),
			"selectedTickets": []gin.H{{"ticketType": "GA", "quantity": qty}},
		}},
		"customerInfo": gin.H{
			"firstName": "Ada",
			"lastName":  "Lovelace",
			"email":     "ada@example.com",
			"phone":     "555-0100",
		},
	}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (f *fixture) buy(t *testing.T, qty int) []domain.IssuedTicket {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/purchase-tickets", "", purchaseBody(f.event.ID, qty))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[PurchaseResponse](t, w).Tickets
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListEvents_ETag(t *testing.T) {
	f := newFixture(t)
	pending := &domain.Event{ID: uuid.New(), Name: "Secret", Status: domain.EventPending, TicketCount: 1}
	require.NoError(t, f.store.Events().Create(context.Background(), pending))

	w := f.do(t, http.MethodGet, "/api/events", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	events := decode[[]domain.Event](t, w)
	require.Len(t, events, 1)
	assert.Equal(t, f.event.ID, events[0].ID)

	tag := w.Header().Get("ETag")
	require.NotEmpty(t, tag)
	assert.Equal(t, "public, max-age=15", w.Header().Get("Cache-Control"))

	w = f.do(t, http.MethodGet, "/api/events", "", nil, "If-None-Match", tag)
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.Bytes())
}

func TestGetEvent(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/events/"+f.event.ID.String(), "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/events/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "EVENT_NOT_FOUND", decode[ErrorResponse](t, w).Code)

	w = f.do(t, http.MethodGet, "/api/events/12345", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MALFORMED_ID", decode[ErrorResponse](t, w).Code)
}

func TestSubmitEvent(t *testing.T) {
	f := newFixture(t)

	body := gin.H{
		"eventName":        "Poetry Slam",
		"eventDescription": "Open mic",
		"eventDate":        time.Now().Add(72 * time.Hour).Format(time.DateOnly),
		"eventTime":        "18:00",
		"eventLocation":    "Library",
		"promoter":         gin.H{"firstName": "Maya", "lastName": "Angelou"},
		"tickets":          []gin.H{{"type": "GA", "price": "5.00"}},
		"ticketCount":      50,
	}
	w := f.do(t, http.MethodPost, "/api/submit", "", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, domain.EventPending, decode[domain.Event](t, w).Status)

	body["eventName"] = ""
	w = f.do(t, http.MethodPost, "/api/submit", "", body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode[ErrorResponse](t, w)
	assert.Equal(t, "INVALID_EVENT", resp.Code)
	assert.Contains(t, resp.Fields, "eventName")
}

func TestPurchase_GuestAndCapacity(t *testing.T) {
	f := newFixture(t)

	tickets := f.buy(t, 2)
	require.Len(t, tickets, 2)
	assert.Equal(t, "Jazz Night", tickets[0].EventName)

	w := f.do(t, http.MethodPost, "/api/purchase-tickets", "", purchaseBody(f.event.ID, 2))
	require.Equal(t, http.StatusConflict, w.Code)
	resp := decode[ErrorResponse](t, w)
	assert.Equal(t, "CAPACITY_EXCEEDED", resp.Code)
	require.NotNil(t, resp.Remaining)
	assert.Equal(t, 1, *resp.Remaining)
}

func TestPurchase_Rejections(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/purchase-tickets", "", purchaseBody(uuid.New(), 1))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(t, http.MethodPost, "/api/purchase-tickets", "", purchaseBody(f.event.ID, 0))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	body := purchaseBody(f.event.ID, 1)
	body["purchases"] = []gin.H{{"eventId": "nope"}}
	w = f.do(t, http.MethodPost, "/api/purchase-tickets", "", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPurchase_RegisteredShowsInMyTickets(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, f.member)

	w := f.do(t, http.MethodPost, "/api/purchase-tickets", tok, purchaseBody(f.event.ID, 1))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(t, http.MethodGet, "/api/users/tickets", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var owned []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &owned))
	assert.Len(t, owned, 1)
}

func TestPurchase_BadTokenBuysAsGuest(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/purchase-tickets", "not-a-jwt", purchaseBody(f.event.ID, 1))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestAdmin_Authorization(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/admin/sales", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodGet, "/api/admin/sales", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// A token claiming admin is not enough; the stored role decides.
	forged, err := f.tokens.Issue(auth.Identity{UserID: f.member.ID, Role: domain.RoleAdmin}, time.Hour)
	require.NoError(t, err)
	w = f.do(t, http.MethodGet, "/api/admin/sales", forged, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodGet, "/api/admin/sales", f.token(t, f.admin), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCheckIn_Twice(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, f.admin)
	tk := f.buy(t, 1)[0]

	req := CheckInRequest{TicketID: tk.TicketID.String(), EventID: f.event.ID.String()}
	w := f.do(t, http.MethodPost, "/api/admin/checkin", tok, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[CheckInResponse](t, w).Ticket.IsCheckedIn)

	w = f.do(t, http.MethodPost, "/api/admin/checkin", tok, req)
	require.Equal(t, http.StatusConflict, w.Code)
	resp := decode[ErrorResponse](t, w)
	assert.Equal(t, "ALREADY_REDEEMED", resp.Code)
	assert.NotEmpty(t, resp.CheckedInAt)

	w = f.do(t, http.MethodGet, "/api/admin/checkin/stats/"+f.event.ID.String(), tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[domain.CheckInStats](t, w)
	assert.Equal(t, 1, stats.CheckedInCount)
}

func TestCheckIn_WrongEvent(t *testing.T) {
	f := newFixture(t)
	tk := f.buy(t, 1)[0]

	req := CheckInRequest{TicketID: tk.TicketID.String(), EventID: uuid.NewString()}
	w := f.do(t, http.MethodPost, "/api/admin/checkin", f.token(t, f.admin), req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "EVENT_MISMATCH", decode[ErrorResponse](t, w).Code)
}

func TestRefund(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, f.admin)
	tk := f.buy(t, 1)[0]

	path := "/api/admin/refunds/tickets/" + tk.TicketID.String()
	w := f.do(t, http.MethodPost, path, tok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Ticket domain.Ticket   `json:"ticket"`
		Amount decimal.Decimal `json:"refundAmount"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, domain.TicketRefunded, resp.Ticket.Status)
	assert.True(t, resp.Amount.Equal(decimal.NewFromInt(20)))

	w = f.do(t, http.MethodPost, path, tok, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_REFUNDED", decode[ErrorResponse](t, w).Code)

	w = f.do(t, http.MethodPost, "/api/admin/refunds/tickets/12345", tok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	e, err := f.store.Events().Get(context.Background(), f.event.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, e.TicketsSold)
}

func TestRefundEvent(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, f.admin)
	f.buy(t, 3)

	path := "/api/admin/refunds/events/" + f.event.ID.String()
	w := f.do(t, http.MethodPost, path, tok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Refunded int `json:"refundedCount"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Refunded)

	w = f.do(t, http.MethodPost, path, tok, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSubmissions_StatusAndDelete(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, f.admin)
	pending := &domain.Event{ID: uuid.New(), Name: "Pending", Status: domain.EventPending, TicketCount: 1}
	require.NoError(t, f.store.Events().Create(context.Background(), pending))

	statusPath := "/api/admin/submissions/" + pending.ID.String() + "/status"
	w := f.do(t, http.MethodPatch, statusPath, tok, StatusRequest{Status: domain.EventApproved})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, http.MethodPatch, statusPath, tok, StatusRequest{Status: domain.EventDenied})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodPatch, statusPath, tok, gin.H{"status": "pending"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.buy(t, 1)
	w = f.do(t, http.MethodDelete, "/api/admin/submissions/"+f.event.ID.String(), tok, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "EVENT_HAS_ACTIVE_TICKETS", decode[ErrorResponse](t, w).Code)

	w = f.do(t, http.MethodDelete, "/api/admin/submissions/"+pending.ID.String(), tok, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSales_SearchAndResend(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, f.admin)
	tk := f.buy(t, 1)[0]

	w := f.do(t, http.MethodGet, "/api/admin/sales?search=LOVELACE", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.Sale](t, w), 1)

	w = f.do(t, http.MethodGet, "/api/admin/sales?eventId=bad", tok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/admin/tickets/"+tk.TicketID.String()+"/resend", tok, nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, "ada@example.com", decode[ResendResponse](t, w).Recipient)
}

func TestUsers_RoleChange(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, f.admin)

	w := f.do(t, http.MethodPatch, "/api/admin/users/"+f.admin.ID.String()+"/role", tok, RoleRequest{Role: domain.RoleUser})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "SELF_ROLE_CHANGE", decode[ErrorResponse](t, w).Code)

	w = f.do(t, http.MethodPatch, "/api/admin/users/"+f.member.ID.String()+"/role", tok, RoleRequest{Role: domain.RoleAdmin})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.RoleAdmin, decode[domain.User](t, w).Role)

	w = f.do(t, http.MethodPost, "/api/admin/users", tok, gin.H{"firstName": "Dup", "lastName": "User", "email": "ALAN@example.com"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodGet, "/api/admin/users", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.User](t, w), 2)
}

func TestProfile(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/users/profile", f.token(t, f.member), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, f.member.Email, decode[domain.User](t, w).Email)

	w = f.do(t, http.MethodGet, "/api/users/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequestID(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/healthz", "", nil, "X-Request-ID", "abc-123")
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))

	w = f.do(t, http.MethodGet, "/healthz", "", nil, "X-Request-ID", "has space")
	minted := w.Header().Get("X-Request-ID")
	assert.NotEqual(t, "has space", minted)
	_, err := uuid.Parse(minted)
	assert.NoError(t, err)
}

func TestEtagMatches(t *testing.T) {
	tag := `W/"abc"`
	assert.True(t, etagMatches(`W/"abc"`, tag))
	assert.True(t, etagMatches(`"abc"`, tag))
	assert.True(t, etagMatches(`"x", W/"abc"`, tag))
	assert.True(t, etagMatches("*", tag))
	assert.False(t, etagMatches(`"abd"`, tag))
	assert.False(t, etagMatches("", tag))
}
