package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Skotchmaster/handmade_shop/internal/catalog"
	"github.com/Skotchmaster/handmade_shop/internal/checkout"
	"github.com/Skotchmaster/handmade_shop/internal/displayid"
	"github.com/Skotchmaster/handmade_shop/internal/events"
	"github.com/Skotchmaster/handmade_shop/internal/gallery"
	"github.com/Skotchmaster/handmade_shop/internal/invoices"
	"github.com/Skotchmaster/handmade_shop/internal/messages"
	"github.com/Skotchmaster/handmade_shop/internal/notify"
	"github.com/Skotchmaster/handmade_shop/internal/orders"
	"github.com/Skotchmaster/handmade_shop/internal/schema"
	"github.com/Skotchmaster/handmade_shop/internal/testdb"
	pkgdb "github.com/Skotchmaster/handmade_shop/pkg/db"
	loggingmw "github.com/Skotchmaster/handmade_shop/pkg/middleware/logging"
)

const (
	webhookSecret = "whsec_test"
	adminPassword = "correct horse"
)

var orderTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

const sessionEvent = `{"id":"evt_1","type":"checkout.session.completed","data":{"object":{
  "id": "cs_test_1",
  "amount_total": 5500,
  "currency": "usd",
  "payment_status": "paid",
  "customer_details": {"email": "buyer@example.com", "name": "Ana Buyer"},
  "line_items": {"data": [
    {"id": "li_1", "description": "Blue Mug", "quantity": 2, "amount_total": 5000,
     "price": {"id": "price_1", "unit_amount": 2500, "product": "prod_A"}},
    {"id": "li_2", "description": "Delivery", "quantity": 1, "amount_total": 500,
     "price": {"id": "price_ship", "unit_amount": 500, "metadata": {"mv_line_type": "shipping"}}}
  ]}
}}}`

type testEnv struct {
	E      *echo.Echo
	DB     *gorm.DB
	Events *events.Recorder
	Outbox *notify.Outbox
	Secret []byte
}

func newTestEnv(t *testing.T, gdb *gorm.DB) *testEnv {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	require.NoError(t, err)

	env := &testEnv{DB: gdb, Events: &events.Recorder{}, Outbox: &notify.Outbox{}, Secret: []byte("jwt-secret")}
	notifier := &notify.Notifier{Mailer: env.Outbox, Owner: notify.Owner{Email: "owner@shop.test"}}

	insp := schema.NewInspector(gdb, 0)
	orderSvc := orders.NewService(orders.NewRepo(gdb), insp,
		&orders.Reconciler{Catalog: &catalog.GormLookup{DB: gdb, Schema: insp}}, 5*time.Second)
	v := validator.New()
	invoiceSvc := invoices.NewService(gdb, v, notifier, env.Events, "https://shop.test")
	invoiceSvc.Now = func() time.Time { return orderTime }

	e := echo.New()
	e.Validator = NewValidator(v)
	e.Use(loggingmw.RequestLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))))
	Register(e, &Deps{
		Orders: &OrdersHTTP{Svc: orderSvc, Allocator: displayid.NewAllocator(gdb, env.Events)},
		Checkout: &CheckoutHTTP{
			Orders: orderSvc,
			Intake: &checkout.Intake{
				Orders:    orderSvc,
				Invoices:  invoiceSvc,
				Events:    env.Events,
				Notifier:  notifier,
				Secret:    webhookSecret,
				Tolerance: 5 * time.Minute,
				Now:       func() time.Time { return orderTime },
			},
		},
		Gallery:   &GalleryHTTP{Svc: gallery.NewService(gdb, env.Events)},
		Messages:  &MessagesHTTP{Svc: messages.NewService(gdb, v, notifier, env.Events)},
		Invoices:  &InvoicesHTTP{Svc: invoiceSvc},
		Products:  &ProductsHTTP{},
		Admin:     &AdminHTTP{DB: gdb, Username: "admin", PasswordHash: string(hash), JWTSecret: env.Secret},
		JWTSecret: env.Secret,
	})
	env.E = e
	return env
}

func migratedEnv(t *testing.T) *testEnv {
	t.Helper()
	gdb := testdb.Open(t)
	require.NoError(t, schema.Migrate(context.Background(), gdb))
	return newTestEnv(t, gdb)
}

func (env *testEnv) do(t *testing.T, method, path, body string, setup ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, fn := range setup {
		fn(req)
	}
	rec := httptest.NewRecorder()
	env.E.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) login(t *testing.T) func(*http.Request) {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/api/admin/login", `{"username":"admin","password":"`+adminPassword+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var cookie *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "accessToken" {
			cookie = ck
		}
	}
	require.NotNil(t, cookie)
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value}) }
}

func signed(payload string, ts time.Time) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set(SignatureHeader, checkout.SignatureHeader([]byte(payload), webhookSecret, ts))
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	env := migratedEnv(t)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/live", "").Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/ready", "").Code)
}

func TestAdminLogin(t *testing.T) {
	env := migratedEnv(t)

	rec := env.do(t, http.MethodPost, "/api/admin/login", `{"username":"admin","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/admin/login", `{"username":"admin"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/admin/orders", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	auth := env.login(t)
	rec = env.do(t, http.MethodGet, "/api/admin/orders", "", auth)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCheckoutToAdminOrders(t *testing.T) {
	env := migratedEnv(t)
	auth := env.login(t)

	rec := env.do(t, http.MethodPost, "/api/checkout/webhook", sessionEvent, func(r *http.Request) {
		r.Header.Set(SignatureHeader, checkout.SignatureHeader([]byte(sessionEvent), "wrong", orderTime))
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/checkout/webhook", sessionEvent, signed(sessionEvent, orderTime))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[checkout.Outcome](t, rec)
	assert.True(t, out.Created)

	rec = env.do(t, http.MethodPost, "/api/checkout/webhook", sessionEvent, signed(sessionEvent, orderTime))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[checkout.Outcome](t, rec).Created)
	assert.Equal(t, []string{notify.KindNewSale}, env.Outbox.Kinds())

	rec = env.do(t, http.MethodGet, "/api/checkout/session/cs_test_1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	conf := decode[struct{ Order orders.OrderView }](t, rec)
	assert.Equal(t, int64(500), conf.Order.ShippingCents)
	assert.Equal(t, int64(5000), conf.Order.SubtotalCents)

	rec = env.do(t, http.MethodGet, "/api/checkout/session/cs_missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/admin/orders/display-ids/backfill", "", auth)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[displayid.Result](t, rec)
	require.Len(t, res.Assigned, 1)
	assert.Equal(t, "25-001", res.Assigned[0].DisplayID)

	rec = env.do(t, http.MethodGet, "/api/admin/orders?limit=10", "", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct{ Orders []orders.OrderView }](t, rec)
	require.Len(t, list.Orders, 1)
	require.NotNil(t, list.Orders[0].DisplayOrderID)
	assert.Equal(t, "25-001", *list.Orders[0].DisplayOrderID)
	assert.Equal(t, int64(5500), list.Orders[0].TotalCents)

	rec = env.do(t, http.MethodGet, "/api/admin/orders?limit=abc", "", auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_IgnoresOtherEvents(t *testing.T) {
	env := migratedEnv(t)
	payload := `{"id":"evt_2","type":"payment_intent.created","data":{"object":{}}}`

	rec := env.do(t, http.MethodPost, "/api/checkout/webhook", payload, signed(payload, orderTime))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[checkout.Outcome](t, rec).Ignored)
	assert.Empty(t, env.Events.Events)
}

func TestAdminOrders_MissingTables(t *testing.T) {
	gdb := testdb.Open(t)
	testdb.Exec(t, gdb, `CREATE TABLE orders (id TEXT PRIMARY KEY, total_cents INTEGER, created_at TEXT NOT NULL)`)
	env := newTestEnv(t, gdb)

	rec := env.do(t, http.MethodGet, "/api/admin/orders", "", env.login(t))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode[ErrorBody](t, rec)
	assert.Equal(t, []string{"order_items"}, body.MissingTables)
	assert.NotEmpty(t, body.Error)
}

func TestAdminOrders_DatabaseUnavailable(t *testing.T) {
	env := migratedEnv(t)
	auth := env.login(t)
	require.NoError(t, pkgdb.Close(env.DB))

	rec := env.do(t, http.MethodGet, "/api/admin/orders", "", auth)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code, rec.Body.String())
	body := decode[ErrorBody](t, rec)
	assert.True(t, body.Retryable)
	assert.Empty(t, body.MissingTables)
}

func TestCustomInvoiceLifecycle(t *testing.T) {
	env := migratedEnv(t)
	auth := env.login(t)

	body := `{"customer_email":"cara@x.test","customer_name":"Cara","amount_dollars":"125.50","description":"Oyster shell wreath"}`
	rec := env.do(t, http.MethodPost, "/api/admin/custom-invoices", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/admin/custom-invoices", `{"customer_email":"cara@x.test","description":"Wreath"}`, auth)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "A positive amount is required (amount_cents or amount_dollars).", decode[ErrorBody](t, rec).Error)

	rec = env.do(t, http.MethodPost, "/api/admin/custom-invoices", body, auth)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[invoices.Created](t, rec)
	assert.Equal(t, "sent", created.Status)
	assert.Equal(t, "https://shop.test/invoice/"+created.InvoiceID, created.InvoiceURL)

	rec = env.do(t, http.MethodGet, "/api/custom-invoices/"+created.InvoiceID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[map[string]any](t, rec)
	assert.EqualValues(t, 12550, view["amount_cents"])
	assert.Equal(t, "Cara", view["customer_name"])
	assert.NotContains(t, view, "customer_email")

	rec = env.do(t, http.MethodGet, "/api/custom-invoices/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	paid := `{"id":"evt_inv","type":"checkout.session.completed","data":{"object":{
	  "id":"cs_inv","payment_status":"paid","payment_intent":"pi_inv",
	  "metadata":{"type":"custom_invoice","invoiceId":"` + created.InvoiceID + `"}}}}`
	rec = env.do(t, http.MethodPost, "/api/checkout/webhook", paid, signed(paid, orderTime))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[checkout.Outcome](t, rec)
	assert.True(t, out.Created)
	assert.Equal(t, created.InvoiceID, out.InvoiceID)
	assert.Equal(t, []string{notify.KindInvoice, notify.KindInvoicePaid}, env.Outbox.Kinds())

	rec = env.do(t, http.MethodGet, "/api/admin/custom-invoices", "", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct{ Invoices []map[string]any }](t, rec)
	require.Len(t, list.Invoices, 1)
	assert.Equal(t, "paid", list.Invoices[0]["status"])
	assert.Equal(t, "cs_inv", list.Invoices[0]["stripe_checkout_session_id"])

	rec = env.do(t, http.MethodGet, "/api/admin/orders", "", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[struct{ Orders []orders.OrderView }](t, rec).Orders)
}

func TestMessagesEndpoints(t *testing.T) {
	env := migratedEnv(t)
	auth := env.login(t)

	rec := env.do(t, http.MethodPost, "/api/messages", `{"name":"Bo","email":"bo@example.com","message":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Name, email, and message are required.", decode[ErrorBody](t, rec).Error)

	rec = env.do(t, http.MethodPost, "/api/messages", `{"name":"Bo","email":"bo@example.com","message":"Do you ship to Canada?"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, []string{notify.KindInquiry}, env.Outbox.Kinds())

	rec = env.do(t, http.MethodGet, "/api/admin/messages", "", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct{ Messages []struct{ ID string } }](t, rec)
	require.Len(t, list.Messages, 1)

	id := list.Messages[0].ID
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/admin/messages/"+id, "", auth).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/admin/messages/"+id, "", auth).Code)
}

func TestGalleryEndpoints(t *testing.T) {
	env := migratedEnv(t)
	auth := env.login(t)

	body := `{"images":[{"imageUrl":"/a.jpg","alt":"A"},{"imageUrl":""},{"imageUrl":"/b.jpg","hidden":true}]}`
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPut, "/api/admin/gallery", body).Code)

	rec := env.do(t, http.MethodPut, "/api/admin/gallery", body, auth)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/gallery", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[struct{ Images []gallery.Image }](t, rec)
	require.Len(t, got.Images, 2)
	assert.Equal(t, "/a.jpg", got.Images[0].ImageURL)
	assert.True(t, got.Images[1].Hidden)
}

func TestDBHealthEndpoint(t *testing.T) {
	env := migratedEnv(t)
	rec := env.do(t, http.MethodGet, "/api/admin/db-health", "", env.login(t))
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[struct {
		Tables []string
		Counts map[string]*int64
	}](t, rec)
	assert.Contains(t, got.Tables, "orders")
	require.NotNil(t, got.Counts["messages"])
	assert.Zero(t, *got.Counts["messages"])
}

func TestSearch_NotConfigured(t *testing.T) {
	env := migratedEnv(t)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/products/search", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, env.do(t, http.MethodGet, "/api/products/search?q=mug", "").Code)
}
