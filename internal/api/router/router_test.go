package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commsware/channel-whatsapp/internal/accounts"
	"github.com/commsware/channel-whatsapp/internal/http/handlers"
	httpmiddleware "github.com/commsware/channel-whatsapp/internal/http/middleware"
	"github.com/commsware/channel-whatsapp/internal/webhook"
)

func testRouter(t *testing.T, mock pgxmock.PgxPoolIface) http.Handler {
	t.Helper()
	store := accounts.NewStore(mock)
	registry := accounts.NewRegistry()
	registry.Register(accounts.NewProvider(store, nil))

	return New(&Config{
		Webhook: handlers.NewWebhookHandler(handlers.WebhookConfig{
			Router:      webhook.NewRouter(store, nil, nil, nil),
			VerifyToken: "verify-token",
		}),
		Admin: handlers.NewAdminHandler(handlers.AdminConfig{
			Store:    store,
			Registry: registry,
		}),
		AdminAuthSecret: "secret",
	})
}

func newRouterFixture(t *testing.T) (http.Handler, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return testRouter(t, mock), mock
}

func TestHealthEndpoint(t *testing.T) {
	handler, _ := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestWebhookVerifyRouted(t *testing.T) {
	handler, _ := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodGet,
		"/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=verify-token&hub.challenge=CH1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CH1", rec.Body.String())
}

func TestAdminRoutesRequireAuth(t *testing.T) {
	handler, _ := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/accounts", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRouteWithSignedToken(t *testing.T) {
	handler, mock := newRouterFixture(t)
	mock.ExpectQuery("SELECT(.|\n)+FROM whatsapp_accounts WHERE team_id").
		WithArgs("t1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "phone_number", "phone_number_id", "name", "business_id",
			"api_token", "webhook_token", "webhook_verify_token", "team_id",
			"created_by_user_id", "user_id", "ownership_type", "sender_kind",
			"sender_id", "is_default", "meta", "created_at", "updated_at",
			"deleted_at",
		}))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, httpmiddleware.AdminClaims{
		TeamID: "t1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin/accounts", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"accounts":[]}`, rec.Body.String())
}
