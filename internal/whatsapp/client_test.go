package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizationURL(t *testing.T) {
	c := NewClient(ClientConfig{
		AppID:       "app123",
		RedirectURI: "https://example.com/oauth/whatsapp/callback",
		APIVersion:  "v21.0",
	})

	u := c.AuthorizationURL("state-token")
	assert.True(t, strings.HasPrefix(u, "https://www.facebook.com/v21.0/dialog/oauth?"))
	assert.Contains(t, u, "client_id=app123")
	assert.Contains(t, u, "state=state-token")
	assert.Contains(t, u, "response_type=code")
	assert.Contains(t, u, "scope=business_management%2Cwhatsapp_business_management%2Cwhatsapp_business_messaging")
}

func TestExchangeCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth/access_token", r.URL.Path)
		q := r.URL.Query()
		require.Equal(t, "app123", q.Get("client_id"))
		require.Equal(t, "secret", q.Get("client_secret"))
		require.Equal(t, "the-code", q.Get("code"))
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-1", "token_type": "bearer"})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{APIBase: srv.URL, AppID: "app123", AppSecret: "secret"})
	token, err := c.ExchangeCode(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
}

func TestExchangeCodeMissingToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"weird":"payload"}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{APIBase: srv.URL})
	_, err := c.ExchangeCode(context.Background(), "code")
	require.Error(t, err)
	// Raw response is preserved for diagnostics.
	assert.Contains(t, err.Error(), "weird")
}

func TestListBusinessesAndPhoneNumbers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "tok", r.URL.Query().Get("access_token"))
		switch r.URL.Path {
		case "/me/businesses":
			_, _ = w.Write([]byte(`{"data":[{"id":"B1","name":"Acme"},{"id":"B2","name":"Globex"}]}`))
		case "/B1/phone_numbers":
			_, _ = w.Write([]byte(`{"data":[{"id":"PN1","display_phone_number":"+49 151 2345","verified_name":"Acme GmbH","code_verification_status":"VERIFIED","quality_rating":"GREEN"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{APIBase: srv.URL})

	businesses, err := c.ListBusinesses(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, businesses, 2)
	assert.Equal(t, "B1", businesses[0].ID)

	phones, err := c.ListPhoneNumbers(context.Background(), "tok", "B1")
	require.NoError(t, err)
	require.Len(t, phones, 1)
	assert.Equal(t, "PN1", phones[0].ID)
	assert.Equal(t, "Acme GmbH", phones[0].VerifiedName)
}

func TestSendText(t *testing.T) {
	var got SendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/PN1/messages", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"messaging_product":"whatsapp","contacts":[{"input":"+4915123456789","wa_id":"4915123456789"}],"messages":[{"id":"wamid.out1"}]}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{APIBase: srv.URL})
	preview := false
	resp, err := c.SendText(context.Background(), "tok", "PN1", SendRequest{
		MessagingProduct: "whatsapp",
		To:               "+4915123456789",
		Type:             "text",
		Text:             TextBody{Body: "hi", PreviewURL: &preview},
		Context:          &MessageContext{MessageID: "wamid.prev"},
	})
	require.NoError(t, err)
	assert.Equal(t, "wamid.out1", resp.MessageID())

	assert.Equal(t, "whatsapp", got.MessagingProduct)
	assert.Equal(t, "+4915123456789", got.To)
	require.NotNil(t, got.Text.PreviewURL)
	assert.False(t, *got.Text.PreviewURL)
	require.NotNil(t, got.Context)
	assert.Equal(t, "wamid.prev", got.Context.MessageID)
}

func TestSendTextUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"(#131030) Recipient phone number not in allowed list","type":"OAuthException","code":131030}}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{APIBase: srv.URL})
	_, err := c.SendText(context.Background(), "tok", "PN1", SendRequest{MessagingProduct: "whatsapp", To: "+1", Type: "text", Text: TextBody{Body: "x"}})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, 131030, apiErr.Code)
	assert.Contains(t, apiErr.Message, "131030")
}
