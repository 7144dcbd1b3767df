package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultAPIVersion = "v21.0"
	defaultTimeout    = 30 * time.Second

	oauthScopes = "business_management,whatsapp_business_management,whatsapp_business_messaging"
)

// APIError is a non-success response from the Graph API.
type APIError struct {
	StatusCode int
	Message    string
	Type       string
	Code       int
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("whatsapp: graph api error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("whatsapp: graph api error %d: %s", e.StatusCode, e.Body)
}

type graphErrorBody struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// ClientConfig configures the Graph API client.
type ClientConfig struct {
	// APIBase overrides the full base URL (useful for testing). When empty
	// the base is built from APIVersion.
	APIBase     string
	APIVersion  string
	AppID       string
	AppSecret   string
	RedirectURI string
	HTTPClient  *http.Client
}

// Client talks to the WhatsApp Business Cloud API (Meta Graph API).
type Client struct {
	apiBase     string
	dialogBase  string
	appID       string
	appSecret   string
	redirectURI string
	httpClient  *http.Client
}

// NewClient creates a Graph API client with a bounded request timeout.
func NewClient(cfg ClientConfig) *Client {
	version := cfg.APIVersion
	if version == "" {
		version = defaultAPIVersion
	}
	base := strings.TrimSuffix(cfg.APIBase, "/")
	if base == "" {
		base = "https://graph.facebook.com/" + version
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		apiBase:     base,
		dialogBase:  "https://www.facebook.com/" + version,
		appID:       cfg.AppID,
		appSecret:   cfg.AppSecret,
		redirectURI: cfg.RedirectURI,
		httpClient:  httpClient,
	}
}

// AuthorizationURL builds the Meta login dialog URL for the OAuth flow.
func (c *Client) AuthorizationURL(state string) string {
	params := url.Values{
		"client_id":     {c.appID},
		"redirect_uri":  {c.redirectURI},
		"state":         {state},
		"scope":         {oauthScopes},
		"response_type": {"code"},
	}
	return fmt.Sprintf("%s/dialog/oauth?%s", c.dialogBase, params.Encode())
}

// ExchangeCode trades an authorization code for a bearer token.
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	params := url.Values{
		"client_id":     {c.appID},
		"client_secret": {c.appSecret},
		"redirect_uri":  {c.redirectURI},
		"code":          {code},
	}
	body, err := c.get(ctx, "/oauth/access_token?"+params.Encode())
	if err != nil {
		return "", fmt.Errorf("whatsapp: exchange code: %w", err)
	}

	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("whatsapp: decode token response: %w", err)
	}
	if resp.AccessToken == "" {
		// Keep the raw response for diagnostics; Meta sometimes returns a
		// 200 with an error object instead of a token.
		return "", fmt.Errorf("whatsapp: no access token in response: %s", string(body))
	}
	return resp.AccessToken, nil
}

// ListBusinesses enumerates every business account visible to the token.
func (c *Client) ListBusinesses(ctx context.Context, accessToken string) ([]Business, error) {
	params := url.Values{"access_token": {accessToken}}
	body, err := c.get(ctx, "/me/businesses?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("whatsapp: list businesses: %w", err)
	}

	var resp struct {
		Data []Business `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("whatsapp: decode businesses response: %w", err)
	}
	return resp.Data, nil
}

// ListPhoneNumbers enumerates the phone numbers registered under a business.
func (c *Client) ListPhoneNumbers(ctx context.Context, accessToken, businessID string) ([]PhoneNumber, error) {
	params := url.Values{"access_token": {accessToken}}
	body, err := c.get(ctx, "/"+businessID+"/phone_numbers?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("whatsapp: list phone numbers for %s: %w", businessID, err)
	}

	var resp struct {
		Data []PhoneNumber `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("whatsapp: decode phone numbers response: %w", err)
	}
	return resp.Data, nil
}

// SendText posts a text message through the send-message endpoint for the
// given phone number id.
func (c *Client) SendText(ctx context.Context, accessToken, phoneNumberID string, req SendRequest) (*SendResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: marshal send request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/messages", c.apiBase, phoneNumberID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("whatsapp: create send request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: send message: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: read send response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apiError(resp.StatusCode, respBody)
	}

	var sendResp SendResponse
	if err := json.Unmarshal(respBody, &sendResp); err != nil {
		return nil, fmt.Errorf("whatsapp: decode send response: %w", err)
	}
	return &sendResp, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apiError(resp.StatusCode, body)
	}
	return body, nil
}

func apiError(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status, Body: string(body)}
	var decoded graphErrorBody
	if err := json.Unmarshal(body, &decoded); err == nil && decoded.Error != nil {
		apiErr.Message = decoded.Error.Message
		apiErr.Type = decoded.Error.Type
		apiErr.Code = decoded.Error.Code
	}
	return apiErr
}
