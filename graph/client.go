// Package graph implements the remote resource-graph API client used by the
// lifecycle manager: profile reads and the subscription create, renew and
// delete calls.
package graph

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

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-graphwatch/core"
)

const (
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"

	defaultRequestTimeout = 30 * time.Second
	maxResponseBodyBytes  = 1 << 20

	profileSelectFields = "displayName,jobTitle,userPrincipalName"
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type ClientConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	HTTPClient     HTTPDoer
	UserAgent      string
}

type Client struct {
	config     ClientConfig
	httpClient HTTPDoer
}

func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		config: ClientConfig{
			BaseURL:        baseURL,
			RequestTimeout: timeout,
			UserAgent:      strings.TrimSpace(cfg.UserAgent),
		},
		httpClient: httpClient,
	}
}

type profileResponse struct {
	DisplayName       string `json:"displayName"`
	JobTitle          string `json:"jobTitle"`
	UserPrincipalName string `json:"userPrincipalName"`
}

func (c *Client) GetProfile(ctx context.Context, cred core.Credential) (core.ProfileSummary, error) {
	endpoint := c.config.BaseURL + "/me?$select=" + url.QueryEscape(profileSelectFields)
	body, err := c.roundTrip(ctx, cred, http.MethodGet, endpoint, nil, "fetch profile")
	if err != nil {
		return core.ProfileSummary{}, err
	}
	var payload profileResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return core.ProfileSummary{}, decodeError(err, "fetch profile")
	}
	return core.ProfileSummary{
		DisplayName:       payload.DisplayName,
		JobTitle:          payload.JobTitle,
		UserPrincipalName: payload.UserPrincipalName,
	}, nil
}

type subscriptionRequest struct {
	ChangeType         string `json:"changeType"`
	NotificationURL    string `json:"notificationUrl"`
	LifecycleURL       string `json:"lifecycleNotificationUrl,omitempty"`
	Resource           string `json:"resource"`
	ClientState        string `json:"clientState"`
	ExpirationDateTime string `json:"expirationDateTime"`
}

type subscriptionResponse struct {
	ID                 string `json:"id"`
	Resource           string `json:"resource"`
	ChangeType         string `json:"changeType"`
	ExpirationDateTime string `json:"expirationDateTime"`
}

func (c *Client) CreateSubscription(ctx context.Context, cred core.Credential, in core.CreateSubscriptionInput) (core.SubscriptionHandle, error) {
	payload, err := json.Marshal(subscriptionRequest{
		ChangeType:         in.ChangeType,
		NotificationURL:    in.NotificationURL,
		LifecycleURL:       in.LifecycleURL,
		Resource:           in.Resource,
		ClientState:        in.ClientState,
		ExpirationDateTime: in.ExpiresAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return core.SubscriptionHandle{}, encodeError(err, "create subscription")
	}
	body, err := c.roundTrip(ctx, cred, http.MethodPost, c.config.BaseURL+"/subscriptions", payload, "create subscription")
	if err != nil {
		return core.SubscriptionHandle{}, err
	}

	var response subscriptionResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return core.SubscriptionHandle{}, decodeError(err, "create subscription")
	}
	handle := core.SubscriptionHandle{
		ID:         strings.TrimSpace(response.ID),
		Resource:   response.Resource,
		ChangeType: response.ChangeType,
	}
	if raw := strings.TrimSpace(response.ExpirationDateTime); raw != "" {
		if parsed, parseErr := time.Parse(time.RFC3339, raw); parseErr == nil {
			handle.ExpiresAt = parsed.UTC()
		}
	}
	return handle, nil
}

func (c *Client) RenewSubscription(ctx context.Context, cred core.Credential, subscriptionID string, expiresAt time.Time) error {
	subscriptionID = strings.TrimSpace(subscriptionID)
	if subscriptionID == "" {
		return goerrors.New("graph: subscription id is required", goerrors.CategoryBadInput).
			WithCode(http.StatusBadRequest).
			WithTextCode(core.ServiceErrorBadInput)
	}
	payload, err := json.Marshal(map[string]string{
		"expirationDateTime": expiresAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return encodeError(err, "renew subscription")
	}
	endpoint := c.config.BaseURL + "/subscriptions/" + url.PathEscape(subscriptionID)
	_, err = c.roundTrip(ctx, cred, http.MethodPatch, endpoint, payload, "renew subscription")
	return err
}

func (c *Client) DeleteSubscription(ctx context.Context, cred core.Credential, subscriptionID string) error {
	subscriptionID = strings.TrimSpace(subscriptionID)
	if subscriptionID == "" {
		return goerrors.New("graph: subscription id is required", goerrors.CategoryBadInput).
			WithCode(http.StatusBadRequest).
			WithTextCode(core.ServiceErrorBadInput)
	}
	endpoint := c.config.BaseURL + "/subscriptions/" + url.PathEscape(subscriptionID)
	_, err := c.roundTrip(ctx, cred, http.MethodDelete, endpoint, nil, "delete subscription")
	return err
}

func (c *Client) roundTrip(
	ctx context.Context,
	cred core.Credential,
	method string,
	endpoint string,
	payload []byte,
	operation string,
) ([]byte, error) {
	if c == nil || c.httpClient == nil {
		return nil, goerrors.New("graph: http client is not configured", goerrors.CategoryInternal).
			WithCode(http.StatusInternalServerError).
			WithTextCode(core.ServiceErrorInternal)
	}
	if err := cred.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "graph: "+operation+" requires credentials").
			WithCode(http.StatusUnauthorized).
			WithTextCode(core.ServiceErrorCredentialsUnavailable)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	requestCtx := ctx
	cancel := func() {}
	if c.config.RequestTimeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, c.config.RequestTimeout)
	}
	defer cancel()

	var reader io.Reader
	if len(payload) > 0 {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(requestCtx, method, endpoint, reader)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "graph: build "+operation+" request").
			WithCode(http.StatusInternalServerError).
			WithTextCode(core.ServiceErrorInternal)
	}
	tokenType := strings.TrimSpace(cred.TokenType)
	if tokenType == "" {
		tokenType = "Bearer"
	}
	req.Header.Set("Authorization", tokenType+" "+cred.AccessToken)
	req.Header.Set("Accept", "application/json")
	if len(payload) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	response, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "graph: "+operation+" request failed").
			WithCode(http.StatusBadGateway).
			WithTextCode(core.ServiceErrorRemoteCallFailed)
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxResponseBodyBytes+1))
	if readErr != nil {
		return nil, goerrors.Wrap(readErr, goerrors.CategoryOperation, "graph: read "+operation+" response").
			WithCode(http.StatusBadGateway).
			WithTextCode(core.ServiceErrorRemoteCallFailed)
	}
	if int64(len(body)) > maxResponseBodyBytes {
		return nil, goerrors.New(
			fmt.Sprintf("graph: %s response exceeds %d bytes", operation, maxResponseBodyBytes),
			goerrors.CategoryOperation,
		).
			WithCode(http.StatusBadGateway).
			WithTextCode(core.ServiceErrorRemoteCallFailed)
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return nil, statusError(response.StatusCode, operation, body)
	}
	return body, nil
}

type apiErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func statusError(statusCode int, operation string, body []byte) error {
	message := "graph: " + operation + " returned status " + fmt.Sprint(statusCode)
	metadata := map[string]any{"status_code": statusCode}
	var payload apiErrorResponse
	if json.Unmarshal(body, &payload) == nil {
		if code := strings.TrimSpace(payload.Error.Code); code != "" {
			metadata["remote_code"] = code
		}
		if detail := strings.TrimSpace(payload.Error.Message); detail != "" {
			message = message + ": " + detail
		}
	}

	category := goerrors.CategoryOperation
	textCode := core.ServiceErrorRemoteCallFailed
	switch {
	case statusCode == http.StatusUnauthorized:
		category = goerrors.CategoryAuth
		textCode = core.ServiceErrorCredentialsUnavailable
	case statusCode == http.StatusForbidden:
		category = goerrors.CategoryAuthz
		textCode = core.ServiceErrorUnauthorized
	case statusCode == http.StatusNotFound:
		category = goerrors.CategoryNotFound
		textCode = core.ServiceErrorNotFound
	case statusCode == http.StatusTooManyRequests:
		category = goerrors.CategoryRateLimit
	case statusCode >= http.StatusBadRequest && statusCode < http.StatusInternalServerError:
		category = goerrors.CategoryBadInput
		textCode = core.ServiceErrorBadInput
	}

	code := statusCode
	if category == goerrors.CategoryOperation {
		code = http.StatusBadGateway
	}
	return goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode).
		WithMetadata(metadata)
}

func encodeError(err error, operation string) error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, "graph: encode "+operation+" request").
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ServiceErrorInternal)
}

func decodeError(err error, operation string) error {
	return goerrors.Wrap(err, goerrors.CategoryOperation, "graph: decode "+operation+" response").
		WithCode(http.StatusBadGateway).
		WithTextCode(core.ServiceErrorRemoteCallFailed)
}

var _ core.GraphClient = (*Client)(nil)
