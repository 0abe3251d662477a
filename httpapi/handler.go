// Package httpapi mounts the subscription lifecycle over HTTP: a subscribe
// and unsubscribe surface for signed-in users and the callback endpoints the
// remote API delivers notifications to.
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-graphwatch/core"
	"github.com/goliatone/go-graphwatch/ingress"
	glog "github.com/goliatone/go-logger/glog"
)

const maxNotificationBodyBytes = 1 << 20

// SessionResolver resolves the signed-in user behind a request into their
// delegated credentials.
type SessionResolver interface {
	Resolve(r *http.Request) (core.Credential, error)
}

type SessionResolverFunc func(r *http.Request) (core.Credential, error)

func (fn SessionResolverFunc) Resolve(r *http.Request) (core.Credential, error) {
	if fn == nil {
		return core.Credential{}, core.ErrCredentialsNotFound
	}
	return fn(r)
}

type LifecycleService interface {
	Create(ctx context.Context, req core.CreateRequest) (core.CreateResult, error)
	Delete(ctx context.Context, req core.DeleteRequest) error
}

type Handler struct {
	service    LifecycleService
	dispatcher *ingress.Dispatcher
	sessions   SessionResolver
	logger     core.Logger
	logoutURL  string
}

type HandlerOption func(*Handler)

func WithLogger(logger core.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = glog.Ensure(logger)
	}
}

// WithLogoutURL sets the redirect target after a successful unsubscribe.
func WithLogoutURL(url string) HandlerOption {
	return func(h *Handler) {
		h.logoutURL = strings.TrimSpace(url)
	}
}

func NewHandler(
	service LifecycleService,
	dispatcher *ingress.Dispatcher,
	sessions SessionResolver,
	options ...HandlerOption,
) *Handler {
	h := &Handler{
		service:    service,
		dispatcher: dispatcher,
		sessions:   sessions,
		logger:     glog.Ensure(nil),
	}
	for _, opt := range options {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/subscribe", h.Subscribe)
	r.Get("/unsubscribe", h.Unsubscribe)
	r.Post("/graph/lifecycle", h.Lifecycle)
	r.Post("/graph/notifications", h.Notifications)
	return r
}

type subscribeResponse struct {
	DisplayName       string    `json:"displayName"`
	JobTitle          string    `json:"jobTitle,omitempty"`
	UserPrincipalName string    `json:"userPrincipalName"`
	SubscriptionID    string    `json:"subscriptionId"`
	Resource          string    `json:"resource"`
	ChangeType        string    `json:"changeType"`
	ExpiresAt         time.Time `json:"expiresAt"`
}

// Subscribe provisions a subscription on behalf of the signed-in user and
// returns their profile summary next to the subscription details.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		writeErrorJSON(w, http.StatusInternalServerError, "service is not configured")
		return
	}
	cred, userID, ok := h.resolveSession(w, r)
	if !ok {
		return
	}

	result, err := h.service.Create(r.Context(), core.CreateRequest{
		OwnerID:    userID,
		Credential: cred,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, subscribeResponse{
		DisplayName:       result.Profile.DisplayName,
		JobTitle:          result.Profile.JobTitle,
		UserPrincipalName: result.Profile.UserPrincipalName,
		SubscriptionID:    result.Subscription.ID,
		Resource:          result.Subscription.Resource,
		ChangeType:        result.Subscription.ChangeType,
		ExpiresAt:         result.Subscription.ExpiresAt,
	})
}

// Unsubscribe tears down the subscription passed in the subscriptionId query
// parameter and redirects to the logout URL when one is configured.
func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		writeErrorJSON(w, http.StatusInternalServerError, "service is not configured")
		return
	}
	subscriptionID := strings.TrimSpace(r.URL.Query().Get("subscriptionId"))
	if subscriptionID == "" {
		writeErrorJSON(w, http.StatusBadRequest, "subscriptionId query parameter is required")
		return
	}
	cred, _, ok := h.resolveSession(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), core.DeleteRequest{
		SubscriptionID: subscriptionID,
		Credential:     cred,
	}); err != nil {
		h.writeError(w, err)
		return
	}

	if h.logoutURL != "" {
		http.Redirect(w, r, h.logoutURL, http.StatusFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Lifecycle receives lifecycle event envelopes. Every delivery is
// acknowledged with an empty 200 once processing was attempted; malformed
// payloads and renewal failures are logged, never surfaced to the caller.
func (h *Handler) Lifecycle(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.dispatcher == nil {
		writeErrorJSON(w, http.StatusInternalServerError, "dispatcher is not configured")
		return
	}
	if token := validationToken(r); token != "" {
		writePlainText(w, http.StatusOK, token)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxNotificationBodyBytes))
	if err != nil {
		h.logger.Warn("unreadable lifecycle request body, acknowledged", "error", err.Error())
		w.WriteHeader(http.StatusOK)
		return
	}

	ack, err := h.dispatcher.Dispatch(r.Context(), body)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(ack.StatusCode)
}

// Notifications receives change notifications. The endpoint answers the
// remote API's validation handshake and otherwise accepts deliveries without
// processing them; change handling is out of band.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	if token := validationToken(r); token != "" {
		writePlainText(w, http.StatusOK, token)
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(r.Body, maxNotificationBodyBytes))
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) resolveSession(w http.ResponseWriter, r *http.Request) (core.Credential, string, bool) {
	if h.sessions == nil {
		writeErrorJSON(w, http.StatusUnauthorized, "no session resolver configured")
		return core.Credential{}, "", false
	}
	cred, err := h.sessions.Resolve(r)
	if err != nil {
		h.logger.Info("request without a resolvable session", "error", err.Error())
		writeErrorJSON(w, http.StatusUnauthorized, "sign-in required")
		return core.Credential{}, "", false
	}
	userID := strings.TrimSpace(cred.UserID)
	if userID == "" {
		writeErrorJSON(w, http.StatusUnauthorized, "session has no user id")
		return core.Credential{}, "", false
	}
	return cred, userID, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if richErr.Code > 0 {
			status = richErr.Code
		}
		if strings.TrimSpace(richErr.Message) != "" {
			message = richErr.Message
		}
	}
	h.logger.Error("request failed", "status", status, "error", err.Error())
	writeErrorJSON(w, status, message)
}

func validationToken(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("validationToken"))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeErrorJSON(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writePlainText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
