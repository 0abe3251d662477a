package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestServiceErrorMapper_SentinelErrors(t *testing.T) {
	mapped := serviceErrorMapper(ErrSubscriptionNotFound)
	if mapped == nil {
		t.Fatalf("expected mapped error")
	}
	if mapped.Category != goerrors.CategoryNotFound {
		t.Fatalf("expected not-found category, got %v", mapped.Category)
	}
	if mapped.TextCode != ServiceErrorNotFound {
		t.Fatalf("expected text code %q, got %q", ServiceErrorNotFound, mapped.TextCode)
	}
	if mapped.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", mapped.Code)
	}

	mapped = serviceErrorMapper(fmt.Errorf("lookup: %w", ErrCredentialsNotFound))
	if mapped.TextCode != ServiceErrorCredentialsUnavailable {
		t.Fatalf("expected credentials text code, got %q", mapped.TextCode)
	}
	if mapped.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", mapped.Code)
	}
}

func TestServiceErrorMapper_PreservesRichErrors(t *testing.T) {
	original := goerrors.New("upstream refused", goerrors.CategoryRateLimit).
		WithTextCode("CUSTOM_CODE")
	mapped := serviceErrorMapper(original)
	if mapped.TextCode != "CUSTOM_CODE" {
		t.Fatalf("expected custom text code preserved, got %q", mapped.TextCode)
	}
	if mapped.Code != http.StatusTooManyRequests {
		t.Fatalf("expected rate limit status filled in, got %d", mapped.Code)
	}
}

func TestServiceErrorMapper_MessageHeuristics(t *testing.T) {
	cases := []struct {
		message  string
		textCode string
	}{
		{"core: owner id is required", ServiceErrorBadInput},
		{"decode envelope: unexpected end of input", ServiceErrorMalformedNotification},
		{"credential exchange rejected", ServiceErrorCredentialsUnavailable},
	}
	for _, tc := range cases {
		mapped := serviceErrorMapper(errors.New(tc.message))
		if mapped.TextCode != tc.textCode {
			t.Fatalf("message %q: expected %q, got %q", tc.message, tc.textCode, mapped.TextCode)
		}
	}
}

func TestRemoteCallError_WrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := remoteCallError(cause, "renew subscription")
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected rich error, got %T", err)
	}
	if richErr.Category != goerrors.CategoryOperation {
		t.Fatalf("expected operation category, got %v", richErr.Category)
	}
	if richErr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", richErr.Code)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to survive wrapping")
	}
}

func TestCreationError_KeepsDedicatedCode(t *testing.T) {
	err := creationError(errors.New("boom"))
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected rich error, got %T", err)
	}
	if richErr.TextCode != ServiceErrorCreateFailed {
		t.Fatalf("expected create-failed text code, got %q", richErr.TextCode)
	}
}
