package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ServiceErrorBadInput               = "GRAPHWATCH_BAD_INPUT"
	ServiceErrorNotFound               = "GRAPHWATCH_SUBSCRIPTION_NOT_FOUND"
	ServiceErrorCreateFailed           = "GRAPHWATCH_CREATE_FAILED"
	ServiceErrorMalformedNotification  = "GRAPHWATCH_MALFORMED_NOTIFICATION"
	ServiceErrorCredentialsUnavailable = "GRAPHWATCH_CREDENTIALS_UNAVAILABLE"
	ServiceErrorRemoteCallFailed       = "GRAPHWATCH_REMOTE_CALL_FAILED"
	ServiceErrorUnauthorized           = "GRAPHWATCH_UNAUTHORIZED"
	ServiceErrorConflict               = "GRAPHWATCH_CONFLICT"
	ServiceErrorInternal               = "GRAPHWATCH_INTERNAL_ERROR"
)

func serviceErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}

	if goerrors.Is(err, ErrSubscriptionNotFound) {
		return newServiceError(err.Error(), goerrors.CategoryNotFound, ServiceErrorNotFound)
	}
	if goerrors.Is(err, ErrCredentialsNotFound) {
		return newServiceError(err.Error(), goerrors.CategoryAuth, ServiceErrorCredentialsUnavailable)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "credential"):
		return newServiceError(err.Error(), goerrors.CategoryAuth, ServiceErrorCredentialsUnavailable)
	case strings.Contains(msg, "malformed"), strings.Contains(msg, "decode"), strings.Contains(msg, "unmarshal"):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, ServiceErrorMalformedNotification)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, ServiceErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureServiceErrorEnvelope(mapped)
}

func newServiceError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureServiceErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureServiceErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = serviceHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultServiceTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultServiceTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ServiceErrorBadInput
	case goerrors.CategoryNotFound:
		return ServiceErrorNotFound
	case goerrors.CategoryAuth:
		return ServiceErrorCredentialsUnavailable
	case goerrors.CategoryAuthz:
		return ServiceErrorUnauthorized
	case goerrors.CategoryConflict:
		return ServiceErrorConflict
	case goerrors.CategoryOperation:
		return ServiceErrorRemoteCallFailed
	default:
		return ServiceErrorInternal
	}
}

func serviceHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryOperation:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	mapper := defaultErrorMapper
	if s != nil && s.errorMapper != nil {
		mapper = s.errorMapper
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func remoteCallError(err error, operation string) error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}
	return goerrors.Wrap(err, goerrors.CategoryOperation, "core: "+operation+" remote call failed").
		WithCode(http.StatusBadGateway).
		WithTextCode(ServiceErrorRemoteCallFailed)
}

func creationError(err error) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryOperation, "core: subscription creation failed").
		WithCode(http.StatusBadGateway).
		WithTextCode(ServiceErrorCreateFailed)
}
