package feishusdk

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a response from the open platform carrying a non-zero code or
// an HTTP error status.
type APIError struct {
	Op         string
	HTTPStatus int
	Code       int
	Msg        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("feishu: %s failed http=%d code=%d msg=%s", e.Op, e.HTTPStatus, e.Code, e.Msg)
}

// TransportError wraps failures that never produced a usable response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("feishu: %s transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Token failures reported by the open platform gateway.
var authCodes = map[int]struct{}{
	99991661: {}, // missing access token
	99991663: {}, // invalid tenant access token
	99991664: {}, // invalid app access token
	99991665: {}, // invalid user access token
	99991668: {}, // invalid user access token
	99991671: {}, // malformed access token
	99991672: {}, // app lacks the required scope
	99991677: {}, // access token expired
}

// Receive-id failures of the message API.
var destinationCodes = map[int]struct{}{
	230001: {}, // invalid request parameter, receive_id included
	230002: {}, // bot is not in the chat
	230013: {}, // bot has no availability to the target
	230017: {}, // chat is disbanded

	99992402: {}, // field validation failed
}

// IsAuthError reports whether err is a rejected access token.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if _, ok := authCodes[apiErr.Code]; ok {
		return true
	}
	return apiErr.Code == 0 && (apiErr.HTTPStatus == http.StatusUnauthorized || apiErr.HTTPStatus == http.StatusForbidden)
}

// IsDestinationError reports whether err rejects the target chat.
func IsDestinationError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	_, ok := destinationCodes[apiErr.Code]
	return ok
}

// IsTransportError reports whether err never reached a decodable response,
// including gateway 5xx responses without a platform code.
func IsTransportError(err error) bool {
	var tErr *TransportError
	if errors.As(err, &tErr) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 0 && apiErr.HTTPStatus >= http.StatusInternalServerError
	}
	return false
}
