package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/quizforge/quiztaker/internal/dto"
)

// ErrorKind classifies backend failures into the buckets the attempt flow
// branches on.
type ErrorKind string

const (
	// KindTransient covers network errors and 5xx responses; the caller may
	// retry loading the current question.
	KindTransient ErrorKind = "transient"
	// KindNotFound means the quiz, attempt or question does not exist.
	KindNotFound ErrorKind = "not_found"
	// KindSessionExpired means the session or CSRF token is no longer valid.
	// Not recoverable without a full restart.
	KindSessionExpired ErrorKind = "session_expired"
	// KindAlreadySubmitted means the answer for this question was already
	// recorded (auto-submit raced a manual submit). Treated as success.
	KindAlreadySubmitted ErrorKind = "already_submitted"
	// KindRejected covers validation-style rejections that are neither
	// retryable nor fatal to the session.
	KindRejected ErrorKind = "rejected"
)

// Error is a classified backend error.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend error %s (%s): %s", e.Code, e.Kind, e.Message)
	}
	return fmt.Sprintf("backend error (%s): %s", e.Kind, e.Message)
}

// KindOf extracts the kind from any error; non-API errors count as transient.
func KindOf(err error) ErrorKind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindTransient
}

func classify(status int, body dto.ErrorResponse) *Error {
	kind := KindTransient
	switch body.Code {
	case dto.CodeAnswerAlreadySubmitted:
		kind = KindAlreadySubmitted
	case dto.CodeSessionExpired, dto.CodeCSRFMismatch:
		kind = KindSessionExpired
	case dto.CodeNotFound:
		kind = KindNotFound
	case dto.CodeRegistrationRequired, dto.CodeAttemptLimitReached, dto.CodeAttemptFinalized:
		kind = KindRejected
	default:
		switch {
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			kind = KindSessionExpired
		case status == http.StatusNotFound:
			kind = KindNotFound
		case status >= 400 && status < 500:
			kind = KindRejected
		}
	}
	msg := body.Message
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &Error{Kind: kind, StatusCode: status, Code: body.Code, Message: msg}
}
