package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers (and for transport status mapping).
type Kind int

const (
	KindFailure Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindValidation
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "Unauthorized"
	case KindForbidden:
		return "Forbidden"
	case KindNotFound:
		return "NotFound"
	case KindValidation:
		return "ValidationError"
	case KindConflict:
		return "Conflict"
	default:
		return "Failure"
	}
}

// Error is a domain error carrying a kind, a stable code and a human-readable message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Failure builds a KindFailure error for a collaborator write that did not apply.
func Failure(code, format string, args ...any) *Error {
	return newError(KindFailure, code, fmt.Sprintf(format, args...))
}

// Invalid builds a validation error for malformed caller input.
func Invalid(format string, args ...any) *Error {
	return newError(KindValidation, ErrInvalidInput.Code, fmt.Sprintf(format, args...))
}

// KindOf reports the kind of err, looking through wrapping. Unknown errors are failures.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindFailure
}

var (
	ErrUnauthorized = newError(KindUnauthorized, "Session.Unauthorized", "user not authenticated")
	ErrForbidden    = newError(KindForbidden, "Session.NotHost", "only the session host can do this")

	ErrSessionNotFound     = newError(KindNotFound, "Session.NotFound", "session not found")
	ErrParticipantNotFound = newError(KindNotFound, "Participant.NotFound", "participant not found")
	ErrQuestionNotFound    = newError(KindNotFound, "Question.NotFound", "question not found")
	ErrBankNotFound        = newError(KindNotFound, "QuestionBank.NotFound", "question bank not found")
	ErrNotJoinable         = newError(KindNotFound, "Session.NotJoinable", "session is not accepting participants")
	ErrNoActiveQuestion    = newError(KindNotFound, "Question.NoActive", "no active question")
	// ErrNoMoreQuestions signals the normal end of the question queue.
	ErrNoMoreQuestions = newError(KindNotFound, "Question.NoMore", "no more questions in queue")

	ErrInvalidTransition    = newError(KindValidation, "Session.InvalidTransition", "transition not allowed from current status")
	ErrLateJoinDisabled     = newError(KindValidation, "Session.LateJoinDisabled", "late join is not allowed for this session")
	ErrSessionFull          = newError(KindValidation, "Session.Full", "session has reached maximum participants")
	ErrSessionNotRunning    = newError(KindValidation, "Session.NotRunning", "session is not in progress")
	ErrInvalidTimeExtension = newError(KindValidation, "Question.InvalidTimeExtension", "additional seconds must be between 1 and 120")
	ErrQuestionMismatch     = newError(KindValidation, "Question.Mismatch", "question does not belong to the participant's session")
	ErrQuestionNotActive    = newError(KindValidation, "Question.NotActive", "question is not active")
	ErrParticipantInactive  = newError(KindValidation, "Participant.Inactive", "participant has left the session")
	ErrMissingOption        = newError(KindValidation, "Response.MissingOption", "an option must be selected")
	ErrInvalidOption        = newError(KindValidation, "Response.InvalidOption", "option does not belong to this question")
	ErrMissingText          = newError(KindValidation, "Response.MissingText", "response text is required")
	ErrMissingCoordinates   = newError(KindValidation, "Response.MissingCoordinates", "response coordinates are required")
	ErrInvalidCoordinates   = newError(KindValidation, "Response.InvalidCoordinates", "response coordinates are out of range")
	ErrNoCorrectLocation    = newError(KindValidation, "Question.NoCorrectLocation", "question has no correct location")
	ErrUnsupportedType      = newError(KindValidation, "Question.UnsupportedType", "unsupported question type")
	ErrInvalidInput         = newError(KindValidation, "Request.Invalid", "invalid request")

	ErrAlreadyJoined    = newError(KindConflict, "Session.AlreadyJoined", "you have already joined this session")
	ErrAlreadySubmitted = newError(KindConflict, "Response.AlreadySubmitted", "a response was already submitted for this question")
	// ErrJoinCodeTaken is returned by stores when a join code collides with an existing session.
	ErrJoinCodeTaken = newError(KindConflict, "Session.CodeTaken", "join code already in use")

	ErrJoinCodeExhausted = newError(KindFailure, "Session.CodeExhausted", "could not generate a unique join code")
)
