package core

// error_messages.go maps technical errors to user-facing messages with a
// code for support reference.
//
// Codes by category:
//
//	SCH001 - Schema mismatch: file does not have the CF, NOME, DN, SALARIO layout
//	SCH002 - Missing header: file is empty or lacks a header row
//	CLS001 - Classification invariant: an accepted value failed its cast (defect)
//	RUN001 - Run exists: the run id was already processed in this session
//	RUN002 - Run not found: no run with that id
//	RUN003 - System busy: too many runs in progress
//	TBL001 - Column mismatch: tables with different columns cannot be combined
//	TBL002 - Unknown column: the requested column does not exist
//	TBL003 - Unsupported operator: the filter operator is not recognized
//	DB001  - Connection refused: storage is unreachable
//	DB002  - Timeout: storage did not answer in time
//	REQ001 - Request cancelled
//	REQ002 - Request timeout
//	ERR000 - Unknown error
//
// Typed errors are matched first (errors.As / errors.Is); remaining errors
// fall back to case-insensitive substring patterns, first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgSchema = UserMessage{
		Message: "The file does not match the expected layout",
		Action:  "Provide a CSV with a header row and exactly the columns CF, NOME, DN, SALARIO",
		Code:    "SCH001",
	}
	msgNoHeader = UserMessage{
		Message: "The file is empty or has no header row",
		Action:  "Add the header CF,NOME,DN,SALARIO as the first line",
		Code:    "SCH002",
	}
	msgInvariant = UserMessage{
		Message: "An accepted record could not be converted",
		Action:  "This is an internal error; report it with the run id",
		Code:    "CLS001",
	}
	msgRunExists = UserMessage{
		Message: "This run id has already been processed",
		Action:  "Choose a different run id",
		Code:    "RUN001",
	}
	msgRunNotFound = UserMessage{
		Message: "No run with this id",
		Action:  "List runs to see the available ids",
		Code:    "RUN002",
	}
	msgBusy = UserMessage{
		Message: "Too many runs in progress",
		Action:  "Please wait a moment and try again",
		Code:    "RUN003",
	}
	msgColumnMismatch = UserMessage{
		Message: "Tables with different columns cannot be combined",
		Action:  "Combine only accepted with accepted, or rejected with rejected",
		Code:    "TBL001",
	}
	msgUnknownColumn = UserMessage{
		Message: "The requested column does not exist",
		Action:  "Use one of IDRUN, CF, NOME, DN, SALARIO, DINS",
		Code:    "TBL002",
	}
	msgBadOperator = UserMessage{
		Message: "The filter operator is not supported",
		Action:  "Use one of contains, eq, starts, ends, gt, gte, lt, lte, in",
		Code:    "TBL003",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "REQ001",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "REQ002",
	}
)

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns catch errors that arrive without a typed cause, such as
// driver errors from storage.
var errorPatterns = []errorPattern{
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to storage",
			Action:  "Please try again in a few moments",
			Code:    "DB001",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Storage did not answer in time",
			Action:  "Please try again later",
			Code:    "DB002",
		},
	},
	{pattern: "rate limit", msg: msgBusy},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var schemaErr *SchemaMismatchError
	if errors.As(err, &schemaErr) {
		if strings.Contains(schemaErr.Reason, "missing header") {
			return msgNoHeader
		}
		return msgSchema
	}

	var invErr *ClassificationInvariantError
	if errors.As(err, &invErr) {
		return msgInvariant
	}

	switch {
	case errors.Is(err, ErrRunExists):
		return msgRunExists
	case errors.Is(err, ErrRunNotFound):
		return msgRunNotFound
	case errors.Is(err, ErrTooManyRuns):
		return msgBusy
	case errors.Is(err, ErrColumnMismatch):
		return msgColumnMismatch
	case errors.Is(err, ErrUnknownColumn):
		return msgUnknownColumn
	case errors.Is(err, ErrUnsupportedOperator):
		return msgBadOperator
	case errors.Is(err, context.Canceled):
		return msgCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeout
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
