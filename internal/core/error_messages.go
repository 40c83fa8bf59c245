package core

// error_messages.go maps technical errors to user-facing messages with codes.
//
// Users quote the code to support staff. Codes are grouped by category:
//
//	VAL001-VAL099  row validation (formats, ranges, enums, ordering)
//	REF001-REF099  reference data (unknown identifiers, lookup failures)
//	FILE001-FILE099 file structure (size, header, encoding, shape)
//	API001-API099  remote fleet service
//	IMP001-IMP099  import lifecycle (cancelled, busy, expired, history)
//	RATE001        request throttling
//	ERR000         fallback; check the logs for the technical error
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns must come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// =========================================================================
	// Import lifecycle (IMP001-IMP004)
	// =========================================================================
	{
		pattern: "import cancelled",
		msg: UserMessage{
			Message: "Import was cancelled",
			Action:  "Records before the cancellation were submitted. Start a new import for the rest",
			Code:    "IMP001",
		},
	},
	{
		pattern: "too many concurrent imports",
		msg: UserMessage{
			Message: "System is busy processing other imports",
			Action:  "Please wait a moment and try again",
			Code:    "IMP002",
		},
	},
	{
		pattern: "import not found",
		msg: UserMessage{
			Message: "Import session not found",
			Action:  "The import may have expired. Check the import history",
			Code:    "IMP003",
		},
	},
	{
		pattern: "unknown import kind",
		msg: UserMessage{
			Message: "Unknown import type",
			Action:  "Choose vehicles or maintenance",
			Code:    "IMP004",
		},
	},
	{
		pattern: "history is not configured",
		msg: UserMessage{
			Message: "Import history is not enabled on this server",
			Action:  "Configure DATABASE_URL to keep a history of imports",
			Code:    "IMP005",
		},
	},
	{
		pattern: "invalid import option",
		msg: UserMessage{
			Message: "Import options are not valid",
			Action:  "Use policy fail-fast or best-effort, and true or false for skip_malformed",
			Code:    "IMP006",
		},
	},

	// =========================================================================
	// Reference data (REF001-REF002)
	// =========================================================================
	{
		pattern: "not found in reference data",
		msg: UserMessage{
			Message: "A referenced vehicle does not exist",
			Action:  "Create the vehicle first or correct the ID",
			Code:    "REF001",
		},
	},
	{
		pattern: "load reference data",
		msg: UserMessage{
			Message: "Could not load the list of known vehicles",
			Action:  "Check that the fleet service is reachable and try again",
			Code:    "REF002",
		},
	},

	// =========================================================================
	// File structure (FILE001-FILE006)
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "missing required column",
		msg: UserMessage{
			Message: "Required column is missing from the file",
			Action:  "Download the template and compare the header row",
			Code:    "FILE002",
		},
	},
	{
		pattern: "malformed row",
		msg: UserMessage{
			Message: "A row has the wrong number of fields",
			Action:  "Check for extra or missing delimiters on that line",
			Code:    "FILE003",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not valid delimited text",
			Action:  "Ensure the file is comma-separated with consistent columns",
			Code:    "FILE004",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV file to import",
			Code:    "FILE005",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The file has no data rows",
			Action:  "Please upload a CSV file with a header and at least one row",
			Code:    "FILE006",
		},
	},

	// =========================================================================
	// Row validation (VAL001-VAL007)
	// =========================================================================
	{
		pattern: "invalid date",
		msg: UserMessage{
			Message: "Invalid date format detected",
			Action:  "Use YYYY-MM-DD or an ISO timestamp such as 2024-01-15T08:00:00Z",
			Code:    "VAL001",
		},
	},
	{
		pattern: "invalid number",
		msg: UserMessage{
			Message: "Invalid number format detected",
			Action:  "Use plain decimal numbers without units",
			Code:    "VAL002",
		},
	},
	{
		pattern: "out of range",
		msg: UserMessage{
			Message: "A number is too large",
			Action:  "Check the value for typing mistakes",
			Code:    "VAL002",
		},
	},
	{
		pattern: "required field",
		msg: UserMessage{
			Message: "Required field is empty",
			Action:  "Ensure all required columns have values",
			Code:    "VAL003",
		},
	},
	{
		pattern: "negative value",
		msg: UserMessage{
			Message: "Capacities, levels and coordinates cannot be negative",
			Action:  "Correct the value to zero or more",
			Code:    "VAL004",
		},
	},
	{
		pattern: "must be before",
		msg: UserMessage{
			Message: "End date is not after start date",
			Action:  "Make sure each maintenance window ends after it starts",
			Code:    "VAL005",
		},
	},
	{
		pattern: "invalid enum",
		msg: UserMessage{
			Message: "Value is not in the allowed list",
			Action:  "Check the allowed values for this field",
			Code:    "VAL006",
		},
	},

	// =========================================================================
	// Remote fleet service (API001-API005)
	// =========================================================================
	{
		pattern: "status=409",
		msg: UserMessage{
			Message: "The record already exists in the fleet service",
			Action:  "Remove duplicates or update the existing record instead",
			Code:    "API001",
		},
	},
	{
		pattern: "status=400",
		msg: UserMessage{
			Message: "The fleet service rejected the record",
			Action:  "Download failed rows to review the rejected values",
			Code:    "API002",
		},
	},
	{
		pattern: "status=5",
		msg: UserMessage{
			Message: "The fleet service reported an internal error",
			Action:  "Please try again later",
			Code:    "API003",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to reach the fleet service",
			Action:  "Please try again in a few moments",
			Code:    "API004",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "The fleet service did not answer in time",
			Action:  "Try a smaller file or try again later",
			Code:    "API005",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "The fleet service did not answer in time",
			Action:  "Try a smaller file or try again later",
			Code:    "API005",
		},
	},

	// =========================================================================
	// Rate limiting (RATE001)
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// If no pattern matches, a generic fallback message with code ERR000 is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
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

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
