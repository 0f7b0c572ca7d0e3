package identity

import (
	"errors"
	"fmt"
)

// Provider error codes surfaced to callers.
const (
	CodeInvalidCredential   = "auth/invalid-credential"
	CodeWrongPassword       = "auth/wrong-password"
	CodeUserNotFound        = "auth/user-not-found"
	CodeEmailInUse          = "auth/email-already-in-use"
	CodeWeakPassword        = "auth/weak-password"
	CodeInvalidEmail        = "auth/invalid-email"
	CodeOperationNotAllowed = "auth/operation-not-allowed"
	CodeUserDisabled        = "auth/user-disabled"
	CodeRequiresRecentLogin = "auth/requires-recent-login"
	CodeNetworkFailed       = "auth/network-request-failed"
	CodeTooManyRequests     = "auth/too-many-requests"
	CodePopupClosed         = "auth/popup-closed-by-user"
	CodeAccountExists       = "auth/account-exists-with-different-credential"

	// Codes without a dedicated message; they fall back to GenericMessage.
	CodeInvalidIDToken     = "auth/invalid-id-token"
	CodeInvalidState       = "auth/invalid-oauth-state"
	CodeInvalidDisplayName = "auth/invalid-display-name"
	CodeSessionSyncFailed  = "auth/session-sync-failed"
	CodeInternal           = "auth/internal-error"
)

// GenericMessage is shown for codes with no dedicated message.
const GenericMessage = "An error occurred. Please try again"

var messages = map[string]string{
	CodeInvalidCredential:   "Invalid email or password",
	CodeWrongPassword:       "Invalid email or password",
	CodeUserNotFound:        "No account found with this email",
	CodeEmailInUse:          "An account already exists with this email",
	CodeWeakPassword:        "Password should be at least 6 characters",
	CodeInvalidEmail:        "Invalid email address",
	CodeOperationNotAllowed: "This sign-in method is not enabled",
	CodeUserDisabled:        "This account has been disabled",
	CodeRequiresRecentLogin: "Please sign in again to perform this action",
	CodeNetworkFailed:       "Network error. Please check your connection",
	CodeTooManyRequests:     "Too many failed attempts. Please try again later",
	CodePopupClosed:         "Sign-in popup was closed",
	CodeAccountExists:       "An account already exists with this email. Sign in with the method you used before",
}

// Message maps a provider error code to its user-facing string.
func Message(code string) string {
	if m, ok := messages[code]; ok {
		return m
	}
	return GenericMessage
}

// AuthError is a provider error identified by a stable code.
type AuthError struct {
	Code string
	Op   string // operation that failed, e.g. "signIn"
	Err  error  // underlying cause, may be nil
}

// NewError builds an AuthError for op with the given code.
func NewError(op, code string, cause error) *AuthError {
	return &AuthError{Code: code, Op: op, Err: cause}
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Message returns the user-facing string for the error's code.
func (e *AuthError) Message() string { return Message(e.Code) }

// Code extracts the provider code from err, or "" when err is not an AuthError.
func Code(err error) string {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// UserMessage returns the user-facing string for any error.
func UserMessage(err error) string {
	return Message(Code(err))
}
