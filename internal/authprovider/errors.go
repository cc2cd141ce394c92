package authprovider

import (
	"strings"

	pkgerrors "github.com/tomaskub292929/to-korea-sub000/pkg/errors"
)

// ErrorCode is a provider failure code in the "auth/<reason>" form clients
// already switch on.
type ErrorCode string

const (
	ErrEmailAlreadyInUse      ErrorCode = "auth/email-already-in-use"
	ErrInvalidEmail           ErrorCode = "auth/invalid-email"
	ErrWeakPassword           ErrorCode = "auth/weak-password"
	ErrUserNotFound           ErrorCode = "auth/user-not-found"
	ErrWrongPassword          ErrorCode = "auth/wrong-password"
	ErrTooManyRequests        ErrorCode = "auth/too-many-requests"
	ErrNetworkRequestFailed   ErrorCode = "auth/network-request-failed"
	ErrPopupClosedByUser      ErrorCode = "auth/popup-closed-by-user"
	ErrPopupBlocked           ErrorCode = "auth/popup-blocked"
	ErrAccountExistsDifferent ErrorCode = "auth/account-exists-with-different-credential"
	ErrInvalidCredential      ErrorCode = "auth/invalid-credential"
	ErrSessionExpired         ErrorCode = "auth/session-expired"
	ErrProviderNotConfigured  ErrorCode = "auth/operation-not-allowed"
	ErrInvalidActionCode      ErrorCode = "auth/invalid-action-code"
	ErrNoCurrentUser          ErrorCode = "auth/no-current-user"
)

const defaultMessage = "An unexpected error occurred. Please try again."

var messages = map[ErrorCode]string{
	ErrEmailAlreadyInUse:      "This email is already registered. Please login instead.",
	ErrInvalidEmail:           "Invalid email address format.",
	ErrWeakPassword:           "Password should be at least 8 characters long.",
	ErrUserNotFound:           "No account found with this email.",
	ErrWrongPassword:          "Incorrect password. Please try again.",
	ErrTooManyRequests:        "Too many failed attempts. Please try again later.",
	ErrNetworkRequestFailed:   "Network error. Please check your connection.",
	ErrPopupClosedByUser:      "Sign-in popup was closed. Please try again.",
	ErrPopupBlocked:           "Popup was blocked by browser. Please allow popups for this site.",
	ErrAccountExistsDifferent: "An account already exists with this email using a different sign-in method.",
	ErrInvalidActionCode:      "This link is invalid or has expired. Please request a new one.",
	ErrNoCurrentUser:          "No user is currently signed in.",
}

var apiCodes = map[ErrorCode]pkgerrors.Code{
	ErrEmailAlreadyInUse:      pkgerrors.CodeConflict,
	ErrInvalidEmail:           pkgerrors.CodeValidation,
	ErrWeakPassword:           pkgerrors.CodeValidation,
	ErrUserNotFound:           pkgerrors.CodeUnauthorized,
	ErrWrongPassword:          pkgerrors.CodeUnauthorized,
	ErrTooManyRequests:        pkgerrors.CodeRateLimit,
	ErrNetworkRequestFailed:   pkgerrors.CodeDependency,
	ErrPopupClosedByUser:      pkgerrors.CodeValidation,
	ErrPopupBlocked:           pkgerrors.CodeValidation,
	ErrAccountExistsDifferent: pkgerrors.CodeConflict,
	ErrInvalidCredential:      pkgerrors.CodeUnauthorized,
	ErrSessionExpired:         pkgerrors.CodeUnauthorized,
	ErrProviderNotConfigured:  pkgerrors.CodeForbidden,
	ErrInvalidActionCode:      pkgerrors.CodeValidation,
	ErrNoCurrentUser:          pkgerrors.CodeUnauthorized,
}

// MessageFor maps a provider code onto the sentence shown to users. The
// "auth/" prefix is optional. Unknown codes get a generic message.
func MessageFor(code string) string {
	key := ErrorCode(strings.TrimSpace(code))
	if !strings.HasPrefix(string(key), "auth/") {
		key = "auth/" + key
	}
	if msg, ok := messages[key]; ok {
		return msg
	}
	return defaultMessage
}

// newError wraps cause into a typed error carrying the provider code and its
// user-facing message.
func newError(code ErrorCode, cause error) *pkgerrors.Error {
	apiCode, ok := apiCodes[code]
	if !ok {
		apiCode = pkgerrors.CodeInternal
	}
	return pkgerrors.Wrap(apiCode, cause, MessageFor(string(code))).
		WithDetails(map[string]any{"authCode": string(code)})
}

// CodeOf extracts the provider code from err, if it carries one.
func CodeOf(err error) (ErrorCode, bool) {
	typed := pkgerrors.As(err)
	if typed == nil {
		return "", false
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		return "", false
	}
	raw, ok := details["authCode"].(string)
	if !ok {
		return "", false
	}
	return ErrorCode(raw), true
}
