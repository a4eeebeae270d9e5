package auth

// Error is an auth failure carrying a stable code and the message shown by
// the provider API. Compare with errors.Is against the Err* values.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// ErrorCode returns the stable code used by error mapping tables.
func (e *Error) ErrorCode() string {
	return e.Code
}

// Auth errors.
var (
	ErrInvalidCredentials = &Error{Code: "invalid_credentials", Message: "Invalid login credentials"}
	ErrEmailNotConfirmed  = &Error{Code: "email_not_confirmed", Message: "Email not confirmed"}
	ErrUserExists         = &Error{Code: "user_already_exists", Message: "User already registered"}
	ErrWeakPassword       = &Error{Code: "weak_password", Message: "Password should be at least 8 characters and contain upper and lower case letters, a number and a symbol"}
	ErrInvalidEmail       = &Error{Code: "email_address_invalid", Message: "Unable to validate email address: invalid format"}
	ErrEmailRateLimited   = &Error{Code: "over_email_send_rate_limit", Message: "Email rate limit exceeded"}
	ErrInvalidToken       = &Error{Code: "otp_expired", Message: "Token has expired or is invalid"}
	ErrSamePassword       = &Error{Code: "same_password", Message: "New password should be different from the old password"}
	ErrUnderage           = &Error{Code: "underage", Message: "User must be at least 13 years old"}
	ErrSessionMissing     = &Error{Code: "session_not_found", Message: "Auth session missing"}
	ErrUserNotFound       = &Error{Code: "user_not_found", Message: "User not found"}
)
