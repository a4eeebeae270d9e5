// Package autherr maps auth failures to messages shown to users and the
// action they should take next.
package autherr

import (
	"errors"
	"strings"
)

// Action is the next step suggested to the user.
type Action string

const (
	ActionVerifyCredentials  Action = "verify-credentials"
	ActionResendConfirmation Action = "resend-confirmation"
	ActionSignIn             Action = "sign-in"
	ActionResetPassword      Action = "reset-password"
	ActionWait               Action = "wait"
	ActionChoosePassword     Action = "choose-password"
	ActionFixInput           Action = "fix-input"
	ActionRetry              Action = "retry"
)

// Label is the button text for the action.
func (a Action) Label() string {
	switch a {
	case ActionVerifyCredentials:
		return "Check your email and password"
	case ActionResendConfirmation:
		return "Resend confirmation email"
	case ActionSignIn:
		return "Sign in"
	case ActionResetPassword:
		return "Reset your password"
	case ActionWait:
		return "Try again in a minute"
	case ActionChoosePassword:
		return "Choose a different password"
	case ActionFixInput:
		return "Fix the highlighted field"
	default:
		return "Try again"
	}
}

// Mapped is the user-facing form of an error.
type Mapped struct {
	Code        string `json:"code"`
	UserMessage string `json:"message"`
	Action      Action `json:"action"`
}

// rule matches an error message containing Match (case-insensitive) or an
// error whose ErrorCode equals Code.
type rule struct {
	Match string
	Mapped
}

var rules = []rule{
	{"invalid login credentials", Mapped{"invalid_credentials", "The email or password you entered is incorrect.", ActionVerifyCredentials}},
	{"email not confirmed", Mapped{"email_not_confirmed", "Please confirm your email address before signing in. Check your inbox for the confirmation link.", ActionResendConfirmation}},
	{"user already registered", Mapped{"user_already_exists", "An account with this email already exists. Try signing in instead.", ActionSignIn}},
	{"password should be at least", Mapped{"weak_password", "Your password must be at least 8 characters and include upper and lower case letters, a number and a symbol.", ActionChoosePassword}},
	{"unable to validate email address", Mapped{"email_address_invalid", "Please enter a valid email address.", ActionFixInput}},
	{"email rate limit exceeded", Mapped{"over_email_send_rate_limit", "Too many emails have been sent to this address. Please wait a minute and try again.", ActionWait}},
	{"token has expired or is invalid", Mapped{"otp_expired", "This link has expired or was already used. Request a new one.", ActionResetPassword}},
	{"new password should be different", Mapped{"same_password", "Your new password must be different from your current password.", ActionChoosePassword}},
	{"must be at least 13 years old", Mapped{"underage", "You must be at least 13 years old to create an account.", ActionFixInput}},
	{"auth session missing", Mapped{"session_not_found", "Your session has expired. Please sign in again.", ActionSignIn}},
	{"user not found", Mapped{"user_not_found", "We couldn't find an account with that email.", ActionSignIn}},
}

// Unexpected is returned for errors that match no rule.
var Unexpected = Mapped{
	Code:        "unexpected_failure",
	UserMessage: "An unexpected error occurred. Please try again.",
	Action:      ActionRetry,
}

type coded interface {
	ErrorCode() string
}

// Map returns the first rule matching err, or Unexpected.
func Map(err error) Mapped {
	if err == nil {
		return Unexpected
	}

	var c coded
	if errors.As(err, &c) {
		for _, r := range rules {
			if r.Code == c.ErrorCode() {
				return r.Mapped
			}
		}
	}

	msg := strings.ToLower(err.Error())
	for _, r := range rules {
		if strings.Contains(msg, r.Match) {
			return r.Mapped
		}
	}
	return Unexpected
}

// Message returns the user message for err.
func Message(err error) string {
	return Map(err).UserMessage
}
