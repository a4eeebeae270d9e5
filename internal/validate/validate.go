// Package validate provides the input checks applied to sign-up and account forms.
package validate

import (
	"regexp"
	"time"
	"unicode/utf8"
)

const (
	// MinPasswordLength is the minimum number of characters in a password.
	MinPasswordLength = 8

	// MinAge is the minimum age in years required to create an account.
	MinAge = 13

	// PasswordSymbols lists the characters accepted as a password's special character.
	PasswordSymbols = `!@#$%^&*(),.?":{}|<>`
)

var (
	upperRe   = regexp.MustCompile(`[A-Z]`)
	lowerRe   = regexp.MustCompile(`[a-z]`)
	digitRe   = regexp.MustCompile(`[0-9]`)
	specialRe = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
	emailRe   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// PasswordCheck reports which password requirements a candidate satisfies.
type PasswordCheck struct {
	MinLength bool
	Upper     bool
	Lower     bool
	Digit     bool
	Special   bool
}

// Valid reports whether every requirement is met.
func (c PasswordCheck) Valid() bool {
	return c.MinLength && c.Upper && c.Lower && c.Digit && c.Special
}

// Missing returns human readable labels for the requirements that are not met,
// in the order they are shown on the sign-up form.
func (c PasswordCheck) Missing() []string {
	var missing []string
	if !c.MinLength {
		missing = append(missing, "at least 8 characters")
	}
	if !c.Upper {
		missing = append(missing, "an uppercase letter")
	}
	if !c.Lower {
		missing = append(missing, "a lowercase letter")
	}
	if !c.Digit {
		missing = append(missing, "a number")
	}
	if !c.Special {
		missing = append(missing, "a special character")
	}
	return missing
}

// Password runs the five independent password checks.
func Password(pw string) PasswordCheck {
	return PasswordCheck{
		MinLength: utf8.RuneCountInString(pw) >= MinPasswordLength,
		Upper:     upperRe.MatchString(pw),
		Lower:     lowerRe.MatchString(pw),
		Digit:     digitRe.MatchString(pw),
		Special:   specialRe.MatchString(pw),
	}
}

// Email reports whether s looks like an email address: a single "@" with
// non-whitespace on both sides and a dot-separated domain.
func Email(s string) bool {
	return emailRe.MatchString(s)
}

// Age returns the number of full years between birth and now.
func Age(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	return years
}

// OldEnough reports whether someone born on birth is at least MinAge on now.
func OldEnough(birth, now time.Time) bool {
	return Age(birth, now) >= MinAge
}
