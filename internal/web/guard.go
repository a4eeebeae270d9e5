package web

import "strings"

const (
	loginPath     = "/login"
	dashboardPath = "/dashboard"
)

// protectedPrefixes require a signed-in user.
var protectedPrefixes = []string{dashboardPath}

// authPages are only useful while signed out. /reset-password is reachable
// either way since a recovery link can be opened from a signed-in browser.
var authPages = []string{loginPath, "/signup", "/forgot-password"}

// Redirect decides where a page request should go given whether the visitor
// has a session. ok is false when the request may proceed.
func Redirect(path string, authenticated bool) (target string, ok bool) {
	switch {
	case !authenticated && matchesAny(path, protectedPrefixes):
		return loginPath, true
	case authenticated && matchesAny(path, authPages):
		return dashboardPath, true
	case path == "/":
		if authenticated {
			return dashboardPath, true
		}
		return loginPath, true
	}
	return "", false
}

// matchesAny reports whether path equals a prefix or lies below it.
func matchesAny(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
