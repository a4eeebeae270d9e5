package web

import "testing"

func TestRedirect(t *testing.T) {
	tests := []struct {
		name          string
		path          string
		authenticated bool
		wantTarget    string
		wantOK        bool
	}{
		{"anonymous dashboard", "/dashboard", false, "/login", true},
		{"anonymous tracker page", "/dashboard/sleep", false, "/login", true},
		{"anonymous login", "/login", false, "", false},
		{"anonymous signup", "/signup", false, "", false},
		{"anonymous reset", "/reset-password", false, "", false},
		{"anonymous root", "/", false, "/login", true},
		{"signed in dashboard", "/dashboard/mood", true, "", false},
		{"signed in login", "/login", true, "/dashboard", true},
		{"signed in signup", "/signup", true, "/dashboard", true},
		{"signed in forgot password", "/forgot-password", true, "/dashboard", true},
		{"signed in reset", "/reset-password", true, "", false},
		{"signed in root", "/", true, "/dashboard", true},
		{"prefix is not a path segment", "/dashboards", false, "", false},
		{"static assets", "/static/style.css", false, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, ok := Redirect(tt.path, tt.authenticated)
			if target != tt.wantTarget || ok != tt.wantOK {
				t.Errorf("Redirect(%q, %v) = %q, %v; want %q, %v",
					tt.path, tt.authenticated, target, ok, tt.wantTarget, tt.wantOK)
			}
		})
	}
}
