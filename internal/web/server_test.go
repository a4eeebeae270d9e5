package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/justestif/wellness-tracker/internal/auth"
	"github.com/justestif/wellness-tracker/internal/insights"
	"github.com/justestif/wellness-tracker/internal/realtime"
	"github.com/justestif/wellness-tracker/internal/tracker"
	webfs "github.com/justestif/wellness-tracker/web"
)

const testPassword = "Abcd123!"

type recordingMailer struct {
	mu   sync.Mutex
	sent []auth.Message
}

func (m *recordingMailer) Send(_ context.Context, msg auth.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

var tokenPattern = regexp.MustCompile(`token=([0-9a-f]+)`)

func (m *recordingMailer) lastToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no email was sent")
	match := tokenPattern.FindStringSubmatch(m.sent[len(m.sent)-1].Body)
	require.Len(t, match, 2, "no token in email body")
	return match[1]
}

type testApp struct {
	url     string
	auth    *auth.Service
	tracker *tracker.Service
	hub     *realtime.Hub
	mailer  *recordingMailer
}

func testFS(t *testing.T) (fs.FS, fs.FS) {
	t.Helper()
	templates, err := fs.Sub(webfs.TemplatesFS, "templates")
	require.NoError(t, err)
	static, err := fs.Sub(webfs.StaticFS, "static")
	require.NoError(t, err)
	return templates, static
}

func newTestApp(t *testing.T, requireConfirmation bool) *testApp {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	hub := realtime.NewHub()
	trackers := tracker.NewService(tracker.NewMemoryStore(), tracker.WithPublisher(hub))
	mailer := &recordingMailer{}

	svc, err := auth.NewService(auth.NewMemoryStore(), auth.Config{
		JWTSecret:           []byte("test-secret"),
		RequireConfirmation: requireConfirmation,
		BaseURL:             "http://wellness.test",
		BcryptCost:          bcrypt.MinCost,
	},
		auth.WithMailer(mailer),
		auth.WithLogger(logger),
		auth.WithUserCreatedHook(func(ctx context.Context, u *auth.User) error {
			return trackers.SaveProfile(ctx, tracker.NewProfile(u.ID, u.FullName))
		}),
	)
	require.NoError(t, err)

	templates, static := testFS(t)
	srv, err := NewServer(ServerConfig{
		TemplatesFS: templates,
		StaticFS:    static,
		Auth:        svc,
		Tracker:     trackers,
		Hub:         hub,
		Insights:    insights.DefaultConfig(),
		Logger:      logger,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testApp{url: ts.URL, auth: svc, tracker: trackers, hub: hub, mailer: mailer}
}

// browser returns a client that keeps cookies and does not follow redirects.
func browser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func readBody(t *testing.T, res *http.Response) string {
	t.Helper()
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return string(b)
}

func (a *testApp) get(t *testing.T, c *http.Client, path string) (*http.Response, string) {
	t.Helper()
	res, err := c.Get(a.url + path)
	require.NoError(t, err)
	return res, readBody(t, res)
}

func (a *testApp) post(t *testing.T, c *http.Client, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	res, err := c.PostForm(a.url+path, form)
	require.NoError(t, err)
	return res, readBody(t, res)
}

// signUp creates an account through the form and returns the signed-in browser.
func (a *testApp) signUp(t *testing.T, email string) *http.Client {
	t.Helper()
	c := browser(t)
	res, _ := a.post(t, c, "/signup", url.Values{
		"full_name":        {"Sam Doe"},
		"email":            {email},
		"password":         {testPassword},
		"confirm_password": {testPassword},
		"date_of_birth":    {"1990-05-01"},
	})
	require.Equal(t, http.StatusSeeOther, res.StatusCode)
	require.Equal(t, "/dashboard", res.Header.Get("Location"))
	return c
}

func TestGuard_RedirectsAnonymousVisitors(t *testing.T) {
	app := newTestApp(t, false)
	c := browser(t)

	for _, path := range []string{"/", "/dashboard", "/dashboard/mood", "/dashboard/insights"} {
		res, _ := app.get(t, c, path)
		assert.Equal(t, http.StatusSeeOther, res.StatusCode, path)
		assert.Equal(t, "/login", res.Header.Get("Location"), path)
	}

	res, body := app.get(t, c, "/login")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, `action="/login"`)
}

func TestSignUpSignInSignOut(t *testing.T) {
	app := newTestApp(t, false)
	c := app.signUp(t, "sam@example.com")

	res, body := app.get(t, c, "/dashboard")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Hi Sam Doe")
	assert.Contains(t, body, "Log today")

	// Auth pages bounce a signed-in user to the dashboard
	res, _ = app.get(t, c, "/login")
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/dashboard", res.Header.Get("Location"))

	res, _ = app.post(t, c, "/auth/logout", nil)
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/login?notice=signed_out", res.Header.Get("Location"))

	res, _ = app.get(t, c, "/dashboard")
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)

	res, _ = app.post(t, c, "/login", url.Values{"email": {"SAM@example.com"}, "password": {testPassword}})
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/dashboard", res.Header.Get("Location"))
}

func TestLogin_ShowsMappedError(t *testing.T) {
	app := newTestApp(t, false)
	app.signUp(t, "sam@example.com")

	res, body := app.post(t, browser(t), "/login", url.Values{"email": {"sam@example.com"}, "password": {"Wrong123!"}})
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.Contains(t, body, "The email or password you entered is incorrect.")
	assert.Contains(t, body, `value="sam@example.com"`)
}

func TestSignUp_Validation(t *testing.T) {
	app := newTestApp(t, false)

	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{
			name: "weak password",
			form: url.Values{"email": {"a@b.com"}, "password": {"abcd1234"}, "confirm_password": {"abcd1234"}},
			want: "Still missing",
		},
		{
			name: "passwords differ",
			form: url.Values{"email": {"a@b.com"}, "password": {testPassword}, "confirm_password": {"Abcd123?"}},
			want: "Passwords do not match.",
		},
		{
			name: "invalid email",
			form: url.Values{"email": {"a@b"}, "password": {testPassword}, "confirm_password": {testPassword}},
			want: "Please enter a valid email address.",
		},
		{
			name: "underage",
			form: url.Values{
				"email": {"kid@b.com"}, "password": {testPassword}, "confirm_password": {testPassword},
				"date_of_birth": {time.Now().AddDate(-12, 0, 0).Format(tracker.DateLayout)},
			},
			want: "at least 13 years old",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, body := app.post(t, browser(t), "/signup", tt.form)
			assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
			assert.Contains(t, body, tt.want)
		})
	}
}

func TestEmailConfirmationFlow(t *testing.T) {
	app := newTestApp(t, true)
	c := browser(t)
	form := url.Values{
		"email":            {"new@example.com"},
		"password":         {testPassword},
		"confirm_password": {testPassword},
	}

	res, body := app.post(t, c, "/signup", form)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "we sent a confirmation link to new@example.com")

	res, body = app.post(t, c, "/login", url.Values{"email": {"new@example.com"}, "password": {testPassword}})
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.Contains(t, body, "Please confirm your email address")
	assert.Contains(t, body, `action="/auth/resend"`)

	res, _ = app.get(t, c, "/auth/confirm?token="+app.mailer.lastToken(t))
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/dashboard?notice=confirmed", res.Header.Get("Location"))

	res, body = app.get(t, c, "/dashboard?notice=confirmed")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Your email address is confirmed.")

	// The link is single use
	res, body = app.get(t, browser(t), "/auth/confirm?token="+app.mailer.lastToken(t))
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.Contains(t, body, "This link has expired or was already used.")
}

func TestPasswordRecovery(t *testing.T) {
	app := newTestApp(t, false)
	app.signUp(t, "sam@example.com")
	c := browser(t)

	res, body := app.post(t, c, "/forgot-password", url.Values{"email": {"sam@example.com"}})
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "If an account exists for sam@example.com")

	token := app.mailer.lastToken(t)
	res, body = app.get(t, c, "/reset-password?token="+token)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, `value="`+token+`"`)

	const newPassword = "Newpass99$"
	res, _ = app.post(t, c, "/reset-password", url.Values{
		"token":            {token},
		"password":         {newPassword},
		"confirm_password": {newPassword},
	})
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/dashboard?notice=password_updated", res.Header.Get("Location"))

	_, err := app.auth.SignIn(context.Background(), "sam@example.com", newPassword)
	assert.NoError(t, err)
}

func TestTrackerPage_SaveEntry(t *testing.T) {
	app := newTestApp(t, false)
	c := app.signUp(t, "sam@example.com")

	res, _ := app.post(t, c, "/dashboard/sleep", url.Values{
		"bedtime":   {"22:30"},
		"wake_time": {"07:00"},
		"quality":   {"4"},
	})
	require.Equal(t, http.StatusSeeOther, res.StatusCode)
	today := string(app.tracker.Today())
	assert.Equal(t, "/dashboard/sleep?date="+today+"&notice=saved", res.Header.Get("Location"))

	res, body := app.get(t, c, res.Header.Get("Location"))
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Entry saved.")
	assert.Contains(t, body, "<td>8.5</td>")
	assert.Contains(t, body, `value="22:30"`)

	// Saving the same day again updates the entry
	res, _ = app.post(t, c, "/dashboard/sleep", url.Values{
		"bedtime":   {"23:00"},
		"wake_time": {"07:00"},
		"quality":   {"5"},
	})
	require.Equal(t, http.StatusSeeOther, res.StatusCode)

	res, body = app.get(t, c, "/dashboard/sleep/entries")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.NotContains(t, body, "<html")
	assert.Equal(t, 1, strings.Count(body, "<tr>")-1, "one header row and one entry row")
	assert.Contains(t, body, "<td>8</td>")
}

func TestTrackerPage_InvalidEntry(t *testing.T) {
	app := newTestApp(t, false)
	c := app.signUp(t, "sam@example.com")

	res, body := app.post(t, c, "/dashboard/mood", url.Values{"mood": {"9"}, "note": {"odd day"}})
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.Contains(t, body, "Mood must be between 1 and 5.")
	assert.Contains(t, body, "odd day")

	res, _ = app.get(t, c, "/dashboard/unknown")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestSessionRefreshesExpiredAccessToken(t *testing.T) {
	app := newTestApp(t, false)
	c := app.signUp(t, "sam@example.com")

	u, err := url.Parse(app.url)
	require.NoError(t, err)
	c.Jar.SetCookies(u, []*http.Cookie{{Name: sessionCookieName, Value: "not-a-token", Path: "/"}})

	res, _ := app.get(t, c, "/dashboard")
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var access string
	for _, ck := range c.Jar.Cookies(u) {
		if ck.Name == sessionCookieName {
			access = ck.Value
		}
	}
	assert.NotEqual(t, "not-a-token", access)
	_, err = app.auth.GetSession(context.Background(), access)
	assert.NoError(t, err)
}

func TestProfileAndAccountDeletion(t *testing.T) {
	app := newTestApp(t, false)
	c := app.signUp(t, "sam@example.com")

	res, body := app.get(t, c, "/dashboard/profile")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, `value="Sam Doe"`)

	res, _ = app.post(t, c, "/dashboard/profile", url.Values{"full_name": {"Sam D."}, "water_goal": {"10"}})
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)

	res, body = app.post(t, c, "/dashboard/profile/password", url.Values{"password": {testPassword}, "confirm_password": {testPassword}})
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.Contains(t, body, "must be different from your current password")

	res, _ = app.post(t, c, "/dashboard/profile/delete", nil)
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/login?notice=account_deleted", res.Header.Get("Location"))

	_, err := app.auth.SignIn(context.Background(), "sam@example.com", testPassword)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestInsightsPage(t *testing.T) {
	app := newTestApp(t, false)
	c := app.signUp(t, "sam@example.com")

	res, body := app.get(t, c, "/dashboard/insights?days=30")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "No patterns found in 0 days")
}

func TestNotConfigured(t *testing.T) {
	templates, static := testFS(t)
	srv, err := NewServer(ServerConfig{TemplatesFS: templates, StaticFS: static, Logger: slog.New(slog.DiscardHandler)})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/login")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	assert.Contains(t, readBody(t, res), "Setup required")

	res, err = http.Get(ts.URL + "/api/v1/dashboard")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	var apiErr APIError
	require.NoError(t, json.NewDecoder(res.Body).Decode(&apiErr))
	res.Body.Close()
	assert.Equal(t, "not_configured", apiErr.Code)

	res, err = http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	res.Body.Close()

	res, err = http.Get(ts.URL + "/static/style.css")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	res.Body.Close()
}

// ============================================================================
// JSON API
// ============================================================================

func (a *testApp) api(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, a.url+path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, data
}

func (a *testApp) apiToken(t *testing.T, email string) string {
	t.Helper()
	res, data := a.api(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email":     email,
		"password":  testPassword,
		"full_name": "Api User",
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))

	var body struct {
		Session SessionResponse `json:"session"`
	}
	require.NoError(t, json.Unmarshal(data, &body))
	require.NotEmpty(t, body.Session.AccessToken)
	return body.Session.AccessToken
}

func TestAPI_Entries(t *testing.T) {
	app := newTestApp(t, false)
	token := app.apiToken(t, "api@example.com")

	res, data := app.api(t, http.MethodPut, "/api/v1/entries/water", token, map[string]any{"cups": 5})
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))

	var saved tracker.WaterEntry
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, 5, saved.Cups)
	assert.Equal(t, tracker.DefaultWaterGoal, saved.Goal)
	assert.Equal(t, app.tracker.Today(), saved.Date)

	res, _ = app.api(t, http.MethodPut, "/api/v1/entries/water", token, map[string]any{"cups": 9})
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, data = app.api(t, http.MethodGet, "/api/v1/entries/water", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var list struct {
		Entries []tracker.WaterEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(data, &list))
	require.Len(t, list.Entries, 1)
	assert.Equal(t, 9, list.Entries[0].Cups)

	res, data = app.api(t, http.MethodGet, "/api/v1/summary/water?days=7", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var sum tracker.Summary
	require.NoError(t, json.Unmarshal(data, &sum))
	assert.Equal(t, 1, sum.Count)
	assert.Equal(t, 1.0, sum.Averages["goal_met"])

	res, _ = app.api(t, http.MethodGet, "/api/v1/entries/water/"+string(app.tracker.Today()), token, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	res, _ = app.api(t, http.MethodGet, "/api/v1/entries/water/2000-01-01", token, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res, data = app.api(t, http.MethodPut, "/api/v1/entries/mood", token, map[string]any{"mood": 0})
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode, string(data))

	res, _ = app.api(t, http.MethodGet, "/api/v1/entries/steps", token, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestAPI_AuthErrors(t *testing.T) {
	app := newTestApp(t, false)
	token := app.apiToken(t, "api@example.com")

	tests := []struct {
		name     string
		method   string
		path     string
		token    string
		body     any
		status   int
		wantCode string
	}{
		{"no token", http.MethodGet, "/api/v1/dashboard", "", nil, http.StatusUnauthorized, "session_not_found"},
		{"bad token", http.MethodGet, "/api/v1/dashboard", "garbage", nil, http.StatusUnauthorized, "session_not_found"},
		{"wrong password", http.MethodPost, "/api/v1/auth/signin", "", map[string]string{"email": "api@example.com", "password": "Nope123!"}, http.StatusUnauthorized, "invalid_credentials"},
		{"duplicate sign-up", http.MethodPost, "/api/v1/auth/signup", "", map[string]string{"email": "api@example.com", "password": testPassword}, http.StatusConflict, "user_already_exists"},
		{"weak password", http.MethodPut, "/api/v1/auth/password", token, map[string]string{"password": "short"}, http.StatusBadRequest, "weak_password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, data := app.api(t, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.status, res.StatusCode, string(data))
			var apiErr APIError
			require.NoError(t, json.Unmarshal(data, &apiErr))
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.NotEmpty(t, apiErr.Message)
		})
	}
}

func TestAPI_SignOutAndDeleteAccount(t *testing.T) {
	app := newTestApp(t, false)
	token := app.apiToken(t, "api@example.com")

	res, data := app.api(t, http.MethodGet, "/api/v1/auth/user", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(data), `"email":"api@example.com"`)

	res, _ = app.api(t, http.MethodPost, "/api/v1/auth/signout", token, nil)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	res, _ = app.api(t, http.MethodGet, "/api/v1/auth/user", token, nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, data = app.api(t, http.MethodPost, "/api/v1/auth/signin", "", map[string]string{"email": "api@example.com", "password": testPassword})
	require.Equal(t, http.StatusOK, res.StatusCode)
	var sess SessionResponse
	require.NoError(t, json.Unmarshal(data, &sess))

	res, _ = app.api(t, http.MethodDelete, "/api/v1/account", sess.AccessToken, nil)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	res, _ = app.api(t, http.MethodPost, "/api/v1/auth/signin", "", map[string]string{"email": "api@example.com", "password": testPassword})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestAPI_Realtime(t *testing.T) {
	app := newTestApp(t, false)
	token := app.apiToken(t, "live@example.com")
	user, err := app.auth.GetUser(context.Background(), token)
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(app.url, "http") + "/api/v1/realtime?tracker=mood"
	conn, res, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Authorization": {"Bearer " + token}})
	require.NoError(t, err)
	res.Body.Close()
	defer conn.Close()

	require.Eventually(t, func() bool { return app.hub.Subscribers(user.ID) == 1 }, time.Second, 10*time.Millisecond)

	// A water entry is filtered out, the mood entry is delivered
	_, err = app.tracker.Save(context.Background(), &tracker.WaterEntry{Meta: tracker.Meta{UserID: user.ID}, Cups: 2})
	require.NoError(t, err)
	_, err = app.tracker.Save(context.Background(), &tracker.MoodEntry{Meta: tracker.Meta{UserID: user.ID}, Mood: 4})
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var change realtime.Change
	require.NoError(t, conn.ReadJSON(&change))
	assert.Equal(t, "mood_entries", change.Table)
	assert.Equal(t, realtime.EventInsert, change.Type)
	assert.Equal(t, user.ID, change.UserID)
	assert.NotEqual(t, uuid.Nil, change.RecordID)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return app.hub.Subscribers(user.ID) == 0 }, 2*time.Second, 10*time.Millisecond)
}
