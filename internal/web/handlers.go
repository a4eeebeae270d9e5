package web

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/justestif/wellness-tracker/internal/auth"
	"github.com/justestif/wellness-tracker/internal/autherr"
	"github.com/justestif/wellness-tracker/internal/insights"
	"github.com/justestif/wellness-tracker/internal/metrics"
	"github.com/justestif/wellness-tracker/internal/realtime"
	"github.com/justestif/wellness-tracker/internal/tracker"
	"github.com/justestif/wellness-tracker/internal/validate"
)

// DefaultInsightsDays is the window analysed on the insights page.
const DefaultInsightsDays = 90

// notices are the one-line confirmations shown after a redirect.
var notices = map[string]FlashMessage{
	"saved":            {Type: "success", Message: "Entry saved."},
	"profile_saved":    {Type: "success", Message: "Profile updated."},
	"password_updated": {Type: "success", Message: "Your password has been updated."},
	"confirmed":        {Type: "success", Message: "Your email address is confirmed. Welcome!"},
	"signed_out":       {Type: "info", Message: "You have been signed out."},
	"account_deleted":  {Type: "info", Message: "Your account and all of your data have been deleted."},
}

// Handlers contains HTTP handlers for the web application.
type Handlers struct {
	auth      *auth.Service
	tracker   *tracker.Service
	hub       *realtime.Hub
	sessions  *SessionManager
	templates *Templates
	insights  insights.Config
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance. svc and trackers are nil when
// the server runs without a backing store.
func NewHandlers(svc *auth.Service, trackers *tracker.Service, hub *realtime.Hub, sessions *SessionManager, templates *Templates, cfg insights.Config, logger *slog.Logger) *Handlers {
	return &Handlers{
		auth:      svc,
		tracker:   trackers,
		hub:       hub,
		sessions:  sessions,
		templates: templates,
		insights:  cfg,
		logger:    logger,
	}
}

func (h *Handlers) configured() bool {
	return h.auth != nil && h.tracker != nil
}

// page returns the common page data for r.
func (h *Handlers) page(r *http.Request, title string) PageData {
	data := PageData{
		Title:       title,
		CurrentPath: r.URL.Path,
		Configured:  h.configured(),
	}
	for _, k := range tracker.Kinds {
		data.Trackers = append(data.Trackers, TrackerLink{Kind: k, Title: k.Title()})
	}
	if sess := SessionFrom(r.Context()); sess != nil && sess.User != nil {
		data.User = &UserData{
			ID:    sess.User.ID.String(),
			Email: sess.User.Email,
			Name:  sess.User.FullName,
		}
	}
	if n, ok := notices[r.URL.Query().Get("notice")]; ok {
		data.Flash = &n
	}
	return data
}

func (h *Handlers) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, name, data); err != nil {
		h.logger.Error("rendering template", "template", name, "error", err)
	}
}

// authFailure maps an auth error to the flash shown on the form.
func (h *Handlers) authFailure(err error) *FlashMessage {
	m := autherr.Map(err)
	metrics.AuthFailure(m.Code)
	if m == autherr.Unexpected {
		h.logger.Error("auth operation failed", "error", err)
	}
	return &FlashMessage{Type: "error", Message: m.UserMessage, Action: m.Action}
}

func errorFlash(msg string) *FlashMessage {
	return &FlashMessage{Type: "error", Message: msg}
}

func infoFlash(msg string) *FlashMessage {
	return &FlashMessage{Type: "info", Message: msg}
}

// currentUser returns the id of the signed-in user. The guard guarantees a
// session on every /dashboard route.
func currentUser(r *http.Request) uuid.UUID {
	if sess := SessionFrom(r.Context()); sess != nil && sess.User != nil {
		return sess.User.ID
	}
	return uuid.Nil
}

func accessToken(r *http.Request) string {
	if sess := SessionFrom(r.Context()); sess != nil && sess.Token != nil {
		return sess.Token.AccessToken
	}
	return ""
}

// NotConfigured renders the setup notice shown when no store is configured.
func (h *Handlers) NotConfigured(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusServiceUnavailable, "setup", h.page(r, "Setup required"))
}

// Home handles the home page (GET /). The guard redirects every visitor, so
// this only runs if the guard is bypassed.
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}

// ============================================================================
// Sign in / sign up
// ============================================================================

// LoginPage renders the sign-in form (GET /login).
func (h *Handlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "login", AuthPageData{
		PageData: h.page(r, "Sign in"),
		Email:    r.URL.Query().Get("email"),
	})
}

// Login signs the user in (POST /login).
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PostFormValue("email"))
	data := AuthPageData{PageData: h.page(r, "Sign in"), Email: email}

	sess, err := h.auth.SignIn(r.Context(), email, r.PostFormValue("password"))
	if err != nil {
		data.Flash = h.authFailure(err)
		h.render(w, http.StatusUnprocessableEntity, "login", data)
		return
	}

	h.sessions.SetCookie(w, sess)
	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}

// SignupPage renders the sign-up form (GET /signup).
func (h *Handlers) SignupPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "signup", AuthPageData{PageData: h.page(r, "Create account")})
}

// Signup creates an account (POST /signup).
func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	data := AuthPageData{
		PageData:    h.page(r, "Create account"),
		Email:       strings.TrimSpace(r.PostFormValue("email")),
		FullName:    strings.TrimSpace(r.PostFormValue("full_name")),
		DateOfBirth: strings.TrimSpace(r.PostFormValue("date_of_birth")),
	}
	password := r.PostFormValue("password")

	if check := validate.Password(password); !check.Valid() {
		data.Missing = check.Missing()
		data.Flash = h.authFailure(auth.ErrWeakPassword)
		h.render(w, http.StatusUnprocessableEntity, "signup", data)
		return
	}
	if password != r.PostFormValue("confirm_password") {
		data.Flash = errorFlash("Passwords do not match.")
		h.render(w, http.StatusUnprocessableEntity, "signup", data)
		return
	}
	dob, err := parseBirthDate(data.DateOfBirth)
	if err != nil {
		data.Flash = errorFlash("Please enter your date of birth as YYYY-MM-DD.")
		h.render(w, http.StatusUnprocessableEntity, "signup", data)
		return
	}

	res, err := h.auth.SignUp(r.Context(), data.Email, password, auth.SignUpMetadata{
		FullName:    data.FullName,
		DateOfBirth: dob,
	})
	if err != nil {
		data.Flash = h.authFailure(err)
		h.render(w, http.StatusUnprocessableEntity, "signup", data)
		return
	}

	if res.Session != nil {
		h.sessions.SetCookie(w, res.Session)
		http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
		return
	}

	data.Sent = true
	data.Flash = infoFlash("Check your inbox: we sent a confirmation link to " + res.User.Email + ".")
	h.render(w, http.StatusOK, "signup", data)
}

// Resend sends a new confirmation email (POST /auth/resend).
func (h *Handlers) Resend(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PostFormValue("email"))
	data := AuthPageData{PageData: h.page(r, "Sign in"), Email: email}

	if err := h.auth.ResendConfirmation(r.Context(), email); err != nil {
		data.Flash = h.authFailure(err)
		h.render(w, http.StatusUnprocessableEntity, "login", data)
		return
	}

	data.Flash = infoFlash("If that account is waiting for confirmation, a new link is on its way.")
	h.render(w, http.StatusOK, "login", data)
}

// Confirm completes sign-up from the emailed link (GET /auth/confirm).
func (h *Handlers) Confirm(w http.ResponseWriter, r *http.Request) {
	sess, err := h.auth.ConfirmEmail(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		data := AuthPageData{PageData: h.page(r, "Sign in")}
		data.Flash = h.authFailure(err)
		h.render(w, http.StatusUnprocessableEntity, "login", data)
		return
	}

	h.sessions.SetCookie(w, sess)
	http.Redirect(w, r, dashboardPath+"?notice=confirmed", http.StatusSeeOther)
}

// Logout clears the session and redirects to the sign-in page (POST /auth/logout).
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if token := accessToken(r); token != "" {
		if err := h.auth.SignOut(r.Context(), token); err != nil && !errors.Is(err, auth.ErrSessionMissing) {
			h.logger.Warn("signing out", "error", err)
		}
	}

	h.sessions.ClearCookie(w)
	http.Redirect(w, r, loginPath+"?notice=signed_out", http.StatusSeeOther)
}

// ============================================================================
// Password recovery
// ============================================================================

// ForgotPasswordPage renders the recovery form (GET /forgot-password).
func (h *Handlers) ForgotPasswordPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "forgot-password", AuthPageData{PageData: h.page(r, "Reset password")})
}

// ForgotPassword emails a recovery link (POST /forgot-password). The response
// is the same whether or not the address has an account.
func (h *Handlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PostFormValue("email"))
	data := AuthPageData{PageData: h.page(r, "Reset password"), Email: email}

	if err := h.auth.SendPasswordReset(r.Context(), email); err != nil {
		data.Flash = h.authFailure(err)
		h.render(w, http.StatusUnprocessableEntity, "forgot-password", data)
		return
	}

	data.Sent = true
	data.Flash = infoFlash("If an account exists for " + email + ", we sent a link to reset your password.")
	h.render(w, http.StatusOK, "forgot-password", data)
}

// ResetPasswordPage renders the new-password form of a recovery link (GET /reset-password).
func (h *Handlers) ResetPasswordPage(w http.ResponseWriter, r *http.Request) {
	data := AuthPageData{
		PageData: h.page(r, "Choose a new password"),
		Token:    r.URL.Query().Get("token"),
	}
	if data.Token == "" {
		data.Flash = h.authFailure(auth.ErrInvalidToken)
	}
	h.render(w, http.StatusOK, "reset-password", data)
}

// ResetPassword sets the new password and signs the user in (POST /reset-password).
func (h *Handlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	data := AuthPageData{
		PageData: h.page(r, "Choose a new password"),
		Token:    r.PostFormValue("token"),
	}
	password := r.PostFormValue("password")

	if check := validate.Password(password); !check.Valid() {
		data.Missing = check.Missing()
		data.Flash = h.authFailure(auth.ErrWeakPassword)
		h.render(w, http.StatusUnprocessableEntity, "reset-password", data)
		return
	}
	if password != r.PostFormValue("confirm_password") {
		data.Flash = errorFlash("Passwords do not match.")
		h.render(w, http.StatusUnprocessableEntity, "reset-password", data)
		return
	}

	sess, err := h.auth.ResetPassword(r.Context(), data.Token, password)
	if err != nil {
		data.Flash = h.authFailure(err)
		h.render(w, http.StatusUnprocessableEntity, "reset-password", data)
		return
	}

	h.sessions.SetCookie(w, sess)
	http.Redirect(w, r, dashboardPath+"?notice=password_updated", http.StatusSeeOther)
}

// ============================================================================
// Dashboard
// ============================================================================

// Dashboard renders today's overview (GET /dashboard).
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.tracker.Dashboard(r.Context(), currentUser(r))
	if err != nil {
		h.serverError(w, r, "loading dashboard", err)
		return
	}

	data := DashboardPageData{PageData: h.page(r, "Dashboard"), Today: d.Today}
	for _, kind := range tracker.Kinds {
		card := TrackerCard{Kind: kind, Title: kind.Title(), Logged: d.Logged(kind)}
		if sum := d.Week[kind]; sum != nil {
			card.Count = sum.Count
			card.Averages = metricViews(sum)
		}
		data.Cards = append(data.Cards, card)
	}
	h.render(w, http.StatusOK, "dashboard", data)
}

// Tracker renders a tracker's form and history (GET /dashboard/{tracker}).
func (h *Handlers) Tracker(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kindParam(w, r)
	if !ok {
		return
	}
	data, err := h.trackerPage(r, kind)
	if err != nil {
		h.serverError(w, r, "loading tracker", err)
		return
	}
	h.render(w, http.StatusOK, "tracker", data)
}

// SaveEntry stores the day's entry (POST /dashboard/{tracker}).
func (h *Handlers) SaveEntry(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kindParam(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	entry, err := entryFromForm(kind, currentUser(r).String(), r.PostForm)
	if err == nil {
		_, err = h.tracker.Save(r.Context(), entry)
	}
	if err != nil {
		if !errors.Is(err, tracker.ErrInvalidEntry) {
			h.serverError(w, r, "saving entry", err)
			return
		}
		data, loadErr := h.trackerPage(r, kind)
		if loadErr != nil {
			h.serverError(w, r, "loading tracker", loadErr)
			return
		}
		// Keep what the user typed
		for i := range data.Fields {
			data.Fields[i].Value = r.PostForm.Get(data.Fields[i].Name)
		}
		data.Flash = errorFlash(entryErrorMessage(err))
		h.render(w, http.StatusUnprocessableEntity, "tracker", data)
		return
	}

	target := url.Values{"notice": {"saved"}, "date": {string(entry.Base().Date)}}
	http.Redirect(w, r, dashboardPath+"/"+string(kind)+"?"+target.Encode(), http.StatusSeeOther)
}

// EntryList renders the history table alone so open pages can refresh it
// when a change notification arrives (GET /dashboard/{tracker}/entries).
func (h *Handlers) EntryList(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kindParam(w, r)
	if !ok {
		return
	}
	days := queryInt(r, "days", h.tracker.Window())
	entries, err := h.tracker.Recent(r.Context(), kind, currentUser(r), days)
	if err != nil {
		h.serverError(w, r, "listing entries", err)
		return
	}

	columns, rows := historyTable(kind, entries)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.RenderPartial(w, "entry-list", EntryListData{Kind: kind, Columns: columns, Rows: rows}); err != nil {
		h.logger.Error("rendering partial", "error", err)
	}
}

func (h *Handlers) trackerPage(r *http.Request, kind tracker.Kind) (TrackerPageData, error) {
	ctx := r.Context()
	user := currentUser(r)

	date := h.tracker.Today()
	if raw := r.URL.Query().Get("date"); raw != "" {
		if d, err := tracker.ParseDate(raw); err == nil {
			date = d
		}
	}
	days := queryInt(r, "days", h.tracker.Window())

	current, err := h.tracker.Get(ctx, kind, user, date)
	if err != nil && !errors.Is(err, tracker.ErrNotFound) {
		return TrackerPageData{}, err
	}
	entries, err := h.tracker.Recent(ctx, kind, user, days)
	if err != nil {
		return TrackerPageData{}, err
	}

	data := TrackerPageData{
		PageData: h.page(r, kind.Title()),
		Kind:     kind,
		Date:     date,
		Days:     days,
	}

	values := entryValues(current)
	for _, f := range trackerFields[kind] {
		data.Fields = append(data.Fields, FieldView{formField: f, Value: values[f.Name]})
	}

	data.Columns, data.Rows = historyTable(kind, entries)
	if len(entries) > 0 {
		from, to := entries[0].Base().Date, entries[len(entries)-1].Base().Date
		data.Metrics = metricViews(tracker.Summarize(kind, from, to, entries))
	}
	return data, nil
}

// historyTable lays out entries newest first, one column per form field.
func historyTable(kind tracker.Kind, entries []tracker.Entry) ([]string, []EntryRow) {
	fields := trackerFields[kind]
	if kind == tracker.KindSleep {
		fields = append([]formField{{Name: "duration_hours", Label: "Hours"}}, fields...)
	}

	columns := make([]string, 0, len(fields))
	for _, f := range fields {
		columns = append(columns, f.Label)
	}

	rows := make([]EntryRow, 0, len(entries))
	for _, e := range slices.Backward(entries) {
		values := entryValues(e)
		row := EntryRow{Date: e.Base().Date}
		for _, f := range fields {
			row.Values = append(row.Values, values[f.Name])
		}
		rows = append(rows, row)
	}
	return columns, rows
}

func metricViews(sum *tracker.Summary) []MetricView {
	var views []MetricView
	for _, name := range sum.MetricNames() {
		views = append(views, MetricView{Name: name, Value: sum.Averages[name], Change: sum.Change[name]})
	}
	return views
}

// entryErrorMessage strips the sentinel prefix from a validation error.
func entryErrorMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), tracker.ErrInvalidEntry.Error()+": ")
	if msg == "" {
		return "Please check the entry and try again."
	}
	return strings.ToUpper(msg[:1]) + strings.ReplaceAll(msg[1:], "\n", "; ") + "."
}

func (h *Handlers) kindParam(w http.ResponseWriter, r *http.Request) (tracker.Kind, bool) {
	kind, err := tracker.ParseKind(chi.URLParam(r, "tracker"))
	if err != nil {
		http.NotFound(w, r)
		return "", false
	}
	return kind, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 {
		return fallback
	}
	return min(n, 366)
}

func (h *Handlers) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Error(msg, "error", err, "path", r.URL.Path)
	http.Error(w, "Something went wrong", http.StatusInternalServerError)
}

// ============================================================================
// Profile
// ============================================================================

// Profile renders the profile and account settings (GET /dashboard/profile).
func (h *Handlers) Profile(w http.ResponseWriter, r *http.Request) {
	p, err := h.tracker.Profile(r.Context(), currentUser(r))
	if err != nil {
		h.serverError(w, r, "loading profile", err)
		return
	}
	h.render(w, http.StatusOK, "profile", profilePage(h.page(r, "Profile"), p))
}

// SaveProfile updates the profile (POST /dashboard/profile).
func (h *Handlers) SaveProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.tracker.Profile(r.Context(), currentUser(r))
	if err != nil {
		h.serverError(w, r, "loading profile", err)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	err = profileFromForm(p, r.PostForm)
	if err == nil {
		err = h.tracker.SaveProfile(r.Context(), p)
	}
	if err != nil {
		if !errors.Is(err, tracker.ErrInvalidEntry) {
			h.serverError(w, r, "saving profile", err)
			return
		}
		data := profilePage(h.page(r, "Profile"), p)
		data.Flash = errorFlash(entryErrorMessage(err))
		h.render(w, http.StatusUnprocessableEntity, "profile", data)
		return
	}

	http.Redirect(w, r, dashboardPath+"/profile?notice=profile_saved", http.StatusSeeOther)
}

// ChangePassword updates the signed-in user's password (POST /dashboard/profile/password).
func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	password := r.PostFormValue("password")

	fail := func(flash *FlashMessage, missing []string) {
		p, err := h.tracker.Profile(r.Context(), currentUser(r))
		if err != nil {
			h.serverError(w, r, "loading profile", err)
			return
		}
		data := profilePage(h.page(r, "Profile"), p)
		data.Flash = flash
		data.Missing = missing
		h.render(w, http.StatusUnprocessableEntity, "profile", data)
	}

	if check := validate.Password(password); !check.Valid() {
		fail(h.authFailure(auth.ErrWeakPassword), check.Missing())
		return
	}
	if password != r.PostFormValue("confirm_password") {
		fail(errorFlash("Passwords do not match."), nil)
		return
	}
	if _, err := h.auth.UpdatePassword(r.Context(), accessToken(r), password); err != nil {
		fail(h.authFailure(err), nil)
		return
	}

	http.Redirect(w, r, dashboardPath+"/profile?notice=password_updated", http.StatusSeeOther)
}

// DeleteAccount removes the user and every entry (POST /dashboard/profile/delete).
func (h *Handlers) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.DeleteAccount(r.Context(), accessToken(r)); err != nil {
		h.serverError(w, r, "deleting account", err)
		return
	}
	h.sessions.ClearCookie(w)
	http.Redirect(w, r, loginPath+"?notice=account_deleted", http.StatusSeeOther)
}

func profilePage(page PageData, p *tracker.Profile) ProfilePageData {
	data := ProfilePageData{PageData: page, Profile: p}
	if p.DateOfBirth != nil {
		data.DateOfBirth = string(*p.DateOfBirth)
	}
	if p.WeightGoalKg != nil {
		data.WeightGoalKg = formatNumber(*p.WeightGoalKg)
	}
	return data
}

// ============================================================================
// Insights
// ============================================================================

// Insights renders the recurring patterns of the last days (GET /dashboard/insights).
func (h *Handlers) Insights(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", DefaultInsightsDays)
	today := h.tracker.Today()

	report, err := insights.Build(r.Context(), h.tracker, currentUser(r), today.AddDays(-(days - 1)), today, h.insights)
	if err != nil {
		h.serverError(w, r, "building insights", err)
		return
	}
	h.render(w, http.StatusOK, "insights", InsightsPageData{
		PageData: h.page(r, "Insights"),
		Report:   report,
		Days:     days,
	})
}
