package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/justestif/wellness-tracker/internal/auth"
	"github.com/justestif/wellness-tracker/internal/autherr"
	"github.com/justestif/wellness-tracker/internal/insights"
	"github.com/justestif/wellness-tracker/internal/metrics"
	"github.com/justestif/wellness-tracker/internal/tracker"
)

const maxBodyBytes = 1 << 20

// APIError is the body of every failed API response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Action  autherr.Action `json:"action,omitempty"`
}

// SessionResponse is returned by the endpoints that sign a user in.
type SessionResponse struct {
	AccessToken  string     `json:"access_token"`
	TokenType    string     `json:"token_type"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time  `json:"expires_at"`
	User         *auth.User `json:"user"`
}

func sessionResponse(sess *auth.Session) SessionResponse {
	return SessionResponse{
		AccessToken:  sess.Token.AccessToken,
		TokenType:    sess.Token.TokenType,
		RefreshToken: sess.Token.RefreshToken,
		ExpiresAt:    sess.Token.Expiry,
		User:         sess.User,
	}
}

type credentialsRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"full_name"`
	DateOfBirth string `json:"date_of_birth"`
}

type tokenRequest struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	Password     string `json:"password"`
}

// apiRoutes mounts the JSON API.
func (h *Handlers) apiRoutes(r chi.Router) {
	r.Post("/auth/signup", h.apiSignUp)
	r.Post("/auth/signin", h.apiSignIn)
	r.Post("/auth/refresh", h.apiRefresh)
	r.Post("/auth/recover", h.apiRecover)
	r.Post("/auth/reset", h.apiReset)
	r.Post("/auth/resend", h.apiResend)
	r.Post("/auth/confirm", h.apiConfirm)

	r.Group(func(r chi.Router) {
		r.Use(h.bearer)

		r.Get("/auth/user", h.apiUser)
		r.Post("/auth/signout", h.apiSignOut)
		r.Put("/auth/password", h.apiUpdatePassword)
		r.Delete("/account", h.apiDeleteAccount)

		r.Get("/dashboard", h.apiDashboard)
		r.Get("/profile", h.apiProfile)
		r.Put("/profile", h.apiSaveProfile)
		r.Get("/insights", h.apiInsights)

		r.Get("/entries/{tracker}", h.apiListEntries)
		r.Put("/entries/{tracker}", h.apiSaveEntry)
		r.Get("/entries/{tracker}/{date}", h.apiGetEntry)
		r.Get("/summary/{tracker}", h.apiSummary)

		r.Get("/realtime", h.Realtime)
	})
}

// bearer authenticates API requests with an "Authorization: Bearer" access
// token, falling back to the session cookies of the browser.
func (h *Handlers) bearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sess *auth.Session
		if header := r.Header.Get("Authorization"); header != "" {
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				writeError(w, http.StatusUnauthorized, "invalid_authorization", "Authorization header must use the Bearer scheme")
				return
			}
			s, err := h.auth.GetSession(r.Context(), strings.TrimSpace(token))
			if err != nil {
				h.writeAuthError(w, err)
				return
			}
			sess = s
		} else {
			sess = h.sessions.GetFromRequest(w, r)
		}

		if sess == nil {
			h.writeAuthError(w, auth.ErrSessionMissing)
			return
		}
		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), sess)))
	})
}

func (h *Handlers) apiNotConfigured(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusServiceUnavailable, "not_configured", "The server has no database configured")
}

// ============================================================================
// Auth endpoints
// ============================================================================

func (h *Handlers) apiSignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	dob, err := parseBirthDate(req.DateOfBirth)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := h.auth.SignUp(r.Context(), req.Email, req.Password, auth.SignUpMetadata{
		FullName:    req.FullName,
		DateOfBirth: dob,
	})
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	body := map[string]any{"user": res.User, "confirmation_sent": res.Session == nil}
	if res.Session != nil {
		body["session"] = sessionResponse(res.Session)
	}
	writeJSON(w, http.StatusCreated, body)
}

func (h *Handlers) apiSignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := h.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

func (h *Handlers) apiRefresh(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

func (h *Handlers) apiRecover(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.auth.SendPasswordReset(r.Context(), req.Email); err != nil {
		h.writeAuthError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handlers) apiResend(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.auth.ResendConfirmation(r.Context(), req.Email); err != nil {
		h.writeAuthError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handlers) apiReset(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := h.auth.ResetPassword(r.Context(), req.Token, req.Password)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

func (h *Handlers) apiConfirm(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := h.auth.ConfirmEmail(r.Context(), req.Token)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

func (h *Handlers) apiUser(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SessionFrom(r.Context()).User)
}

func (h *Handlers) apiSignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.SignOut(r.Context(), accessToken(r)); err != nil {
		h.writeAuthError(w, err)
		return
	}
	h.sessions.ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) apiUpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.auth.UpdatePassword(r.Context(), accessToken(r), req.Password)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handlers) apiDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.DeleteAccount(r.Context(), accessToken(r)); err != nil {
		h.writeAuthError(w, err)
		return
	}
	h.sessions.ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// Tracker endpoints
// ============================================================================

func (h *Handlers) apiDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.tracker.Dashboard(r.Context(), currentUser(r))
	if err != nil {
		h.writeTrackerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handlers) apiProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.tracker.Profile(r.Context(), currentUser(r))
	if err != nil {
		h.writeTrackerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) apiSaveProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.tracker.Profile(r.Context(), currentUser(r))
	if err != nil {
		h.writeTrackerError(w, r, err)
		return
	}
	createdAt := p.CreatedAt
	if !decodeJSON(w, r, p) {
		return
	}
	p.UserID = currentUser(r)
	p.CreatedAt = createdAt

	if err := h.tracker.SaveProfile(r.Context(), p); err != nil {
		h.writeTrackerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) apiInsights(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", DefaultInsightsDays)
	today := h.tracker.Today()
	report, err := insights.Build(r.Context(), h.tracker, currentUser(r), today.AddDays(-(days - 1)), today, h.insights)
	if err != nil {
		h.writeTrackerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// apiListEntries returns entries between ?from and ?to, defaulting to the
// window ending today.
func (h *Handlers) apiListEntries(w http.ResponseWriter, r *http.Request) {
	kind, err := tracker.ParseKind(chi.URLParam(r, "tracker"))
	if err != nil {
		h.writeTrackerError(w, r, err)
		return
	}

	to := h.tracker.Today()
	from := to.AddDays(-(h.tracker.Window() - 1))
	for key, dst := range map[string]*tracker.Date{"from": &from, "to": &to} {
		if raw := r.URL.Query().Get(key); raw != "" {
			d, err := tracker.ParseDate(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("%s must be YYYY-MM-DD", key))
				return
			}
			*dst = d
		}
	}

	entries, err := h.tracker.List(r.Context(), kind, currentUser(r), from, to)
	if err != nil {
		h.writeTrackerError(w, r, err)
		return
	}
	if entries == nil {
		entries = []tracker.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"from": from, "to": to, "entries": entries})
}

func (h *Handlers) apiGetEntry(w http.ResponseWriter, r *http.Request) {
	kind, err := tracker.ParseKind(chi.URLParam(r, "tracker"))
	if err != nil {
		h.writeTrackerError(w, r, err)
		return
	}
	date, err := tracker.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "date must be YYYY-MM-DD")
		return
	}

	entry, err := h.tracker.Get(r.Context(), kind, currentUser(r), date)
	if err != nil {
		h.writeTrackerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// apiSaveEntry stores the body as the user's entry for its date (today when
// omitted). 201 means a new entry was created, 200 that the day's entry was updated.
func (h *Handlers) apiSaveEntry(w http.ResponseWriter, r *http.Request) {
	kind, err := tracker.ParseKind(chi.URLParam(r, "tracker"))
	if err != nil {
		h.writeTrackerError(w, r, err)
		return
	}
	entry, err := tracker.New(kind)
	if err != nil {
		h.writeTrackerError(w, r, err)
		return
	}
	if !decodeJSON(w, r, entry) {
		return
	}

	m := entry.Base()
	m.ID = uuid.Nil
	m.UserID = currentUser(r)

	created, err := h.tracker.Save(r.Context(), entry)
	if err != nil {
		h.writeTrackerError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, entry)
}

func (h *Handlers) apiSummary(w http.ResponseWriter, r *http.Request) {
	kind, err := tracker.ParseKind(chi.URLParam(r, "tracker"))
	if err != nil {
		h.writeTrackerError(w, r, err)
		return
	}
	sum, err := h.tracker.Summarize(r.Context(), kind, currentUser(r), queryInt(r, "days", h.tracker.Window()))
	if err != nil {
		h.writeTrackerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// ============================================================================
// Helpers
// ============================================================================

// authStatus is the HTTP status of a mapped auth error code.
var authStatus = map[string]int{
	"invalid_credentials":        http.StatusUnauthorized,
	"session_not_found":          http.StatusUnauthorized,
	"email_not_confirmed":        http.StatusForbidden,
	"user_already_exists":        http.StatusConflict,
	"over_email_send_rate_limit": http.StatusTooManyRequests,
	"user_not_found":             http.StatusNotFound,
	autherr.Unexpected.Code:      http.StatusInternalServerError,
}

func (h *Handlers) writeAuthError(w http.ResponseWriter, err error) {
	m := autherr.Map(err)
	metrics.AuthFailure(m.Code)

	status, ok := authStatus[m.Code]
	if !ok {
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("auth request failed", "error", err)
	}
	writeJSON(w, status, APIError{Code: m.Code, Message: m.UserMessage, Action: m.Action})
}

func (h *Handlers) writeTrackerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tracker.ErrUnknownKind):
		writeError(w, http.StatusNotFound, "unknown_tracker", err.Error())
	case errors.Is(err, tracker.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, tracker.ErrInvalidEntry):
		writeError(w, http.StatusUnprocessableEntity, "invalid_entry", err.Error())
	default:
		h.logger.Error("api request failed", "error", err, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

// decodeJSON reads the request body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request", "Request body must be valid JSON")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, APIError{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
