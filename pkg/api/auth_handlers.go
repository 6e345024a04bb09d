package api

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/spkrepo/pkg/auth"
	"github.com/platinummonkey/spkrepo/pkg/httputil"
	"github.com/platinummonkey/spkrepo/pkg/middleware"
	"github.com/platinummonkey/spkrepo/pkg/storage"
)

// login handles POST /login. Unknown users, wrong passwords and users
// without roles all get the same empty 404.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var creds auth.Credentials
	if !httputil.ParseJSONOrError(w, r, &creds) {
		return
	}
	if creds.Username == "" && creds.Email == "" {
		httputil.WriteBadRequest(w, "username or email is required")
		return
	}
	sess, ok := s.acquire(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	user, roles, err := s.auth.Login(r.Context(), sess, creds)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			s.audit.LogFromRequest(r, auth.ActionLogin, auth.StatusFailure, creds.Username, nil, err)
		}
		s.fail(w, r, err)
		return
	}

	token, expires, err := s.issuer.Issue(user, roles)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.audit.LogFromRequest(r, auth.ActionLogin, auth.StatusSuccess, user.Username, &user.ID, nil)
	httputil.WriteSuccess(w, LoginResponse{
		Token:     token,
		ExpiresAt: expires,
		User:      user.Summary(),
		Roles:     roles,
	})
}

// forgotPassword handles POST /password/forgot. The answer does not reveal
// whether the email is known.
func (s *Server) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Email, "email") {
		return
	}
	sess, ok := s.acquire(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	if err := s.auth.RequestPasswordReset(r.Context(), sess, req.Email); err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit.LogFromRequest(r, auth.ActionPasswordForgot, auth.StatusSuccess, "", nil, nil)
	httputil.WriteSuccess(w, StatusResponse{Status: "ok"})
}

// resetPassword handles POST /password/reset
func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	sess, ok := s.acquire(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	err := sess.WithTx(r.Context(), func(tx *storage.Session) error {
		return s.auth.ResetPassword(r.Context(), tx, req.Token, req.Password)
	})
	switch {
	case err == nil:
		s.audit.LogFromRequest(r, auth.ActionPasswordReset, auth.StatusSuccess, "", nil, nil)
		httputil.WriteSuccess(w, StatusResponse{Status: "ok"})
	case errors.Is(err, auth.ErrWeakPassword):
		httputil.WriteBadRequest(w, err.Error())
	default:
		if errors.Is(err, auth.ErrNotFound) {
			s.audit.LogFromRequest(r, auth.ActionPasswordReset, auth.StatusFailure, "", nil, err)
		}
		s.fail(w, r, err)
	}
}

// rotateAPIKey handles POST /user/apikey
func (s *Server) rotateAPIKey(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetAuthContext(r)
	sess, ok := s.acquire(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	key, err := s.auth.GenerateAPIKey(r.Context(), sess, principal.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit.LogFromRequest(r, auth.ActionAPIKeyRotate, auth.StatusSuccess, principal.Username, &principal.UserID, nil)
	httputil.WriteSuccess(w, APIKeyResponse{APIKey: key})
}

// me handles GET /me
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetAuthContext(r)
	sess, ok := s.acquire(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	user, err := sess.FindActiveUserByID(r.Context(), principal.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	roles, err := sess.RolesForUser(r.Context(), user.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteSuccess(w, MeResponse{
		User:   user.Summary(),
		Roles:  roles,
		Method: string(principal.Method),
	})
}

// githubLogin handles GET /auth/github/login
func (s *Server) githubLogin(w http.ResponseWriter, r *http.Request) {
	if s.github == nil {
		httputil.WriteStatus(w, http.StatusNotFound)
		return
	}
	principal := middleware.GetAuthContext(r)

	url, err := s.github.AuthCodeURL(principal.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteSuccess(w, GitHubLoginResponse{URL: url})
}

// githubCallback handles GET /auth/github/callback
func (s *Server) githubCallback(w http.ResponseWriter, r *http.Request) {
	if s.github == nil {
		httputil.WriteStatus(w, http.StatusNotFound)
		return
	}
	principal := middleware.GetAuthContext(r)
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")

	token, err := s.github.Exchange(r.Context(), principal.UserID, state, code)
	if errors.Is(err, auth.ErrInvalidToken) {
		s.audit.LogFromRequest(r, auth.ActionGitHubLink, auth.StatusDenied, principal.Username, &principal.UserID, err)
		httputil.WriteBadRequest(w, "invalid state or code")
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	sess, ok := s.acquire(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	if err := sess.SetGitHubToken(r.Context(), principal.UserID, token); err != nil {
		s.fail(w, r, err)
		return
	}
	s.audit.LogFromRequest(r, auth.ActionGitHubLink, auth.StatusSuccess, principal.Username, &principal.UserID, nil)
	httputil.WriteSuccess(w, StatusResponse{Status: "linked"})
}

// listUsers handles GET /user?limit=&offset=&q=
func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePageOrError(w, r)
	if !ok {
		return
	}
	search := httputil.ParseQueryString(r, "q", "")
	sess, ok := s.acquire(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	users, err := sess.ListUsers(r.Context(), page, search)
	s.respond(w, r, users, err)
}

// deleteUser handles DELETE /user
func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	var req DeleteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	sess, ok := s.acquire(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	n, err := sess.DeleteUser(r.Context(), req.ID)
	s.auditAdmin(r, auth.ActionUserDelete, err)
	s.respond(w, r, n, err)
}

// auditAdmin records an administrative action of the authenticated user
func (s *Server) auditAdmin(r *http.Request, action string, err error) {
	status := auth.StatusSuccess
	if err != nil {
		status = auth.StatusFailure
	}
	var (
		username string
		userID   *int64
	)
	if principal := middleware.GetAuthContext(r); principal != nil {
		username = principal.Username
		userID = &principal.UserID
	}
	s.audit.LogFromRequest(r, action, status, username, userID, err)
}
