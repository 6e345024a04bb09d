package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/spkrepo/pkg/auth"
	"github.com/platinummonkey/spkrepo/pkg/contextkeys"
	"github.com/platinummonkey/spkrepo/pkg/httputil"
	"github.com/platinummonkey/spkrepo/pkg/storage"
)

var errMissingCredentials = errors.New("missing credentials")

// PrincipalResolver loads the current principal behind a credential. Both
// methods return auth.ErrNotFound when no active user matches.
type PrincipalResolver interface {
	ResolveAPIKey(ctx context.Context, key string) (*auth.AuthContext, error)
	ResolveSession(ctx context.Context, userID int64) (*auth.AuthContext, error)
}

// Authenticator accepts either a session token issued at login or an API key.
//
// Credentials are read from:
//   - X-API-Key: <api key>
//   - Authorization: Bearer <session token | api key>
//
// Bearer values carrying the API key prefix are treated as API keys. A
// session token only proves who the caller was at login; the user and its
// roles are loaded through the resolver on every request.
type Authenticator struct {
	issuer     *auth.TokenIssuer
	principals PrincipalResolver
	logger     logrus.FieldLogger
}

// NewAuthenticator creates an Authenticator. Without principals every
// request is rejected.
func NewAuthenticator(issuer *auth.TokenIssuer, principals PrincipalResolver, logger logrus.FieldLogger) *Authenticator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Authenticator{issuer: issuer, principals: principals, logger: logger}
}

// Handler rejects requests without valid credentials and stores the
// principal in the request context.
func (a *Authenticator) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx, err := a.authenticate(r)
		switch {
		case err == nil:
		case errors.Is(err, errMissingCredentials):
			httputil.WriteUnauthorized(w, "missing credentials")
			return
		case errors.Is(err, storage.ErrUnavailable):
			httputil.WriteStatus(w, http.StatusServiceUnavailable)
			return
		case errors.Is(err, auth.ErrNotFound), errors.Is(err, auth.ErrInvalidToken):
			httputil.WriteUnauthorized(w, "invalid credentials")
			return
		default:
			a.logger.WithFields(logrus.Fields{
				"request_id": contextkeys.GetRequestID(r.Context()),
				"error":      err,
			}).Error("authentication failed")
			httputil.WriteStatus(w, http.StatusInternalServerError)
			return
		}

		ctx := contextkeys.WithAuth(r.Context(), authCtx)
		ctx = contextkeys.WithUserID(ctx, authCtx.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) authenticate(r *http.Request) (*auth.AuthContext, error) {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return a.resolveKey(r.Context(), key)
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, errMissingCredentials
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return nil, auth.ErrInvalidToken
	}

	token := strings.TrimSpace(parts[1])
	if strings.HasPrefix(token, auth.TokenPrefix) {
		return a.resolveKey(r.Context(), token)
	}
	if a.issuer == nil || a.principals == nil {
		return nil, auth.ErrInvalidToken
	}

	claims, err := a.issuer.Parse(token)
	if err != nil {
		return nil, err
	}
	return a.principals.ResolveSession(r.Context(), claims.UserID)
}

func (a *Authenticator) resolveKey(ctx context.Context, key string) (*auth.AuthContext, error) {
	if a.principals == nil {
		return nil, auth.ErrInvalidToken
	}
	return a.principals.ResolveAPIKey(ctx, key)
}

// GetAuthContext extracts auth context from request
func GetAuthContext(r *http.Request) *auth.AuthContext {
	authCtx, _ := r.Context().Value(contextkeys.AuthKey).(*auth.AuthContext)
	return authCtx
}

// RequireRole creates middleware that checks the principal holds role.
// It must run after Authenticator.Handler.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if authCtx == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			if !authCtx.HasRole(role) {
				httputil.WriteForbidden(w, "insufficient role permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
