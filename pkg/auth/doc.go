// Package auth authenticates users of the package repository.
//
// # Login
//
// Service.Login looks a user up by email (or username), compares the bcrypt
// hash and loads the user's roles. Unknown users, wrong passwords and users
// with no role all fail with ErrNotFound so the HTTP layer answers the same
// way in every case.
//
//	svc := auth.NewService(auth.ServiceConfig{ResetURL: "https://example.com/reset"}, mailer, logger)
//	user, roles, err := svc.Login(ctx, sess, auth.Credentials{Email: email, Password: pw})
//
// A successful login is turned into an HS256 session token by TokenIssuer.
// Automation uses API keys instead: opaque spkrepo_ tokens compared by
// equality with the stored key (Service.ValidateAPIKey).
//
// # Password reset
//
// RequestPasswordReset stores the SHA-256 of a fresh token with an expiry and
// mails the link in the background. ResetPassword consumes the token once.
//
// # GitHub
//
// GitHubLinker runs the OAuth2 authorization code flow and stores the access
// token on the user. The state parameter is a signed token bound to the user.
//
// # Audit
//
// AuditLogger writes login and account events through logrus with the
// "component=audit" field.
package auth
