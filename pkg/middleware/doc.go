// Package middleware provides HTTP middleware for authentication, authorization, and rate limiting.
//
// # Authentication
//
//	authn := middleware.NewAuthenticator(issuer, resolver, logger)
//	router.Handle("/me", authn.Handler(meHandler))
//
// A request is authenticated by a session token from /login or by an API
// key, sent either in X-API-Key or as a bearer token. Missing or invalid
// credentials give 401; a database outage while resolving a principal gives
// 503. Of a session token only the user id is trusted; the user and its
// roles are read again on every request, so a deleted or demoted account
// loses access at once.
//
// RequireRole checks a role name after authentication and answers 403 when
// the principal lacks it:
//
//	admin := httputil.Chain(authn.Handler, middleware.RequireRole(auth.RoleAdmin))
//
// # Rate Limiting
//
// RateLimitMiddleware keys requests by client IP, as resolved by
// auth.TrustedProxies. Forwarding headers count only when the peer is a
// trusted proxy. DistributedRateLimiter
// shares counters through Redis; LocalRateLimiter keeps them in memory for
// single instance deployments. A Redis failure lets the request through.
//
// Default: 10 requests per minute per IP on login and password endpoints.
package middleware
