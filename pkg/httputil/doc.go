// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteStatus(w, http.StatusNotFound)
//	httputil.WriteBadRequest(w, "limit must not be negative")
//
// Catalog endpoints answer lookups that miss with a bare status code and an
// empty body; WriteStatus exists for that case.
//
// # Request Parsing
//
//	var req loginRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
//	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.CORSMiddleware(origins),
//	)(router)
//
// RequestIDMiddleware stores the request id in the context under
// contextkeys.RequestIDKey so the access log and handler logs can carry it.
package httputil
