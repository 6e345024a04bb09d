// Package api provides the HTTP REST API of the spkrepo package repository.
//
// # Overview
//
// The API exposes the repository catalog (architectures, builds, firmware,
// packages, versions, screenshots, languages, services) as JSON, handles
// user authentication and redirects package downloads to the storage
// backend. Every route is served both under /v1 and unprefixed.
//
// # Architecture
//
// The API is built on gorilla/mux. Each handler borrows one connection from
// the storage.Store for the duration of the request:
//
//	sess, ok := s.acquire(w, r)
//	if !ok {
//	    return
//	}
//	defer sess.Close()
//
// # Key Types
//
// Server is the API server. It is created from its Dependencies:
//
//	server := api.NewServer(ctx, api.Dependencies{
//	    Store:  store,
//	    Auth:   authService,
//	    Issuer: issuer,
//	    Links:  storage.StaticLinks{BaseURL: "https://packages.example.com"},
//	}, api.Config{RequestTimeout: 30 * time.Second})
//	http.ListenAndServe(":8080", server.Handler())
//
// # Endpoints
//
// Catalog, public:
//
//	GET /architecture?limit=&offset=
//	GET /build
//	GET /firmware
//	GET /screenshot?limit=&offset=
//	GET /package?lang=
//	GET /package/name?limit=&offset=
//	GET /package/{id}/screenshot
//	GET /package/{id}/version
//	GET /package/{id}/maintainer
//	GET /version/{id}/icon
//	GET /version/{id}/service
//	GET /language
//	GET /service
//	GET /download/{build_id}?arch=&build=
//
// Administration, admin role:
//
//	POST   /architecture   {"code": "x86_64"}
//	DELETE /architecture   {"id": 4}
//	GET    /role
//	GET    /user?limit=&offset=&q=
//	DELETE /user           {"id": 5}
//	GET    /download?limit=&offset=
//
// Account:
//
//	POST /login            rate limited
//	POST /password/forgot  rate limited
//	POST /password/reset   rate limited
//	POST /user/apikey      authenticated
//	GET  /me               authenticated
//	GET  /auth/github/login
//	GET  /auth/github/callback
//
// # Error Handling
//
// Malformed input gets 400 with a JSON error body. Missing rows, failed
// logins and unknown reset tokens get an empty 404. When no database
// connection can be acquired within the store's acquire timeout the answer
// is an empty 503; other database errors give an empty 500 and are logged
// with the request id.
//
// # Downloads
//
// GET /download/{build_id} redirects to the build file when the build is
// active and was built for the requested architecture. The download event is
// written by a small worker pool after the redirect; when its queue is full
// the event is dropped and counted in spkrepo_downloads_dropped_total.
package api
