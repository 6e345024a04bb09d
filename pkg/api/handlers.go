package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/spkrepo/pkg/auth"
	"github.com/platinummonkey/spkrepo/pkg/httputil"
	"github.com/platinummonkey/spkrepo/pkg/models"
	"github.com/platinummonkey/spkrepo/pkg/observability"
	"github.com/platinummonkey/spkrepo/pkg/storage"
)

// Pagination bounds
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 500
)

// parsePage reads limit and offset. A missing limit defaults to
// DefaultPageLimit and larger limits are clamped to MaxPageLimit.
func parsePage(r *http.Request) (models.Page, error) {
	limit, err := httputil.ParseQueryInt(r, "limit", DefaultPageLimit)
	if err != nil {
		return models.Page{}, err
	}
	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil {
		return models.Page{}, err
	}
	if limit < 0 || offset < 0 {
		return models.Page{}, fmt.Errorf("limit and offset must not be negative")
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return models.Page{Limit: limit, Offset: offset}, nil
}

func parsePageOrError(w http.ResponseWriter, r *http.Request) (models.Page, bool) {
	page, err := parsePage(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return page, false
	}
	return page, true
}

// acquire borrows a connection for the request. On failure the response has
// been written.
func (s *Server) acquire(w http.ResponseWriter, r *http.Request) (*storage.Session, bool) {
	sess, err := s.store.Acquire(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return sess, true
}

// fail maps err to an empty-body status: 503 when no connection was
// available, 404 for missing rows and 500 otherwise.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	logger := observability.FromContext(r.Context(), s.logger).WithFields(logrus.Fields{
		"route": r.URL.Path,
		"error": err,
	})

	switch {
	case errors.Is(err, storage.ErrUnavailable):
		logger.Warn("database unavailable")
		httputil.WriteStatus(w, http.StatusServiceUnavailable)
	case errors.Is(err, storage.ErrNotFound):
		httputil.WriteStatus(w, http.StatusNotFound)
	default:
		logger.Error("query failed")
		httputil.WriteStatus(w, http.StatusInternalServerError)
	}
}

// respond writes v as JSON or maps err
func (s *Server) respond(w http.ResponseWriter, r *http.Request, v interface{}, err error) {
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteSuccess(w, v)
}

// listArchitectures handles GET /architecture
func (s *Server) listArchitectures(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePageOrError(w, r)
	if !ok {
		return
	}
	sess, ok := s.acquire(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	archs, err := sess.ListArchitectures(r.Context(), page)
	s.respond(w, r, archs, err)
}

// createArchitecture handles POST /architecture
func (s *Server) createArchitecture(w http.ResponseWriter, r *http.Request) {
	var req CreateArchitectureRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Code, "code") {
		return
	}
	sess, ok := s.acquire(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	arch, err := sess.CreateArchitecture(r.Context(), req.Code)
	s.auditAdmin(r, auth.ActionArchCreate, err)
	s.respond(w, r, arch, err)
}

// deleteArchitecture handles DELETE /architecture
func (s *Server) deleteArchitecture(w http.ResponseWriter, r *http.Request) {
	var req DeleteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	sess, ok := s.acquire(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	n, err := sess.DeleteArchitecture(r.Context(), req.ID)
	s.auditAdmin(r, auth.ActionArchDelete, err)
	s.respond(w, r, n, err)
}

// listBuilds handles GET /build
func (s *Server) listBuilds(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.acquire(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	builds, err := sess.ListBuilds(r.Context())
	s.respond(w, r, builds, err)
}

// listFirmware handles GET /firmware
func (s *Server) listFirmware(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.acquire(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	fw, err := sess.ListFirmware(r.Context())
	s.respond(w, r, fw, err)
}

// listScreenshots handles GET /screenshot
func (s *Server) listScreenshots(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePageOrError(w, r)
	if !ok {
		return
	}
	sess, ok := s.acquire(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	rows, err := sess.ListScreenshots(r.Context(), page)
	s.respond(w, r, rows, err)
}

// listPackages handles GET /package?lang=
func (s *Server) listPackages(w http.ResponseWriter, r *http.Request) {
	lang := httputil.ParseQueryString(r, "lang", storage.DefaultLanguage)
	sess, ok := s.acquire(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	listing, err := sess.ListPackages(r.Context(), lang)
	s.respond(w, r, listing, err)
}

// listPackageNames handles GET /package/name
func (s *Server) listPackageNames(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePageOrError(w, r)
	if !ok {
		return
	}
	sess, ok := s.acquire(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	pkgs, err := sess.ListPackageNames(r.Context(), page)
	s.respond(w, r, pkgs, err)
}

// packageScreenshots handles GET /package/{id}/screenshot
func (s *Server) packageScreenshots(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	sess, ok := s.acquire(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	shots, err := sess.ScreenshotsForPackage(r.Context(), id)
	s.respond(w, r, shots, err)
}

// packageVersions handles GET /package/{id}/version
func (s *Server) packageVersions(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	sess, ok := s.acquire(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	versions, err := sess.VersionsForPackage(r.Context(), id)
	s.respond(w, r, versions, err)
}

// packageMaintainers handles GET /package/{id}/maintainer
func (s *Server) packageMaintainers(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	sess, ok := s.acquire(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	users, err := sess.MaintainersForPackage(r.Context(), id)
	s.respond(w, r, users, err)
}

// versionIcons handles GET /version/{id}/icon
func (s *Server) versionIcons(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	sess, ok := s.acquire(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	icons, err := sess.IconsForVersion(r.Context(), id)
	s.respond(w, r, icons, err)
}

// versionServices handles GET /version/{id}/service
func (s *Server) versionServices(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	sess, ok := s.acquire(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	deps, err := sess.ServiceDependencies(r.Context(), id)
	s.respond(w, r, deps, err)
}

// listLanguages handles GET /language
func (s *Server) listLanguages(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.acquire(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	langs, err := sess.ListLanguages(r.Context())
	s.respond(w, r, langs, err)
}

// listServices handles GET /service
func (s *Server) listServices(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.acquire(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	services, err := sess.ListServices(r.Context())
	s.respond(w, r, services, err)
}

// listRoles handles GET /role
func (s *Server) listRoles(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.acquire(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	roles, err := sess.ListRoles(r.Context())
	s.respond(w, r, roles, err)
}
