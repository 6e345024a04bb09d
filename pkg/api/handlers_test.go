package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/spkrepo/pkg/models"
)

func TestParsePage(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    models.Page
		wantErr bool
	}{
		{name: "defaults", query: "", want: models.Page{Limit: DefaultPageLimit}},
		{name: "explicit", query: "limit=10&offset=20", want: models.Page{Limit: 10, Offset: 20}},
		{name: "zero limit", query: "limit=0", want: models.Page{Limit: 0}},
		{name: "clamped", query: "limit=100000", want: models.Page{Limit: MaxPageLimit}},
		{name: "negative limit", query: "limit=-1", wantErr: true},
		{name: "negative offset", query: "offset=-5", wantErr: true},
		{name: "not a number", query: "limit=ten", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/architecture?"+tt.query, nil)
			page, err := parsePage(req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, page)
		})
	}
}

func TestListArchitectures(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, code FROM architecture ORDER BY id LIMIT ? OFFSET ?`)).
		WithArgs(2, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code"}).AddRow(2, "armv7").AddRow(3, "x86_64"))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/architecture?limit=2&offset=1", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `[{"id":2,"code":"armv7"},{"id":3,"code":"x86_64"}]`, rec.Body.String())
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestListArchitectures_BadPagination(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/v1/architecture?limit=-3", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestListArchitectures_QueryFailure(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectQuery(`FROM architecture`).WillReturnError(errors.New("relation does not exist"))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/v1/architecture", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestListArchitectures_PoolExhausted(t *testing.T) {
	env := newTestEnv(t)
	env.store.DB().SetMaxOpenConns(1)
	held, err := env.store.Acquire(context.Background())
	require.NoError(t, err)
	defer held.Close()

	rec := env.do(httptest.NewRequest(http.MethodGet, "/v1/architecture", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestCreateArchitecture_Authorization(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{name: "anonymous", token: "", status: http.StatusUnauthorized},
		{name: "invalid token", token: "not-a-jwt", status: http.StatusUnauthorized},
		{name: "developer", token: env.token(t, 2, "dev", "developer"), status: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.name == "developer" {
				env.expectSession(2, "dev", "developer")
			}
			req := httptest.NewRequest(http.MethodPost, "/v1/architecture", strings.NewReader(`{"code":"riscv64"}`))
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := env.do(req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestCreateArchitecture(t *testing.T) {
	env := newTestEnv(t)
	env.expectSession(1, "admin", "admin")
	env.mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO architecture (code) VALUES (?) RETURNING id, code`)).
		WithArgs("riscv64").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code"}).AddRow(9, "riscv64"))

	req := httptest.NewRequest(http.MethodPost, "/v1/architecture", strings.NewReader(`{"code":"riscv64"}`))
	req.Header.Set("Authorization", "Bearer "+env.token(t, 1, "admin", "admin"))
	rec := env.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":9,"code":"riscv64"}`, rec.Body.String())
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestCreateArchitecture_Validation(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, 1, "admin", "admin")

	for _, body := range []string{``, `{"code":`, `{"code":""}`} {
		env.expectSession(1, "admin", "admin")
		req := httptest.NewRequest(http.MethodPost, "/v1/architecture", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+admin)
		rec := env.do(req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
}

func TestDeleteArchitecture(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     string
	}{
		{name: "existing", affected: 1, want: "1"},
		{name: "missing id", affected: 0, want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.expectSession(1, "admin", "admin")
			env.mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM architecture WHERE id = ?`)).
				WithArgs(int64(4)).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			req := httptest.NewRequest(http.MethodDelete, "/v1/architecture", strings.NewReader(`{"id":4}`))
			req.Header.Set("Authorization", "Bearer "+env.token(t, 1, "admin", "admin"))
			rec := env.do(req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, tt.want, rec.Body.String())
		})
	}
}

func TestListFirmware(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, version, build FROM firmware ORDER BY id`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "version", "build"}).AddRow(1, "6.2", 25556))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/firmware", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":1,"version":"6.2","build":25556}]`, rec.Body.String())
}

func TestListScreenshots(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectQuery(`FROM screenshot s\s+JOIN package p`).
		WithArgs(DefaultPageLimit, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "package", "path"}).AddRow(5, "transmission", "transmission/screen_1.png"))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/v1/screenshot", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":5,"package":"transmission","path":"transmission/screen_1.png"}]`, rec.Body.String())
}

func TestListPackages_UnknownLanguage(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM language WHERE code = ?`)).
		WithArgs("xyz").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/v1/package?lang=xyz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListPackages_DefaultLanguage(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM language WHERE code = ?`)).
		WithArgs("enu").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	env.mock.ExpectQuery(`FROM package p`).
		WithArgs(true, int64(1), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"changelog", "package", "link", "desc", "distributor", "distributor_url", "dname"}).
			AddRow(nil, "transmission", "transmission/transmission.spk", "BitTorrent client", nil, nil, "Transmission"))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/v1/package", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"package":"transmission"`)
	assert.Contains(t, rec.Body.String(), `"dname":"Transmission"`)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestPackageVersions_Empty(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectQuery(`FROM version`).
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/v1/package/12/version", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListRoles_RequiresAdmin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/v1/role", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	env.expectSession(1, "admin", "admin")
	env.mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, name, description FROM role ORDER BY id`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description"}).AddRow(1, "admin", "Administrator"))

	req := httptest.NewRequest(http.MethodGet, "/v1/role", nil)
	req.Header.Set("Authorization", "Bearer "+env.token(t, 1, "admin", "admin"))
	rec = env.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":1,"name":"admin","description":"Administrator"}]`, rec.Body.String())
}
