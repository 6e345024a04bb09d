package api

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/spkrepo/pkg/auth"
)

var buildCols = []string{"id", "package_id", "firmware_id", "publisher_user_id", "checksum", "exec_size", "path", "md5", "insert_date", "active"}

func expectBuild(mock sqlmock.Sqlmock, id int64, active bool) {
	mock.ExpectQuery(regexp.QuoteMeta(`FROM build WHERE id = ?`)).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(buildCols).
			AddRow(id, 1, 1, nil, nil, 1024, "transmission/transmission.v12.spk", "d41d8cd98f00b204e9800998ecf8427e", time.Now(), active))
}

func expectBuildArchitectures(mock sqlmock.Sqlmock, id int64, codes ...string) {
	rows := sqlmock.NewRows([]string{"id", "code"})
	for i, code := range codes {
		rows.AddRow(i+1, code)
	}
	mock.ExpectQuery(`FROM architecture a`).WithArgs(id).WillReturnRows(rows)
}

func TestDownload(t *testing.T) {
	env := newTestEnv(t)
	expectBuild(env.mock, 9, true)
	expectBuildArchitectures(env.mock, 9, "armv7", "x86_64")
	env.mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO download`)).
		WithArgs(int64(9), int64(2), int64(25556), "192.0.2.1", "synology", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(100))

	req := httptest.NewRequest(http.MethodGet, "/v1/download/9?arch=x86_64&build=25556", nil)
	req.Header.Set("User-Agent", "synology")
	// Not believed from an untrusted peer, and longer than the column
	req.Header.Set("X-Forwarded-For", strings.Repeat("f", 100))
	rec := env.do(req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://dl.example/transmission/transmission.v12.spk", rec.Header().Get("Location"))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.DownloadsTotal.WithLabelValues("x86_64")))

	require.NoError(t, env.server.Close(time.Second))
	assert.NoError(t, env.mock.ExpectationsWereMet())
	assert.Equal(t, 0.0, testutil.ToFloat64(env.metrics.DownloadsDroppedTotal))
}

func TestDownload_ForwardedByTrustedProxy(t *testing.T) {
	proxies, err := auth.ParseTrustedProxies([]string{"192.0.2.0/24"})
	require.NoError(t, err)
	env := newTestEnv(t)
	env.server.cfg.TrustedProxies = proxies

	expectBuild(env.mock, 9, true)
	expectBuildArchitectures(env.mock, 9, "x86_64")
	env.mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO download`)).
		WithArgs(int64(9), int64(1), int64(0), "198.51.100.20", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(101))

	req := httptest.NewRequest(http.MethodGet, "/v1/download/9?arch=x86_64", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.20, 192.0.2.7")
	rec := env.do(req)

	require.Equal(t, http.StatusFound, rec.Code)
	require.NoError(t, env.server.Close(time.Second))
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestDownload_DroppedWhenRecorderClosed(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.server.Close(time.Second))

	expectBuild(env.mock, 9, true)
	expectBuildArchitectures(env.mock, 9, "x86_64")

	rec := env.do(httptest.NewRequest(http.MethodGet, "/download/9?arch=x86_64", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.DownloadsDroppedTotal))
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestDownload_NotServed(t *testing.T) {
	tests := []struct {
		name  string
		setup func(mock sqlmock.Sqlmock)
	}{
		{
			name: "unknown build",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(`FROM build WHERE id = ?`)).
					WithArgs(int64(9)).
					WillReturnRows(sqlmock.NewRows(buildCols))
			},
		},
		{
			name: "inactive build",
			setup: func(mock sqlmock.Sqlmock) {
				expectBuild(mock, 9, false)
			},
		},
		{
			name: "architecture not built",
			setup: func(mock sqlmock.Sqlmock) {
				expectBuild(mock, 9, true)
				expectBuildArchitectures(mock, 9, "armv7")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			tt.setup(env.mock)

			rec := env.do(httptest.NewRequest(http.MethodGet, "/v1/download/9?arch=x86_64", nil))

			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.Empty(t, rec.Header().Get("Location"))
			assert.NoError(t, env.mock.ExpectationsWereMet())
		})
	}
}

func TestDownload_BadRequest(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{
		"/v1/download/9",
		"/v1/download/9?arch=x86_64&build=latest",
		"/v1/download/9?arch=x86_64&build=-1",
	} {
		rec := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestDownload_NoLinkResolver(t *testing.T) {
	env := newTestEnv(t, func(d *Dependencies) { d.Links = nil })

	rec := env.do(httptest.NewRequest(http.MethodGet, "/v1/download/9?arch=x86_64", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListDownloads(t *testing.T) {
	env := newTestEnv(t)
	env.expectSession(1, "admin", "admin")
	env.mock.ExpectQuery(`FROM download\s+ORDER BY id DESC`).
		WithArgs(DefaultPageLimit, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "build_id", "architecture_id", "firmware_build", "ip_address", "user_agent", "date"}).
			AddRow(100, 9, 2, 25556, "192.0.2.1", nil, nil))

	req := httptest.NewRequest(http.MethodGet, "/v1/download", nil)
	req.Header.Set("Authorization", "Bearer "+env.token(t, 1, "admin", "admin"))
	rec := env.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ip_address":"192.0.2.1"`)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}
