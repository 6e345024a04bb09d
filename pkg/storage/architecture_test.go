package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/spkrepo/pkg/models"
)

func TestListArchitectures(t *testing.T) {
	sess, mock := newMockSession(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, code FROM architecture ORDER BY id LIMIT ? OFFSET ?`)).
		WithArgs(2, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code"}).
			AddRow(2, "armv7").
			AddRow(3, "x86_64"))

	archs, err := sess.ListArchitectures(context.Background(), models.Page{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []models.Architecture{{ID: 2, Code: "armv7"}, {ID: 3, Code: "x86_64"}}, archs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListArchitectures_EmptyIsNotNil(t *testing.T) {
	sess, mock := newMockSession(t)

	mock.ExpectQuery(`FROM architecture`).
		WithArgs(50, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code"}))

	archs, err := sess.ListArchitectures(context.Background(), models.Page{Limit: 50})
	require.NoError(t, err)
	assert.NotNil(t, archs)
	assert.Empty(t, archs)
}

func TestListArchitectures_QueryError(t *testing.T) {
	sess, mock := newMockSession(t)

	mock.ExpectQuery(`FROM architecture`).WillReturnError(errors.New("connection reset"))

	_, err := sess.ListArchitectures(context.Background(), models.Page{Limit: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list architectures")
}

func TestCreateArchitecture(t *testing.T) {
	sess, mock := newMockSession(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO architecture (code) VALUES (?) RETURNING id, code`)).
		WithArgs("aarch64").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code"}).AddRow(7, "aarch64"))

	arch, err := sess.CreateArchitecture(context.Background(), "aarch64")
	require.NoError(t, err)
	assert.Equal(t, &models.Architecture{ID: 7, Code: "aarch64"}, arch)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteArchitecture(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
	}{
		{name: "existing id", affected: 1},
		{name: "missing id deletes nothing", affected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, mock := newMockSession(t)

			mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM architecture WHERE id = ?`)).
				WithArgs(int64(42)).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			n, err := sess.DeleteArchitecture(context.Background(), 42)
			require.NoError(t, err)
			assert.Equal(t, tt.affected, n)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGetArchitecture_NotFound(t *testing.T) {
	sess, mock := newMockSession(t)

	mock.ExpectQuery(`FROM architecture WHERE id`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code"}))

	_, err := sess.GetArchitecture(context.Background(), 9)
	assert.ErrorIs(t, err, ErrNotFound)
}
