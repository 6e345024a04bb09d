package httputil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		expectError bool
	}{
		{
			name:        "valid JSON",
			body:        `{"name": "test"}`,
			expectError: false,
		},
		{
			name:        "invalid JSON",
			body:        `{invalid}`,
			expectError: true,
		},
		{
			name:        "empty body",
			body:        ``,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/test", bytes.NewBufferString(tt.body))
			var dest map[string]string

			err := ParseJSON(req, &dest)

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, "test", dest["name"])
			}
		})
	}
}

func TestParseJSONOrError(t *testing.T) {
	req := httptest.NewRequest("POST", "/test", bytes.NewBufferString(`{bad`))
	w := httptest.NewRecorder()
	var dest map[string]string

	ok := ParseJSONOrError(w, req, &dest)

	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParsePathInt64(t *testing.T) {
	tests := []struct {
		name        string
		value       string
		expected    int64
		expectError bool
	}{
		{"valid", "42", 42, false},
		{"large", "9223372036854775807", 9223372036854775807, false},
		{"not a number", "abc", 0, true},
		{"missing", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			req = mux.SetURLVars(req, map[string]string{"id": tt.value})

			val, err := ParsePathInt64(req, "id")

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, val)
			}
		})
	}
}

func TestParsePathInt64OrError_Invalid(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "x"})
	w := httptest.NewRecorder()

	_, ok := ParsePathInt64OrError(w, req, "id")

	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest("GET", "/test?limit=20", nil)
	val, err := ParseQueryInt(req, "limit", 50)
	assert.NoError(t, err)
	assert.Equal(t, 20, val)

	req = httptest.NewRequest("GET", "/test", nil)
	val, err = ParseQueryInt(req, "limit", 50)
	assert.NoError(t, err)
	assert.Equal(t, 50, val)

	req = httptest.NewRequest("GET", "/test?limit=ten", nil)
	_, err = ParseQueryInt(req, "limit", 50)
	assert.Error(t, err)
}

func TestParseQueryString(t *testing.T) {
	req := httptest.NewRequest("GET", "/test?lang=fre", nil)
	assert.Equal(t, "fre", ParseQueryString(req, "lang", "enu"))

	req = httptest.NewRequest("GET", "/test", nil)
	assert.Equal(t, "enu", ParseQueryString(req, "lang", "enu"))
}

func TestRequireNonEmpty(t *testing.T) {
	w := httptest.NewRecorder()
	assert.False(t, RequireNonEmpty(w, "", "code"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	assert.True(t, RequireNonEmpty(w, "x86_64", "code"))
}

func BenchmarkWriteJSON(b *testing.B) {
	data := map[string]interface{}{"id": 1, "code": "x86_64"}
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		WriteJSON(w, http.StatusOK, data)
	}
}
