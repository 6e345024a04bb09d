package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3Client_BuildURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.S3Endpoint = "http://localhost:9000"
	cfg.S3Bucket = "spk-builds"
	cfg.S3AccessKey = "minioadmin"
	cfg.S3SecretKey = "minioadmin"
	cfg.S3UsePathStyle = true
	cfg.S3PresignExpiry = 10 * time.Minute

	client, err := NewS3Client(context.Background(), cfg)
	require.NoError(t, err)

	link, err := client.BuildURL(context.Background(), "/transmission/transmission-1.spk")
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "/spk-builds/transmission/transmission-1.spk", u.Path)
	assert.Equal(t, "600", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}

func TestS3Client_Ping(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		if r.URL.Path != "/spk-builds" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	newClient := func(bucket string) *S3Client {
		cfg := DefaultConfig()
		cfg.S3Endpoint = srv.URL
		cfg.S3Bucket = bucket
		cfg.S3AccessKey = "minioadmin"
		cfg.S3SecretKey = "minioadmin"
		cfg.S3UsePathStyle = true
		client, err := NewS3Client(context.Background(), cfg)
		require.NoError(t, err)
		return client
	}

	require.NoError(t, newClient("spk-builds").Ping(context.Background()))
	assert.Equal(t, http.MethodHead, gotMethod)
	assert.Equal(t, "/spk-builds", gotPath)

	err := newClient("missing").Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestStaticLinks_BuildURL(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		path    string
		want    string
		wantErr bool
	}{
		{"joins path", "https://packages.example.com/builds", "alpha/alpha-1.spk", "https://packages.example.com/builds/alpha/alpha-1.spk", false},
		{"leading slash", "https://packages.example.com/", "/alpha/alpha-1.spk", "https://packages.example.com/alpha/alpha-1.spk", false},
		{"no base", "", "alpha/alpha-1.spk", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := StaticLinks{BaseURL: tt.base}.BuildURL(context.Background(), tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
