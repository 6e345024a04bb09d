package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogger_Log(t *testing.T) {
	logger, hook := test.NewNullLogger()
	al := NewAuditLogger(logger, nil)

	tests := []struct {
		name    string
		event   *AuditEvent
		wantErr bool
		level   logrus.Level
	}{
		{"success", &AuditEvent{Action: ActionLogin, Status: StatusSuccess, Username: "alice"}, false, logrus.InfoLevel},
		{"failure", &AuditEvent{Action: ActionLogin, Status: StatusFailure, Err: errors.New("bad password")}, false, logrus.WarnLevel},
		{"missing action", &AuditEvent{Status: StatusSuccess}, true, 0},
		{"missing status", &AuditEvent{Action: ActionLogin}, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hook.Reset()
			err := al.Log(tt.event)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Empty(t, hook.AllEntries())
				return
			}
			require.NoError(t, err)
			entry := hook.LastEntry()
			require.NotNil(t, entry)
			assert.Equal(t, tt.level, entry.Level)
			assert.Equal(t, "audit", entry.Data["component"])
			assert.Equal(t, tt.event.Action, entry.Data["action"])
		})
	}
}

func TestAuditLogger_LogFromRequest(t *testing.T) {
	logger, hook := test.NewNullLogger()
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	al := NewAuditLogger(logger, proxies)

	req := httptest.NewRequest("POST", "/v1/login", nil)
	req.RemoteAddr = "10.0.0.2:3456"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	req.Header.Set("User-Agent", "synology")

	id := int64(3)
	require.NoError(t, al.LogFromRequest(req, ActionLogin, StatusSuccess, "alice", &id, nil))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "203.0.113.7", entry.Data["ip"])
	assert.Equal(t, int64(3), entry.Data["user_id"])
	assert.Equal(t, "synology", entry.Data["user_agent"])
}

func TestLogMailer_Send(t *testing.T) {
	logger, hook := test.NewNullLogger()
	m := &LogMailer{Logger: logger}

	require.NoError(t, m.Send(context.Background(), Message{To: "a@example.com", Subject: "hi", Body: "body"}))
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "a@example.com", entry.Data["to"])
	assert.Equal(t, "body", entry.Message)
}

func TestSMTPMailer_Format(t *testing.T) {
	m := &SMTPMailer{From: "noreply@example.com"}
	raw := string(m.format(Message{To: "a@example.com", Subject: "Password reset", Body: "line1\nline2"}))

	assert.Contains(t, raw, "From: noreply@example.com\r\n")
	assert.Contains(t, raw, "Subject: Password reset\r\n")
	assert.Contains(t, raw, "\r\n\r\nline1\r\nline2")
}

func TestSMTPMailer_CancelledContext(t *testing.T) {
	m := &SMTPMailer{Addr: "127.0.0.1:1", From: "noreply@example.com"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, Message{To: "a@example.com"}), context.Canceled)
}
