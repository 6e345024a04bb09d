package auth

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

// AuditEvent is a security relevant action
type AuditEvent struct {
	Action    string
	UserID    *int64
	Username  string
	IPAddress string
	UserAgent string
	Status    string
	Err       error
}

// AuditLogger writes security events to a dedicated logrus logger
type AuditLogger struct {
	logger  logrus.FieldLogger
	proxies *TrustedProxies
}

// NewAuditLogger creates a new audit logger. proxies decides which
// forwarding headers are believed when recording client addresses.
func NewAuditLogger(logger logrus.FieldLogger, proxies *TrustedProxies) *AuditLogger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AuditLogger{logger: logger.WithField("component", "audit"), proxies: proxies}
}

// Log records an event
func (al *AuditLogger) Log(ev *AuditEvent) error {
	if ev.Action == "" {
		return fmt.Errorf("action is required")
	}
	if ev.Status == "" {
		return fmt.Errorf("status is required")
	}

	fields := logrus.Fields{
		"action": ev.Action,
		"status": ev.Status,
		"ip":     ev.IPAddress,
	}
	if ev.UserID != nil {
		fields["user_id"] = *ev.UserID
	}
	if ev.Username != "" {
		fields["username"] = ev.Username
	}
	if ev.UserAgent != "" {
		fields["user_agent"] = ev.UserAgent
	}

	entry := al.logger.WithFields(fields)
	if ev.Err != nil {
		entry.WithError(ev.Err).Warn("audit")
		return nil
	}
	entry.Info("audit")
	return nil
}

// LogFromRequest records an event with the client address and user agent of r
func (al *AuditLogger) LogFromRequest(r *http.Request, action, status, username string, userID *int64, err error) error {
	return al.Log(&AuditEvent{
		Action:    action,
		UserID:    userID,
		Username:  username,
		IPAddress: al.proxies.ClientIP(r),
		UserAgent: r.UserAgent(),
		Status:    status,
		Err:       err,
	})
}

// Audit actions
const (
	ActionLogin          = "auth.login"
	ActionAPIKeyRotate   = "auth.apikey.rotate"
	ActionPasswordForgot = "auth.password.forgot"
	ActionPasswordReset  = "auth.password.reset"
	ActionGitHubLink     = "auth.github.link"
	ActionUserDelete     = "user.delete"
	ActionArchCreate     = "architecture.create"
	ActionArchDelete     = "architecture.delete"
)

// Status constants
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusDenied  = "denied"
)
