package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/platinummonkey/spkrepo/pkg/async"
	"github.com/platinummonkey/spkrepo/pkg/models"
	"github.com/sirupsen/logrus"
)

// UserStore is the subset of storage.Session used by Service
type UserStore interface {
	FindActiveUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindActiveUserByUsername(ctx context.Context, username string) (*models.User, error)
	FindUserByAPIKey(ctx context.Context, key string) (*models.User, error)
	RolesForUser(ctx context.Context, userID int64) ([]models.Role, error)
	SetPassword(ctx context.Context, userID int64, hash string) error
	SetAPIKey(ctx context.Context, userID int64, key string) error
	UpsertPasswordReset(ctx context.Context, reset models.PasswordReset) error
	ClaimPasswordReset(ctx context.Context, tokenHash string) (*models.PasswordReset, error)
	FindActiveUserByID(ctx context.Context, id int64) (*models.User, error)
}

// ServiceConfig configures Service
type ServiceConfig struct {
	// ResetTTL is how long a password reset link stays valid
	ResetTTL time.Duration
	// ResetURL is the page that consumes reset tokens; the token is appended
	// as the "token" query parameter
	ResetURL string
	// MailTimeout bounds the delivery of one reset mail
	MailTimeout time.Duration
}

// Service implements login, API key validation and the password reset flow.
type Service struct {
	cfg       ServiceConfig
	generator *TokenGenerator
	mailer    Mailer
	logger    logrus.FieldLogger
	now       func() time.Time
}

// NewService creates a Service. mailer may be nil, in which case reset mails
// are only logged.
func NewService(cfg ServiceConfig, mailer Mailer, logger logrus.FieldLogger) *Service {
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = time.Hour
	}
	if cfg.MailTimeout <= 0 {
		cfg.MailTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if mailer == nil {
		mailer = &LogMailer{Logger: logger}
	}
	return &Service{
		cfg:       cfg,
		generator: NewTokenGenerator(),
		mailer:    mailer,
		logger:    logger,
		now:       time.Now,
	}
}

// Login checks credentials and returns the user, without its password hash,
// together with its roles. Unknown identifier, wrong password and a user
// with no roles all yield ErrNotFound.
func (s *Service) Login(ctx context.Context, store UserStore, creds Credentials) (*models.User, []models.Role, error) {
	var (
		user *models.User
		err  error
	)
	switch {
	case creds.Email != "":
		user, err = store.FindActiveUserByEmail(ctx, creds.Email)
	case creds.Username != "":
		user, err = store.FindActiveUserByUsername(ctx, creds.Username)
	default:
		err = ErrNotFound
	}
	if errors.Is(err, ErrNotFound) {
		CheckPassword(creds.Password, string(dummyHash))
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !CheckPassword(creds.Password, user.Password) {
		return nil, nil, ErrNotFound
	}
	user.Password = ""

	roles, err := store.RolesForUser(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	if len(roles) == 0 {
		return nil, nil, ErrNotFound
	}

	return user, roles, nil
}

// ValidateAPIKey returns the active user whose API key equals key.
func (s *Service) ValidateAPIKey(ctx context.Context, store UserStore, key string) (*models.User, error) {
	if key == "" {
		return nil, ErrNotFound
	}
	user, err := store.FindUserByAPIKey(ctx, key)
	if err != nil {
		return nil, err
	}
	user.Password = ""
	return user, nil
}

// GenerateAPIKey creates a new API key for a user, replacing the old one.
func (s *Service) GenerateAPIKey(ctx context.Context, store UserStore, userID int64) (string, error) {
	key, _, prefix, err := s.generator.GenerateToken()
	if err != nil {
		return "", err
	}
	if err := store.SetAPIKey(ctx, userID, key); err != nil {
		return "", err
	}
	s.logger.WithFields(logrus.Fields{"user_id": userID, "key_prefix": prefix}).Info("api key rotated")
	return key, nil
}

// RequestPasswordReset stores a reset token for the active user with the
// given email and mails the link in the background. Unknown emails succeed
// without doing anything.
func (s *Service) RequestPasswordReset(ctx context.Context, store UserStore, email string) error {
	user, err := store.FindActiveUserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		s.logger.WithField("email", email).Debug("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}

	token, hash, _, err := s.generator.GenerateToken()
	if err != nil {
		return err
	}

	now := s.now()
	err = store.UpsertPasswordReset(ctx, models.PasswordReset{
		UserID:    user.ID,
		TokenHash: hash,
		ExpiresAt: now.Add(s.cfg.ResetTTL),
		CreatedAt: now,
	})
	if err != nil {
		return err
	}

	msg := Message{
		To:      user.Email,
		Subject: "Password reset",
		Body: fmt.Sprintf("Hello %s,\n\nUse the following link to choose a new password:\n\n%s\n\nThe link expires in %s.\n",
			user.Username, s.resetLink(token), s.cfg.ResetTTL),
	}
	async.SafeGo(context.Background(), s.cfg.MailTimeout, "password reset mail", func(ctx context.Context) error {
		return s.mailer.Send(ctx, msg)
	})
	return nil
}

func (s *Service) resetLink(token string) string {
	if s.cfg.ResetURL == "" {
		return token
	}
	u, err := url.Parse(s.cfg.ResetURL)
	if err != nil {
		return s.cfg.ResetURL + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// ResetPassword consumes a reset token and sets a new password. The token
// can be used once; unknown and expired tokens, and tokens of users that
// were deactivated since, yield ErrNotFound. store should be bound to a
// transaction so that a failed update leaves the token usable.
func (s *Service) ResetPassword(ctx context.Context, store UserStore, token, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	if err := s.generator.ValidateTokenFormat(token); err != nil {
		return ErrNotFound
	}

	reset, err := store.ClaimPasswordReset(ctx, s.generator.HashToken(token))
	if err != nil {
		return err
	}
	if reset.Expired(s.now()) {
		return ErrNotFound
	}
	user, err := store.FindActiveUserByID(ctx, reset.UserID)
	if err != nil {
		return err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := store.SetPassword(ctx, user.ID, hash); err != nil {
		return err
	}

	s.logger.WithField("user_id", user.ID).Info("password reset")
	return nil
}
