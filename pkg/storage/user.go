package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/spkrepo/pkg/models"
)

const userColumns = `id, username, email, password, api_key, github_access_token, active, confirmed_at`

const userSummaryColumns = `id, username, email, active, confirmed_at`

// likeContains builds a LIKE pattern matching values that contain term.
// Wildcards in term are escaped.
func likeContains(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}

// ListUsers returns one page of users whose username contains search, newest
// first. An empty search matches every user.
func (s *Session) ListUsers(ctx context.Context, page models.Page, search string) (users []models.UserSummary, err error) {
	ctx, done := s.op(ctx, "ListUsers")
	defer func() { done(err) }()

	users = []models.UserSummary{}
	err = s.selectAll(ctx, &users, `
		SELECT `+userSummaryColumns+`
		FROM "user"
		WHERE username LIKE ? ESCAPE '\'
		ORDER BY id DESC
		LIMIT ? OFFSET ?`, likeContains(search), page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// DeleteUser deletes a user and returns the number of rows removed.
func (s *Session) DeleteUser(ctx context.Context, id int64) (n int64, err error) {
	ctx, done := s.op(ctx, "DeleteUser")
	defer func() { done(err) }()

	n, err = s.exec(ctx, `DELETE FROM "user" WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user: %w", err)
	}
	return n, nil
}

// FindActiveUserByEmail returns the active user with the given email.
func (s *Session) FindActiveUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findActiveUser(ctx, "FindActiveUserByEmail", "email", email)
}

// FindActiveUserByUsername returns the active user with the given username.
func (s *Session) FindActiveUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findActiveUser(ctx, "FindActiveUserByUsername", "username", username)
}

// FindActiveUserByID returns the active user with the given id.
func (s *Session) FindActiveUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.findActiveUser(ctx, "FindActiveUserByID", "id", id)
}

// FindUserByAPIKey returns the active user whose API key equals key exactly.
func (s *Session) FindUserByAPIKey(ctx context.Context, key string) (*models.User, error) {
	return s.findActiveUser(ctx, "FindUserByAPIKey", "api_key", key)
}

// FindUserByUsername returns the user with the given username, active or not.
func (s *Session) FindUserByUsername(ctx context.Context, username string) (user *models.User, err error) {
	ctx, done := s.op(ctx, "FindUserByUsername")
	defer func() { done(err) }()

	user = &models.User{}
	if err = s.getOne(ctx, user, `SELECT `+userColumns+` FROM "user" WHERE username = ?`, username); err != nil {
		return nil, err
	}
	return user, nil
}

// column is always one of a fixed set of identifiers, never user input.
func (s *Session) findActiveUser(ctx context.Context, op, column string, value interface{}) (user *models.User, err error) {
	ctx, done := s.op(ctx, op)
	defer func() { done(err) }()

	user = &models.User{}
	err = s.getOne(ctx, user,
		`SELECT `+userColumns+` FROM "user" WHERE `+column+` = ? AND active = ?`, value, true)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// NewUser holds the fields needed to create a user
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
	Active       bool
	ConfirmedAt  *time.Time
}

// CreateUser inserts a user and returns its id.
func (s *Session) CreateUser(ctx context.Context, u NewUser) (id int64, err error) {
	ctx, done := s.op(ctx, "CreateUser")
	defer func() { done(err) }()

	err = s.getOne(ctx, &id, `
		INSERT INTO "user" (username, email, password, active, confirmed_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`, u.Username, u.Email, u.PasswordHash, u.Active, u.ConfirmedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return id, nil
}

// SetPassword stores a new password hash for a user.
func (s *Session) SetPassword(ctx context.Context, userID int64, hash string) (err error) {
	return s.updateUserColumn(ctx, "SetPassword", "password", hash, userID)
}

// SetAPIKey stores a new API key for a user.
func (s *Session) SetAPIKey(ctx context.Context, userID int64, key string) (err error) {
	return s.updateUserColumn(ctx, "SetAPIKey", "api_key", key, userID)
}

// SetGitHubToken stores the GitHub access token linked to a user.
func (s *Session) SetGitHubToken(ctx context.Context, userID int64, token string) (err error) {
	return s.updateUserColumn(ctx, "SetGitHubToken", "github_access_token", token, userID)
}

func (s *Session) updateUserColumn(ctx context.Context, op, column string, value interface{}, userID int64) (err error) {
	ctx, done := s.op(ctx, op)
	defer func() { done(err) }()

	n, err := s.exec(ctx, `UPDATE "user" SET `+column+` = ? WHERE id = ?`, value, userID)
	if err != nil {
		return fmt.Errorf("failed to update user %s: %w", column, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountActiveUsers returns the number of active users.
func (s *Session) CountActiveUsers(ctx context.Context) (n int64, err error) {
	ctx, done := s.op(ctx, "CountActiveUsers")
	defer func() { done(err) }()

	if err = s.getOne(ctx, &n, `SELECT COUNT(*) FROM "user" WHERE active = ?`, true); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}
