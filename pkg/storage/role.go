package storage

import (
	"context"
	"fmt"

	"github.com/platinummonkey/spkrepo/pkg/models"
)

// ListRoles returns every role ordered by id.
func (s *Session) ListRoles(ctx context.Context) (roles []models.Role, err error) {
	ctx, done := s.op(ctx, "ListRoles")
	defer func() { done(err) }()

	roles = []models.Role{}
	if err = s.selectAll(ctx, &roles, `SELECT id, name, description FROM role ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	return roles, nil
}

// RolesForUser returns the roles attached to a user through user_role.
func (s *Session) RolesForUser(ctx context.Context, userID int64) (roles []models.Role, err error) {
	ctx, done := s.op(ctx, "RolesForUser")
	defer func() { done(err) }()

	roles = []models.Role{}
	err = s.selectAll(ctx, &roles, `
		SELECT r.id, r.name, r.description
		FROM role r
		JOIN user_role ur ON ur.role_id = r.id
		WHERE ur.user_id = ?
		ORDER BY r.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load roles for user %d: %w", userID, err)
	}
	return roles, nil
}

// CreateRole inserts a role and returns the stored row.
func (s *Session) CreateRole(ctx context.Context, name, description string) (role *models.Role, err error) {
	ctx, done := s.op(ctx, "CreateRole")
	defer func() { done(err) }()

	role = &models.Role{}
	err = s.getOne(ctx, role,
		`INSERT INTO role (name, description) VALUES (?, ?) RETURNING id, name, description`,
		name, description)
	if err != nil {
		return nil, fmt.Errorf("failed to create role: %w", err)
	}
	return role, nil
}

// GrantRole attaches the named role to a user. Granting a role the user
// already has is a no-op. Returns ErrNotFound when the role does not exist.
func (s *Session) GrantRole(ctx context.Context, userID int64, roleName string) (err error) {
	ctx, done := s.op(ctx, "GrantRole")
	defer func() { done(err) }()

	var roleID int64
	if err = s.getOne(ctx, &roleID, `SELECT id FROM role WHERE name = ?`, roleName); err != nil {
		return err
	}

	_, err = s.exec(ctx, `
		INSERT INTO user_role (user_id, role_id) VALUES (?, ?)
		ON CONFLICT (user_id, role_id) DO NOTHING`, userID, roleID)
	if err != nil {
		return fmt.Errorf("failed to grant role %s: %w", roleName, err)
	}
	return nil
}
