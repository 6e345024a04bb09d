package storage

import (
	"context"
	"fmt"

	"github.com/platinummonkey/spkrepo/pkg/models"
)

// ListArchitectures returns one page of architectures ordered by id.
func (s *Session) ListArchitectures(ctx context.Context, page models.Page) (archs []models.Architecture, err error) {
	ctx, done := s.op(ctx, "ListArchitectures")
	defer func() { done(err) }()

	archs = []models.Architecture{}
	err = s.selectAll(ctx, &archs,
		`SELECT id, code FROM architecture ORDER BY id LIMIT ? OFFSET ?`,
		page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list architectures: %w", err)
	}
	return archs, nil
}

// GetArchitecture returns the architecture with the given id.
func (s *Session) GetArchitecture(ctx context.Context, id int64) (arch *models.Architecture, err error) {
	ctx, done := s.op(ctx, "GetArchitecture")
	defer func() { done(err) }()

	arch = &models.Architecture{}
	if err = s.getOne(ctx, arch, `SELECT id, code FROM architecture WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return arch, nil
}

// GetArchitectureByCode returns the architecture with the given code.
func (s *Session) GetArchitectureByCode(ctx context.Context, code string) (arch *models.Architecture, err error) {
	ctx, done := s.op(ctx, "GetArchitectureByCode")
	defer func() { done(err) }()

	arch = &models.Architecture{}
	if err = s.getOne(ctx, arch, `SELECT id, code FROM architecture WHERE code = ?`, code); err != nil {
		return nil, err
	}
	return arch, nil
}

// CreateArchitecture inserts an architecture and returns the stored row.
func (s *Session) CreateArchitecture(ctx context.Context, code string) (arch *models.Architecture, err error) {
	ctx, done := s.op(ctx, "CreateArchitecture")
	defer func() { done(err) }()

	arch = &models.Architecture{}
	err = s.getOne(ctx, arch,
		`INSERT INTO architecture (code) VALUES (?) RETURNING id, code`, code)
	if err != nil {
		return nil, fmt.Errorf("failed to create architecture: %w", err)
	}
	return arch, nil
}

// DeleteArchitecture deletes an architecture and returns the number of rows
// removed. A missing id removes nothing and is not an error.
func (s *Session) DeleteArchitecture(ctx context.Context, id int64) (n int64, err error) {
	ctx, done := s.op(ctx, "DeleteArchitecture")
	defer func() { done(err) }()

	n, err = s.exec(ctx, `DELETE FROM architecture WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete architecture: %w", err)
	}
	return n, nil
}
