package storage

import (
	"context"
	"fmt"

	"github.com/platinummonkey/spkrepo/pkg/models"
)

const buildColumns = `id, package_id, firmware_id, publisher_user_id, checksum, exec_size, path, md5, insert_date, active`

// ListBuilds returns every build. The table is small enough that it is not
// paginated.
func (s *Session) ListBuilds(ctx context.Context) (builds []models.Build, err error) {
	ctx, done := s.op(ctx, "ListBuilds")
	defer func() { done(err) }()

	builds = []models.Build{}
	if err = s.selectAll(ctx, &builds, `SELECT `+buildColumns+` FROM build ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list builds: %w", err)
	}
	return builds, nil
}

// GetBuild returns the build with the given id.
func (s *Session) GetBuild(ctx context.Context, id int64) (build *models.Build, err error) {
	ctx, done := s.op(ctx, "GetBuild")
	defer func() { done(err) }()

	build = &models.Build{}
	if err = s.getOne(ctx, build, `SELECT `+buildColumns+` FROM build WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return build, nil
}

// BuildArchitectures returns the architectures a build runs on.
func (s *Session) BuildArchitectures(ctx context.Context, buildID int64) (archs []models.Architecture, err error) {
	ctx, done := s.op(ctx, "BuildArchitectures")
	defer func() { done(err) }()

	archs = []models.Architecture{}
	err = s.selectAll(ctx, &archs, `
		SELECT a.id, a.code
		FROM architecture a
		JOIN build_architecture ba ON ba.architecture_id = a.id
		WHERE ba.build_id = ?
		ORDER BY a.id`, buildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list build architectures: %w", err)
	}
	return archs, nil
}

// ListFirmware returns every firmware.
func (s *Session) ListFirmware(ctx context.Context) (fw []models.Firmware, err error) {
	ctx, done := s.op(ctx, "ListFirmware")
	defer func() { done(err) }()

	fw = []models.Firmware{}
	if err = s.selectAll(ctx, &fw, `SELECT id, version, build FROM firmware ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list firmware: %w", err)
	}
	return fw, nil
}

// GetFirmware returns the firmware with the given id.
func (s *Session) GetFirmware(ctx context.Context, id int64) (fw *models.Firmware, err error) {
	ctx, done := s.op(ctx, "GetFirmware")
	defer func() { done(err) }()

	fw = &models.Firmware{}
	if err = s.getOne(ctx, fw, `SELECT id, version, build FROM firmware WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return fw, nil
}
