package storage

import (
	"context"
	"fmt"

	"github.com/platinummonkey/spkrepo/pkg/models"
)

// ListScreenshots returns one page of screenshots joined with their package name.
func (s *Session) ListScreenshots(ctx context.Context, page models.Page) (rows []models.ScreenshotRow, err error) {
	ctx, done := s.op(ctx, "ListScreenshots")
	defer func() { done(err) }()

	rows = []models.ScreenshotRow{}
	err = s.selectAll(ctx, &rows, `
		SELECT s.id AS id, p.name AS package, s.path AS path
		FROM screenshot s
		JOIN package p ON p.id = s.package_id
		ORDER BY s.id
		LIMIT ? OFFSET ?`, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list screenshots: %w", err)
	}
	return rows, nil
}

// ScreenshotsForPackage returns every screenshot of one package.
func (s *Session) ScreenshotsForPackage(ctx context.Context, packageID int64) (shots []models.Screenshot, err error) {
	ctx, done := s.op(ctx, "ScreenshotsForPackage")
	defer func() { done(err) }()

	shots = []models.Screenshot{}
	err = s.selectAll(ctx, &shots,
		`SELECT id, package_id, path FROM screenshot WHERE package_id = ? ORDER BY id`, packageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list screenshots for package %d: %w", packageID, err)
	}
	return shots, nil
}
