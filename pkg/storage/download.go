package storage

import (
	"context"
	"fmt"

	"github.com/platinummonkey/spkrepo/pkg/models"
)

// CreateDownload records a download and returns its id.
func (s *Session) CreateDownload(ctx context.Context, d models.Download) (id int64, err error) {
	ctx, done := s.op(ctx, "CreateDownload")
	defer func() { done(err) }()

	err = s.getOne(ctx, &id, `
		INSERT INTO download (build_id, architecture_id, firmware_build, ip_address, user_agent, date)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`,
		d.BuildID, d.ArchitectureID, d.FirmwareBuild, d.IPAddress, d.UserAgent, d.Date)
	if err != nil {
		return 0, fmt.Errorf("failed to record download: %w", err)
	}
	return id, nil
}

// ListDownloads returns one page of downloads, newest first.
func (s *Session) ListDownloads(ctx context.Context, page models.Page) (downloads []models.Download, err error) {
	ctx, done := s.op(ctx, "ListDownloads")
	defer func() { done(err) }()

	downloads = []models.Download{}
	err = s.selectAll(ctx, &downloads, `
		SELECT id, build_id, architecture_id, firmware_build, ip_address, user_agent, date
		FROM download
		ORDER BY id DESC
		LIMIT ? OFFSET ?`, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list downloads: %w", err)
	}
	return downloads, nil
}

// CountDownloads returns the total number of recorded downloads.
func (s *Session) CountDownloads(ctx context.Context) (n int64, err error) {
	ctx, done := s.op(ctx, "CountDownloads")
	defer func() { done(err) }()

	if err = s.getOne(ctx, &n, `SELECT COUNT(*) FROM download`); err != nil {
		return 0, fmt.Errorf("failed to count downloads: %w", err)
	}
	return n, nil
}
