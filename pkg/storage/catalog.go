package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/platinummonkey/spkrepo/pkg/models"
)

// DefaultLanguage is the language code used when none is requested.
const DefaultLanguage = "enu"

// ListPackages returns the localized package catalog for languageCode.
//
// Only packages with an active build are listed, and only description and
// display name rows in the requested language are joined. An unknown language
// yields an empty catalog.
func (s *Session) ListPackages(ctx context.Context, languageCode string) (listing []models.PackageListing, err error) {
	if languageCode == "" {
		languageCode = DefaultLanguage
	}

	langID, err := s.LanguageID(ctx, languageCode)
	if errors.Is(err, ErrNotFound) {
		return []models.PackageListing{}, nil
	}
	if err != nil {
		return nil, err
	}

	ctx, done := s.op(ctx, "ListPackages")
	defer func() { done(err) }()

	listing = []models.PackageListing{}
	err = s.selectAll(ctx, &listing, `
		SELECT v.changelog AS changelog,
		       p.name AS package,
		       b.path AS link,
		       d."desc" AS "desc",
		       v.distributor AS distributor,
		       v.distributor_url AS distributor_url,
		       dn.name AS dname
		FROM package p
		JOIN version v ON v.package_id = p.id
		LEFT JOIN description d ON d.version_id = v.id
		LEFT JOIN displayname dn ON dn.version_id = v.id
		LEFT JOIN build b ON b.package_id = p.id
		WHERE b.active = ?
		  AND d.language_id = ?
		  AND dn.language_id = ?
		ORDER BY p.name, v.ver`, true, langID, langID)
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	return listing, nil
}

// ListPackageNames returns one page of packages ordered by name.
func (s *Session) ListPackageNames(ctx context.Context, page models.Page) (pkgs []models.Package, err error) {
	ctx, done := s.op(ctx, "ListPackageNames")
	defer func() { done(err) }()

	pkgs = []models.Package{}
	err = s.selectAll(ctx, &pkgs,
		`SELECT id, author_user_id, name, insert_date FROM package ORDER BY name LIMIT ? OFFSET ?`,
		page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	return pkgs, nil
}

// CountPackages returns the number of packages.
func (s *Session) CountPackages(ctx context.Context) (n int64, err error) {
	ctx, done := s.op(ctx, "CountPackages")
	defer func() { done(err) }()

	if err = s.getOne(ctx, &n, `SELECT COUNT(*) FROM package`); err != nil {
		return 0, fmt.Errorf("failed to count packages: %w", err)
	}
	return n, nil
}

// MaintainersForPackage returns the users allowed to maintain a package.
func (s *Session) MaintainersForPackage(ctx context.Context, packageID int64) (users []models.UserSummary, err error) {
	ctx, done := s.op(ctx, "MaintainersForPackage")
	defer func() { done(err) }()

	users = []models.UserSummary{}
	err = s.selectAll(ctx, &users, `
		SELECT u.id, u.username, u.email, u.active, u.confirmed_at
		FROM "user" u
		JOIN package_user_maintainer m ON m.user_id = u.id
		WHERE m.package_id = ?
		ORDER BY u.id`, packageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list maintainers for package %d: %w", packageID, err)
	}
	return users, nil
}

const versionColumns = `id, package_id, ver, upstream_version, changelog, report_url, distributor,
	distributor_url, maintainer, maintainer_url, dependencies, conf_dependencies, conflicts,
	conf_conflicts, install_wizard, upgrade_wizard, startable, license, insert_date`

// VersionsForPackage returns the versions of a package, newest first.
func (s *Session) VersionsForPackage(ctx context.Context, packageID int64) (versions []models.Version, err error) {
	ctx, done := s.op(ctx, "VersionsForPackage")
	defer func() { done(err) }()

	versions = []models.Version{}
	err = s.selectAll(ctx, &versions,
		`SELECT `+versionColumns+` FROM version WHERE package_id = ? ORDER BY ver DESC`, packageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions for package %d: %w", packageID, err)
	}
	return versions, nil
}

// ServiceDependencies returns the packages a version depends on for services.
func (s *Session) ServiceDependencies(ctx context.Context, versionID int64) (deps []models.VersionServiceDependency, err error) {
	ctx, done := s.op(ctx, "ServiceDependencies")
	defer func() { done(err) }()

	deps = []models.VersionServiceDependency{}
	err = s.selectAll(ctx, &deps,
		`SELECT version_id, package_id FROM version_service_dependency WHERE version_id = ? ORDER BY package_id`,
		versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list service dependencies for version %d: %w", versionID, err)
	}
	return deps, nil
}

// IconsForVersion returns the icons of a version ordered by size.
func (s *Session) IconsForVersion(ctx context.Context, versionID int64) (icons []models.Icon, err error) {
	ctx, done := s.op(ctx, "IconsForVersion")
	defer func() { done(err) }()

	icons = []models.Icon{}
	err = s.selectAll(ctx, &icons,
		`SELECT id, version_id, size, path FROM icon WHERE version_id = ? ORDER BY size`, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list icons for version %d: %w", versionID, err)
	}
	return icons, nil
}

// ListServices returns every service ordered by id.
func (s *Session) ListServices(ctx context.Context) (services []models.Service, err error) {
	ctx, done := s.op(ctx, "ListServices")
	defer func() { done(err) }()

	services = []models.Service{}
	if err = s.selectAll(ctx, &services, `SELECT id, code FROM service ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return services, nil
}

// ListLanguages returns every language ordered by id.
func (s *Session) ListLanguages(ctx context.Context) (langs []models.Language, err error) {
	ctx, done := s.op(ctx, "ListLanguages")
	defer func() { done(err) }()

	langs = []models.Language{}
	if err = s.selectAll(ctx, &langs, `SELECT id, code, name FROM language ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list languages: %w", err)
	}
	return langs, nil
}

// LanguageID resolves a language code to its id. Hits are cached; misses are
// not, so a language added later is picked up on the next lookup.
func (s *Session) LanguageID(ctx context.Context, code string) (id int64, err error) {
	if id, ok := s.store.languages.Get(code); ok {
		return id, nil
	}

	ctx, done := s.op(ctx, "LanguageID")
	defer func() { done(err) }()

	if err = s.getOne(ctx, &id, `SELECT id FROM language WHERE code = ?`, code); err != nil {
		return 0, err
	}
	s.store.languages.Add(code, id)
	return id, nil
}
