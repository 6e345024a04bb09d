package models

import "time"

// Architecture is a CPU architecture code such as "x86_64" or "armv7".
type Architecture struct {
	ID   int64  `db:"id" json:"id"`
	Code string `db:"code" json:"code"`
}

// Build is one uploaded package binary for a firmware target.
type Build struct {
	ID              int64     `db:"id" json:"id"`
	PackageID       int64     `db:"package_id" json:"package_id"`
	FirmwareID      int64     `db:"firmware_id" json:"firmware_id"`
	PublisherUserID *int64    `db:"publisher_user_id" json:"publisher_user_id"`
	Checksum        *string   `db:"checksum" json:"checksum"`
	ExecSize        int32     `db:"exec_size" json:"exec_size"`
	Path            string    `db:"path" json:"path"`
	MD5             string    `db:"md5" json:"md5"`
	InsertDate      time.Time `db:"insert_date" json:"insert_date"`
	Active          *bool     `db:"active" json:"active"`
}

// IsActive reports whether the build is the one currently distributed.
func (b *Build) IsActive() bool {
	return b.Active != nil && *b.Active
}

// BuildArchitecture links a build to an architecture it runs on.
type BuildArchitecture struct {
	BuildID        int64 `db:"build_id" json:"build_id"`
	ArchitectureID int64 `db:"architecture_id" json:"architecture_id"`
}

// DisplayName is the localized name of a version.
type DisplayName struct {
	VersionID  int64  `db:"version_id" json:"version_id"`
	LanguageID int64  `db:"language_id" json:"language_id"`
	Name       string `db:"name" json:"name"`
}

// Language is a localization language. Code is the three letter code used by
// the package center ("enu", "fre", ...).
type Language struct {
	ID   int64  `db:"id" json:"id"`
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`
}

// Download records a single build download.
type Download struct {
	ID             int64      `db:"id" json:"id"`
	BuildID        int64      `db:"build_id" json:"build_id"`
	ArchitectureID int64      `db:"architecture_id" json:"architecture_id"`
	FirmwareBuild  int64      `db:"firmware_build" json:"firmware_build"`
	IPAddress      string     `db:"ip_address" json:"ip_address"`
	UserAgent      *string    `db:"user_agent" json:"user_agent"`
	Date           *time.Time `db:"date" json:"date"`
}

// Firmware is a target firmware release.
type Firmware struct {
	ID      int64  `db:"id" json:"id"`
	Version string `db:"version" json:"version"`
	Build   int64  `db:"build" json:"build"`
}

// Icon is a version icon of a given pixel size.
type Icon struct {
	ID        int64  `db:"id" json:"id"`
	VersionID int64  `db:"version_id" json:"version_id"`
	Size      int32  `db:"size" json:"size"`
	Path      string `db:"path" json:"path"`
}

// Description is the localized description of a version.
type Description struct {
	VersionID  int64  `db:"version_id" json:"version_id"`
	LanguageID int64  `db:"language_id" json:"language_id"`
	Desc       string `db:"desc" json:"desc"`
}

// Package is a named package. Versions and builds hang off it.
type Package struct {
	ID           int64      `db:"id" json:"id"`
	AuthorUserID *int64     `db:"author_user_id" json:"author_user_id"`
	Name         string     `db:"name" json:"name"`
	InsertDate   *time.Time `db:"insert_date" json:"insert_date"`
}

// PackageUserMaintainer grants a user maintainer rights on a package.
type PackageUserMaintainer struct {
	PackageID int64 `db:"package_id" json:"package_id"`
	UserID    int64 `db:"user_id" json:"user_id"`
}

// Role is a named permission group.
type Role struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
}

// Screenshot is a package screenshot.
type Screenshot struct {
	ID        int64  `db:"id" json:"id"`
	PackageID int64  `db:"package_id" json:"package_id"`
	Path      string `db:"path" json:"path"`
}

// Service is a system service a version can depend on.
type Service struct {
	ID   int64  `db:"id" json:"id"`
	Code string `db:"code" json:"code"`
}

// User is a full user row, including secrets. It must never be written to a
// response as is; use UserSummary or blank the secrets first.
type User struct {
	ID                int64      `db:"id" json:"id"`
	Username          string     `db:"username" json:"username"`
	Email             string     `db:"email" json:"email"`
	Password          string     `db:"password" json:"-"`
	APIKey            *string    `db:"api_key" json:"api_key,omitempty"`
	GitHubAccessToken *string    `db:"github_access_token" json:"-"`
	Active            bool       `db:"active" json:"active"`
	ConfirmedAt       *time.Time `db:"confirmed_at" json:"confirmed_at"`
}

// Summary returns the user without credentials.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Active:      u.Active,
		ConfirmedAt: u.ConfirmedAt,
	}
}

// UserRole links a user to a role.
type UserRole struct {
	UserID int64 `db:"user_id" json:"user_id"`
	RoleID int64 `db:"role_id" json:"role_id"`
}

// Version is one release of a package.
type Version struct {
	ID               int64     `db:"id" json:"id"`
	PackageID        int64     `db:"package_id" json:"package_id"`
	Ver              int32     `db:"ver" json:"ver"`
	UpstreamVersion  string    `db:"upstream_version" json:"upstream_version"`
	Changelog        *string   `db:"changelog" json:"changelog"`
	ReportURL        *string   `db:"report_url" json:"report_url"`
	Distributor      *string   `db:"distributor" json:"distributor"`
	DistributorURL   *string   `db:"distributor_url" json:"distributor_url"`
	Maintainer       *string   `db:"maintainer" json:"maintainer"`
	MaintainerURL    *string   `db:"maintainer_url" json:"maintainer_url"`
	Dependencies     *string   `db:"dependencies" json:"dependencies"`
	ConfDependencies *string   `db:"conf_dependencies" json:"conf_dependencies"`
	Conflicts        *string   `db:"conflicts" json:"conflicts"`
	ConfConflicts    *string   `db:"conf_conflicts" json:"conf_conflicts"`
	InstallWizard    *bool     `db:"install_wizard" json:"install_wizard"`
	UpgradeWizard    *bool     `db:"upgrade_wizard" json:"upgrade_wizard"`
	Startable        *bool     `db:"startable" json:"startable"`
	License          *string   `db:"license" json:"license"`
	InsertDate       time.Time `db:"insert_date" json:"insert_date"`
}

// VersionServiceDependency links a version to a package providing a service
// it needs.
type VersionServiceDependency struct {
	VersionID int64 `db:"version_id" json:"version_id"`
	PackageID int64 `db:"package_id" json:"package_id"`
}

// PasswordReset is an outstanding password reset. Only the SHA-256 of the
// token is stored.
type PasswordReset struct {
	UserID    int64     `db:"user_id" json:"user_id"`
	TokenHash string    `db:"token_hash" json:"-"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Expired reports whether the reset is no longer usable at now.
func (p *PasswordReset) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}
