package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

type dialect struct {
	serial    string
	timestamp string
	now       string
}

var dialects = map[string]dialect{
	"postgres": {serial: "BIGSERIAL PRIMARY KEY", timestamp: "TIMESTAMP", now: "NOW()"},
	"sqlite3":  {serial: "INTEGER PRIMARY KEY AUTOINCREMENT", timestamp: "DATETIME", now: "CURRENT_TIMESTAMP"},
}

// schemaTemplate uses {{serial}}, {{timestamp}} and {{now}} placeholders.
// Tables are ordered so that every foreign key target exists first.
var schemaTemplate = []string{
	`CREATE TABLE IF NOT EXISTS "user" (
		id {{serial}},
		username VARCHAR(50) NOT NULL UNIQUE,
		email VARCHAR(254) NOT NULL UNIQUE,
		password VARCHAR(255) NOT NULL,
		api_key VARCHAR(64) UNIQUE,
		github_access_token VARCHAR(255),
		active BOOLEAN NOT NULL DEFAULT FALSE,
		confirmed_at {{timestamp}}
	)`,
	`CREATE TABLE IF NOT EXISTS role (
		id {{serial}},
		name VARCHAR(50) NOT NULL UNIQUE,
		description VARCHAR(255) NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS user_role (
		user_id BIGINT NOT NULL REFERENCES "user" (id) ON DELETE CASCADE,
		role_id BIGINT NOT NULL REFERENCES role (id) ON DELETE CASCADE,
		PRIMARY KEY (user_id, role_id)
	)`,
	`CREATE TABLE IF NOT EXISTS architecture (
		id {{serial}},
		code VARCHAR(20) NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS firmware (
		id {{serial}},
		version VARCHAR(3) NOT NULL,
		build BIGINT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS language (
		id {{serial}},
		code VARCHAR(3) NOT NULL UNIQUE,
		name VARCHAR(50) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS service (
		id {{serial}},
		code VARCHAR(30) NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS package (
		id {{serial}},
		author_user_id BIGINT REFERENCES "user" (id) ON DELETE SET NULL,
		name VARCHAR(50) NOT NULL UNIQUE,
		insert_date {{timestamp}} DEFAULT {{now}}
	)`,
	`CREATE TABLE IF NOT EXISTS package_user_maintainer (
		package_id BIGINT NOT NULL REFERENCES package (id) ON DELETE CASCADE,
		user_id BIGINT NOT NULL REFERENCES "user" (id) ON DELETE CASCADE,
		PRIMARY KEY (package_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS screenshot (
		id {{serial}},
		package_id BIGINT NOT NULL REFERENCES package (id) ON DELETE CASCADE,
		path VARCHAR(200) NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS version (
		id {{serial}},
		package_id BIGINT NOT NULL REFERENCES package (id) ON DELETE CASCADE,
		ver INTEGER NOT NULL,
		upstream_version VARCHAR(20) NOT NULL,
		changelog TEXT,
		report_url VARCHAR(255),
		distributor VARCHAR(50),
		distributor_url VARCHAR(255),
		maintainer VARCHAR(50),
		maintainer_url VARCHAR(255),
		dependencies VARCHAR(255),
		conf_dependencies TEXT,
		conflicts VARCHAR(255),
		conf_conflicts TEXT,
		install_wizard BOOLEAN,
		upgrade_wizard BOOLEAN,
		startable BOOLEAN,
		license TEXT,
		insert_date {{timestamp}} NOT NULL DEFAULT {{now}},
		UNIQUE (package_id, ver)
	)`,
	`CREATE TABLE IF NOT EXISTS version_service_dependency (
		version_id BIGINT NOT NULL REFERENCES version (id) ON DELETE CASCADE,
		package_id BIGINT NOT NULL REFERENCES package (id) ON DELETE CASCADE,
		PRIMARY KEY (version_id, package_id)
	)`,
	`CREATE TABLE IF NOT EXISTS displayname (
		version_id BIGINT NOT NULL REFERENCES version (id) ON DELETE CASCADE,
		language_id BIGINT NOT NULL REFERENCES language (id),
		name VARCHAR(50) NOT NULL,
		PRIMARY KEY (language_id, version_id)
	)`,
	`CREATE TABLE IF NOT EXISTS description (
		version_id BIGINT NOT NULL REFERENCES version (id) ON DELETE CASCADE,
		language_id BIGINT NOT NULL REFERENCES language (id),
		"desc" TEXT NOT NULL,
		PRIMARY KEY (language_id, version_id)
	)`,
	`CREATE TABLE IF NOT EXISTS icon (
		id {{serial}},
		version_id BIGINT NOT NULL REFERENCES version (id) ON DELETE CASCADE,
		size INTEGER NOT NULL,
		path VARCHAR(100) NOT NULL UNIQUE,
		UNIQUE (version_id, size)
	)`,
	`CREATE TABLE IF NOT EXISTS build (
		id {{serial}},
		package_id BIGINT NOT NULL REFERENCES package (id) ON DELETE CASCADE,
		firmware_id BIGINT NOT NULL REFERENCES firmware (id),
		publisher_user_id BIGINT REFERENCES "user" (id) ON DELETE SET NULL,
		checksum VARCHAR(32),
		exec_size INTEGER NOT NULL,
		path VARCHAR(100) NOT NULL UNIQUE,
		md5 VARCHAR(32) NOT NULL,
		insert_date {{timestamp}} NOT NULL DEFAULT {{now}},
		active BOOLEAN
	)`,
	`CREATE TABLE IF NOT EXISTS build_architecture (
		build_id BIGINT NOT NULL REFERENCES build (id) ON DELETE CASCADE,
		architecture_id BIGINT NOT NULL REFERENCES architecture (id),
		PRIMARY KEY (build_id, architecture_id)
	)`,
	`CREATE TABLE IF NOT EXISTS download (
		id {{serial}},
		build_id BIGINT NOT NULL REFERENCES build (id) ON DELETE CASCADE,
		architecture_id BIGINT NOT NULL REFERENCES architecture (id),
		firmware_build BIGINT NOT NULL,
		ip_address VARCHAR(46) NOT NULL,
		user_agent VARCHAR(255),
		date {{timestamp}} DEFAULT {{now}}
	)`,
	`CREATE TABLE IF NOT EXISTS password_reset (
		user_id BIGINT PRIMARY KEY REFERENCES "user" (id) ON DELETE CASCADE,
		token_hash VARCHAR(64) NOT NULL UNIQUE,
		expires_at {{timestamp}} NOT NULL,
		created_at {{timestamp}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_build_package_active ON build (package_id, active)`,
	`CREATE INDEX IF NOT EXISTS idx_download_build ON download (build_id)`,
}

// Schema returns the DDL statements for driver.
func Schema(driver string) ([]string, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	r := strings.NewReplacer("{{serial}}", d.serial, "{{timestamp}}", d.timestamp, "{{now}}", d.now)
	stmts := make([]string, len(schemaTemplate))
	for i, tmpl := range schemaTemplate {
		stmts[i] = r.Replace(tmpl)
	}
	return stmts, nil
}

// Migrate creates every table that does not exist yet.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	stmts, err := Schema(db.DriverName())
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
