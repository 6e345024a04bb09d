// Package config provides application configuration management.
//
// Configuration is built in three layers, later ones winning:
//
//  1. Defaults (Default)
//  2. The YAML file named by SPKREPO_CONFIG_FILE
//  3. SPKREPO_* environment variables
//
// # Example file
//
//	server:
//	  port: "8080"
//	  health_port: "9090"
//	database:
//	  driver: postgres
//	  dsn: postgres://spkrepo:secret@db/spkrepo?sslmode=disable
//	  acquire_timeout: 5s
//	auth:
//	  jwt_secret: change-me-to-a-long-random-value
//	observability:
//	  log_level: info
//
// # Environment variables
//
//	SPKREPO_DB_DRIVER="postgres"       # postgres or sqlite3
//	SPKREPO_DB_DSN="postgres://..."
//	SPKREPO_JWT_SECRET="..."           # at least 32 bytes
//	SPKREPO_REDIS_URL="redis://redis:6379/0"
//	SPKREPO_S3_BUCKET="spk-builds"
//	SPKREPO_LOG_LEVEL="debug"
//
// WatchLogLevel applies log_level changes in the file without a restart.
package config
