// Package cli implements spkrepo-admin, the command line tool used to set up
// a repository database and manage accounts outside of the HTTP API.
//
// # Usage
//
//	spkrepo-admin --driver postgres --dsn "$SPKREPO_DB_DSN" schema init
//	spkrepo-admin role init
//	spkrepo-admin user create --username admin --email admin@example.com --password-stdin --role admin
//	spkrepo-admin user apikey admin
//
// --driver and --dsn default to SPKREPO_DB_DRIVER and SPKREPO_DB_DSN.
//
// # Commands
//
//	schema init            create missing tables
//	schema print           print the DDL for --driver without connecting
//	role init              create the admin, package_admin and developer roles
//	role create NAME       create a role
//	role list              list roles
//	user create            create a user, optionally granting roles
//	user grant USER ROLE   grant a role
//	user apikey USER       generate a new API key and print it
//	user passwd USER       set a new password
package cli
