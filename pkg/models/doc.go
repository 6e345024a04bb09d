// Package models defines the row types of the package repository schema.
//
// Each table has exactly one struct. Struct fields carry `db` tags matching the
// column names (for sqlx scanning) and `json` tags used by the HTTP layer.
// Nullable columns are pointers.
//
// Read projections that are not tables (joined rows, user summaries) live in
// projections.go.
package models
