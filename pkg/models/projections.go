package models

import "time"

// ScreenshotRow is a screenshot joined with the name of its package.
type ScreenshotRow struct {
	ID      int64  `db:"id" json:"id"`
	Package string `db:"package" json:"package"`
	Path    string `db:"path" json:"path"`
}

// UserSummary is the public view of a user.
type UserSummary struct {
	ID          int64      `db:"id" json:"id"`
	Username    string     `db:"username" json:"username"`
	Email       string     `db:"email" json:"email"`
	Active      bool       `db:"active" json:"active"`
	ConfirmedAt *time.Time `db:"confirmed_at" json:"confirmed_at"`
}

// PackageListing is one entry of the localized package catalog.
type PackageListing struct {
	Changelog      *string `db:"changelog" json:"changelog"`
	Package        string  `db:"package" json:"package"`
	Link           *string `db:"link" json:"link"`
	Desc           *string `db:"desc" json:"desc"`
	Distributor    *string `db:"distributor" json:"distributor"`
	DistributorURL *string `db:"distributor_url" json:"distributor_url"`
	DName          *string `db:"dname" json:"dname"`
}

// Page is a limit/offset window over an ordered result.
type Page struct {
	Limit  int
	Offset int
}
