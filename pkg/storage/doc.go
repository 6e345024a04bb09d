// Package storage is the relational query layer of the package repository.
//
// # Overview
//
// A Store wraps a *sqlx.DB opened on either PostgreSQL (lib/pq) or SQLite
// (mattn/go-sqlite3). Callers borrow one pooled connection per unit of work:
//
//	sess, err := store.Acquire(ctx)
//	if err != nil {
//		// errors.Is(err, storage.ErrUnavailable): pool exhausted
//	}
//	defer sess.Close()
//
//	archs, err := sess.ListArchitectures(ctx, models.Page{Limit: 50})
//
// Every query method lives on Session, so the same code runs over a pooled
// connection, the whole pool (Store.Session) or a transaction (Session.WithTx).
//
// # Queries
//
// Queries are written with '?' placeholders and rebound for the driver in use.
// The reserved identifiers "user" and "desc" are always quoted.
//
// # Errors
//
//   - ErrNotFound: the row does not exist (sql.ErrNoRows is mapped to it)
//   - ErrUnavailable: no connection could be acquired before the acquire timeout
//
// # Related
//
// S3 presigning for build downloads lives in s3.go and the Redis client
// constructor in redis.go. Both share Config with the query layer.
package storage
