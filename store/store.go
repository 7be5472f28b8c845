/*******************************************************************************
 * Copyright (c) 2025 Genome Research Ltd.
 *
 * Authors:
 *	- Sendu Bala <sb10@sanger.ac.uk>
 *
 * Permission is hereby granted, free of charge, to any person obtaining
 * a copy of this software and associated documentation files (the
 * "Software"), to deal in the Software without restriction, including
 * without limitation the rights to use, copy, modify, merge, publish,
 * distribute, sublicense, and/or sell copies of the Software, and to
 * permit persons to whom the Software is furnished to do so, subject to
 * the following conditions:
 *
 * The above copyright notice and this permission notice shall be included
 * in all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
 * EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
 * MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
 * IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY
 * CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT,
 * TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE
 * SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 ******************************************************************************/

// package store implements the hierarchical, file-backed count table store
// shared by all objects in a run. Logical tables are keyed by a path that
// mirrors the object hierarchy (experiment/condition/selection/library) plus
// a table name, and every write is transactional: a table is visible to
// readers only once its Put or Append has completed.

package store

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/go-sql-driver/mysql" // mysql driver for shared-warehouse stores
	_ "modernc.org/sqlite"             // pure go sqlite driver
)

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrNotFound       = Error("no table at the given path")
	ErrSchemaMismatch = Error("column sets differ")
	ErrBadPath        = Error("invalid store path")
	ErrUnknownDriver  = Error("unknown store driver")

	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"

	createTables = `CREATE TABLE IF NOT EXISTS store_tables (
		path VARCHAR(255) PRIMARY KEY,
		cols TEXT NOT NULL
	)`
	createRows = `CREATE TABLE IF NOT EXISTS store_rows (
		path VARCHAR(255) NOT NULL,
		element VARCHAR(500) NOT NULL,
		vals TEXT NOT NULL,
		PRIMARY KEY (path, element)
	)`
)

// Store is a table store backed by an embedded sqlite database file, or by a
// shared MySQL database when runs persist counts centrally. One exclusive
// owner performs all writes to a given path during a run.
type Store struct {
	db     *sql.DB
	driver string
}

// Open opens (creating if necessary) a store using the given driver
// (DriverSQLite or DriverMySQL) and data source name. For sqlite the DSN is
// the database file path.
func Open(driver, dsn string) (*Store, error) {
	if driver != DriverSQLite && driver != DriverMySQL {
		return nil, ErrUnknownDriver
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	for _, ddl := range []string{createTables, createRows} {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()

			return nil, err
		}
	}

	return &Store{db: db, driver: driver}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func validPath(path string) bool {
	return path != "" && !strings.HasPrefix(path, "/") && !strings.HasSuffix(path, "/") &&
		strings.Contains(path, "/")
}

// Put creates or fully replaces the table at path. The replacement is
// transactional: readers see either the old table or the new one, never a
// partial write.
func (s *Store) Put(ctx context.Context, path string, t *Table) (retErr error) {
	if !validPath(path) {
		return ErrBadPath
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if retErr != nil {
			tx.Rollback()
		}
	}()

	for _, del := range []string{
		`DELETE FROM store_rows WHERE path = ?`,
		`DELETE FROM store_tables WHERE path = ?`,
	} {
		if _, retErr = tx.ExecContext(ctx, del, path); retErr != nil {
			return retErr
		}
	}

	if _, retErr = tx.ExecContext(ctx,
		`INSERT INTO store_tables (path, cols) VALUES (?, ?)`, path, t.schema()); retErr != nil {
		return retErr
	}

	if retErr = insertRows(ctx, tx, path, t.Text, t.Rows); retErr != nil {
		return retErr
	}

	return tx.Commit()
}

// Append adds rows to the existing table at path, failing with ErrNotFound
// if the table does not exist and ErrSchemaMismatch if the rows' value count
// does not match the table's column set.
func (s *Store) Append(ctx context.Context, path string, rows []Row) (retErr error) {
	columns, text, err := s.schemaAt(ctx, path)
	if err != nil {
		return err
	}

	for _, r := range rows {
		if !text && len(r.Values) != len(columns) {
			return ErrSchemaMismatch
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if retErr != nil {
			tx.Rollback()
		}
	}()

	if retErr = insertRows(ctx, tx, path, text, rows); retErr != nil {
		return retErr
	}

	return tx.Commit()
}

func insertRows(ctx context.Context, tx *sql.Tx, path string, text bool, rows []Row) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO store_rows (path, element, vals) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}

	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, path, r.Element, encodeRow(text, r)); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) schemaAt(ctx context.Context, path string) ([]string, bool, error) {
	if !validPath(path) {
		return nil, false, ErrBadPath
	}

	var cols string

	err := s.db.QueryRowContext(ctx,
		`SELECT cols FROM store_tables WHERE path = ?`, path).Scan(&cols)
	if err == sql.ErrNoRows {
		return nil, false, ErrNotFound
	} else if err != nil {
		return nil, false, err
	}

	columns, text := parseSchema(cols)

	return columns, text, nil
}

// Has reports whether a table exists at path.
func (s *Store) Has(ctx context.Context, path string) (bool, error) {
	_, _, err := s.schemaAt(ctx, path)
	if err == ErrNotFound {
		return false, nil
	} else if err != nil {
		return false, err
	}

	return true, nil
}

// Columns returns the value column names of the table at path.
func (s *Store) Columns(ctx context.Context, path string) ([]string, error) {
	columns, _, err := s.schemaAt(ctx, path)

	return columns, err
}

// Get loads the full table at path, rows ordered by element key.
func (s *Store) Get(ctx context.Context, path string) (*Table, error) {
	columns, text, err := s.schemaAt(ctx, path)
	if err != nil {
		return nil, err
	}

	t := &Table{Columns: columns, Text: text}

	err = s.Select(ctx, path, nil, func(r Row) error {
		t.Rows = append(t.Rows, r)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return t, nil
}

// Select streams the rows of the table at path in element order without
// loading the whole table, calling fn for each row the predicate accepts. A
// nil predicate accepts every row.
func (s *Store) Select(ctx context.Context, path string, pred func(Row) bool,
	fn func(Row) error) error {
	_, text, err := s.schemaAt(ctx, path)
	if err != nil {
		return err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT element, vals FROM store_rows WHERE path = ? ORDER BY element`, path)
	if err != nil {
		return err
	}

	defer rows.Close()

	for rows.Next() {
		var element, vals string

		if err := rows.Scan(&element, &vals); err != nil {
			return err
		}

		row, err := decodeRow(text, element, vals)
		if err != nil {
			return err
		}

		if pred != nil && !pred(row) {
			continue
		}

		if err := fn(row); err != nil {
			return err
		}
	}

	return rows.Err()
}

// Delete removes the table at path, if present.
func (s *Store) Delete(ctx context.Context, path string) (retErr error) {
	if !validPath(path) {
		return ErrBadPath
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if retErr != nil {
			tx.Rollback()
		}
	}()

	for _, del := range []string{
		`DELETE FROM store_rows WHERE path = ?`,
		`DELETE FROM store_tables WHERE path = ?`,
	} {
		if _, retErr = tx.ExecContext(ctx, del, path); retErr != nil {
			return retErr
		}
	}

	return tx.Commit()
}

// Scoped returns a view of the store rooted at the given path prefix, as
// handed to scoring engines so they can only touch their own object's
// tables.
func (s *Store) Scoped(prefix string) *Scoped {
	return &Scoped{s: s, prefix: strings.Trim(prefix, "/")}
}

// Scoped is a Store restricted to one object's subtree.
type Scoped struct {
	s      *Store
	prefix string
}

func (sc *Scoped) path(rel string) string {
	return sc.prefix + "/" + rel
}

// Prefix returns the path prefix this view is rooted at.
func (sc *Scoped) Prefix() string {
	return sc.prefix
}

// Put stores a table at the path relative to the scope prefix.
func (sc *Scoped) Put(ctx context.Context, rel string, t *Table) error {
	return sc.s.Put(ctx, sc.path(rel), t)
}

// Append adds rows to the table at the path relative to the scope prefix.
func (sc *Scoped) Append(ctx context.Context, rel string, rows []Row) error {
	return sc.s.Append(ctx, sc.path(rel), rows)
}

// Get loads the table at the path relative to the scope prefix.
func (sc *Scoped) Get(ctx context.Context, rel string) (*Table, error) {
	return sc.s.Get(ctx, sc.path(rel))
}

// Has reports whether a table exists at the path relative to the scope
// prefix.
func (sc *Scoped) Has(ctx context.Context, rel string) (bool, error) {
	return sc.s.Has(ctx, sc.path(rel))
}

// Select streams rows from the table at the path relative to the scope
// prefix.
func (sc *Scoped) Select(ctx context.Context, rel string, pred func(Row) bool,
	fn func(Row) error) error {
	return sc.s.Select(ctx, sc.path(rel), pred, fn)
}
