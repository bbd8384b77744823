// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package healthdb serves an Apple Health export stored in SQLite. It backs
// the local execute_sql MCP server used in development in place of the
// hosted health database.
package healthdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jllopis/healthdesk/pkg/errors"
)

// DefaultMaxRows bounds the rows a query returns.
const DefaultMaxRows = 500

// TimeLayout is how dates are stored, matching the export.
const TimeLayout = "2006-01-02 15:04:05 -0700"

// DB is a read-only handle on a health database.
type DB struct {
	db      *sql.DB
	path    string
	maxRows int
}

// Option configures a DB.
type Option func(*DB)

// WithMaxRows bounds the rows returned per query.
func WithMaxRows(n int) Option {
	return func(d *DB) {
		if n > 0 {
			d.maxRows = n
		}
	}
}

// Init creates the database at path if needed and applies schema.
func Init(ctx context.Context, path, schema string) error {
	p := filepath.Clean(strings.TrimSpace(path))
	if p == "" || p == "." {
		return errors.New(errors.CodeInvalidInput, "missing database path", nil)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return err
	}
	db, err := sql.Open("sqlite", p)
	if err != nil {
		return err
	}
	defer db.Close()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Open opens an existing database. Connections run with query_only set, so
// writes fail even if a statement slips past CheckReadOnly.
func Open(path string, opts ...Option) (*DB, error) {
	p := filepath.Clean(strings.TrimSpace(path))
	if _, err := os.Stat(p); err != nil {
		return nil, errors.New(errors.CodeNotFound, "health database not found: "+p, err).
			WithContext("path", p)
	}
	db, err := sql.Open("sqlite", p+"?_pragma=query_only(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	d := &DB{db: db, path: p, maxRows: DefaultMaxRows}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Path returns the database file.
func (d *DB) Path() string { return d.path }

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Result holds the rows of a query.
type Result struct {
	Columns   []string
	Rows      [][]any
	Truncated bool
}

// Query runs a single read-only statement.
func (d *DB) Query(ctx context.Context, stmt string) (*Result, error) {
	stmt, err := CheckReadOnly(stmt)
	if err != nil {
		return nil, err
	}
	rows, err := d.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	res := &Result{Columns: cols}
	for rows.Next() {
		if len(res.Rows) >= d.maxRows {
			res.Truncated = true
			break
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range vals {
			switch x := v.(type) {
			case []byte:
				vals[i] = string(x)
			case time.Time:
				vals[i] = x.Format(TimeLayout)
			}
		}
		res.Rows = append(res.Rows, vals)
	}
	return res, rows.Err()
}

// Text renders the result as a pipe-separated table with a header row.
func (r *Result) Text() string {
	if len(r.Rows) == 0 {
		return "No rows returned."
	}
	var b strings.Builder
	b.WriteString(strings.Join(r.Columns, " | "))
	b.WriteString("\n")
	for _, row := range r.Rows {
		for i, v := range row {
			if i > 0 {
				b.WriteString(" | ")
			}
			if v == nil {
				b.WriteString("NULL")
				continue
			}
			fmt.Fprint(&b, v)
		}
		b.WriteString("\n")
	}
	if r.Truncated {
		fmt.Fprintf(&b, "(truncated after %d rows)\n", len(r.Rows))
	}
	return strings.TrimRight(b.String(), "\n")
}
