// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/canonical/sqlbind"
	"github.com/canonical/sqlbind/internal/cli"
	"github.com/canonical/sqlbind/pgxbind"
)

// runner runs bound statements on the configured database.
type runner interface {
	// Exec runs query and returns the number of affected rows.
	Exec(ctx context.Context, query string, bindings sqlbind.Bindings) (int64, error)
	// Query runs query and writes its rows to w as tab-separated values,
	// preceded by the column names.
	Query(ctx context.Context, w io.Writer, query string, bindings sqlbind.Bindings) error
	Close() error
}

// openRunner connects to the configured database. PostgreSQL is reached
// through pgx, any other driver through database/sql.
func (a *app) openRunner(ctx context.Context) (runner, error) {
	driver, dsn := a.cfg.Database.Driver, a.cfg.Database.DSN
	a.logger.Debug("opening database", "driver", driver)

	switch driver {
	case "pgx", "postgres", "postgresql":
		binder, err := a.cfg.Binder()
		if err != nil {
			return nil, cli.ConfigError("building binder", err)
		}
		conn, err := pgx.Connect(ctx, dsn)
		if err != nil {
			return nil, cli.DatabaseError("connecting to database", err)
		}
		a.logger.Debug("binder ready", "encoding", binder.Encoding())
		return &pgxRunner{conn: conn, binder: binder}, nil
	}

	opts, err := a.cfg.BinderOptions()
	if err != nil {
		return nil, cli.ConfigError("building binder", err)
	}
	sqldb, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, cli.DatabaseError("opening database", err)
	}
	// An in-memory SQLite database only lives as long as its connection.
	sqldb.SetMaxOpenConns(1)
	db, err := sqlbind.NewDB(sqldb, opts...)
	if err != nil {
		sqldb.Close()
		return nil, cli.ConfigError("building binder", err)
	}
	a.logger.Debug("binder ready", "encoding", db.Binder().Encoding())
	return &sqlRunner{db: db}, nil
}

// statementError classifies an error returned while running a statement.
func statementError(query string, err error) error {
	var bindErr *sqlbind.BindingError
	if errors.As(err, &bindErr) || errors.Is(err, sqlbind.ErrInvalidArgument) {
		return cli.BindingsError(fmt.Sprintf("binding %q", query), err)
	}
	return cli.DatabaseError(fmt.Sprintf("running %q", query), err)
}

type sqlRunner struct {
	db *sqlbind.DB
}

func (r *sqlRunner) Exec(ctx context.Context, query string, bindings sqlbind.Bindings) (int64, error) {
	res, err := r.db.Exec(ctx, query, bindings)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *sqlRunner) Query(ctx context.Context, w io.Writer, query string, bindings sqlbind.Bindings) error {
	rows, err := r.db.Query(ctx, query, bindings)
	if err != nil {
		return err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return err
	}
	if err := writeRow(w, columns); err != nil {
		return err
	}
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		if err := writeRow(w, formatValues(values)); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *sqlRunner) Close() error {
	err := r.db.Close()
	if dbErr := r.db.PlainDB().Close(); err == nil {
		err = dbErr
	}
	return err
}

type pgxRunner struct {
	conn   *pgx.Conn
	binder *sqlbind.Binder
}

func (r *pgxRunner) Exec(ctx context.Context, query string, bindings sqlbind.Bindings) (int64, error) {
	tag, err := pgxbind.Exec(ctx, r.conn, r.binder, query, bindings)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *pgxRunner) Query(ctx context.Context, w io.Writer, query string, bindings sqlbind.Bindings) error {
	rows, err := pgxbind.Query(ctx, r.conn, r.binder, query, bindings)
	if err != nil {
		return err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}
	if err := writeRow(w, columns); err != nil {
		return err
	}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return err
		}
		if err := writeRow(w, formatValues(values)); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *pgxRunner) Close() error {
	return r.conn.Close(context.Background())
}

func formatValues(values []any) []string {
	out := make([]string, len(values))
	for i, v := range values {
		switch v := v.(type) {
		case nil:
			out[i] = "NULL"
		case []byte:
			out[i] = string(v)
		default:
			out[i] = fmt.Sprint(v)
		}
	}
	return out
}

func writeRow(w io.Writer, fields []string) error {
	_, err := fmt.Fprintln(w, strings.Join(fields, "\t"))
	return err
}
