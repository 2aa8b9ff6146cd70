// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbind

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

var ErrTXDone = sql.ErrTxDone

// DB wraps a [sql.DB]. It caches the prepared statements of the queries run
// through it and binds [Bindings] to them. Statements that are not in use are
// closed, least recently used first, once the cache holds more than a fixed
// number of them.
type DB struct {
	sqldb  *sql.DB
	binder *Binder
	cache  *statementCache
}

// NewDB creates a new [DB] from a [sql.DB]. The options configure the
// [Binder] used by [DB.Exec] and [DB.Query].
func NewDB(sqldb *sql.DB, opts ...Option) (*DB, error) {
	if sqldb == nil {
		return nil, fmt.Errorf("need sql.DB, got nil")
	}
	binder, err := NewBinder(opts...)
	if err != nil {
		return nil, err
	}
	return &DB{sqldb: sqldb, binder: binder, cache: newStatementCache(defaultCacheSize)}, nil
}

// PlainDB returns the underlying database object.
func (db *DB) PlainDB() *sql.DB {
	return db.sqldb
}

// Binder returns the Binder used by the DB.
func (db *DB) Binder() *Binder {
	return db.binder
}

// Close closes the prepared statements cached by the DB. The underlying
// [sql.DB] is left open.
func (db *DB) Close() error {
	return db.cache.close()
}

// Prepare returns a [Stmt] for query. The driver prepared statement is cached
// and shared, the returned Stmt is not: each call gets its own set of bound
// values.
//
// The cached statement is kept open while the Stmt is in use. Call
// [Stmt.Close] when done with it; otherwise it is released when the Stmt is
// garbage collected.
func (db *DB) Prepare(ctx context.Context, query string) (*Stmt, error) {
	stmt, err := db.prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	runtime.SetFinalizer(stmt, func(s *Stmt) { s.Close() })
	return stmt, nil
}

func (db *DB) prepare(ctx context.Context, query string) (*Stmt, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	sqlstmt, release, err := db.cache.acquire(ctx, db.sqldb, query)
	if err != nil {
		return nil, err
	}
	stmt := newStmt(query, sqlstmt)
	stmt.release = release
	return stmt, nil
}

// Exec expands the "in" parameters of bindings, prepares query, binds the
// values and executes the statement.
func (db *DB) Exec(ctx context.Context, query string, bindings Bindings) (sql.Result, error) {
	stmt, err := db.prepareBound(ctx, query, bindings)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	return stmt.Exec(ctx)
}

// Query is like [DB.Exec] but returns the rows of the result.
func (db *DB) Query(ctx context.Context, query string, bindings Bindings) (*sql.Rows, error) {
	stmt, err := db.prepareBound(ctx, query, bindings)
	if err != nil {
		return nil, err
	}
	// Open rows keep the driver statement alive after the release.
	defer stmt.Close()
	return stmt.Query(ctx)
}

func (db *DB) prepareBound(ctx context.Context, query string, bindings Bindings) (*Stmt, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	query, bindings, err := UnpackIN(query, bindings)
	if err != nil {
		return nil, err
	}
	stmt, err := db.prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := db.binder.BindMultiple(stmt, bindings); err != nil {
		stmt.Close()
		return nil, err
	}
	return stmt, nil
}

// TX represents a transaction on the database.
type TX struct {
	sqltx *sql.Tx
	db    *DB
	done  int32
}

func (tx *TX) isDone() bool {
	return atomic.LoadInt32(&tx.done) == 1
}

func (tx *TX) setDone() error {
	if !atomic.CompareAndSwapInt32(&tx.done, 0, 1) {
		return ErrTXDone
	}
	return nil
}

// TXOptions holds the transaction options to be used in [DB.Begin].
type TXOptions struct {
	// Isolation is the transaction isolation level.
	// If zero, the driver or database's default level is used.
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

func (txopts *TXOptions) plainTXOptions() *sql.TxOptions {
	if txopts == nil {
		return nil
	}
	return &sql.TxOptions{Isolation: txopts.Isolation, ReadOnly: txopts.ReadOnly}
}

// Begin starts a transaction. A transaction must be ended
// with a [TX.Commit] or [TX.Rollback].
func (db *DB) Begin(ctx context.Context, opts *TXOptions) (*TX, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	sqltx, err := db.sqldb.BeginTx(ctx, opts.plainTXOptions())
	if err != nil {
		return nil, err
	}
	return &TX{sqltx: sqltx, db: db}, nil
}

// Commit commits the transaction.
func (tx *TX) Commit() error {
	err := tx.setDone()
	if err == nil {
		err = tx.sqltx.Commit()
	}
	return err
}

// Rollback aborts the transaction.
func (tx *TX) Rollback() error {
	err := tx.setDone()
	if err == nil {
		err = tx.sqltx.Rollback()
	}
	return err
}

// Exec is like [DB.Exec] but runs the statement inside the transaction.
func (tx *TX) Exec(ctx context.Context, query string, bindings Bindings) (sql.Result, error) {
	stmt, err := tx.prepareBound(ctx, query, bindings)
	if err != nil {
		return nil, err
	}
	return stmt.Exec(ctx)
}

// Query is like [DB.Query] but runs the statement inside the transaction.
func (tx *TX) Query(ctx context.Context, query string, bindings Bindings) (*sql.Rows, error) {
	stmt, err := tx.prepareBound(ctx, query, bindings)
	if err != nil {
		return nil, err
	}
	return stmt.Query(ctx)
}

func (tx *TX) prepareBound(ctx context.Context, query string, bindings Bindings) (*Stmt, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if tx.isDone() {
		return nil, ErrTXDone
	}
	query, bindings, err := UnpackIN(query, bindings)
	if err != nil {
		return nil, err
	}
	var txstmt *sql.Stmt
	if sqlstmt, release, ok := tx.db.cache.acquireCached(query); ok {
		// Register the prepared statement on the transaction. Note that
		// this does not re-prepare the statement on the driver. The
		// transaction statement keeps the cached one open until the
		// transaction ends, so the reference can be dropped straight away.
		txstmt = tx.sqltx.StmtContext(ctx, sqlstmt)
		release()
	} else {
		txstmt, err = tx.sqltx.PrepareContext(ctx, query)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot prepare %q", query)
		}
	}
	// Statements on the transaction are closed by database/sql when the
	// transaction ends.
	stmt := newStmt(query, txstmt)
	if err := tx.db.binder.BindMultiple(stmt, bindings); err != nil {
		return nil, err
	}
	return stmt, nil
}

// Stmt is a [Statement] backed by a database/sql prepared statement. Values
// are passed to the driver as named arguments, with the placeholder prefix
// (":", "@" or "$") removed.
//
// Placeholders that differ only in their prefix, such as ":a" and "$a", name
// the same argument and cannot both be bound.
//
// A Stmt must not be bound to from several goroutines at once.
type Stmt struct {
	query   string
	sqlstmt *sql.Stmt
	args    map[string]any
	// bound maps argument names to the placeholder they were bound from.
	bound   map[string]string
	release func()
}

func newStmt(query string, sqlstmt *sql.Stmt) *Stmt {
	return &Stmt{query: query, sqlstmt: sqlstmt, args: map[string]any{}, bound: map[string]string{}}
}

// Close releases the statement's hold on the cached prepared statement. The
// Stmt must not be used afterwards. Statements of a transaction are closed
// when the transaction ends and Close does nothing for them.
func (s *Stmt) Close() error {
	if s.release != nil {
		s.release()
	}
	return nil
}

// setArg stores v as the named argument for placeholder.
func (s *Stmt) setArg(placeholder string, v any) error {
	name := argName(placeholder)
	if other, ok := s.bound[name]; ok && other != placeholder {
		return fmt.Errorf("placeholders %q and %q both bind argument %q", other, placeholder, name)
	}
	s.bound[name] = placeholder
	s.args[name] = v
	return nil
}

// SQL returns the query text of the statement.
func (s *Stmt) SQL() string {
	return s.query
}

// Bind converts value according to typ and binds it to placeholder.
//
// A placeholder that only occurs in the query as the start of a longer one,
// such as ":id" in a query using ":ids_0", is ignored. The driver would
// reject the unused argument.
func (s *Stmt) Bind(placeholder string, value any, typ ParamType) error {
	if !containsPlaceholder(s.query, placeholder) {
		return nil
	}
	v, err := ConvertValue(value, typ)
	if err != nil {
		return err
	}
	return s.setArg(placeholder, v)
}

// BindBytes binds the first length bytes of value to placeholder.
func (s *Stmt) BindBytes(placeholder string, value []byte, length int) error {
	if length < 0 || length > len(value) {
		return fmt.Errorf("length %d out of range for %d bytes", length, len(value))
	}
	if !containsPlaceholder(s.query, placeholder) {
		return nil
	}
	return s.setArg(placeholder, value[:length])
}

// Args returns the bound values as named arguments, sorted by name.
func (s *Stmt) Args() []any {
	names := make([]string, 0, len(s.args))
	for name := range s.args {
		names = append(names, name)
	}
	sort.Strings(names)
	args := make([]any, len(names))
	for i, name := range names {
		args[i] = sql.Named(name, s.args[name])
	}
	return args
}

// Exec executes the statement with the bound values.
func (s *Stmt) Exec(ctx context.Context) (sql.Result, error) {
	res, err := s.sqlstmt.ExecContext(ctx, s.Args()...)
	if err != nil {
		return nil, errors.Wrap(err, "cannot execute statement")
	}
	return res, nil
}

// Query executes the statement with the bound values and returns the rows.
func (s *Stmt) Query(ctx context.Context) (*sql.Rows, error) {
	rows, err := s.sqlstmt.QueryContext(ctx, s.Args()...)
	if err != nil {
		return nil, errors.Wrap(err, "cannot run query")
	}
	return rows, nil
}

// argName strips the placeholder prefix.
func argName(placeholder string) string {
	return strings.TrimLeft(placeholder, ":@$")
}

// ConvertValue converts value to the Go type a database/sql driver expects
// for typ. Statement implementations can use it in Bind.
func ConvertValue(value any, typ ParamType) (any, error) {
	switch typ {
	case ParamInferred:
		return value, nil
	case ParamNull:
		return nil, nil
	case ParamInt:
		return cast.ToInt64E(value)
	case ParamStr:
		return cast.ToStringE(value)
	case ParamBool:
		return cast.ToBoolE(value)
	case ParamLOB:
		switch v := value.(type) {
		case []byte:
			return v, nil
		case string:
			return []byte(v), nil
		}
		s, err := cast.ToStringE(value)
		if err != nil {
			return nil, err
		}
		return []byte(s), nil
	}
	return nil, fmt.Errorf("unsupported parameter type %d", int(typ))
}
