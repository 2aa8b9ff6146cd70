// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

/*
Package pgxbind binds SQLbind parameters to queries run with pgx.

pgx has no prepared statement object that values are bound to one at a time.
Instead, a [Stmt] collects the bound values into [pgx.NamedArgs] and rewrites
the ":name" placeholders of the query into the "@name" form understood by pgx.
Type casts such as "::int" and text inside quotes are left alone.
*/
package pgxbind

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"github.com/canonical/sqlbind"
)

// Querier runs queries. It is implemented by *pgx.Conn, *pgxpool.Pool and
// pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Stmt is a [sqlbind.Statement] for pgx. Placeholders that differ only in
// their prefix, such as ":a" and "$a", name the same argument and cannot both
// be bound.
type Stmt struct {
	query string
	args  pgx.NamedArgs
	bound map[string]string
}

// NewStmt returns a Stmt for query.
func NewStmt(query string) *Stmt {
	return &Stmt{query: query, args: pgx.NamedArgs{}, bound: map[string]string{}}
}

// SQL returns the query text the statement was created with.
func (s *Stmt) SQL() string {
	return s.query
}

// Bind converts value according to typ and binds it to placeholder.
func (s *Stmt) Bind(placeholder string, value any, typ sqlbind.ParamType) error {
	name, err := argName(placeholder)
	if err != nil {
		return err
	}
	v, err := sqlbind.ConvertValue(value, typ)
	if err != nil {
		return err
	}
	return s.set(placeholder, name, v)
}

// BindBytes binds the first length bytes of value to placeholder.
func (s *Stmt) BindBytes(placeholder string, value []byte, length int) error {
	name, err := argName(placeholder)
	if err != nil {
		return err
	}
	if length < 0 || length > len(value) {
		return fmt.Errorf("length %d out of range for %d bytes", length, len(value))
	}
	return s.set(placeholder, name, value[:length])
}

func (s *Stmt) set(placeholder, name string, v any) error {
	if other, ok := s.bound[name]; ok && other != placeholder {
		return fmt.Errorf("placeholders %q and %q both bind argument %q", other, placeholder, name)
	}
	s.bound[name] = placeholder
	s.args[name] = v
	return nil
}

// Args returns the bound values.
func (s *Stmt) Args() pgx.NamedArgs {
	return s.args
}

// Rewritten returns the query with the placeholders of the bound values in
// the "@name" form.
func (s *Stmt) Rewritten() string {
	return rewrite(s.query, s.args)
}

// Exec runs the statement on q.
func (s *Stmt) Exec(ctx context.Context, q Querier) (pgconn.CommandTag, error) {
	tag, err := q.Exec(ctx, s.Rewritten(), s.args)
	if err != nil {
		return tag, errors.Wrap(err, "cannot execute statement")
	}
	return tag, nil
}

// Query runs the statement on q and returns the rows.
func (s *Stmt) Query(ctx context.Context, q Querier) (pgx.Rows, error) {
	rows, err := q.Query(ctx, s.Rewritten(), s.args)
	if err != nil {
		return nil, errors.Wrap(err, "cannot run query")
	}
	return rows, nil
}

// Exec expands the "in" parameters of bindings, binds them with binder and
// runs query on q. A nil binder binds like [sqlbind.BindMultiple].
func Exec(ctx context.Context, q Querier, binder *sqlbind.Binder, query string, bindings sqlbind.Bindings) (pgconn.CommandTag, error) {
	stmt, err := prepare(binder, query, bindings)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	return stmt.Exec(ctx, q)
}

// Query is like [Exec] but returns the rows of the result.
func Query(ctx context.Context, q Querier, binder *sqlbind.Binder, query string, bindings sqlbind.Bindings) (pgx.Rows, error) {
	stmt, err := prepare(binder, query, bindings)
	if err != nil {
		return nil, err
	}
	return stmt.Query(ctx, q)
}

func prepare(binder *sqlbind.Binder, query string, bindings sqlbind.Bindings) (*Stmt, error) {
	query, bindings, err := sqlbind.UnpackIN(query, bindings)
	if err != nil {
		return nil, err
	}
	stmt := NewStmt(query)
	if binder == nil {
		err = sqlbind.BindMultiple(stmt, bindings)
	} else {
		err = binder.BindMultiple(stmt, bindings)
	}
	if err != nil {
		return nil, err
	}
	return stmt, nil
}

// argName strips the placeholder prefix. pgx only knows named arguments.
func argName(placeholder string) (string, error) {
	name := strings.TrimLeft(placeholder, ":@$")
	if name == "" || len(placeholder)-len(name) != 1 {
		return "", fmt.Errorf("invalid placeholder %q", placeholder)
	}
	return name, nil
}

// rewrite replaces ":name" and "$name" with "@name" for every name in args.
// Casts ("::"), quoted text and comments are copied unchanged.
func rewrite(query string, args pgx.NamedArgs) string {
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	// Longest first, so that ":ab" is not read as ":a".
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })

	var b strings.Builder
	b.Grow(len(query))
	for i := 0; i < len(query); {
		c := query[i]
		switch {
		case c == '\'' || c == '"':
			end := closing(query, i+1, c)
			b.WriteString(query[i:end])
			i = end
			continue
		case c == '-' && strings.HasPrefix(query[i:], "--"):
			end := strings.IndexByte(query[i:], '\n')
			if end < 0 {
				end = len(query) - i
			}
			b.WriteString(query[i : i+end])
			i += end
			continue
		case c == '/' && strings.HasPrefix(query[i:], "/*"):
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				end = len(query)
			} else {
				end += i + 4
			}
			b.WriteString(query[i:end])
			i = end
			continue
		case c == ':' && strings.HasPrefix(query[i:], "::"):
			b.WriteString("::")
			i += 2
			continue
		case c == ':' || c == '$':
			if name, ok := matchName(query[i+1:], names); ok {
				b.WriteByte('@')
				b.WriteString(name)
				i += 1 + len(name)
				continue
			}
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

// closing returns the index just past the quote that closes the quoted text
// starting at i. A doubled quote is an escaped quote.
func closing(query string, i int, quote byte) int {
	for i < len(query) {
		if query[i] == quote {
			if i+1 < len(query) && query[i+1] == quote {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return len(query)
}

// matchName returns the name in names that s starts with, provided it is
// not followed by another identifier character.
func matchName(s string, names []string) (string, bool) {
	for _, name := range names {
		if !strings.HasPrefix(s, name) {
			continue
		}
		if len(s) > len(name) && isIdentByte(s[len(name)]) {
			continue
		}
		return name, true
	}
	return "", false
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c >= 0x80
}
