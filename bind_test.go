// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbind_test

import (
	"errors"
	"fmt"
	"strings"
	"time"

	. "gopkg.in/check.v1"

	"github.com/canonical/sqlbind"
	"github.com/canonical/sqlbind/format"
)

type BindSuite struct{}

var _ = Suite(&BindSuite{})

// bound is a value recorded by fakeStatement.
type bound struct {
	value  any
	typ    sqlbind.ParamType
	length int
}

// fakeStatement records the values bound to it.
type fakeStatement struct {
	query string
	bound map[string]bound
	order []string
	fail  map[string]error
}

func newFakeStatement(query string) *fakeStatement {
	return &fakeStatement{query: query, bound: map[string]bound{}, fail: map[string]error{}}
}

func (s *fakeStatement) SQL() string {
	return s.query
}

func (s *fakeStatement) Bind(placeholder string, value any, typ sqlbind.ParamType) error {
	if err := s.fail[placeholder]; err != nil {
		return err
	}
	s.bound[placeholder] = bound{value: value, typ: typ, length: -1}
	s.order = append(s.order, placeholder)
	return nil
}

func (s *fakeStatement) BindBytes(placeholder string, value []byte, length int) error {
	if err := s.fail[placeholder]; err != nil {
		return err
	}
	s.bound[placeholder] = bound{value: value, typ: sqlbind.ParamLOB, length: length}
	s.order = append(s.order, placeholder)
	return nil
}

// queryFor returns a query text that mentions every placeholder of bindings.
func queryFor(bindings sqlbind.Bindings) string {
	var placeholders []string
	for placeholder := range bindings {
		placeholders = append(placeholders, placeholder)
	}
	return "SELECT " + strings.Join(placeholders, ", ")
}

func (s *BindSuite) TestSkipsAbsentPlaceholders(c *C) {
	stmt := newFakeStatement("SELECT * FROM t WHERE a = :a")
	err := sqlbind.BindMultiple(stmt, sqlbind.Bindings{
		":a":       1,
		":b":       2,
		":missing": sqlbind.P("not a number", "int"),
	})
	c.Assert(err, IsNil)
	c.Assert(stmt.bound, DeepEquals, map[string]bound{
		":a": {value: 1, typ: sqlbind.ParamInferred, length: -1},
	})
}

func (s *BindSuite) TestEmptyBindings(c *C) {
	stmt := newFakeStatement("SELECT 1")
	c.Assert(sqlbind.BindMultiple(stmt, nil), IsNil)
	c.Assert(stmt.bound, HasLen, 0)
}

func (s *BindSuite) TestBareValues(c *C) {
	bindings := sqlbind.Bindings{
		":text":  "bad\xffbyte",
		":plain": "Fred",
		":num":   3,
		":blob":  []byte("x\xff"),
		":nil":   nil,
	}
	stmt := newFakeStatement(queryFor(bindings))
	c.Assert(sqlbind.BindMultiple(stmt, bindings), IsNil)
	c.Assert(stmt.bound, DeepEquals, map[string]bound{
		":text":  {value: "bad�byte", typ: sqlbind.ParamInferred, length: -1},
		":plain": {value: "Fred", typ: sqlbind.ParamInferred, length: -1},
		":num":   {value: 3, typ: sqlbind.ParamInferred, length: -1},
		":blob":  {value: []byte("x\xff"), typ: sqlbind.ParamInferred, length: -1},
		":nil":   {value: nil, typ: sqlbind.ParamInferred, length: -1},
	})
}

var typedTests = []struct {
	summary  string
	param    any
	expected bound
}{{
	summary:  "int from string",
	param:    sqlbind.P("42", "int"),
	expected: bound{value: int64(42), typ: sqlbind.ParamInt, length: -1},
}, {
	summary:  "integer truncates floats",
	param:    sqlbind.P(3.9, "INTEGER"),
	expected: bound{value: int64(3), typ: sqlbind.ParamInt, length: -1},
}, {
	summary:  "limit",
	param:    sqlbind.P(uint8(10), "limit"),
	expected: bound{value: int64(10), typ: sqlbind.ParamInt, length: -1},
}, {
	summary:  "string from int",
	param:    sqlbind.P(12, "string"),
	expected: bound{value: "12", typ: sqlbind.ParamStr, length: -1},
}, {
	summary:  "float is text",
	param:    sqlbind.P(1.5, "Float"),
	expected: bound{value: "1.5", typ: sqlbind.ParamStr, length: -1},
}, {
	summary:  "text is scrubbed",
	param:    sqlbind.P("a\xffb", "text"),
	expected: bound{value: "a�b", typ: sqlbind.ParamStr, length: -1},
}, {
	summary:  "bool from string",
	param:    sqlbind.P("true", "bool"),
	expected: bound{value: true, typ: sqlbind.ParamBool, length: -1},
}, {
	summary:  "boolean from int",
	param:    sqlbind.P(0, "boolean"),
	expected: bound{value: false, typ: sqlbind.ParamBool, length: -1},
}, {
	summary:  "null ignores the value",
	param:    sqlbind.P(struct{ X int }{1}, "null"),
	expected: bound{value: nil, typ: sqlbind.ParamNull, length: -1},
}, {
	summary:  "blob from string",
	param:    sqlbind.P("abc", "blob"),
	expected: bound{value: []byte("abc"), typ: sqlbind.ParamLOB, length: 3},
}, {
	summary:  "lob from bytes",
	param:    sqlbind.P([]byte{0, 1, 2, 3}, "LOB"),
	expected: bound{value: []byte{0, 1, 2, 3}, typ: sqlbind.ParamLOB, length: 4},
}, {
	summary:  "like",
	param:    sqlbind.P("bob", "like"),
	expected: bound{value: "%bob%", typ: sqlbind.ParamStr, length: -1},
}, {
	summary:  "like keeps wildcards",
	param:    sqlbind.P("a_b%", "like"),
	expected: bound{value: "%a_b%%", typ: sqlbind.ParamStr, length: -1},
}, {
	summary:  "match",
	param:    sqlbind.P("a--+b", "match"),
	expected: bound{value: "a-b", typ: sqlbind.ParamStr, length: -1},
}, {
	summary:  "match of operators only",
	param:    sqlbind.P("+-<>~", "MATCH"),
	expected: bound{value: "", typ: sqlbind.ParamStr, length: -1},
}, {
	summary:  "year without formatter",
	param:    sqlbind.P(2024, "year"),
	expected: bound{value: "2024", typ: sqlbind.ParamStr, length: -1},
}, {
	summary:  "bytes without formatter",
	param:    sqlbind.P(2048, "bytes"),
	expected: bound{value: "2048", typ: sqlbind.ParamStr, length: -1},
}, {
	summary:  "unknown tag binds text",
	param:    sqlbind.P("x", "uuid"),
	expected: bound{value: "x", typ: sqlbind.ParamInferred, length: -1},
}, {
	summary:  "empty tag binds text",
	param:    sqlbind.P(5, ""),
	expected: bound{value: "5", typ: sqlbind.ParamInferred, length: -1},
}, {
	summary:  "missing type binds text",
	param:    sqlbind.Param{Value: 5},
	expected: bound{value: "5", typ: sqlbind.ParamInferred, length: -1},
}, {
	summary:  "type code is passed through",
	param:    sqlbind.Param{Value: "7", Type: sqlbind.ParamInt},
	expected: bound{value: "7", typ: sqlbind.ParamInt, length: -1},
}, {
	summary:  "plain integer type code",
	param:    sqlbind.Param{Value: "7", Type: 2},
	expected: bound{value: "7", typ: sqlbind.ParamStr, length: -1},
}, {
	summary:  "unknown type code",
	param:    sqlbind.Param{Value: 1, Type: int64(99)},
	expected: bound{value: 1, typ: sqlbind.ParamType(99), length: -1},
}, {
	summary:  "pointer to param",
	param:    &sqlbind.Param{Value: 1, Type: "str"},
	expected: bound{value: "1", typ: sqlbind.ParamStr, length: -1},
}}

func (s *BindSuite) TestTypedValues(c *C) {
	bindings := sqlbind.Bindings{}
	for i, t := range typedTests {
		bindings[fmt.Sprintf(":p%02d", i)] = t.param
	}
	stmt := newFakeStatement(queryFor(bindings))
	c.Assert(sqlbind.BindMultiple(stmt, bindings), IsNil)
	for i, t := range typedTests {
		placeholder := fmt.Sprintf(":p%02d", i)
		c.Check(stmt.bound[placeholder], DeepEquals, t.expected, Commentf("test %d: %s", i, t.summary))
	}
}

func (s *BindSuite) TestBindOrder(c *C) {
	bindings := sqlbind.Bindings{":c": 3, ":a": 1, ":b": 2}
	stmt := newFakeStatement("SELECT :a, :b, :c")
	c.Assert(sqlbind.BindMultiple(stmt, bindings), IsNil)
	c.Assert(stmt.order, DeepEquals, []string{":a", ":b", ":c"})
}

func (s *BindSuite) TestConversionError(c *C) {
	stmt := newFakeStatement("SELECT :a, :b")
	err := sqlbind.BindMultiple(stmt, sqlbind.Bindings{
		":a": sqlbind.P("abc", "int"),
		":b": sqlbind.P(1, "int"),
	})
	c.Assert(err, ErrorMatches, `cannot bind ":a" \(type "int", value "abc"\): .*`)

	var bindErr *sqlbind.BindingError
	c.Assert(errors.As(err, &bindErr), Equals, true)
	c.Check(bindErr.Placeholder, Equals, ":a")
	c.Check(bindErr.Type, Equals, "int")
	c.Check(bindErr.Value, Equals, "abc")

	// Binding stops at the first failure.
	c.Check(stmt.bound, HasLen, 0)
}

func (s *BindSuite) TestStatementError(c *C) {
	boom := errors.New("boom")
	stmt := newFakeStatement("SELECT :a, :c")
	stmt.fail[":c"] = boom
	err := sqlbind.BindMultiple(stmt, sqlbind.Bindings{":a": 1, ":c": 2})
	c.Assert(err, ErrorMatches, `cannot bind ":c" \(value 2\): boom`)
	c.Check(errors.Is(err, boom), Equals, true)

	// Entries bound before the failure stay bound.
	c.Check(stmt.order, DeepEquals, []string{":a"})
}

func (s *BindSuite) TestLongValueInError(c *C) {
	stmt := newFakeStatement("SELECT :blob")
	stmt.fail[":blob"] = errors.New("too big")
	err := sqlbind.BindMultiple(stmt, sqlbind.Bindings{":blob": sqlbind.P(make([]byte, 1000), "blob")})
	c.Assert(err, ErrorMatches, `cannot bind ":blob" \(type "blob", value 1000 bytes\): too big`)

	err = sqlbind.BindMultiple(stmt, sqlbind.Bindings{":blob": strings.Repeat("x", 100)})
	c.Assert(err, ErrorMatches, `cannot bind ":blob" \(value "x+\.\.\.\): too big`)
}

func (s *BindSuite) TestInMustBeUnpacked(c *C) {
	stmt := newFakeStatement("SELECT * FROM t WHERE id IN (:ids)")
	err := sqlbind.BindMultiple(stmt, sqlbind.Bindings{":ids": sqlbind.In([]int{1, 2}, "int")})
	c.Assert(err, ErrorMatches, `cannot bind ":ids" .*: in parameter must be expanded with UnpackIN before binding`)
}

func (s *BindSuite) TestUnpackedIn(c *C) {
	query, bindings, err := sqlbind.UnpackIN("SELECT * FROM t WHERE id IN (:ids)", sqlbind.Bindings{
		":ids": sqlbind.In([]string{"4", "7"}, "int"),
	})
	c.Assert(err, IsNil)
	stmt := newFakeStatement(query)
	c.Assert(sqlbind.BindMultiple(stmt, bindings), IsNil)
	c.Assert(stmt.bound, DeepEquals, map[string]bound{
		":ids_0": {value: int64(4), typ: sqlbind.ParamInt, length: -1},
		":ids_1": {value: int64(7), typ: sqlbind.ParamInt, length: -1},
	})
}

func (s *BindSuite) TestFormatters(c *C) {
	binder, err := sqlbind.NewBinder(
		sqlbind.WithTimeFormatter(format.Time{}),
		sqlbind.WithSizeFormatter(format.Size{}),
	)
	c.Assert(err, IsNil)

	when := time.Date(2024, 3, 5, 14, 7, 9, 123456000, time.UTC)
	bindings := sqlbind.Bindings{
		":year":      sqlbind.P(when, "year"),
		":date":      sqlbind.P(when, "date"),
		":time":      sqlbind.P(when, "time"),
		":datetime":  sqlbind.P(when, "datetime"),
		":timestamp": sqlbind.P(when, "timestamp"),
		":bytes":     sqlbind.P(1536, "bytes"),
		":bits":      sqlbind.P(2048, "bits"),
	}
	stmt := newFakeStatement(queryFor(bindings))
	c.Assert(binder.BindMultiple(stmt, bindings), IsNil)

	expected := map[string]string{
		":year":      "2024",
		":date":      "2024-03-05",
		":time":      "14:07:09.123456",
		":datetime":  "2024-03-05 14:07:09.123456",
		":timestamp": "2024-03-05 14:07:09.123456",
		":bytes":     "1.5 KiB",
		":bits":      "2 Kib",
	}
	for placeholder, value := range expected {
		c.Check(stmt.bound[placeholder], DeepEquals, bound{value: value, typ: sqlbind.ParamStr, length: -1},
			Commentf("placeholder %s", placeholder))
	}
}

// recordingFormatter records the arguments it is called with.
type recordingFormatter struct {
	patterns   []string
	thresholds []int
	bits       []bool
}

func (f *recordingFormatter) FormatTime(value any, pattern string) (string, error) {
	f.patterns = append(f.patterns, pattern)
	return "time", nil
}

func (f *recordingFormatter) FormatSize(value any, threshold int, bits bool) (string, error) {
	f.thresholds = append(f.thresholds, threshold)
	f.bits = append(f.bits, bits)
	return "size", nil
}

func (s *BindSuite) TestFormatterArguments(c *C) {
	f := &recordingFormatter{}
	binder, err := sqlbind.NewBinder(sqlbind.WithTimeFormatter(f), sqlbind.WithSizeFormatter(f))
	c.Assert(err, IsNil)

	bindings := sqlbind.Bindings{
		":a": sqlbind.P(0, "year"),
		":b": sqlbind.P(0, "date"),
		":c": sqlbind.P(0, "time"),
		":d": sqlbind.P(0, "datetime"),
		":e": sqlbind.P(0, "bytes"),
		":f": sqlbind.P(0, "bits"),
	}
	stmt := newFakeStatement(queryFor(bindings))
	c.Assert(binder.BindMultiple(stmt, bindings), IsNil)
	c.Check(f.patterns, DeepEquals, []string{
		sqlbind.PatternYear, sqlbind.PatternDate, sqlbind.PatternTime, sqlbind.PatternDateTime,
	})
	c.Check(f.thresholds, DeepEquals, []int{sqlbind.SizeThreshold, sqlbind.SizeThreshold})
	c.Check(f.bits, DeepEquals, []bool{false, true})
	c.Check(stmt.bound[":a"].value, Equals, "time")
	c.Check(stmt.bound[":f"].value, Equals, "size")
}

func (s *BindSuite) TestFormatterError(c *C) {
	binder, err := sqlbind.NewBinder(sqlbind.WithTimeFormatter(format.Time{}))
	c.Assert(err, IsNil)
	stmt := newFakeStatement("SELECT :d")
	err = binder.BindMultiple(stmt, sqlbind.Bindings{":d": sqlbind.P("not a date", "date")})
	c.Assert(err, ErrorMatches, `cannot bind ":d" \(type "date", value "not a date"\): .*`)
}

func (s *BindSuite) TestEncoding(c *C) {
	binder, err := sqlbind.NewBinder(sqlbind.WithEncoding("latin1"))
	c.Assert(err, IsNil)
	c.Check(binder.Encoding(), Equals, "windows-1252")
	stmt := newFakeStatement("SELECT :a")
	c.Assert(binder.BindMultiple(stmt, sqlbind.Bindings{":a": "caf\xe9"}), IsNil)
	// Text stays in the configured encoding.
	c.Check(stmt.bound[":a"].value, Equals, "caf\xe9")

	binder, err = sqlbind.NewBinder()
	c.Assert(err, IsNil)
	c.Check(binder.Encoding(), Equals, "utf-8")

	_, err = sqlbind.NewBinder(sqlbind.WithEncoding("no-such-encoding"))
	c.Assert(err, ErrorMatches, `unknown text encoding "no-such-encoding"`)
}

func (s *BindSuite) TestParamTypeString(c *C) {
	c.Check(sqlbind.ParamInferred.String(), Equals, "inferred")
	c.Check(sqlbind.ParamLOB.String(), Equals, "lob")
	c.Check(sqlbind.ParamType(4).String(), Equals, "unknown")
}
