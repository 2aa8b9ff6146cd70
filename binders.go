// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbind

import (
	"fmt"

	"github.com/spf13/cast"

	"github.com/canonical/sqlbind/internal/match"
	"github.com/canonical/sqlbind/internal/typetag"
)

// bindKind binds value with the binder for kind.
func (b *Binder) bindKind(stmt Statement, kind typetag.Kind, placeholder string, value any) error {
	switch kind {
	case typetag.String:
		return bindString(stmt, placeholder, value)
	case typetag.Int:
		return bindInt(stmt, placeholder, value)
	case typetag.Bool:
		return bindBool(stmt, placeholder, value)
	case typetag.Null:
		return stmt.Bind(placeholder, nil, ParamNull)
	case typetag.Binary:
		return bindBinary(stmt, placeholder, value)
	case typetag.Year:
		return b.bindTime(stmt, placeholder, value, PatternYear)
	case typetag.Date:
		return b.bindTime(stmt, placeholder, value, PatternDate)
	case typetag.Time:
		return b.bindTime(stmt, placeholder, value, PatternTime)
	case typetag.DateTime:
		return b.bindTime(stmt, placeholder, value, PatternDateTime)
	case typetag.Bytes:
		return b.bindSize(stmt, placeholder, value, false)
	case typetag.Bits:
		return b.bindSize(stmt, placeholder, value, true)
	case typetag.Like:
		return bindLike(stmt, placeholder, value)
	case typetag.Match:
		return bindMatch(stmt, placeholder, value)
	case typetag.In:
		return fmt.Errorf("in parameter must be expanded with UnpackIN before binding")
	}
	return fmt.Errorf("internal error: no binder for %s", kind)
}

func bindString(stmt Statement, placeholder string, value any) error {
	s, err := cast.ToStringE(value)
	if err != nil {
		return err
	}
	return stmt.Bind(placeholder, s, ParamStr)
}

func bindInt(stmt Statement, placeholder string, value any) error {
	n, err := cast.ToInt64E(value)
	if err != nil {
		return err
	}
	return stmt.Bind(placeholder, n, ParamInt)
}

func bindBool(stmt Statement, placeholder string, value any) error {
	v, err := cast.ToBoolE(value)
	if err != nil {
		return err
	}
	return stmt.Bind(placeholder, v, ParamBool)
}

// bindBinary binds value as raw bytes with an explicit length.
func bindBinary(stmt Statement, placeholder string, value any) error {
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		s, err := cast.ToStringE(value)
		if err != nil {
			return err
		}
		data = []byte(s)
	}
	return stmt.BindBytes(placeholder, data, len(data))
}

func (b *Binder) bindTime(stmt Statement, placeholder string, value any, pattern string) error {
	if b.times == nil {
		return bindString(stmt, placeholder, value)
	}
	s, err := b.times.FormatTime(value, pattern)
	if err != nil {
		return err
	}
	return stmt.Bind(placeholder, s, ParamStr)
}

func (b *Binder) bindSize(stmt Statement, placeholder string, value any, bits bool) error {
	if b.sizes == nil {
		return bindString(stmt, placeholder, value)
	}
	s, err := b.sizes.FormatSize(value, SizeThreshold, bits)
	if err != nil {
		return err
	}
	return stmt.Bind(placeholder, s, ParamStr)
}

// bindLike wraps value in % wildcards. Wildcards inside value are not
// escaped.
func bindLike(stmt Statement, placeholder string, value any) error {
	s, err := cast.ToStringE(value)
	if err != nil {
		return err
	}
	return stmt.Bind(placeholder, "%"+s+"%", ParamStr)
}

func bindMatch(stmt Statement, placeholder string, value any) error {
	s, err := cast.ToStringE(value)
	if err != nil {
		return err
	}
	return stmt.Bind(placeholder, match.Sanitize(s), ParamStr)
}
