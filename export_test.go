// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbind

// NumCached returns the number of prepared statements cached by db.
func (db *DB) NumCached() int {
	return db.cache.len()
}
