// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbind

import (
	"container/list"
	"context"
	"database/sql"
	"sync"

	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/singleflight"
)

// errCacheClosed is returned when a statement is prepared on a closed DB.
var errCacheClosed = errors.New("sqlbind: database is closed")

// defaultCacheSize is the number of prepared statements a DB keeps when they
// are not in use.
const defaultCacheSize = 128

// cachedStmt is a driver prepared statement and the query it was prepared
// from. refs counts the Stmt values currently using it.
type cachedStmt struct {
	key   uint64
	query string
	stmt  *sql.Stmt
	refs  int
	elem  *list.Element
}

// statementCache caches the sql.Stmt objects prepared on a single DB. The
// cache is indexed by the xxh3 hash of the query text. Queries with colliding
// hashes share a bucket.
//
// The cache holds at most size statements that are not in use. When it grows
// past that, the least recently used unreferenced statement is closed. A
// statement in use is never closed before it is released, so the cache may
// stay above size while more than size statements are held.
//
// The mutex must be locked when accessing stmts, recent, n or closed.
// Concurrent preparation of the same query is collapsed into a single driver
// call.
type statementCache struct {
	mutex  sync.Mutex
	stmts  map[uint64][]*cachedStmt
	recent *list.List
	n      int
	size   int
	closed bool
	group  singleflight.Group
}

func newStatementCache(size int) *statementCache {
	return &statementCache{
		stmts:  map[uint64][]*cachedStmt{},
		recent: list.New(),
		size:   size,
	}
}

// prepareSubstrate is an object that queries can be prepared on, e.g. a sql.DB
// or sql.Conn.
type prepareSubstrate interface {
	PrepareContext(context.Context, string) (*sql.Stmt, error)
}

// lookup returns the cached entry for query.
func (sc *statementCache) lookup(key uint64, query string) (*cachedStmt, bool) {
	for _, cs := range sc.stmts[key] {
		if cs.query == query {
			return cs, true
		}
	}
	return nil, false
}

// acquireCached takes a reference to the cached statement for query, if
// there is one. The release function must be called when the statement is
// no longer used.
func (sc *statementCache) acquireCached(query string) (*sql.Stmt, func(), bool) {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()
	cs, ok := sc.lookup(xxh3.HashString(query), query)
	if !ok || sc.closed {
		return nil, nil, false
	}
	cs.refs++
	sc.recent.MoveToFront(cs.elem)
	return cs.stmt, sc.releaser(cs), true
}

// acquire returns the statement for query, preparing it on ps if it is not in
// the cache yet. The release function must be called when the statement is
// no longer used.
func (sc *statementCache) acquire(ctx context.Context, ps prepareSubstrate, query string) (*sql.Stmt, func(), error) {
	key := xxh3.HashString(query)
	for {
		sc.mutex.Lock()
		if sc.closed {
			sc.mutex.Unlock()
			return nil, nil, errCacheClosed
		}
		if cs, ok := sc.lookup(key, query); ok {
			cs.refs++
			sc.recent.MoveToFront(cs.elem)
			sc.mutex.Unlock()
			return cs.stmt, sc.releaser(cs), nil
		}
		sc.mutex.Unlock()

		// The prepared statement is inserted unreferenced, so in the rare
		// case that it is evicted before we take it the loop prepares again.
		_, err, _ := sc.group.Do(query, func() (any, error) {
			return nil, sc.insert(ctx, ps, key, query)
		})
		if err != nil {
			return nil, nil, err
		}
	}
}

func (sc *statementCache) insert(ctx context.Context, ps prepareSubstrate, key uint64, query string) error {
	sc.mutex.Lock()
	// Check if a statement has been inserted by someone else since we last
	// checked.
	_, ok := sc.lookup(key, query)
	sc.mutex.Unlock()
	if ok {
		return nil
	}
	sqlstmt, err := ps.PrepareContext(ctx, query)
	if err != nil {
		return errors.Wrapf(err, "cannot prepare %q", query)
	}
	sc.mutex.Lock()
	defer sc.mutex.Unlock()
	if sc.closed {
		sqlstmt.Close()
		return errCacheClosed
	}
	cs := &cachedStmt{key: key, query: query, stmt: sqlstmt}
	cs.elem = sc.recent.PushFront(cs)
	sc.stmts[key] = append(sc.stmts[key], cs)
	// Eviction waits for the next release so that the new statement is not
	// closed before the caller takes it.
	sc.n++
	return nil
}

// releaser returns a function dropping one reference to cs. Calling it more
// than once has no further effect.
func (sc *statementCache) releaser(cs *cachedStmt) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			sc.mutex.Lock()
			defer sc.mutex.Unlock()
			cs.refs--
			sc.evict()
		})
	}
}

// evict closes least recently used statements that are not in use until the
// cache is back within its size. The mutex must be held.
func (sc *statementCache) evict() {
	for e := sc.recent.Back(); e != nil && sc.n > sc.size; {
		cs := e.Value.(*cachedStmt)
		prev := e.Prev()
		if cs.refs == 0 {
			sc.remove(cs)
			cs.stmt.Close()
		}
		e = prev
	}
}

func (sc *statementCache) remove(cs *cachedStmt) {
	bucket := sc.stmts[cs.key]
	for i, other := range bucket {
		if other == cs {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(sc.stmts, cs.key)
	} else {
		sc.stmts[cs.key] = bucket
	}
	sc.recent.Remove(cs.elem)
	sc.n--
}

// len returns the number of cached statements.
func (sc *statementCache) len() int {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()
	return sc.n
}

// close closes and forgets every cached statement, in use or not. Statements
// prepared after close fail with errCacheClosed.
func (sc *statementCache) close() error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()
	var firstErr error
	for _, bucket := range sc.stmts {
		for _, cs := range bucket {
			if err := cs.stmt.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	sc.stmts = map[uint64][]*cachedStmt{}
	sc.recent.Init()
	sc.n = 0
	sc.closed = true
	return firstErr
}
