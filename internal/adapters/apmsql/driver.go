// Package apmsql wraps database/sql drivers so that every statement runs
// inside a scope on the profiled thread carried by its context.
package apmsql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"

	"github.com/AlexKent3141/lurien/profiling"
)

// ---------------- Driver registration ----------------

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]driver.Driver)
)

// Register wraps the provided driver with scope marking and registers it in
// database/sql under the given name. Typical usage:
//
//	import "github.com/mattn/go-sqlite3"
//	apmsql.Register("sqlite3-lurien", &sqlite3.SQLiteDriver{})
//	db, _ := sql.Open("sqlite3-lurien", dsn)
//
// Panics if the driver is nil or the name is already taken.
func Register(name string, d driver.Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()

	if d == nil {
		panic("apmsql: Register driver is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("apmsql: Register called twice for driver " + name)
	}

	drivers[name] = d
	sql.Register(name, &apmDriver{realDriver: d})
}

// Wrap registers a wrapped copy of the already registered driver
// driverName, once, and returns the name to open it under.
func Wrap(driverName string) (string, error) {
	name := driverName + "-lurien"

	driversMu.RLock()
	_, done := drivers[name]
	driversMu.RUnlock()
	if done {
		return name, nil
	}

	// sql.Open does not connect, it only resolves the driver.
	db, err := sql.Open(driverName, "")
	if err != nil {
		return "", fmt.Errorf("apmsql: unknown driver %q: %w", driverName, err)
	}
	realDriver := db.Driver()
	_ = db.Close()

	driversMu.Lock()
	defer driversMu.Unlock()
	if _, dup := drivers[name]; !dup {
		drivers[name] = realDriver
		sql.Register(name, &apmDriver{realDriver: realDriver})
	}
	return name, nil
}

// ---------------- Driver wrappers ----------------

type apmDriver struct{ realDriver driver.Driver }

func (d *apmDriver) Open(name string) (driver.Conn, error) {
	conn, err := d.realDriver.Open(name)
	if err != nil {
		return nil, err
	}
	return &apmConn{realConn: conn}, nil
}

type apmConn struct{ realConn driver.Conn }

func (c *apmConn) Prepare(query string) (driver.Stmt, error) {
	stmt, err := c.realConn.Prepare(query)
	if err != nil {
		return nil, err
	}
	return &apmStmt{realStmt: stmt, query: query}, nil
}
func (c *apmConn) Close() error              { return c.realConn.Close() }
func (c *apmConn) Begin() (driver.Tx, error) { return c.realConn.Begin() } //nolint:staticcheck // required by driver.Conn

// Context-aware exec/query
func (c *apmConn) QueryContext(ctx context.Context, q string, a []driver.NamedValue) (driver.Rows, error) {
	if qx, ok := c.realConn.(driver.QueryerContext); ok {
		defer profiling.Enter(ctx, ScopeName(q)).Exit()
		return qx.QueryContext(ctx, q, a)
	}
	return nil, driver.ErrSkip
}
func (c *apmConn) ExecContext(ctx context.Context, q string, a []driver.NamedValue) (driver.Result, error) {
	if ex, ok := c.realConn.(driver.ExecerContext); ok {
		defer profiling.Enter(ctx, ScopeName(q)).Exit()
		return ex.ExecContext(ctx, q, a)
	}
	return nil, driver.ErrSkip
}

type apmStmt struct {
	realStmt driver.Stmt
	query    string
}

func (s *apmStmt) Close() error  { return s.realStmt.Close() }
func (s *apmStmt) NumInput() int { return s.realStmt.NumInput() }
func (s *apmStmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.realStmt.Exec(args) //nolint:staticcheck // required by driver.Stmt
}
func (s *apmStmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.realStmt.Query(args) //nolint:staticcheck // required by driver.Stmt
}

func (s *apmStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	defer profiling.Enter(ctx, ScopeName(s.query)).Exit()
	if ex, ok := s.realStmt.(driver.StmtExecContext); ok {
		return ex.ExecContext(ctx, args)
	}
	return s.realStmt.Exec(namedValueToValue(args)) //nolint:staticcheck // fallback for old drivers
}

func (s *apmStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	defer profiling.Enter(ctx, ScopeName(s.query)).Exit()
	if qx, ok := s.realStmt.(driver.StmtQueryContext); ok {
		return qx.QueryContext(ctx, args)
	}
	return s.realStmt.Query(namedValueToValue(args)) //nolint:staticcheck // fallback for old drivers
}

func namedValueToValue(named []driver.NamedValue) []driver.Value {
	vs := make([]driver.Value, len(named))
	for i, nv := range named {
		vs[i] = nv.Value
	}
	return vs
}
