// Package testutil provides an in-memory database/sql driver that understands
// the statements issued by the postgres collection store.
package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
)

var stubSeq uint64

var (
	createStmt = regexp.MustCompile(`(?is)^CREATE TABLE IF NOT EXISTS (\w+)`)
	upsertStmt = regexp.MustCompile(`(?is)^INSERT INTO (\w+)\s*\(id,\s*data\)`)
	selectStmt = regexp.MustCompile(`(?is)^SELECT data FROM (\w+) WHERE id = \$1`)
	deleteStmt = regexp.MustCompile(`(?is)^DELETE FROM (\w+) WHERE id = \$1`)
)

// StubConn keeps one document per (table, id) and records every statement.
// Set FailPing or FailTables before use to inject errors.
type StubConn struct {
	mu         sync.Mutex
	Execs      []string
	Queries    []string
	FailPing   bool
	FailTables map[string]bool
	tables     map[string]bool
	docs       map[string]map[string][]byte
}

// NewStubDB registers a uniquely named driver and opens a sql.DB on it.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{tables: map[string]bool{}, docs: map[string]map[string][]byte{}}
	name := fmt.Sprintf("stubpg%d", atomic.AddUint64(&stubSeq, 1))
	sql.Register(name, stubDriver{conn})
	db, err := sql.Open(name, "")
	if err != nil {
		panic(err)
	}
	return db, conn
}

type stubDriver struct{ conn *StubConn }

func (d stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

// Docs returns a copy of the documents stored in table keyed by id.
func (c *StubConn) Docs(table string) map[string][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string][]byte, len(c.docs[table]))
	for id, data := range c.docs[table] {
		out[id] = bytes.Clone(data)
	}
	return out
}

// HasTable reports whether a CREATE TABLE statement ran for table.
func (c *StubConn) HasTable(table string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tables[table]
}

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("stub: prepared statements not supported")
}

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return nil, errors.New("stub: transactions not supported")
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(context.Context) error {
	if c.FailPing {
		return errors.New("stub: ping refused")
	}
	return nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	query = strings.TrimSpace(query)
	c.Execs = append(c.Execs, query)

	if m := createStmt.FindStringSubmatch(query); m != nil {
		c.tables[m[1]] = true
		return driver.RowsAffected(0), nil
	}
	if m := upsertStmt.FindStringSubmatch(query); m != nil {
		id, data, err := idAndData(args)
		if err != nil {
			return nil, err
		}
		if err := c.checkTable(m[1]); err != nil {
			return nil, err
		}
		if c.docs[m[1]] == nil {
			c.docs[m[1]] = map[string][]byte{}
		}
		c.docs[m[1]][id] = data
		return driver.RowsAffected(1), nil
	}
	if m := deleteStmt.FindStringSubmatch(query); m != nil {
		if err := c.checkTable(m[1]); err != nil {
			return nil, err
		}
		id := fmt.Sprint(args[0].Value)
		if _, ok := c.docs[m[1]][id]; !ok {
			return driver.RowsAffected(0), nil
		}
		delete(c.docs[m[1]], id)
		return driver.RowsAffected(1), nil
	}
	return nil, fmt.Errorf("stub: unsupported statement %q", query)
}

// QueryContext implements driver.QueryerContext.
func (c *StubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	query = strings.TrimSpace(query)
	c.Queries = append(c.Queries, query)

	m := selectStmt.FindStringSubmatch(query)
	if m == nil {
		return nil, fmt.Errorf("stub: unsupported query %q", query)
	}
	if err := c.checkTable(m[1]); err != nil {
		return nil, err
	}
	rows := &stubRows{}
	if data, ok := c.docs[m[1]][fmt.Sprint(args[0].Value)]; ok {
		rows.docs = [][]byte{bytes.Clone(data)}
	}
	return rows, nil
}

func (c *StubConn) checkTable(table string) error {
	if c.FailTables[table] {
		return fmt.Errorf("stub: %s unavailable", table)
	}
	if !c.tables[table] {
		return fmt.Errorf("stub: relation %q does not exist", table)
	}
	return nil
}

func idAndData(args []driver.NamedValue) (string, []byte, error) {
	if len(args) != 2 {
		return "", nil, fmt.Errorf("stub: want 2 args, got %d", len(args))
	}
	switch v := args[1].Value.(type) {
	case []byte:
		return fmt.Sprint(args[0].Value), bytes.Clone(v), nil
	case string:
		return fmt.Sprint(args[0].Value), []byte(v), nil
	default:
		return "", nil, fmt.Errorf("stub: unsupported data type %T", v)
	}
}

type stubRows struct {
	docs [][]byte
	idx  int
}

func (r *stubRows) Columns() []string { return []string{"data"} }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.docs) {
		return io.EOF
	}
	dest[0] = r.docs[r.idx]
	r.idx++
	return nil
}
