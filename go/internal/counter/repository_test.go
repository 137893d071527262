package counter

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/slapboard/go/internal/counter/db"
)

// tableDriver is a database/sql driver over an in-memory slap_documents table.
// Writes made inside a transaction only land on Commit.
type tableDriver struct {
	mu        sync.Mutex
	rows      map[string][]byte
	failFetch bool
	commits   int
	rollbacks int
}

func newTableDriver() *tableDriver {
	return &tableDriver{rows: make(map[string][]byte)}
}

func (d *tableDriver) Open(string) (driver.Conn, error) { return &tableConn{d: d}, nil }

func (d *tableDriver) Connect(context.Context) (driver.Conn, error) { return &tableConn{d: d}, nil }

func (d *tableDriver) Driver() driver.Driver { return d }

func (d *tableDriver) stats() (commits, rollbacks int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.commits, d.rollbacks
}

func (d *tableDriver) row(id string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	raw, ok := d.rows[id]
	return raw, ok
}

type tableConn struct {
	d      *tableDriver
	staged map[string][]byte
}

func (c *tableConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("prepared statements not supported")
}

func (c *tableConn) Close() error { return nil }

func (c *tableConn) Begin() (driver.Tx, error) {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	c.staged = make(map[string][]byte, len(c.d.rows))
	for k, v := range c.d.rows {
		c.staged[k] = v
	}
	return &tableTx{c: c}, nil
}

// table returns the rows visible to this connection
func (c *tableConn) table() map[string][]byte {
	if c.staged != nil {
		return c.staged
	}
	return c.d.rows
}

func (c *tableConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if !strings.Contains(query, "INSERT INTO slap_documents") {
		return nil, fmt.Errorf("unexpected exec: %s", query)
	}
	id := args[0].Value.(string)
	counts, ok := args[1].Value.([]byte)
	if !ok {
		return nil, fmt.Errorf("counts arg is %T", args[1].Value)
	}

	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	table := c.table()
	if _, exists := table[id]; exists {
		return driver.RowsAffected(0), nil
	}
	table[id] = append([]byte(nil), counts...)
	return driver.RowsAffected(1), nil
}

func (c *tableConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if !strings.Contains(query, "SELECT id, counts, updated_at FROM slap_documents") {
		return nil, fmt.Errorf("unexpected query: %s", query)
	}
	id := args[0].Value.(string)

	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	if c.d.failFetch {
		return nil, errors.New("connection reset")
	}
	rows := &tableRows{}
	if raw, ok := c.table()[id]; ok {
		rows.values = [][]driver.Value{{id, append([]byte(nil), raw...), time.Unix(1700000000, 0)}}
	}
	return rows, nil
}

type tableTx struct{ c *tableConn }

func (tx *tableTx) Commit() error {
	tx.c.d.mu.Lock()
	defer tx.c.d.mu.Unlock()
	tx.c.d.rows = tx.c.staged
	tx.c.staged = nil
	tx.c.d.commits++
	return nil
}

func (tx *tableTx) Rollback() error {
	tx.c.d.mu.Lock()
	defer tx.c.d.mu.Unlock()
	tx.c.staged = nil
	tx.c.d.rollbacks++
	return nil
}

type tableRows struct {
	values [][]driver.Value
	next   int
}

func (r *tableRows) Columns() []string { return []string{"id", "counts", "updated_at"} }

func (r *tableRows) Close() error { return nil }

func (r *tableRows) Next(dest []driver.Value) error {
	if r.next >= len(r.values) {
		return io.EOF
	}
	copy(dest, r.values[r.next])
	r.next++
	return nil
}

func newTableRepository(t *testing.T) (*Repository, *tableDriver) {
	t.Helper()
	d := newTableDriver()
	database := sql.OpenDB(d)
	t.Cleanup(func() { database.Close() })
	return NewRepository(db.New(database), database), d
}

func TestRepository_EnsureDocumentCreatesOnce(t *testing.T) {
	repo, d := newTableRepository(t)
	ctx := context.Background()

	doc, created, err := repo.EnsureDocument(ctx, "br", json.RawMessage(`{"rcb":1000,"mi":900}`))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "br", doc.ID)
	assert.JSONEq(t, `{"rcb":1000,"mi":900}`, string(doc.Counts))
	assert.Equal(t, time.Unix(1700000000, 0), doc.UpdatedAt)

	// an existing document keeps its counts
	doc, created, err = repo.EnsureDocument(ctx, "br", json.RawMessage(`{"rcb":0}`))
	require.NoError(t, err)
	assert.False(t, created)
	assert.JSONEq(t, `{"rcb":1000,"mi":900}`, string(doc.Counts))

	commits, rollbacks := d.stats()
	assert.Equal(t, 2, commits)
	assert.Zero(t, rollbacks)
}

func TestRepository_EnsureDocumentRollsBackOnFailure(t *testing.T) {
	repo, d := newTableRepository(t)
	d.mu.Lock()
	d.failFetch = true
	d.mu.Unlock()

	_, _, err := repo.EnsureDocument(context.Background(), "br", json.RawMessage(`{"rcb":1000}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch document")

	commits, rollbacks := d.stats()
	assert.Zero(t, commits)
	assert.Equal(t, 1, rollbacks)
	_, ok := d.row("br")
	assert.False(t, ok, "insert must not survive the rollback")
}
