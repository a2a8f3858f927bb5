package mbtiles

import (
	"context"
	"database/sql"
	"io"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
)

var pngTile = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D}

// fixtureTile row 为 TMS 行号
type fixtureTile struct {
	z, x, row int
	data      any
}

type fixture struct {
	metadata [][2]string
	tiles    []fixtureTile

	noMetadataTable bool
	noTilesTable    bool
}

func (f fixture) create(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	db, err := sql.Open(driverName, path)
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer db.Close()

	if !f.noMetadataTable {
		if _, err := db.Exec(`CREATE TABLE metadata (name TEXT, value TEXT)`); err != nil {
			t.Fatalf("create metadata: %v", err)
		}
		for _, kv := range f.metadata {
			if _, err := db.Exec(`INSERT INTO metadata (name, value) VALUES (?, ?)`, kv[0], kv[1]); err != nil {
				t.Fatalf("insert metadata: %v", err)
			}
		}
	}
	if !f.noTilesTable {
		if _, err := db.Exec(`CREATE TABLE tiles (zoom_level INTEGER, tile_column INTEGER, tile_row INTEGER, tile_data BLOB)`); err != nil {
			t.Fatalf("create tiles: %v", err)
		}
		for _, tl := range f.tiles {
			if _, err := db.Exec(`INSERT INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)`,
				tl.z, tl.x, tl.row, tl.data); err != nil {
				t.Fatalf("insert tile: %v", err)
			}
		}
	}
	if f.noMetadataTable && f.noTilesTable {
		// 没有任何表时也要落盘
		if _, err := db.Exec(`CREATE TABLE other (id INTEGER)`); err != nil {
			t.Fatalf("create other: %v", err)
		}
	}
	return path
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// open 打开 fixture 并连接
func open(t *testing.T, path string, opts ...Option) *MBTiles {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	m, err := New("mbtiles://"+filepath.ToSlash(path)+"?mode=ro", opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

// countingQuerier 统计发出的查询次数
type countingQuerier struct {
	querier
	queries atomic.Int64
}

func (c *countingQuerier) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	c.queries.Add(1)
	return c.querier.QueryContext(ctx, query, args...)
}

func (c *countingQuerier) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	c.queries.Add(1)
	return c.querier.QueryRowContext(ctx, query, args...)
}

func instrument(m *MBTiles) *countingQuerier {
	m.mu.Lock()
	defer m.mu.Unlock()
	cq := &countingQuerier{querier: m.q}
	m.q = cq
	return cq
}
