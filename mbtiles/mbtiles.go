// Package mbtiles 读取 MBTiles 瓦片库
//
// 一个 MBTiles 句柄对应一个 SQLite 文件:
//
//	metadata(name, value)
//	tiles(zoom_level, tile_column, tile_row, tile_data)  tile_row 为 TMS 行号
//
// 句柄在 Connect 之前不会发出任何查询. 在查询进行中调用 Close 的行为
// 取决于 database/sql, 进行中的查询可能正常结束也可能返回错误.
package mbtiles

import (
	"context"
	"database/sql"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/teris-io/shortid"
	"golang.org/x/sync/singleflight"

	"mbtiler/locator"
	"mbtiler/tiletype"
)

// DriverName 当前编译进来的 database/sql 驱动名
func DriverName() string {
	return driverName
}

// querier 上层使用的最小查询能力, *sql.DB 即满足
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// FileStats Connect 时记录的文件信息, 之后不再刷新
type FileStats struct {
	Size    int64
	ModTime time.Time
}

// Sniffer 根据瓦片内容生成响应头
type Sniffer func(data []byte) map[string]string

// Option 句柄选项
type Option func(*MBTiles)

// WithLogger 设置日志
func WithLogger(l logrus.FieldLogger) Option {
	return func(m *MBTiles) {
		m.logger = l
	}
}

// WithSniffer 替换默认的 tiletype.Headers
func WithSniffer(s Sniffer) Option {
	return func(m *MBTiles) {
		m.sniff = s
	}
}

// MBTiles 瓦片库句柄
type MBTiles struct {
	ID  string
	loc *locator.Locator

	logger logrus.FieldLogger
	log    logrus.FieldLogger
	sniff  Sniffer

	mu     sync.RWMutex
	db     *sql.DB
	q      querier
	stats  FileStats
	ready  atomic.Bool
	onOpen []func(*MBTiles)

	infoMu    sync.RWMutex
	info      *Info
	infoGroup singleflight.Group
}

// New 通过 mbtiles:// 地址创建句柄
func New(uri string, opts ...Option) (*MBTiles, error) {
	loc, err := locator.Parse(uri)
	if err != nil {
		return nil, err
	}
	return newMBTiles(loc, opts), nil
}

// NewFromURL 通过已解析的地址创建句柄
func NewFromURL(u *url.URL, opts ...Option) (*MBTiles, error) {
	loc, err := locator.FromURL(u)
	if err != nil {
		return nil, err
	}
	return newMBTiles(loc, opts), nil
}

func newMBTiles(loc *locator.Locator, opts []Option) *MBTiles {
	id, err := shortid.Generate()
	if err != nil {
		id = filepath.Base(loc.Path)
	}
	m := &MBTiles{
		ID:     id,
		loc:    loc,
		logger: logrus.StandardLogger(),
		sniff:  tiletype.Headers,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.logger.WithFields(logrus.Fields{
		"store": m.ID,
		"path":  loc.Path,
	})
	return m
}

// Path 文件绝对路径
func (m *MBTiles) Path() string {
	return m.loc.Path
}

// Locator 解析后的地址
func (m *MBTiles) Locator() *locator.Locator {
	return m.loc
}

// Ready Connect 成功且未 Close
func (m *MBTiles) Ready() bool {
	return m.ready.Load()
}

// Stats Connect 时的文件大小与修改时间
func (m *MBTiles) Stats() FileStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// OnOpen 注册打开成功后的回调, 在 Connect 中同步调用
func (m *MBTiles) OnOpen(f func(*MBTiles)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOpen = append(m.onOpen, f)
}

func (m *MBTiles) dsn() string {
	escaper := strings.NewReplacer("%", "%25", "?", "%3F", "#", "%23")
	return "file:" + escaper.Replace(filepath.ToSlash(m.loc.Path)) + "?mode=" + m.loc.Mode.String()
}

// Connect 按访问模式打开数据库并记录文件信息
func (m *MBTiles) Connect(ctx context.Context) error {
	if m.ready.Load() {
		return nil
	}

	db, err := sql.Open(driverName, m.dsn())
	if err != nil {
		return &ConnectionError{Path: m.loc.Path, Err: err}
	}
	// sql.Open 不会真正打开文件
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return &ConnectionError{Path: m.loc.Path, Err: err}
	}
	fi, err := os.Stat(m.loc.Path)
	if err != nil {
		db.Close()
		return &ConnectionError{Path: m.loc.Path, Err: err}
	}

	m.mu.Lock()
	m.db = db
	m.q = db
	m.stats = FileStats{Size: fi.Size(), ModTime: fi.ModTime()}
	m.ready.Store(true)
	callbacks := append([]func(*MBTiles){}, m.onOpen...)
	m.mu.Unlock()

	m.log.WithField("driver", driverType).Infof("mbtiles opened, mode: %s, size: %d", m.loc.Mode, fi.Size())
	for _, f := range callbacks {
		f(m)
	}
	return nil
}

// Close 释放数据库, 可重复调用
func (m *MBTiles) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ready.Store(false)
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	m.q = nil
	m.log.Infof("mbtiles closed")
	return err
}

// conn 未连接时快速失败
func (m *MBTiles) conn() (querier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.ready.Load() || m.q == nil {
		return nil, ErrNotConnected
	}
	return m.q, nil
}

// each 流式读取多行, 每行调用一次 fn
func each(ctx context.Context, q querier, fn func(*sql.Rows) error, query string, args ...any) error {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
