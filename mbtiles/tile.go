package mbtiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/paulmach/orb/maptile"

	"mbtiler/geo"
)

// MaxZoom 可寻址的最大级别
const MaxZoom = 30

const (
	sqlTile      = `SELECT tile_data FROM tiles WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?`
	sqlAllTiles  = `SELECT zoom_level, tile_column, tile_row, tile_data FROM tiles`
	sqlTileCount = `SELECT COUNT(*) FROM tiles`
)

// Tile 瓦片及响应头
type Tile struct {
	T       maptile.Tile // XYZ 坐标
	C       []byte
	Headers map[string]string
}

// GetTile 按 XYZ 坐标读取瓦片
func (m *MBTiles) GetTile(ctx context.Context, x, y, z int) (*Tile, error) {
	q, err := m.conn()
	if err != nil {
		return nil, err
	}
	if z < 0 || z > MaxZoom {
		return nil, fmt.Errorf("%w: %d/%d/%d", ErrTileNotFound, z, x, y)
	}

	var data any
	err = q.QueryRowContext(ctx, sqlTile, z, x, geo.FlipY(z, y)).Scan(&data)
	switch {
	case errors.Is(err, sql.ErrNoRows), isMissingTable(err):
		return nil, fmt.Errorf("%w: %d/%d/%d", ErrTileNotFound, z, x, y)
	case err != nil:
		return nil, err
	}

	b, ok := data.([]byte)
	if !ok || len(b) == 0 {
		return nil, &InvalidTileError{Z: z, X: x, Y: y}
	}
	return m.newTile(x, y, z, b), nil
}

func (m *MBTiles) newTile(x, y, z int, b []byte) *Tile {
	stats := m.Stats()
	headers := make(map[string]string)
	for k, v := range m.sniff(b) {
		headers[k] = v
	}
	headers["Last-Modified"] = stats.ModTime.UTC().Format(http.TimeFormat)
	headers["ETag"] = fmt.Sprintf("%d-%d", stats.Size, stats.ModTime.UnixMilli())

	return &Tile{
		T:       maptile.New(uint32(x), uint32(y), maptile.Zoom(z)),
		C:       b,
		Headers: headers,
	}
}

// CountTiles 瓦片总数, tiles 表不存在时为 0
func (m *MBTiles) CountTiles(ctx context.Context) (int64, error) {
	q, err := m.conn()
	if err != nil {
		return 0, err
	}
	var n int64
	err = q.QueryRowContext(ctx, sqlTileCount).Scan(&n)
	if isMissingTable(err) {
		return 0, nil
	}
	return n, err
}

// EachTile 流式遍历全部瓦片, 坐标已转换为 XYZ, 非法瓦片跳过
func (m *MBTiles) EachTile(ctx context.Context, fn func(*Tile) error) error {
	q, err := m.conn()
	if err != nil {
		return err
	}
	err = each(ctx, q, func(rows *sql.Rows) error {
		var z, x, row int
		var data any
		if err := rows.Scan(&z, &x, &row, &data); err != nil {
			return err
		}
		b, ok := data.([]byte)
		if !ok || len(b) == 0 || z < 0 || z > MaxZoom {
			m.log.Debugf("skip invalid tile(z:%d, x:%d, row:%d)", z, x, row)
			return nil
		}
		return fn(m.newTile(x, geo.FlipY(z, row), z, b))
	}, sqlAllTiles)
	if isMissingTable(err) {
		return nil
	}
	return err
}
