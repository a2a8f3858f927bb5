package mbtiles

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"maps"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"mbtiler/geo"
)

// SchemeXYZ 对外始终使用 XYZ 行号
const SchemeXYZ = "xyz"

// zoomProbes 探测 0..29 级
const zoomProbes = 30

const (
	sqlMetadata   = `SELECT name, value FROM metadata`
	sqlProbeZoom  = `SELECT zoom_level FROM tiles WHERE zoom_level = ? LIMIT 1`
	sqlTileExtent = `SELECT MAX(tile_column) AS maxx, MIN(tile_column) AS minx, ` +
		`MAX(tile_row) AS maxy, MIN(tile_row) AS miny FROM tiles WHERE zoom_level = ?`
)

var errNoTiles = errors.New("mbtiles: tiles table does not exist")

// Info 规范化的元数据
type Info struct {
	Basename string
	ID       string
	Filesize int64
	Scheme   string

	MinZoom *int
	MaxZoom *int
	// Bounds west, south, east, north
	Bounds *[4]float64
	// Center lon, lat, zoom
	Center *[3]float64

	// Extra metadata 表中其它键, 以及 json 行合并进来的值
	Extra map[string]any
}

// Clone 复制一份, Extra 不再共享
func (i Info) Clone() Info {
	i.Extra = maps.Clone(i.Extra)
	return i
}

// Has 键是否存在
func (i Info) Has(key string) bool {
	switch key {
	case "basename", "id", "filesize":
		return true
	case "scheme":
		return i.Scheme != ""
	case "minzoom":
		return i.MinZoom != nil
	case "maxzoom":
		return i.MaxZoom != nil
	case "bounds":
		return i.Bounds != nil
	case "center":
		return i.Center != nil
	}
	_, ok := i.Extra[key]
	return ok
}

// Map 展开成单一的键值表
func (i Info) Map() map[string]any {
	out := make(map[string]any, len(i.Extra)+8)
	for k, v := range i.Extra {
		out[k] = v
	}
	out["basename"] = i.Basename
	out["id"] = i.ID
	out["filesize"] = i.Filesize
	out["scheme"] = i.Scheme
	if i.MinZoom != nil {
		out["minzoom"] = *i.MinZoom
	}
	if i.MaxZoom != nil {
		out["maxzoom"] = *i.MaxZoom
	}
	if i.Bounds != nil {
		out["bounds"] = i.Bounds[:]
	}
	if i.Center != nil {
		out["center"] = i.Center[:]
	}
	return out
}

func (i Info) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.Map())
}

// setRow metadata 表中的一行, 直接覆盖
func (i *Info) setRow(name, value string) {
	switch name {
	case "minzoom", "maxzoom":
		z, ok := parseZoom(value)
		if !ok {
			return
		}
		if name == "minzoom" {
			i.MinZoom = &z
		} else {
			i.MaxZoom = &z
		}
	case "bounds":
		if f, ok := parseFloats(value, 4); ok {
			b := [4]float64{f[0], f[1], f[2], f[3]}
			i.Bounds = &b
		}
	case "center":
		if f, ok := parseFloats(value, 3); ok {
			c := [3]float64{f[0], f[1], f[2]}
			i.Center = &c
		}
	case "basename":
		i.Basename = value
	case "id":
		i.ID = value
	case "filesize":
		// 以文件实际大小为准
	case "scheme":
		i.Scheme = value
	default:
		if i.Extra == nil {
			i.Extra = make(map[string]any)
		}
		i.Extra[name] = value
	}
}

// mergeJSON json 行中的键只在 info 中不存在时生效
func (i *Info) mergeJSON(value string) error {
	var doc map[string]any
	if err := json.Unmarshal([]byte(value), &doc); err != nil {
		return err
	}
	for key, v := range doc {
		if i.Has(key) {
			continue
		}
		i.setJSON(key, v)
	}
	return nil
}

func (i *Info) setJSON(key string, v any) {
	switch key {
	case "minzoom", "maxzoom", "bounds", "center":
		if s, ok := jsonString(v); ok {
			i.setRow(key, s)
		}
	case "scheme":
		if s, ok := v.(string); ok {
			i.Scheme = s
		}
	default:
		if i.Extra == nil {
			i.Extra = make(map[string]any)
		}
		i.Extra[key] = v
	}
}

// jsonString 把 json 中的数字或数组还原成 metadata 行的文本格式
func jsonString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case []any:
		parts := make([]string, len(t))
		for n, e := range t {
			f, ok := e.(float64)
			if !ok {
				return "", false
			}
			parts[n] = strconv.FormatFloat(f, 'f', -1, 64)
		}
		return strings.Join(parts, ","), true
	}
	return "", false
}

func parseZoom(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if z, err := strconv.Atoi(s); err == nil {
		return z, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

func parseFloats(s string, n int) ([]float64, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, false
	}
	out := make([]float64, n)
	for k, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, false
		}
		out[k] = f
	}
	return out, true
}

// Info 返回规范化元数据, 首次成功后缓存, 同一句柄同时只计算一次
func (m *MBTiles) Info(ctx context.Context) (Info, error) {
	if info, ok := m.cachedInfo(); ok {
		return info.Clone(), nil
	}
	q, err := m.conn()
	if err != nil {
		return Info{}, err
	}

	v, err, _ := m.infoGroup.Do("info", func() (interface{}, error) {
		if info, ok := m.cachedInfo(); ok {
			return info, nil
		}
		info, err := m.loadInfo(ctx, q)
		if err != nil {
			return nil, err
		}
		m.infoMu.Lock()
		m.info = &info
		m.infoMu.Unlock()
		return info, nil
	})
	if err != nil {
		return Info{}, err
	}
	return v.(Info).Clone(), nil
}

func (m *MBTiles) cachedInfo() (Info, bool) {
	m.infoMu.RLock()
	defer m.infoMu.RUnlock()
	if m.info == nil {
		return Info{}, false
	}
	return *m.info, true
}

func (m *MBTiles) loadInfo(ctx context.Context, q querier) (Info, error) {
	base := filepath.Base(m.loc.Path)
	info := Info{
		Basename: base,
		ID:       strings.TrimSuffix(base, filepath.Ext(base)),
		Filesize: m.Stats().Size,
	}

	err := each(ctx, q, func(rows *sql.Rows) error {
		var name, value sql.NullString
		if err := rows.Scan(&name, &value); err != nil {
			return err
		}
		if !name.Valid {
			return nil
		}
		if name.String == "json" {
			if err := info.mergeJSON(value.String); err != nil {
				m.log.Warnf("metadata json is invalid, details: %s", err)
			}
			return nil
		}
		info.setRow(name.String, value.String)
		return nil
	}, sqlMetadata)
	if err != nil && !isMissingTable(err) {
		return Info{}, err
	}

	// 即使 metadata 中写的是 tms 也统一为 xyz
	info.Scheme = SchemeXYZ

	if info, err = m.ensureZooms(ctx, q, info); err != nil {
		return Info{}, err
	}
	if info, err = m.ensureBounds(ctx, q, info); err != nil {
		return Info{}, err
	}
	return ensureCenter(info), nil
}

// ensureZooms 并发探测每一级是否有瓦片
func (m *MBTiles) ensureZooms(ctx context.Context, q querier, info Info) (Info, error) {
	if info.MinZoom != nil && info.MaxZoom != nil {
		return info, nil
	}
	m.log.Debugf("probing zoom levels 0-%d", zoomProbes-1)

	var found [zoomProbes]bool
	g, gctx := errgroup.WithContext(ctx)
	for z := 0; z < zoomProbes; z++ {
		z := z
		g.Go(func() error {
			var level int
			err := q.QueryRowContext(gctx, sqlProbeZoom, z).Scan(&level)
			switch {
			case err == nil:
				found[z] = true
			case errors.Is(err, sql.ErrNoRows):
			case isMissingTable(err):
				return errNoTiles
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, errNoTiles) {
			return info, nil
		}
		return info, err
	}

	var zooms []int
	for z, ok := range found {
		if ok {
			zooms = append(zooms, z)
		}
	}
	if len(zooms) == 0 {
		return info, nil
	}
	if info.MinZoom == nil {
		minzoom := zooms[0]
		info.MinZoom = &minzoom
	}
	if info.MaxZoom == nil {
		maxzoom := zooms[len(zooms)-1]
		info.MaxZoom = &maxzoom
	}
	return info, nil
}

// ensureBounds 由最小级别的行列极值推算范围
func (m *MBTiles) ensureBounds(ctx context.Context, q querier, info Info) (Info, error) {
	if info.Bounds != nil || info.MinZoom == nil {
		return info, nil
	}
	z := *info.MinZoom

	var maxx, minx, maxy, miny sql.NullInt64
	err := q.QueryRowContext(ctx, sqlTileExtent, z).Scan(&maxx, &minx, &maxy, &miny)
	switch {
	case errors.Is(err, sql.ErrNoRows), isMissingTable(err):
		return info, nil
	case err != nil:
		return info, err
	}
	if !maxx.Valid || !minx.Valid || !maxy.Valid || !miny.Valid {
		return info, nil
	}

	ur := geo.TileBound(int(maxx.Int64), int(maxy.Int64), z, true)
	ll := geo.TileBound(int(minx.Int64), int(miny.Int64), z, true)
	// 部分瓦片集带有越界的行列号, 范围限制在合理区间内
	bounds := [4]float64{
		math.Max(ll.Min[0], -180),
		math.Max(ll.Min[1], -90),
		math.Min(ur.Max[0], 180),
		math.Min(ur.Max[1], 90),
	}
	info.Bounds = &bounds
	m.log.Debugf("bounds inferred from zoom %d: %v", z, bounds)
	return info, nil
}

// ensureCenter 范围中心, 级别取中间级
func ensureCenter(info Info) Info {
	if info.Center != nil || info.Bounds == nil || info.MinZoom == nil || info.MaxZoom == nil {
		return info
	}
	b := info.Bounds
	minzoom, maxzoom := *info.MinZoom, *info.MaxZoom

	zoom := maxzoom
	if r := maxzoom - minzoom; r > 1 {
		zoom = int(math.Floor(float64(r)*0.5)) + minzoom
	}
	center := [3]float64{
		(b[2]-b[0])/2 + b[0],
		(b[3]-b[1])/2 + b[1],
		float64(zoom),
	}
	info.Center = &center
	return info
}
