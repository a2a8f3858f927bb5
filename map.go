package main

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb/maptile"

	"mbtiler/tiletype"
)

// DefaultPattern 默认导出路径模板
const DefaultPattern = "{z}/{x}/{y}.{ext}"

// TilePath 导出路径模板
type TilePath struct {
	Root    string
	Pattern string
}

// GetTilePath 获取瓦片文件路径
func (p *TilePath) GetTilePath(t maptile.Tile, format string) string {
	pattern := p.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	path := strings.Replace(pattern, "{x}", strconv.Itoa(int(t.X)), -1)
	path = strings.Replace(path, "{y}", strconv.Itoa(int(t.Y)), -1)
	path = strings.Replace(path, "{z}", strconv.Itoa(int(t.Z)), -1)
	path = strings.Replace(path, "{ext}", tiletype.Extension(format), -1)
	return filepath.Join(p.Root, filepath.FromSlash(path))
}
