// Package geo 瓦片坐标与经纬度换算
package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// EarthRadius 地球平均半径(km)
const EarthRadius = 6371.0088

func degToRad(d float64) float64 {
	return d * (math.Pi / 180)
}

// TileToLon 瓦片列号转经度
func TileToLon(x int, z int) float64 {
	return float64(x)/math.Exp2(float64(z))*360.0 - 180.0
}

// TileToLat 瓦片行号(XYZ, 北向上)转纬度
func TileToLat(y int, z int) float64 {
	n := math.Pi - 2*math.Pi*float64(y)/math.Exp2(float64(z))
	return 180.0 / math.Pi * math.Atan(0.5*(math.Exp(n)-math.Exp(-n)))
}

// FlipY XYZ 与 TMS 行号互转
func FlipY(z int, y int) int {
	return (1 << uint(z)) - 1 - y
}

// TileBound 瓦片范围, tms 为 true 时 y 为南向上的行号
func TileBound(x, y, z int, tms bool) orb.Bound {
	if tms {
		y = FlipY(z, y)
	}
	return orb.Bound{
		Min: orb.Point{TileToLon(x, z), TileToLat(y+1, z)},
		Max: orb.Point{TileToLon(x+1, z), TileToLat(y, z)},
	}
}

// TileArea 瓦片面积(km²)
func TileArea(z, x, y int) float64 {
	left := degToRad(TileToLon(x, z))
	top := degToRad(TileToLat(y, z))
	right := degToRad(TileToLon(x+1, z))
	bottom := degToRad(TileToLat(y+1, z))
	return EarthRadius * EarthRadius * math.Abs(math.Sin(top)-math.Sin(bottom)) * math.Abs(left-right)
}
