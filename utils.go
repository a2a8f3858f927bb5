package main

import (
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"mbtiler/mbtiles"
	"mbtiler/tiletype"
)

func saveToFiles(tile *mbtiles.Tile, p *TilePath) error {
	fileName := p.GetTilePath(tile.T, tiletype.Detect(tile.C))
	if err := os.MkdirAll(filepath.Dir(fileName), os.ModePerm); err != nil {
		return err
	}
	return os.WriteFile(fileName, tile.C, 0o644)
}

// loadCollection 读取 geojson 作为导出范围
func loadCollection(path string) (orb.Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, err
	}

	var collection orb.Collection
	for _, f := range fc.Features {
		collection = append(collection, f.Geometry)
	}

	return collection, nil
}
