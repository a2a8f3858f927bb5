package mbtiles

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"mbtiler/geo"
)

func tileFixture(t *testing.T) *MBTiles {
	t.Helper()
	path := fixture{tiles: []fixtureTile{
		// XYZ 2/1/0 存在 TMS 第 3 行
		{z: 2, x: 1, row: 3, data: pngTile},
		{z: 2, x: 2, row: 0, data: []byte{0x1F, 0x8B, 0x08, 0x00}},
		{z: 3, x: 0, row: 0, data: nil},
		{z: 3, x: 1, row: 0, data: []byte{}},
		{z: 3, x: 2, row: 0, data: 42},
	}}.create(t, "tiles.mbtiles")
	return open(t, path)
}

func TestGetTileFlipsRow(t *testing.T) {
	m := tileFixture(t)
	ctx := context.Background()

	tile, err := m.GetTile(ctx, 1, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if string(tile.C) != string(pngTile) {
		t.Errorf("unexpected tile data %v", tile.C)
	}
	if tile.T.X != 1 || tile.T.Y != 0 || tile.T.Z != 2 {
		t.Errorf("tile coordinates = %v", tile.T)
	}

	// 不翻转的行号不存在
	if _, err := m.GetTile(ctx, 1, 3, 2); !errors.Is(err, ErrTileNotFound) {
		t.Errorf("unflipped row: got %v, want ErrTileNotFound", err)
	}

	pbf, err := m.GetTile(ctx, 2, geo.FlipY(2, 0), 2)
	if err != nil {
		t.Fatal(err)
	}
	if pbf.Headers["Content-Type"] != "application/x-protobuf" || pbf.Headers["Content-Encoding"] != "gzip" {
		t.Errorf("pbf headers = %v", pbf.Headers)
	}
}

func TestGetTileHeaders(t *testing.T) {
	m := tileFixture(t)
	ctx := context.Background()
	stats := m.Stats()

	first, err := m.GetTile(ctx, 1, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if first.Headers["Content-Type"] != "image/png" {
		t.Errorf("Content-Type = %q", first.Headers["Content-Type"])
	}

	wantETag := fmt.Sprintf("%d-%d", stats.Size, stats.ModTime.UnixMilli())
	if first.Headers["ETag"] != wantETag {
		t.Errorf("ETag = %q, want %q", first.Headers["ETag"], wantETag)
	}

	lm, err := http.ParseTime(first.Headers["Last-Modified"])
	if err != nil {
		t.Fatalf("Last-Modified %q: %v", first.Headers["Last-Modified"], err)
	}
	if !lm.Equal(stats.ModTime.UTC().Truncate(time.Second)) {
		t.Errorf("Last-Modified = %v, want %v", lm, stats.ModTime)
	}

	second, err := m.GetTile(ctx, 1, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if second.Headers["ETag"] != first.Headers["ETag"] {
		t.Errorf("ETag changed between calls: %q vs %q", first.Headers["ETag"], second.Headers["ETag"])
	}
}

func TestGetTileErrors(t *testing.T) {
	m := tileFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		x, y, z int
		want    error
	}{
		{"missing row", 9, 9, 5, ErrTileNotFound},
		{"negative zoom", 0, 0, -1, ErrTileNotFound},
		{"zoom too deep", 0, 0, MaxZoom + 1, ErrTileNotFound},
		{"null data", 0, geo.FlipY(3, 0), 3, ErrInvalidTile},
		{"empty blob", 1, geo.FlipY(3, 0), 3, ErrInvalidTile},
		{"integer data", 2, geo.FlipY(3, 0), 3, ErrInvalidTile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.GetTile(ctx, tt.x, tt.y, tt.z)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if tt.want != ErrInvalidTile {
				return
			}
			var ite *InvalidTileError
			if !errors.As(err, &ite) {
				t.Fatalf("got %T, want *InvalidTileError", err)
			}
			if ite.Code() != "EINVALIDTILE" {
				t.Errorf("code = %q", ite.Code())
			}
		})
	}
}

func TestGetTileMissingTable(t *testing.T) {
	m := open(t, fixture{noTilesTable: true}.create(t, "notiles.mbtiles"))
	if _, err := m.GetTile(context.Background(), 0, 0, 0); !errors.Is(err, ErrTileNotFound) {
		t.Errorf("got %v, want ErrTileNotFound", err)
	}
	n, err := m.CountTiles(context.Background())
	if err != nil || n != 0 {
		t.Errorf("CountTiles = %d, %v", n, err)
	}
	if err := m.EachTile(context.Background(), func(*Tile) error {
		t.Error("no tile expected")
		return nil
	}); err != nil {
		t.Errorf("EachTile: %v", err)
	}
}

func TestWithSniffer(t *testing.T) {
	path := fixture{tiles: []fixtureTile{{z: 0, x: 0, row: 0, data: []byte("custom")}}}.create(t, "sniff.mbtiles")
	m := open(t, path, WithSniffer(func(b []byte) map[string]string {
		return map[string]string{"Content-Type": "text/plain", "ETag": "overridden"}
	}))

	tile, err := m.GetTile(context.Background(), 0, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if tile.Headers["Content-Type"] != "text/plain" {
		t.Errorf("Content-Type = %q", tile.Headers["Content-Type"])
	}
	if tile.Headers["ETag"] == "overridden" {
		t.Error("ETag should come from the file stats")
	}
}

func TestEachTile(t *testing.T) {
	m := tileFixture(t)
	ctx := context.Background()

	n, err := m.CountTiles(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Errorf("CountTiles = %d, want 5", n)
	}

	var got []string
	err = m.EachTile(ctx, func(tile *Tile) error {
		got = append(got, fmt.Sprintf("%d/%d/%d", tile.T.Z, tile.T.X, tile.T.Y))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	// 非法瓦片被跳过, 行号转换为 XYZ
	want := map[string]bool{"2/1/0": true, "2/2/3": true}
	if len(got) != len(want) {
		t.Fatalf("tiles = %v", got)
	}
	for _, k := range got {
		if !want[k] {
			t.Errorf("unexpected tile %s", k)
		}
	}

	stop := errors.New("stop")
	if err := m.EachTile(ctx, func(*Tile) error { return stop }); !errors.Is(err, stop) {
		t.Errorf("callback error should be returned, got %v", err)
	}
}
