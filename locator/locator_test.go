package locator

import (
	"errors"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantPath  string
		wantMode  Mode
		wantBatch int
	}{
		{
			name:      "defaults",
			raw:       "mbtiles:///data/world.mbtiles",
			wantPath:  "/data/world.mbtiles",
			wantMode:  ReadWriteCreate,
			wantBatch: 100,
		},
		{
			name:      "read only",
			raw:       "mbtiles:///data/world.mbtiles?mode=ro",
			wantPath:  "/data/world.mbtiles",
			wantMode:  ReadOnly,
			wantBatch: 100,
		},
		{
			name:      "read write with batch",
			raw:       "mbtiles:///data/world.mbtiles?mode=rw&batch=20",
			wantPath:  "/data/world.mbtiles",
			wantMode:  ReadWrite,
			wantBatch: 20,
		},
		{
			name:      "percent encoded path",
			raw:       "mbtiles:///data/my%20tiles.mbtiles",
			wantPath:  "/data/my tiles.mbtiles",
			wantMode:  ReadWriteCreate,
			wantBatch: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if loc.Path != filepath.FromSlash(tt.wantPath) {
				t.Errorf("path = %q, want %q", loc.Path, tt.wantPath)
			}
			if loc.Mode != tt.wantMode {
				t.Errorf("mode = %v, want %v", loc.Mode, tt.wantMode)
			}
			if loc.Batch != tt.wantBatch {
				t.Errorf("batch = %d, want %d", loc.Batch, tt.wantBatch)
			}
		})
	}
}

func TestParseKeepsExtraQuery(t *testing.T) {
	loc, err := Parse("mbtiles:///data/world.mbtiles?foo=bar")
	if err != nil {
		t.Fatal(err)
	}
	if got := loc.Query.Get("foo"); got != "bar" {
		t.Errorf("foo = %q, want bar", got)
	}
	if got := loc.Query.Get("mode"); got != "rwc" {
		t.Errorf("mode = %q, want rwc", got)
	}
}

func TestParseRelativePath(t *testing.T) {
	loc, err := Parse("mbtiles:tiles/world.mbtiles")
	if err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(loc.Path) {
		t.Errorf("path %q should be absolute", loc.Path)
	}
	if !strings.HasSuffix(loc.Path, filepath.Join("tiles", "world.mbtiles")) {
		t.Errorf("unexpected path %q", loc.Path)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"missing path", "mbtiles://", ErrInvalidLocator},
		{"bad mode", "mbtiles:///data/world.mbtiles?mode=wr", ErrInvalidMode},
		{"empty mode", "mbtiles:///data/world.mbtiles?mode=", ErrInvalidMode},
		{"bad batch", "mbtiles:///data/world.mbtiles?batch=many", ErrInvalidLocator},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseMissingPathMentionsLocator(t *testing.T) {
	_, err := Parse("mbtiles://")
	if err == nil || !strings.Contains(err.Error(), "mbtiles://") {
		t.Fatalf("error %v should include the locator", err)
	}
}

func TestFromURL(t *testing.T) {
	u := &url.URL{Scheme: Scheme, Path: "/data/world.mbtiles", RawQuery: "mode=ro"}
	loc, err := FromURL(u)
	if err != nil {
		t.Fatal(err)
	}
	if loc.Mode != ReadOnly {
		t.Errorf("mode = %v, want ro", loc.Mode)
	}
	if _, err := FromURL(&url.URL{Scheme: Scheme}); !errors.Is(err, ErrInvalidLocator) {
		t.Errorf("got %v, want ErrInvalidLocator", err)
	}
}

func TestModeFlags(t *testing.T) {
	if ReadOnly.Writable() {
		t.Error("ro should not be writable")
	}
	if !ReadWrite.Writable() || ReadWrite&OpenCreate != 0 {
		t.Error("rw should be writable without create")
	}
	if ReadWriteCreate&OpenCreate == 0 {
		t.Error("rwc should carry the create flag")
	}
	for _, s := range []string{"ro", "rw", "rwc"} {
		m, err := ParseMode(s)
		if err != nil {
			t.Fatal(err)
		}
		if m.String() != s {
			t.Errorf("round trip %q -> %q", s, m.String())
		}
	}
}

func TestLocatorString(t *testing.T) {
	loc, err := Parse("mbtiles:///data/world.mbtiles?mode=ro")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := loc.String(), "mbtiles:///data/world.mbtiles?batch=100&mode=ro"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestLocatorURIRoundTrip(t *testing.T) {
	l := &Locator{Path: "/data/my tiles.mbtiles"}
	uri := l.URI()
	if uri != "mbtiles:///data/my%20tiles.mbtiles" {
		t.Fatalf("URI() = %q", uri)
	}
	back, err := Parse(uri)
	if err != nil {
		t.Fatal(err)
	}
	if back.Path != l.Path {
		t.Errorf("path = %q, want %q", back.Path, l.Path)
	}
}
