// Package locator 解析 mbtiles:// 资源地址
package locator

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
)

// Scheme 默认协议
const Scheme = "mbtiles"

// 默认参数
const (
	DefaultBatch = 100
	DefaultMode  = "rwc"
)

var (
	// ErrInvalidLocator 地址缺少路径或参数非法
	ErrInvalidLocator = errors.New("invalid URI")
	// ErrInvalidMode 不支持的访问模式
	ErrInvalidMode = errors.New(`only supports "ro", "rw", or "rwc" mode`)
)

// SQLite open flags
const (
	OpenReadOnly  = 0x00000001
	OpenReadWrite = 0x00000002
	OpenCreate    = 0x00000004
)

// Mode 访问模式, 取值即 SQLite 打开标志
type Mode int

const (
	ReadOnly        Mode = OpenReadOnly
	ReadWrite       Mode = OpenReadWrite
	ReadWriteCreate Mode = OpenReadWrite | OpenCreate
)

// ParseMode ro / rw / rwc
func ParseMode(s string) (Mode, error) {
	switch s {
	case "ro":
		return ReadOnly, nil
	case "rw":
		return ReadWrite, nil
	case "rwc":
		return ReadWriteCreate, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

func (m Mode) String() string {
	switch m {
	case ReadOnly:
		return "ro"
	case ReadWrite:
		return "rw"
	case ReadWriteCreate:
		return "rwc"
	}
	return "Mode(" + strconv.Itoa(int(m)) + ")"
}

// Writable 是否可写
func (m Mode) Writable() bool {
	return m&OpenReadWrite != 0
}

// Locator 解析后的资源地址
type Locator struct {
	Path  string
	Mode  Mode
	Batch int
	// Query 保留全部查询参数(含默认值)
	Query url.Values
}

// Parse 解析字符串地址, 路径中的百分号编码会被解码
func Parse(raw string) (*Locator, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %s", ErrInvalidLocator, raw, err)
	}
	path := u.Path
	if path == "" && u.Opaque != "" {
		if path, err = url.PathUnescape(u.Opaque); err != nil {
			return nil, fmt.Errorf("%w %s: %s", ErrInvalidLocator, raw, err)
		}
	}
	return build(u, path, raw)
}

// FromURL 解析结构化地址
func FromURL(u *url.URL) (*Locator, error) {
	if u == nil {
		return nil, fmt.Errorf("%w <nil>", ErrInvalidLocator)
	}
	path := u.Path
	if path == "" {
		path = u.Opaque
	}
	return build(u, path, u.String())
}

func build(u *url.URL, path, display string) (*Locator, error) {
	if path == "" {
		return nil, fmt.Errorf("%w %s", ErrInvalidLocator, display)
	}

	query := url.Values{
		"batch": {strconv.Itoa(DefaultBatch)},
		"mode":  {DefaultMode},
	}
	for k, v := range u.Query() {
		query[k] = v
	}

	mode, err := ParseMode(query.Get("mode"))
	if err != nil {
		return nil, err
	}
	batch, err := strconv.Atoi(query.Get("batch"))
	if err != nil || batch <= 0 {
		return nil, fmt.Errorf("%w %s: batch must be a positive integer", ErrInvalidLocator, display)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %s", ErrInvalidLocator, display, err)
	}

	return &Locator{
		Path:  abs,
		Mode:  mode,
		Batch: batch,
		Query: query,
	}, nil
}

// URI mbtiles://<path>, 不带参数
func (l *Locator) URI() string {
	u := url.URL{Scheme: Scheme, Path: filepath.ToSlash(l.Path)}
	return u.String()
}

// String mbtiles://<path>?batch=..&mode=..
func (l *Locator) String() string {
	u := url.URL{
		Scheme:   Scheme,
		Path:     filepath.ToSlash(l.Path),
		RawQuery: l.Query.Encode(),
	}
	return u.String()
}
