package mbtiles

import (
	"errors"
	"fmt"
)

// CodeInvalidTile 非法瓦片错误码
const CodeInvalidTile = "EINVALIDTILE"

var (
	// ErrNotConnected 尚未 Connect
	ErrNotConnected = errors.New("mbtiles not yet loaded")
	// ErrTileNotFound 瓦片不存在, 或 tiles 表不存在
	ErrTileNotFound = errors.New("tile does not exist")
	// ErrInvalidTile 瓦片内容为空或不是二进制
	ErrInvalidTile = errors.New("tile is invalid")
)

// ConnectionError 打开数据库失败, 消息原样透传
type ConnectionError struct {
	Path string
	Err  error
}

func (e *ConnectionError) Error() string {
	return e.Err.Error()
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// InvalidTileError 瓦片记录存在但内容不可用
type InvalidTileError struct {
	Z, X, Y int
}

func (e *InvalidTileError) Error() string {
	return fmt.Sprintf("%s: %d/%d/%d", ErrInvalidTile, e.Z, e.X, e.Y)
}

// Code EINVALIDTILE
func (e *InvalidTileError) Code() string {
	return CodeInvalidTile
}

func (e *InvalidTileError) Unwrap() error {
	return ErrInvalidTile
}

// IsMissingTable 判断是否为表不存在错误
func IsMissingTable(err error) bool {
	return err != nil && isMissingTable(err)
}
