package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/paulmach/orb/maptile"
)

// BreakPoint 导出断点记录, 每行一个 z-x-y
type BreakPoint struct {
	file       *os.File
	saveChan   chan maptile.Tile
	successMap map[string]struct{}
	done       chan struct{}
	mu         sync.RWMutex
	isClose    bool
}

// NewBreakPoint 打开(或创建)断点文件并读取已完成的瓦片
func NewBreakPoint(dir, name string, bufSize int) (*BreakPoint, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, err
	}
	filename := filepath.Join(dir, fmt.Sprintf("%s.log", name))
	file, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("break point file open is error: %w", err)
	}

	// 获取断点记录
	successMap, err := getBackPoint(file)
	if err != nil {
		file.Close()
		return nil, err
	}

	b := &BreakPoint{
		file:       file,
		saveChan:   make(chan maptile.Tile, bufSize),
		successMap: successMap,
		done:       make(chan struct{}),
	}
	// 开始断点任务
	go b.Start()
	return b, nil
}

// 初始化断点文件
func getBackPoint(r io.Reader) (map[string]struct{}, error) {
	res := make(map[string]struct{})

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		res[line] = struct{}{}
	}
	return res, sc.Err()
}

func tileKey(tile maptile.Tile) string {
	return fmt.Sprintf("%d-%d-%d", tile.Z, tile.X, tile.Y)
}

// Len 已完成的瓦片数
func (b *BreakPoint) Len() int {
	return len(b.successMap)
}

func (b *BreakPoint) IsSuccessed(tile maptile.Tile) bool {
	_, ok := b.successMap[tileKey(tile)]
	return ok
}

func (b *BreakPoint) SetSuccessed(tile maptile.Tile) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.isClose {
		return
	}
	b.saveChan <- tile
}

func (b *BreakPoint) Start() {
	defer close(b.done)
	w := bufio.NewWriter(b.file)
	for tile := range b.saveChan {
		w.WriteString(tileKey(tile) + "\n")
		if len(b.saveChan) == 0 {
			w.Flush()
		}
	}
	w.Flush()
}

// Close 写完剩余记录后关闭文件, 可重复调用
func (b *BreakPoint) Close() error {
	b.mu.Lock()
	if b.isClose {
		b.mu.Unlock()
		return nil
	}
	b.isClose = true
	close(b.saveChan)
	b.mu.Unlock()

	<-b.done
	return b.file.Close()
}

// Remove 导出完成后删除断点文件
func (b *BreakPoint) Remove() error {
	if err := b.Close(); err != nil {
		return err
	}
	return os.Remove(b.file.Name())
}
