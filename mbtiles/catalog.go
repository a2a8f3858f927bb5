package mbtiles

import (
	"os"
	"path/filepath"
	"regexp"

	"mbtiler/locator"
)

// Ext 瓦片库文件扩展名
const Ext = ".mbtiles"

var fileRe = regexp.MustCompile(`^([\w-]+)\.mbtiles$`)

func fileLocator(path string) string {
	return (&locator.Locator{Path: path}).URI()
}

// List 列出目录下的瓦片库, id -> mbtiles:// 地址
func List(dir string) (map[string]string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, err
	}
	result := make(map[string]string)
	for _, e := range entries {
		name := fileRe.FindStringSubmatch(e.Name())
		if name == nil || e.IsDir() {
			continue
		}
		result[name[1]] = fileLocator(filepath.Join(abs, name[0]))
	}
	return result, nil
}

// FindID 按 id 查找瓦片库, 文件不存在时返回 os.Stat 的错误
func FindID(dir, id string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	file := filepath.Join(abs, id+Ext)
	if _, err := os.Stat(file); err != nil {
		return "", err
	}
	return fileLocator(file), nil
}
