// Package tiletype 根据瓦片内容识别格式并生成响应头
package tiletype

import "bytes"

// Constants representing TileFormat types
const (
	GZIP string = "gzip" // encoding = gzip
	ZLIB        = "zlib" // encoding = deflate
	PNG         = "png"
	JPG         = "jpg"
	GIF         = "gif"
	PBF         = "pbf"
	WEBP        = "webp"
)

var (
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	jpgMagic  = []byte{0xFF, 0xD8, 0xFF}
	gifMagic  = []byte("GIF8")
	riffMagic = []byte("RIFF")
	webpMagic = []byte("WEBP")
)

// Encoding 返回压缩方式 GZIP / ZLIB, 未压缩为空
func Encoding(data []byte) string {
	if len(data) < 2 {
		return ""
	}
	switch {
	case data[0] == 0x1F && data[1] == 0x8B:
		return GZIP
	case data[0] == 0x78 && data[1] == 0x9C:
		return ZLIB
	}
	return ""
}

// Detect 识别瓦片格式, 无法识别返回空字符串
func Detect(data []byte) string {
	switch {
	case bytes.HasPrefix(data, pngMagic):
		return PNG
	case bytes.HasPrefix(data, jpgMagic):
		return JPG
	case bytes.HasPrefix(data, gifMagic) && len(data) > 5 && (data[4] == '7' || data[4] == '9') && data[5] == 'a':
		return GIF
	case bytes.HasPrefix(data, riffMagic) && len(data) >= 12 && bytes.Equal(data[8:12], webpMagic):
		return WEBP
	case Encoding(data) != "":
		return PBF
	case len(data) > 0 && data[0] == 0x1A:
		// 未压缩的矢量瓦片, 以 layers(3) 字段开头
		return PBF
	}
	return ""
}

// Headers 生成 Content-Type / Content-Encoding
func Headers(data []byte) map[string]string {
	headers := make(map[string]string)
	switch Detect(data) {
	case PNG:
		headers["Content-Type"] = "image/png"
	case JPG:
		headers["Content-Type"] = "image/jpeg"
	case GIF:
		headers["Content-Type"] = "image/gif"
	case WEBP:
		headers["Content-Type"] = "image/webp"
	case PBF:
		headers["Content-Type"] = "application/x-protobuf"
		switch Encoding(data) {
		case GZIP:
			headers["Content-Encoding"] = "gzip"
		case ZLIB:
			headers["Content-Encoding"] = "deflate"
		}
	}
	return headers
}

// Extension 文件扩展名, 未知格式返回 bin
func Extension(format string) string {
	switch format {
	case PNG, JPG, GIF, WEBP, PBF:
		return format
	}
	return "bin"
}
