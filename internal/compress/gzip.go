/**
 * internal/compress/gzip.go
 * 确定性 GZIP 压缩模块
 *
 * 功能：
 * - 最高压缩级别
 * - 头部 MTIME 固定为 0，文件名字段为源文件名
 * - 相同输入始终产出字节一致的 .gz（可复现构建）
 *
 * 依赖：
 * - github.com/klauspost/compress/gzip
 */

package compress

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
)

// ====================  常量定义 ====================

const (
	// GzipSuffix 压缩产物后缀
	GzipSuffix = ".gz"

	// gzipLevel GZIP 压缩级别
	gzipLevel = gzip.BestCompression

	filePerm = 0644
)

// ====================  GZIP 压缩 ====================

// Gzip 以确定性参数压缩 content，name 写入头部文件名字段
func Gzip(content []byte, name string) ([]byte, error) {
	var buf bytes.Buffer

	zw, err := gzip.NewWriterLevel(&buf, gzipLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}

	zw.Name = name
	zw.ModTime = time.Time{} // 零值写入 MTIME=0

	if _, err := zw.Write(content); err != nil {
		_ = zw.Close()
		return nil, fmt.Errorf("failed to write compressed data: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}

	return buf.Bytes(), nil
}

// GzipFile 压缩 content 并写入 path + ".gz"
// 返回压缩后大小，失败时清理不完整的产物
func GzipFile(content []byte, path string) (int64, error) {
	compressed, err := Gzip(content, filepath.Base(path))
	if err != nil {
		return 0, err
	}

	gzPath := path + GzipSuffix
	if err := os.WriteFile(gzPath, compressed, filePerm); err != nil {
		removePartial(gzPath)
		return 0, fmt.Errorf("failed to write %s: %w", filepath.Base(gzPath), err)
	}

	return int64(len(compressed)), nil
}

// removePartial 删除写入失败的产物（仅普通文件）
func removePartial(path string) {
	if info, err := os.Lstat(path); err == nil && info.Mode().IsRegular() {
		_ = os.Remove(path)
	}
}
