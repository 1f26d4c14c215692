/**
 * internal/compress/brotli.go
 * Brotli 预压缩模块（可选）
 *
 * 功能：
 * - 与 .gz 并列生成 .br，供支持 br 的服务端直接使用
 *
 * 依赖：
 * - github.com/andybalholm/brotli
 */

package compress

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/andybalholm/brotli"
)

const (
	// BrotliSuffix Brotli 产物后缀
	BrotliSuffix = ".br"

	// brotliLevel Brotli 压缩级别
	brotliLevel = brotli.BestCompression
)

// Brotli 使用最高级别压缩 content
func Brotli(content []byte) ([]byte, error) {
	var buf bytes.Buffer

	bw := brotli.NewWriterLevel(&buf, brotliLevel)
	if _, err := bw.Write(content); err != nil {
		_ = bw.Close()
		return nil, fmt.Errorf("failed to write compressed data: %w", err)
	}

	if err := bw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close brotli writer: %w", err)
	}

	return buf.Bytes(), nil
}

// BrotliFile 压缩 content 并写入 path + ".br"，返回压缩后大小
func BrotliFile(content []byte, path string) (int64, error) {
	compressed, err := Brotli(content)
	if err != nil {
		return 0, err
	}

	brPath := path + BrotliSuffix
	if err := os.WriteFile(brPath, compressed, filePerm); err != nil {
		removePartial(brPath)
		return 0, fmt.Errorf("failed to write %s: %w", filepath.Base(brPath), err)
	}

	return int64(len(compressed)), nil
}
