/**
 * internal/pipeline/manifest.go
 * 构建清单
 *
 * 功能：
 * - 记录每个资源的大小与产物哈希（sha256 前 8 位）
 * - 不含时间戳，相同输入产出相同清单，便于上游缓存比对
 */

package pipeline

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"webbuild/internal/compress"
)

const filePerm = 0644

// ManifestEntry 清单条目
type ManifestEntry struct {
	Kind     string `json:"kind"`
	Size     int64  `json:"size"`
	Minified int64  `json:"minified,omitempty"`
	Gzip     int64  `json:"gzip,omitempty"`
	Brotli   int64  `json:"brotli,omitempty"`
	Hash     string `json:"hash"` // 文本资源为 .gz 的哈希，二进制为文件本身的哈希
}

// Manifest 构建清单（键为相对路径）
type Manifest map[string]ManifestEntry

// BuildManifest 根据构建统计生成清单，失败的文件不计入
func BuildManifest(destDir string, report *Report) (Manifest, error) {
	m := make(Manifest, len(report.Files))

	for _, f := range report.Files {
		if !f.OK() {
			continue
		}

		target := filepath.Join(destDir, filepath.FromSlash(f.RelPath))
		if f.Kind.IsText() {
			target += compress.GzipSuffix
		}

		hash, err := hashFile(target)
		if err != nil {
			return nil, fmt.Errorf("failed to hash %s: %w", f.RelPath, err)
		}

		m[f.RelPath] = ManifestEntry{
			Kind:     f.Kind.String(),
			Size:     f.Original,
			Minified: f.Minified,
			Gzip:     f.Compressed,
			Brotli:   f.Brotli,
			Hash:     hash,
		}
	}

	return m, nil
}

// WriteManifest 生成清单并写入 path
func WriteManifest(path, destDir string, report *Report) error {
	m, err := BuildManifest(destDir, report)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("failed to create manifest dir: %w", err)
	}

	if err := os.WriteFile(path, data, filePerm); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	return nil
}

// hashFile 计算文件的 SHA256 哈希前 8 位
func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)[:8], nil
}
