/**
 * internal/mirror/mirror.go
 * 源目录同步模块
 *
 * 功能：
 * - 递归复制源目录到目标目录（保持相对路径）
 * - 保留文件权限与修改时间
 * - 支持排除模式（doublestar 语法）
 * - 不删除目标目录中的多余文件
 *
 * 依赖：
 * - github.com/bmatcuk/doublestar/v4
 */

package mirror

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"webbuild/internal/utils"

	"github.com/bmatcuk/doublestar/v4"
)

// ====================  常量定义 ====================

const (
	dirPerm = 0755
)

// ====================  类型定义 ====================

// Options 同步选项
type Options struct {
	// Exclude 排除模式，匹配相对源目录的斜杠路径，如 "**/*.map"
	Exclude []string
}

// Result 同步结果
type Result struct {
	// Files 已复制文件的相对路径（斜杠分隔，按遍历顺序）
	Files []string
	// Skipped 因排除模式跳过的文件数
	Skipped int
	// Failed 复制失败的文件（相对路径），失败不中断同步
	Failed []string
	// Bytes 复制的总字节数
	Bytes int64
	// SourceMissing 源目录不存在
	SourceMissing bool
}

// Copied 返回复制的文件数
func (r Result) Copied() int {
	return len(r.Files)
}

// ====================  同步 ====================

// Sync 将 src 目录树镜像到 dst
// src 不存在时返回空结果且不报错
func Sync(src, dst string, opts Options) (Result, error) {
	var res Result

	utils.LogDebugf("[SYNC] Checking source directory: %s", src)
	info, err := os.Stat(src)
	if err != nil || !info.IsDir() {
		utils.LogPrintf("[SYNC] source dir not found: %s (skip)", src)
		res.SourceMissing = true
		return res, nil
	}

	for _, pattern := range opts.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return res, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}

	absDst, err := filepath.Abs(dst)
	if err != nil {
		return res, fmt.Errorf("failed to resolve %s: %w", dst, err)
	}

	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		out := filepath.Join(dst, rel)

		if d.IsDir() {
			// 输出目录位于源目录内时不能同步进自身
			if abs, err := filepath.Abs(path); err == nil && abs == absDst {
				utils.LogPrintf("[SYNC] WARN: skipping output dir %s inside source", path)
				return filepath.SkipDir
			}
			if err := os.MkdirAll(out, dirPerm); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", out, err)
			}
			return nil
		}

		relSlash := filepath.ToSlash(rel)
		if excluded(relSlash, opts.Exclude) {
			utils.LogDebugf("[SYNC] excluded %s", relSlash)
			res.Skipped++
			return nil
		}

		n, err := CopyFile(path, out)
		if err != nil {
			utils.LogPrintf("[SYNC] ERROR: %s: %v", relSlash, err)
			res.Failed = append(res.Failed, relSlash)
			return nil
		}

		res.Files = append(res.Files, relSlash)
		res.Bytes += n
		utils.LogPrintf("[SYNC] %s  ->  %s", path, out)
		return nil
	})
	if err != nil {
		return res, err
	}

	return res, nil
}

// excluded 判断相对路径是否命中任一排除模式
func excluded(rel string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// ====================  文件复制 ====================

// CopyFile 复制文件内容，并保留权限与修改时间
// 返回写入的字节数
func CopyFile(src, dst string) (int64, error) {
	srcFile, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("failed to open source: %w", err)
	}
	defer func() { _ = srcFile.Close() }()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat source: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), dirPerm); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, srcInfo.Mode().Perm())
	if err != nil {
		return 0, fmt.Errorf("failed to create destination: %w", err)
	}

	written, err := io.Copy(dstFile, srcFile)
	if err != nil {
		_ = dstFile.Close()
		return written, fmt.Errorf("failed to copy: %w", err)
	}

	if err := dstFile.Close(); err != nil {
		return written, fmt.Errorf("failed to close destination: %w", err)
	}

	// 已存在的目标文件不会被 OpenFile 更新权限
	if err := os.Chmod(dst, srcInfo.Mode().Perm()); err != nil {
		return written, fmt.Errorf("failed to chmod destination: %w", err)
	}

	mtime := srcInfo.ModTime()
	if err := os.Chtimes(dst, mtime, mtime); err != nil {
		return written, fmt.Errorf("failed to preserve times: %w", err)
	}

	return written, nil
}
