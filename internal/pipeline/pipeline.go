/**
 * internal/pipeline/pipeline.go
 * Web 资源构建流水线
 *
 * 流程（每次完整执行，无增量）：
 * 1. 同步 web-src -> data/www
 * 2. 清理旧的 .gz / .br
 * 3. 逐个文本资源：压缩（minify）-> 回写 -> GZIP（可选 Brotli）
 * 4. 汇总统计
 *
 * 单文件失败只记录日志并跳过，不中断构建
 */

package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"webbuild/internal/asset"
	"webbuild/internal/compress"
	"webbuild/internal/config"
	"webbuild/internal/minify"
	"webbuild/internal/mirror"
	"webbuild/internal/utils"
)

// ====================  错误定义 ====================

// ErrNotUTF8 文本资源不是合法的 UTF-8
var ErrNotUTF8 = errors.New("not valid UTF-8 text")

const dirPerm = 0755

// ====================  流水线 ====================

// Pipeline 资源构建流水线
type Pipeline struct {
	cfg    *config.Config
	engine minify.Engine
}

// New 按配置创建流水线
func New(cfg *config.Config) (*Pipeline, error) {
	engine, err := minify.New(cfg.MinifyEngine)
	if err != nil {
		return nil, err
	}
	return NewWithEngine(cfg, engine), nil
}

// NewWithEngine 使用指定压缩引擎创建流水线
func NewWithEngine(cfg *config.Config, engine minify.Engine) *Pipeline {
	return &Pipeline{cfg: cfg, engine: engine}
}

// Run 执行一次完整构建
// 仅在输出目录无法创建或无法遍历时返回错误
func (p *Pipeline) Run() (*Report, error) {
	start := time.Now()
	src, dst := p.cfg.SourceDir, p.cfg.DestDir

	report := &Report{
		SourceDir: src,
		DestDir:   dst,
		Engine:    p.engine.Name(),
	}
	defer func() { report.Duration = time.Since(start) }()

	utils.LogPrintf("[BUILD] Starting web build: src=%s, dst=%s, engine=%s", src, dst, p.engine.Name())

	if err := os.MkdirAll(dst, dirPerm); err != nil {
		return report, fmt.Errorf("failed to create output dir %s: %w", dst, err)
	}

	// 1. 同步源目录
	synced, err := mirror.Sync(src, dst, mirror.Options{Exclude: p.cfg.Exclude})
	if err != nil {
		return report, fmt.Errorf("sync failed: %w", err)
	}
	report.Synced = synced.Copied()
	report.SyncFailed = synced.Failed

	if synced.SourceMissing {
		// 不清理也不重新生成，保留现有输出
		report.SourceMissing = true
		utils.LogPrintf("[BUILD] WARN: source dir %s not found, nothing to build", src)
		return report, nil
	}

	// 2. 清理旧压缩产物
	utils.LogPrintf("[CLEAN] cleaning old compressed artifacts...")
	removed, err := compress.Clean(dst, compress.GzipSuffix, compress.BrotliSuffix)
	if err != nil {
		utils.LogPrintf("[CLEAN] ERROR: %v", err)
	}
	report.Cleaned = removed

	// 3. 逐文件处理，只处理本次同步的文件，避免为已删除的源生成产物
	for _, rel := range synced.Files {
		if isArtifact(rel) {
			// 源目录中的 .gz / .br 已被清理步骤删除
			utils.LogPrintf("[BUILD] WARN: %s has an artifact suffix and was removed by clean (skip)", rel)
			continue
		}
		report.Files = append(report.Files, p.processFile(dst, rel))
	}

	// 4. 构建清单（可选）
	if p.cfg.ManifestPath != "" {
		if err := WriteManifest(p.cfg.ManifestPath, dst, report); err != nil {
			utils.LogPrintf("[BUILD] WARN: failed to write manifest: %v", err)
		} else {
			utils.LogPrintf("[BUILD] Manifest written: %s", p.cfg.ManifestPath)
		}
	}

	return report, nil
}

// OnPreAction 宿主构建系统在目标执行前调用
// 任何错误（包括 panic）只记录日志，不影响宿主构建
func (p *Pipeline) OnPreAction(target string) {
	defer func() {
		if r := recover(); r != nil {
			utils.LogPrintf("[HOOK] ERROR: web build panicked before %s: %v", target, r)
		}
	}()

	utils.LogPrintf("[HOOK] pre-action for %s", target)
	report, err := p.Run()
	if err != nil {
		utils.LogPrintf("[HOOK] ERROR: web build failed before %s: %v", target, err)
		return
	}
	report.Log()
}

// processFile 处理单个资源，panic 视为该文件失败
func (p *Pipeline) processFile(dst, rel string) (stat FileStat) {
	kind := asset.KindOf(rel)
	path := filepath.Join(dst, filepath.FromSlash(rel))

	defer func() {
		if r := recover(); r != nil {
			stat = FileStat{RelPath: rel, Kind: kind, Err: fmt.Errorf("panic: %v", r)}
			utils.LogPrintf("[BUILD] ERROR: %s: %v", rel, stat.Err)
		}
	}()

	if kind.IsText() {
		return p.processText(rel, kind, path)
	}
	return p.processBinary(rel, path)
}

// isArtifact 是否带有清理步骤删除的后缀
func isArtifact(rel string) bool {
	return strings.HasSuffix(rel, compress.GzipSuffix) || strings.HasSuffix(rel, compress.BrotliSuffix)
}

// processText 压缩并生成 .gz（可选 .br）
func (p *Pipeline) processText(rel string, kind asset.Kind, path string) FileStat {
	stat := FileStat{RelPath: rel, Kind: kind}

	fail := func(err error) FileStat {
		stat.Err = err
		utils.LogPrintf("[BUILD] ERROR: %s: %v", rel, err)
		return stat
	}

	info, err := os.Stat(path)
	if err != nil {
		return fail(fmt.Errorf("failed to stat: %w", err))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fail(fmt.Errorf("failed to read: %w", err))
	}
	if !utf8.Valid(data) {
		return fail(ErrNotUTF8)
	}
	stat.Original = int64(len(data))

	minified := []byte(p.engine.Minify(kind, string(data)))
	stat.Minified = int64(len(minified))

	if err := os.WriteFile(path, minified, info.Mode().Perm()); err != nil {
		return fail(fmt.Errorf("failed to write minified: %w", err))
	}
	mtime := info.ModTime()
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		utils.LogDebugf("[BUILD] WARN: failed to restore mtime of %s: %v", rel, err)
	}

	gzSize, err := compress.GzipFile(minified, path)
	if err != nil {
		return fail(err)
	}
	stat.Compressed = gzSize

	if p.cfg.Brotli {
		brSize, err := compress.BrotliFile(minified, path)
		if err != nil {
			return fail(err)
		}
		stat.Brotli = brSize
	}

	utils.LogPrintf("[GZIP] %s  %6d B -> %6d B -> %6d B (-%.1f%%)",
		rel, stat.Original, stat.Minified, stat.Compressed, stat.Ratio())
	return stat
}

// processBinary 二进制资源已由同步原样复制，这里只记录大小
func (p *Pipeline) processBinary(rel, path string) FileStat {
	stat := FileStat{RelPath: rel, Kind: asset.Binary}

	info, err := os.Stat(path)
	if err != nil {
		stat.Err = fmt.Errorf("failed to stat: %w", err)
		utils.LogPrintf("[BUILD] ERROR: %s: %v", rel, stat.Err)
		return stat
	}

	stat.Original = info.Size()
	utils.LogPrintf("[BUILD] %s (copied as-is, %s)", rel, utils.FormatBytes(stat.Original))
	return stat
}
