/**
 * internal/pipeline/report.go
 * 构建统计与汇总输出
 */

package pipeline

import (
	"time"

	"webbuild/internal/asset"
	"webbuild/internal/utils"
)

// FileStat 单个资源的处理结果
type FileStat struct {
	RelPath    string
	Kind       asset.Kind
	Original   int64 // 源文件大小
	Minified   int64 // 压缩（minify）后大小，二进制为 0
	Compressed int64 // .gz 大小，二进制为 0
	Brotli     int64 // .br 大小，未启用为 0
	Err        error
}

// Ratio 相对原始大小的 GZIP 收益百分比
func (s FileStat) Ratio() float64 {
	return utils.ReductionPercent(s.Original, s.Compressed)
}

// OK 是否处理成功
func (s FileStat) OK() bool {
	return s.Err == nil
}

// Report 一次构建的统计信息
type Report struct {
	SourceDir     string
	DestDir       string
	Engine        string
	SourceMissing bool

	Synced     int      // 同步复制的文件数
	SyncFailed []string // 同步失败的文件
	Cleaned    int      // 清理的旧产物数

	Files    []FileStat
	Duration time.Duration
}

// Processed 成功处理的文件数（文本 + 二进制）
func (r *Report) Processed() int {
	n := 0
	for _, f := range r.Files {
		if f.OK() {
			n++
		}
	}
	return n
}

// Gzipped 成功生成 .gz 的文件数
func (r *Report) Gzipped() int {
	n := 0
	for _, f := range r.Files {
		if f.OK() && f.Kind.IsText() {
			n++
		}
	}
	return n
}

// Failed 处理失败的文件数（含同步失败）
func (r *Report) Failed() int {
	n := len(r.SyncFailed)
	for _, f := range r.Files {
		if !f.OK() {
			n++
		}
	}
	return n
}

// TotalOriginal 成功压缩的文本资源原始总大小
func (r *Report) TotalOriginal() int64 {
	var total int64
	for _, f := range r.Files {
		if f.OK() && f.Kind.IsText() {
			total += f.Original
		}
	}
	return total
}

// TotalMinified 成功压缩的文本资源 minify 后总大小
func (r *Report) TotalMinified() int64 {
	var total int64
	for _, f := range r.Files {
		if f.OK() && f.Kind.IsText() {
			total += f.Minified
		}
	}
	return total
}

// TotalCompressed 成功压缩的文本资源 .gz 总大小
func (r *Report) TotalCompressed() int64 {
	var total int64
	for _, f := range r.Files {
		if f.OK() && f.Kind.IsText() {
			total += f.Compressed
		}
	}
	return total
}

// Ratio 总体 GZIP 收益百分比
func (r *Report) Ratio() float64 {
	return utils.ReductionPercent(r.TotalOriginal(), r.TotalCompressed())
}

// Log 输出汇总信息
func (r *Report) Log() {
	utils.LogPrintf("[BUILD] ------------------------------------------------------------")
	switch {
	case r.SourceMissing:
		utils.LogPrintf("[BUILD] 0 files processed (source dir %s not found)", r.SourceDir)
	case r.TotalOriginal() > 0:
		utils.LogPrintf("[BUILD] Web build done: %d files processed, %d gzipped, %d failed",
			r.Processed(), r.Gzipped(), r.Failed())
		utils.LogPrintf("[BUILD]   original:   %s", utils.FormatBytes(r.TotalOriginal()))
		utils.LogPrintf("[BUILD]   minified:   %s", utils.FormatBytes(r.TotalMinified()))
		utils.LogPrintf("[BUILD]   compressed: %s", utils.FormatBytes(r.TotalCompressed()))
		utils.LogPrintf("[BUILD]   saved:      %.1f%%", r.Ratio())
		utils.LogPrintf("[BUILD]   output:     %s", r.DestDir)
	default:
		utils.LogPrintf("[BUILD] %d files copied, %d failed", r.Processed(), r.Failed())
	}
	utils.LogPrintf("[BUILD] synced %d file(s), cleaned %d artifact(s), took %dms",
		r.Synced, r.Cleaned, r.Duration.Milliseconds())
	utils.LogPrintf("[BUILD] ------------------------------------------------------------")
}
