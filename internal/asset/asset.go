/**
 * internal/asset/asset.go
 * Web 资源类型定义
 *
 * 功能：
 * - 按扩展名推断资源类型（markup / stylesheet / script / binary）
 * - 提供 Content-Type 映射（用于发布）
 */

package asset

import (
	"path/filepath"
	"strings"
)

// Kind 资源类型
type Kind int

const (
	// Binary 二进制或未知类型，原样复制
	Binary Kind = iota
	// Markup HTML
	Markup
	// Stylesheet CSS
	Stylesheet
	// Script JavaScript
	Script
)

// kindByExt 扩展名到资源类型的映射（小写）
var kindByExt = map[string]Kind{
	".html": Markup,
	".htm":  Markup,
	".css":  Stylesheet,
	".js":   Script,
	".mjs":  Script,
}

// contentTypeMap 文本资源的 Content-Type
var contentTypeMap = map[Kind]string{
	Markup:     "text/html; charset=utf-8",
	Stylesheet: "text/css; charset=utf-8",
	Script:     "application/javascript; charset=utf-8",
}

// KindOf 根据文件扩展名推断资源类型
func KindOf(path string) Kind {
	if k, ok := kindByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return k
	}
	return Binary
}

// IsText 是否为需要压缩/生成 .gz 的文本资源
func (k Kind) IsText() bool {
	return k != Binary
}

// String 返回类型名称（用于日志）
func (k Kind) String() string {
	switch k {
	case Markup:
		return "markup"
	case Stylesheet:
		return "stylesheet"
	case Script:
		return "script"
	default:
		return "binary"
	}
}

// ContentType 返回资源的 Content-Type，二进制资源返回 application/octet-stream
func (k Kind) ContentType() string {
	if ct, ok := contentTypeMap[k]; ok {
		return ct
	}
	return "application/octet-stream"
}
