/**
 * internal/minify/regex.go
 * 基于正则的轻量压缩（纯函数，无文件 I/O）
 *
 * 功能：
 * - HTML：去注释、合并空白、去除标签间空白
 * - CSS：去注释、合并空白、去除结构符号两侧空白
 * - JS：去行注释与块注释、合并空白
 *
 * 注意：
 * - JS 压缩不是词法分析器，字符串或正则字面量中出现的 // 或 /* 会被误删
 */

package minify

import (
	"regexp"
	"strings"

	"webbuild/internal/asset"
)

// 压缩用正则（预编译）
var (
	htmlCommentRe  = regexp.MustCompile(`<!--[\s\S]*?-->`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
	htmlTagSpaceRe = regexp.MustCompile(`>\s+<`)

	blockCommentRe = regexp.MustCompile(`/\*[\s\S]*?\*/`)
	cssPunctRe     = regexp.MustCompile(`\s*([{:;,}])\s*`)

	jsLineCommentRe = regexp.MustCompile(`//[^\n]*`)
)

// ====================  公开函数 ====================

// HTML 压缩 HTML（去空白、注释）
func HTML(html string) string {
	if html == "" {
		return ""
	}

	html = stripAll(html, htmlCommentRe)
	html = whitespaceRe.ReplaceAllString(html, " ")
	html = htmlTagSpaceRe.ReplaceAllString(html, "><")

	return strings.TrimSpace(html)
}

// CSS 压缩 CSS
func CSS(css string) string {
	if css == "" {
		return ""
	}

	css = stripAll(css, blockCommentRe)
	css = whitespaceRe.ReplaceAllString(css, " ")
	css = cssPunctRe.ReplaceAllString(css, "$1")

	return strings.TrimSpace(css)
}

// JS 压缩 JavaScript（行注释先于块注释处理）
func JS(js string) string {
	if js == "" {
		return ""
	}

	js = stripAll(js, jsLineCommentRe, blockCommentRe)
	js = whitespaceRe.ReplaceAllString(js, " ")

	return strings.TrimSpace(js)
}

// Text 按资源类型压缩，二进制类型原样返回
func Text(kind asset.Kind, text string) string {
	switch kind {
	case asset.Markup:
		return HTML(text)
	case asset.Stylesheet:
		return CSS(text)
	case asset.Script:
		return JS(text)
	default:
		return text
	}
}

// stripAll 依次删除各正则的匹配，直到文本不再变化
// 删除一个注释可能把两侧片段拼成新的注释，如 "<!<!-- x -->-- y -->"
func stripAll(text string, patterns ...*regexp.Regexp) string {
	for {
		prev := text
		for _, re := range patterns {
			text = re.ReplaceAllString(text, "")
		}
		if text == prev {
			return text
		}
	}
}
