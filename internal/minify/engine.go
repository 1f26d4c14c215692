/**
 * internal/minify/engine.go
 * 压缩引擎
 *
 * 功能：
 * - regex：内置正则压缩（默认）
 * - esbuild：使用 esbuild Transform 压缩 CSS/JS
 * - tdewolff：使用 tdewolff/minify 压缩 HTML/CSS/JS
 *
 * 外部引擎出错时降级到 regex 结果，压缩永不返回错误
 *
 * 依赖：
 * - github.com/evanw/esbuild/pkg/api
 * - github.com/tdewolff/minify/v2
 */

package minify

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"webbuild/internal/asset"
	"webbuild/internal/utils"

	"github.com/evanw/esbuild/pkg/api"
	tdminify "github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
)

// ====================  错误定义 ====================

// ErrUnknownEngine 未知的压缩引擎名称
var ErrUnknownEngine = errors.New("unknown minify engine")

// ====================  常量定义 ====================

const (
	EngineRegex    = "regex"
	EngineEsbuild  = "esbuild"
	EngineTdewolff = "tdewolff"
)

// Engines 支持的引擎名称
var Engines = []string{EngineRegex, EngineEsbuild, EngineTdewolff}

// ====================  接口 ====================

// Engine 文本压缩引擎
type Engine interface {
	Name() string
	Minify(kind asset.Kind, text string) string
}

// New 按名称创建压缩引擎，空名称返回 regex 引擎
func New(name string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", EngineRegex:
		return regexEngine{}, nil
	case EngineEsbuild:
		return esbuildEngine{}, nil
	case EngineTdewolff:
		return newTdewolffEngine(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
}

// ====================  regex ====================

type regexEngine struct{}

func (regexEngine) Name() string { return EngineRegex }

func (regexEngine) Minify(kind asset.Kind, text string) string {
	return Text(kind, text)
}

// ====================  esbuild ====================

// esbuildEngine 不重命名标识符：页面内多个 <script> 共享全局变量
type esbuildEngine struct{}

func (esbuildEngine) Name() string { return EngineEsbuild }

func (esbuildEngine) Minify(kind asset.Kind, text string) string {
	var loader api.Loader
	switch kind {
	case asset.Stylesheet:
		loader = api.LoaderCSS
	case asset.Script:
		loader = api.LoaderJS
	default:
		// esbuild 不处理 HTML
		return Text(kind, text)
	}

	result := api.Transform(text, api.TransformOptions{
		Loader:           loader,
		MinifyWhitespace: true,
		MinifySyntax:     true,
		LogLevel:         api.LogLevelSilent,
	})

	if len(result.Errors) > 0 {
		for _, err := range result.Errors {
			utils.LogPrintf("[MINIFY] WARN: esbuild %s: %s", kind, err.Text)
		}
		utils.LogPrintf("[MINIFY] WARN: esbuild failed, falling back to regex")
		return Text(kind, text)
	}

	return strings.TrimSpace(string(result.Code))
}

// ====================  tdewolff ====================

var jsMediaTypeRe = regexp.MustCompile(`^(application|text)/(x-)?(java|ecma)script$`)

type tdewolffEngine struct {
	m *tdminify.M
}

func newTdewolffEngine() tdewolffEngine {
	m := tdminify.New()
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/css", css.Minify)
	m.AddFuncRegexp(jsMediaTypeRe, js.Minify)
	return tdewolffEngine{m: m}
}

func (tdewolffEngine) Name() string { return EngineTdewolff }

func (e tdewolffEngine) Minify(kind asset.Kind, text string) string {
	var mediaType string
	switch kind {
	case asset.Markup:
		mediaType = "text/html"
	case asset.Stylesheet:
		mediaType = "text/css"
	case asset.Script:
		mediaType = "application/javascript"
	default:
		return text
	}

	out, err := e.m.String(mediaType, text)
	if err != nil {
		utils.LogPrintf("[MINIFY] WARN: tdewolff %s: %v, falling back to regex", kind, err)
		return Text(kind, text)
	}

	return strings.TrimSpace(out)
}
