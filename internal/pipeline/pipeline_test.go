package pipeline

import (
	"bytes"
	stdgzip "compress/gzip"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"webbuild/internal/asset"
	"webbuild/internal/config"
	"webbuild/internal/minify"
	"webbuild/internal/utils"
)

// ====================  测试辅助 ====================

type fixture struct {
	src string
	dst string
	cfg *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		src: filepath.Join(root, "web-src"),
		dst: filepath.Join(root, "data", "www"),
	}
	f.cfg = &config.Config{
		ProjectDir:   root,
		SourceDir:    f.src,
		DestDir:      f.dst,
		MinifyEngine: "regex",
	}
	return f
}

func (f *fixture) write(t *testing.T, rel, content string) {
	t.Helper()
	p := filepath.Join(f.src, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func (f *fixture) run(t *testing.T) *Report {
	t.Helper()
	p, err := New(f.cfg)
	require.NoError(t, err)
	report, err := p.Run()
	require.NoError(t, err)
	return report
}

func (f *fixture) read(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.dst, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func (f *fixture) gunzip(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.dst, filepath.FromSlash(rel)+".gz"))
	require.NoError(t, err)
	zr, err := stdgzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	return string(plain)
}

// artifacts 返回输出目录中以 suffix 结尾的文件（相对路径）
func (f *fixture) artifacts(t *testing.T, suffix string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(f.dst, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && strings.HasSuffix(path, suffix) {
			rel, _ := filepath.Rel(f.dst, path)
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	restore := utils.SetLogger(zap.New(core))
	t.Cleanup(restore)
	return logs
}

// ====================  测试用例 ====================

func TestRunMinifiesAndCompresses(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.html", "<div>  <p>Hi</p>  </div><!-- note -->")
	f.write(t, "b.css", ".x { color: red; }\n/* c */")
	f.write(t, "js/app.js", "// boot\nstart(); /* now */\n")
	f.write(t, "logo.png", "\x89PNG\r\n\x1a\n\x00\x00binary")

	report := f.run(t)

	assert.Equal(t, "<div><p>Hi</p></div>", f.read(t, "a.html"))
	assert.Equal(t, ".x{color:red;}", f.read(t, "b.css"))
	assert.Equal(t, "start();", f.read(t, "js/app.js"))

	// 解压结果与 minify 后文本一致
	assert.Equal(t, f.read(t, "a.html"), f.gunzip(t, "a.html"))
	assert.Equal(t, f.read(t, "b.css"), f.gunzip(t, "b.css"))
	assert.Equal(t, f.read(t, "js/app.js"), f.gunzip(t, "js/app.js"))

	// 二进制原样复制，无 .gz
	assert.Equal(t, "\x89PNG\r\n\x1a\n\x00\x00binary", f.read(t, "logo.png"))
	assert.NoFileExists(t, filepath.Join(f.dst, "logo.png.gz"))

	assert.ElementsMatch(t, []string{"a.html.gz", "b.css.gz", "js/app.js.gz"}, f.artifacts(t, ".gz"))
	assert.Empty(t, f.artifacts(t, ".br"))

	assert.Equal(t, 4, report.Synced)
	assert.Equal(t, 4, report.Processed())
	assert.Equal(t, 3, report.Gzipped())
	assert.Zero(t, report.Failed())
	assert.False(t, report.SourceMissing)
	assert.Equal(t, "regex", report.Engine)

	wantOriginal := int64(len("<div>  <p>Hi</p>  </div><!-- note -->") +
		len(".x { color: red; }\n/* c */") + len("// boot\nstart(); /* now */\n"))
	assert.Equal(t, wantOriginal, report.TotalOriginal())
	assert.Equal(t, int64(len("<div><p>Hi</p></div>")+len(".x{color:red;}")+len("start();")), report.TotalMinified())
}

func TestRunRemovesOrphanedArtifacts(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.html", "<p>a</p>")
	f.write(t, "old.js", "old();")
	f.run(t)
	require.FileExists(t, filepath.Join(f.dst, "old.js.gz"))

	// 源文件重命名
	require.NoError(t, os.Rename(filepath.Join(f.src, "old.js"), filepath.Join(f.src, "new.js")))
	report := f.run(t)

	assert.ElementsMatch(t, []string{"a.html.gz", "new.js.gz"}, f.artifacts(t, ".gz"))
	assert.Equal(t, 2, report.Gzipped())
	assert.Equal(t, 2, report.Cleaned)
}

func TestRunArtifactCountMatchesTextAssets(t *testing.T) {
	f := newFixture(t)
	sources := map[string]string{
		"index.html":         "<html> <body> </body> </html>",
		"pages/setup.htm":    "<form> </form>",
		"css/a.css":          "a { b: c }",
		"css/b.css":          "",
		"js/a.js":            "a();",
		"js/m.mjs":           "export const x = 1;",
		"img/logo.png":       "png",
		"fonts/roboto.woff2": "woff",
	}
	text := 0
	for rel, content := range sources {
		f.write(t, rel, content)
		if asset.KindOf(rel).IsText() {
			text++
		}
	}

	f.run(t)
	assert.Len(t, f.artifacts(t, ".gz"), text)

	// 再次运行结果不变
	f.run(t)
	assert.Len(t, f.artifacts(t, ".gz"), text)
}

func TestRunIsDeterministic(t *testing.T) {
	f := newFixture(t)
	f.write(t, "index.html", "<html>\n  <body>\n    <h1>Scale</h1>\n  </body>\n</html>\n")
	f.write(t, "app.js", "const api = '/api';\nfetch(api);\n")

	f.run(t)
	first := map[string][]byte{}
	for _, rel := range f.artifacts(t, ".gz") {
		data, err := os.ReadFile(filepath.Join(f.dst, rel))
		require.NoError(t, err)
		first[rel] = data
	}

	f.run(t)
	for rel, want := range first {
		data, err := os.ReadFile(filepath.Join(f.dst, rel))
		require.NoError(t, err)
		assert.Equal(t, want, data, rel)
	}
}

func TestRunMissingSource(t *testing.T) {
	f := newFixture(t)

	// 输出目录中已有的产物保持不变
	require.NoError(t, os.MkdirAll(f.dst, 0o755))
	existing := filepath.Join(f.dst, "index.html.gz")
	require.NoError(t, os.WriteFile(existing, []byte("keep"), 0o644))

	report := f.run(t)

	assert.True(t, report.SourceMissing)
	assert.Zero(t, report.Synced)
	assert.Zero(t, report.Processed())
	assert.Zero(t, report.Failed())
	assert.FileExists(t, existing)

	report.Log()
}

func TestRunContinuesAfterPerFileError(t *testing.T) {
	logs := observeLogs(t)
	f := newFixture(t)
	f.write(t, "a.html", "<p>a</p>")
	f.write(t, "b.css", "b { c: d }")

	// 让 a.html.gz 无法写入
	require.NoError(t, os.MkdirAll(filepath.Join(f.dst, "a.html.gz", "blocker"), 0o755))

	report := f.run(t)

	assert.Equal(t, 1, report.Failed())
	assert.Equal(t, 1, report.Gzipped())
	assert.FileExists(t, filepath.Join(f.dst, "b.css.gz"))

	var failed FileStat
	for _, s := range report.Files {
		if s.RelPath == "a.html" {
			failed = s
		}
	}
	require.Error(t, failed.Err)
	assert.Equal(t, 1, logs.FilterMessageSnippet("[BUILD] ERROR: a.html").Len())
}

func TestRunRejectsNonUTF8Text(t *testing.T) {
	f := newFixture(t)
	f.write(t, "bad.js", "var s = '\xff\xfe';")
	f.write(t, "good.js", "ok();")

	report := f.run(t)

	var bad FileStat
	for _, s := range report.Files {
		if s.RelPath == "bad.js" {
			bad = s
		}
	}
	assert.True(t, errors.Is(bad.Err, ErrNotUTF8))
	assert.ElementsMatch(t, []string{"good.js.gz"}, f.artifacts(t, ".gz"))
}

func TestRunBrotli(t *testing.T) {
	f := newFixture(t)
	f.cfg.Brotli = true
	f.write(t, "a.css", "a { b: c }")
	f.write(t, "logo.png", "png")

	report := f.run(t)
	assert.ElementsMatch(t, []string{"a.css.br"}, f.artifacts(t, ".br"))
	assert.Greater(t, report.Files[0].Brotli, int64(0))

	// 关闭后旧的 .br 被清理
	f.cfg.Brotli = false
	f.run(t)
	assert.Empty(t, f.artifacts(t, ".br"))
	assert.ElementsMatch(t, []string{"a.css.gz"}, f.artifacts(t, ".gz"))
}

func TestRunExclude(t *testing.T) {
	f := newFixture(t)
	f.cfg.Exclude = []string{"**/*.map"}
	f.write(t, "app.js", "a();")
	f.write(t, "app.js.map", "{}")

	report := f.run(t)
	assert.Equal(t, 1, report.Synced)
	assert.NoFileExists(t, filepath.Join(f.dst, "app.js.map"))
}

func TestRunWritesManifest(t *testing.T) {
	f := newFixture(t)
	f.cfg.ManifestPath = filepath.Join(f.cfg.ProjectDir, ".pio", "webbuild-manifest.json")
	f.write(t, "a.html", "<p> a </p>")
	f.write(t, "logo.png", "png")

	f.run(t)

	data, err := os.ReadFile(f.cfg.ManifestPath)
	require.NoError(t, err)

	var m Manifest
	require.NoError(t, json.Unmarshal(data, &m))
	require.Contains(t, m, "a.html")
	require.Contains(t, m, "logo.png")
	assert.Equal(t, "markup", m["a.html"].Kind)
	assert.Len(t, m["a.html"].Hash, 8)
	assert.Equal(t, "binary", m["logo.png"].Kind)
	assert.Equal(t, int64(3), m["logo.png"].Size)
	assert.Zero(t, m["logo.png"].Gzip)

	// 相同输入清单一致
	f.run(t)
	again, err := os.ReadFile(f.cfg.ManifestPath)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestRunFailsWhenOutputDirCannotBeCreated(t *testing.T) {
	f := newFixture(t)
	// 输出目录的父路径是一个文件
	parent := filepath.Dir(f.dst)
	require.NoError(t, os.WriteFile(parent, []byte("not a dir"), 0o644))

	p, err := New(f.cfg)
	require.NoError(t, err)
	_, err = p.Run()
	require.Error(t, err)
}

func TestOnPreActionNeverFails(t *testing.T) {
	logs := observeLogs(t)
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Dir(f.dst), []byte("not a dir"), 0o644))

	p, err := New(f.cfg)
	require.NoError(t, err)

	assert.NotPanics(t, func() { p.OnPreAction("buildfs") })
	assert.Equal(t, 1, logs.FilterMessageSnippet("[HOOK] ERROR: web build failed before buildfs").Len())
}

func TestOnPreActionSurvivesPanickingFile(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.js", "a();")
	f.write(t, "b.css", "b { c: d }")
	f.write(t, "c.html", "<p> c </p>")
	f.run(t)
	require.Len(t, f.artifacts(t, ".gz"), 3)

	logs := observeLogs(t)
	p := NewWithEngine(f.cfg, panicOn{text: "a();", Engine: regexEngine(t)})
	assert.NotPanics(t, func() { p.OnPreAction("buildfs") })

	// 其余文件照常生成 .gz
	assert.ElementsMatch(t, []string{"b.css.gz", "c.html.gz"}, f.artifacts(t, ".gz"))
	assert.Equal(t, 1, logs.FilterMessageSnippet("[BUILD] ERROR: a.js: panic: engine exploded").Len())
	assert.Zero(t, logs.FilterMessageSnippet("panicked before buildfs").Len())
}

func TestRunCountsPanicAsFileFailure(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.js", "a();")
	f.write(t, "b.js", "b();")

	p := NewWithEngine(f.cfg, panicOn{text: "a();", Engine: regexEngine(t)})
	report, err := p.Run()
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed())
	assert.Equal(t, 1, report.Gzipped())
	assert.ElementsMatch(t, []string{"b.js.gz"}, f.artifacts(t, ".gz"))
}

func TestRunSkipsCommittedArtifacts(t *testing.T) {
	f := newFixture(t)
	f.write(t, "index.html", "<p>i</p>")
	f.write(t, "vendor/lib.js.gz", "prebuilt")
	f.write(t, "fonts/a.woff2.br", "prebuilt")

	report := f.run(t)

	assert.Zero(t, report.Failed())
	assert.Equal(t, 1, report.Processed())
	assert.ElementsMatch(t, []string{"index.html.gz"}, f.artifacts(t, ".gz"))
}

func TestNewRejectsUnknownEngine(t *testing.T) {
	f := newFixture(t)
	f.cfg.MinifyEngine = "uglify"
	_, err := New(f.cfg)
	require.Error(t, err)
}

func TestReportRatio(t *testing.T) {
	r := &Report{Files: []FileStat{
		{RelPath: "a.html", Kind: asset.Markup, Original: 300, Minified: 200, Compressed: 100},
		{RelPath: "b.css", Kind: asset.Stylesheet, Original: 100, Minified: 80, Compressed: 50},
		{RelPath: "c.js", Kind: asset.Script, Original: 1000, Err: errors.New("boom")},
		{RelPath: "d.png", Kind: asset.Binary, Original: 5000},
	}}

	assert.Equal(t, int64(400), r.TotalOriginal())
	assert.Equal(t, int64(150), r.TotalCompressed())
	assert.InDelta(t, 62.5, r.Ratio(), 0.001)
	assert.Equal(t, 3, r.Processed())
	assert.Equal(t, 2, r.Gzipped())
	assert.Equal(t, 1, r.Failed())
	assert.InDelta(t, 66.666, r.Files[0].Ratio(), 0.01)
}

// panicOn 对内容为 text 的文本 panic，其余交给内嵌引擎
type panicOn struct {
	minify.Engine
	text string
}

func (e panicOn) Minify(kind asset.Kind, text string) string {
	if text == e.text {
		panic("engine exploded")
	}
	return e.Engine.Minify(kind, text)
}

func regexEngine(t *testing.T) minify.Engine {
	t.Helper()
	e, err := minify.New(minify.EngineRegex)
	require.NoError(t, err)
	return e
}
