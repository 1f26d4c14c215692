/**
 * cmd/webbuild/commands.go
 * 命令行定义与各子命令实现
 */

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"webbuild/internal/compress"
	"webbuild/internal/config"
	"webbuild/internal/hook"
	"webbuild/internal/pipeline"
	"webbuild/internal/publish"
	"webbuild/internal/utils"
)

// CLI 全局参数与子命令
type CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"webbuild.yaml" type:"path"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build   BuildCmd   `cmd:"" default:"1" help:"Sync, minify and gzip web assets"`
	Hook    HookCmd    `cmd:"" help:"Run the web build as a pre-action of a host build target (never fails)"`
	Clean   CleanCmd   `cmd:"" help:"Remove compressed artifacts from the output directory"`
	Publish PublishCmd `cmd:"" help:"Upload the output directory to S3-compatible storage"`
}

// AfterApply 参数解析后初始化日志
func (c *CLI) AfterApply() error {
	utils.InitLogger(c.Verbose)
	return nil
}

// loadConfig 加载配置并应用命令行覆盖
func (c *CLI) loadConfig(engine string) (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if engine != "" {
		cfg.MinifyEngine = engine
	}
	return cfg, nil
}

// ====================  build ====================

// BuildCmd 执行一次完整构建
type BuildCmd struct {
	Engine string `help:"Minify engine override (regex, esbuild, tdewolff)"`
}

// Run 仅在输出目录无法创建等致命错误时返回错误
func (b *BuildCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig(b.Engine)
	if err != nil {
		return err
	}

	p, err := pipeline.New(cfg)
	if err != nil {
		return err
	}

	report, err := p.Run()
	if err != nil {
		return fmt.Errorf("web build failed: %w", err)
	}
	report.Log()
	return nil
}

// ====================  hook ====================

// HookCmd 宿主构建系统的前置动作
type HookCmd struct {
	Target string `arg:"" help:"Host build target (buildfs, uploadfs, upload, deploy, ...)"`
}

// Run 总是返回 nil，错误只记录日志，不阻断宿主构建
func (h *HookCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig("")
	if err != nil {
		utils.LogPrintf("[HOOK] ERROR: %v (skipping web build for %s)", err, h.Target)
		return nil
	}

	p, err := pipeline.New(cfg)
	if err != nil {
		utils.LogPrintf("[HOOK] ERROR: %v (skipping web build for %s)", err, h.Target)
		return nil
	}

	hook.Default(p).Fire(h.Target)
	return nil
}

// ====================  clean ====================

// CleanCmd 清理压缩产物
type CleanCmd struct{}

// Run 删除输出目录下的 .gz 与 .br
func (c *CleanCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig("")
	if err != nil {
		return err
	}

	removed, err := compress.Clean(cfg.DestDir, compress.GzipSuffix, compress.BrotliSuffix)
	if err != nil {
		return fmt.Errorf("clean failed: %w", err)
	}
	utils.LogPrintf("[CLEAN] removed %d artifact(s) from %s", removed, cfg.DestDir)
	return nil
}

// ====================  publish ====================

// PublishCmd 上传构建产物
type PublishCmd struct {
	Build bool `help:"Run a web build before uploading"`
}

// Run 上传输出目录，存在上传失败的对象时返回错误
func (p *PublishCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig("")
	if err != nil {
		return err
	}
	if !cfg.IsPublishConfigured() {
		return publish.ErrNotConfigured
	}

	if p.Build {
		if err := (&BuildCmd{}).Run(cli); err != nil {
			return err
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pub, err := publish.New(ctx, cfg.Publish)
	if err != nil {
		return err
	}

	res, err := pub.Publish(ctx, cfg.DestDir)
	if err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	if len(res.Failed) > 0 {
		return fmt.Errorf("publish failed for %d object(s)", len(res.Failed))
	}
	return nil
}
