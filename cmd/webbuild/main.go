/**
 * cmd/webbuild/main.go
 * Web 资源构建工具入口
 *
 * 命令：
 *   webbuild build            同步 + 压缩 + GZIP（默认命令）
 *   webbuild hook <target>    作为宿主构建系统的前置动作执行，永不失败
 *   webbuild clean            删除输出目录中的 .gz / .br
 *   webbuild publish          上传输出目录到 S3 兼容存储
 */

package main

import (
	"github.com/alecthomas/kong"

	"webbuild/internal/utils"
)

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("webbuild"),
		kong.Description("Minify and pre-compress web assets for an embedded filesystem image"),
		kong.UsageOnError(),
	)

	err := ctx.Run(&cli)
	utils.SyncLogger()
	ctx.FatalIfErrorf(err)
}
