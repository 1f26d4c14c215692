/**
 * internal/utils/logger.go
 * 构建日志模块（基于 zap）
 *
 * 功能：
 * - 统一控制台日志格式
 * - 支持 verbose 调试输出
 * - 支持替换底层 logger（测试用）
 *
 * 用法：
 *   utils.LogPrintf("[SYNC] %s -> %s", src, dst)
 */

package utils

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ====================  全局变量 ====================

var (
	// logger zap 日志实例
	logger *zap.Logger

	// sugar zap SugaredLogger
	sugar *zap.SugaredLogger

	// loggerMu 保护 logger / sugar 的替换
	loggerMu sync.RWMutex

	// logLevel 当前日志级别（可在运行时调整）
	logLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// ====================  初始化 ====================

// InitLogger 初始化 zap 日志
// verbose 为 true 时输出 Debug 级别日志
func InitLogger(verbose bool) {
	if verbose {
		logLevel.SetLevel(zapcore.DebugLevel)
	} else {
		logLevel.SetLevel(zapcore.InfoLevel)
	}

	config := zap.Config{
		Level:            logLevel,
		Development:      false,
		Encoding:         "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			MessageKey:     "msg",
			EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
		},
	}

	l, err := config.Build(
		zap.AddCallerSkip(1), // 跳过 LogPrintf 调用层
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[LOGGER] Failed to init zap: %v, falling back to nop logger\n", err)
		l = zap.NewNop()
	}

	SetLogger(l)
}

// SetLogger 替换底层 logger，返回恢复函数
func SetLogger(l *zap.Logger) (restore func()) {
	loggerMu.Lock()
	prev := logger
	logger = l
	sugar = l.Sugar()
	loggerMu.Unlock()

	return func() {
		loggerMu.Lock()
		logger = prev
		if prev != nil {
			sugar = prev.Sugar()
		} else {
			sugar = nil
		}
		loggerMu.Unlock()
	}
}

// getLogger 获取 logger 实例（懒加载）
func getLogger() *zap.SugaredLogger {
	loggerMu.RLock()
	s := sugar
	loggerMu.RUnlock()
	if s != nil {
		return s
	}

	InitLogger(false)

	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return sugar
}

// ====================  公开函数 ====================

// LogPrintf 格式化日志输出（Info 级别）
func LogPrintf(format string, args ...interface{}) {
	getLogger().Info(fmt.Sprintf(format, args...))
}

// LogDebugf 格式化日志输出（Debug 级别，仅 verbose 模式可见）
func LogDebugf(format string, args ...interface{}) {
	getLogger().Debug(fmt.Sprintf(format, args...))
}

// SyncLogger 同步日志缓冲区（程序退出前调用）
func SyncLogger() {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if logger != nil {
		_ = logger.Sync()
	}
}
