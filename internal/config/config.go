/**
 * internal/config/config.go
 * 构建配置加载模块
 *
 * 功能：
 * - 默认值 -> YAML 配置文件 -> .env 文件 -> 环境变量，逐层覆盖
 * - 相对路径基于项目目录解析
 * - 配置验证
 *
 * 依赖：
 * - github.com/joho/godotenv (.env 文件加载)
 * - gopkg.in/yaml.v3 (webbuild.yaml)
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"webbuild/internal/minify"
	"webbuild/internal/utils"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ====================  错误定义 ====================

var (
	// ErrInvalidValue 配置值无效
	ErrInvalidValue = errors.New("INVALID_CONFIG_VALUE")

	// ErrMissingRequired 缺少必需的配置项
	ErrMissingRequired = errors.New("MISSING_REQUIRED_CONFIG")
)

// ====================  常量定义 ====================

const (
	// DefaultConfigFile 默认 YAML 配置文件名
	DefaultConfigFile = "webbuild.yaml"

	defaultSourceDir = "web-src"
	defaultDestDir   = "data/www"
)

// ====================  配置结构 ====================

// Config 构建配置
type Config struct {
	// 目录配置
	ProjectDir string `yaml:"project_dir"` // 项目根目录，默认当前目录
	SourceDir  string `yaml:"source_dir"`  // 源资源目录，默认 web-src
	DestDir    string `yaml:"dest_dir"`    // 输出目录，默认 data/www

	// 处理配置
	MinifyEngine string   `yaml:"minify_engine"` // regex | esbuild | tdewolff
	Brotli       bool     `yaml:"brotli"`        // 是否额外生成 .br
	Exclude      []string `yaml:"exclude"`       // 同步排除模式
	ManifestPath string   `yaml:"manifest"`      // 构建清单输出路径，空表示不生成

	// 发布配置（S3 兼容存储，如 Cloudflare R2）
	Publish PublishConfig `yaml:"publish"`
}

// PublishConfig 发布配置
type PublishConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		ProjectDir:   ".",
		SourceDir:    defaultSourceDir,
		DestDir:      defaultDestDir,
		MinifyEngine: minify.EngineRegex,
		Publish: PublishConfig{
			Region: "auto",
		},
	}
}

// ====================  配置加载 ====================

// Load 加载配置
// path 为 YAML 配置文件路径，文件不存在时仅使用默认值与环境变量
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadYAML(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.ProjectDir = getEnv("WEBBUILD_PROJECT_DIR", cfg.ProjectDir)
	envPath := filepath.Join(cfg.ProjectDir, ".env")
	if err := godotenv.Load(envPath); err == nil {
		utils.LogDebugf("[CONFIG] Loaded .env from %s", envPath)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	cfg.resolvePaths()

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	utils.LogDebugf("[CONFIG] Configuration loaded: src=%s, dst=%s, engine=%s, brotli=%t",
		cfg.SourceDir, cfg.DestDir, cfg.MinifyEngine, cfg.Brotli)

	return cfg, nil
}

// loadYAML 读取 YAML 配置文件并覆盖 cfg
func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			utils.LogDebugf("[CONFIG] %s not found, using defaults", path)
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg.ProjectDir = ""
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidValue, path, err)
	}

	// 项目目录默认为配置文件所在目录，相对 project_dir 也以此为基准
	switch {
	case cfg.ProjectDir == "":
		cfg.ProjectDir = filepath.Dir(path)
	case !filepath.IsAbs(cfg.ProjectDir):
		cfg.ProjectDir = filepath.Join(filepath.Dir(path), cfg.ProjectDir)
	}

	utils.LogDebugf("[CONFIG] Loaded %s", path)
	return nil
}

// applyEnv 使用环境变量覆盖配置
func applyEnv(cfg *Config) error {
	cfg.ProjectDir = getEnv("WEBBUILD_PROJECT_DIR", cfg.ProjectDir)
	cfg.SourceDir = getEnv("WEBBUILD_SOURCE_DIR", cfg.SourceDir)
	cfg.DestDir = getEnv("WEBBUILD_DEST_DIR", cfg.DestDir)
	cfg.MinifyEngine = getEnv("WEBBUILD_MINIFY_ENGINE", cfg.MinifyEngine)
	cfg.ManifestPath = getEnv("WEBBUILD_MANIFEST", cfg.ManifestPath)

	brotliEnabled, err := getEnvBool("WEBBUILD_BROTLI", cfg.Brotli)
	if err != nil {
		return err
	}
	cfg.Brotli = brotliEnabled

	if v := os.Getenv("WEBBUILD_EXCLUDE"); v != "" {
		cfg.Exclude = splitList(v)
	}

	cfg.Publish.Endpoint = getEnv("R2_ENDPOINT", cfg.Publish.Endpoint)
	cfg.Publish.AccessKey = getEnv("R2_ACCESS_KEY", cfg.Publish.AccessKey)
	cfg.Publish.SecretKey = getEnv("R2_SECRET_KEY", cfg.Publish.SecretKey)
	cfg.Publish.Bucket = getEnv("R2_BUCKET", cfg.Publish.Bucket)
	cfg.Publish.Prefix = getEnv("R2_PREFIX", cfg.Publish.Prefix)
	cfg.Publish.Region = getEnv("R2_REGION", cfg.Publish.Region)

	return nil
}

// resolvePaths 将相对目录解析到项目目录下
func (c *Config) resolvePaths() {
	if c.ProjectDir == "" {
		c.ProjectDir = "."
	}
	c.SourceDir = c.resolve(c.SourceDir)
	c.DestDir = c.resolve(c.DestDir)
	if c.ManifestPath != "" {
		c.ManifestPath = c.resolve(c.ManifestPath)
	}
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ProjectDir, p)
}

// validateConfig 验证配置
func validateConfig(c *Config) error {
	var missingKeys []string

	if c.SourceDir == "" {
		missingKeys = append(missingKeys, "source_dir")
	}
	if c.DestDir == "" {
		missingKeys = append(missingKeys, "dest_dir")
	}
	if len(missingKeys) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingRequired, strings.Join(missingKeys, ", "))
	}

	engine := strings.ToLower(strings.TrimSpace(c.MinifyEngine))
	if engine == "" {
		engine = minify.EngineRegex
	}
	if !slices.Contains(minify.Engines, engine) {
		return fmt.Errorf("%w: minify_engine=%s (want one of %s)",
			ErrInvalidValue, c.MinifyEngine, strings.Join(minify.Engines, ", "))
	}
	c.MinifyEngine = engine

	// 输出目录位于源目录内会被同步进自身
	if isWithin(c.SourceDir, c.DestDir) || isWithin(c.DestDir, c.SourceDir) {
		return fmt.Errorf("%w: source_dir and dest_dir must not overlap (%s, %s)",
			ErrInvalidValue, c.SourceDir, c.DestDir)
	}

	return nil
}

// ====================  配置检查方法 ====================

// IsPublishConfigured 检查发布配置是否完整
func (c *Config) IsPublishConfigured() bool {
	p := c.Publish
	return p.Endpoint != "" && p.AccessKey != "" && p.SecretKey != "" && p.Bucket != ""
}

// ====================  辅助函数 ====================

// getEnv 获取环境变量，支持默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool 获取布尔环境变量
func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%w: %s=%s is not a valid boolean", ErrInvalidValue, key, value)
	}
	return b, nil
}

// isWithin 判断 child 是否等于 parent 或位于其下
func isWithin(parent, child string) bool {
	absParent, err := filepath.Abs(parent)
	if err != nil {
		return false
	}
	absChild, err := filepath.Abs(child)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absParent, absChild)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// splitList 解析逗号分隔列表，忽略空项
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
