/**
 * internal/publish/publisher.go
 * 构建产物发布（S3 兼容存储，如 Cloudflare R2）
 *
 * 功能：
 * - 上传输出目录，供 OTA 或上游缓存使用
 * - 文本资源上传其 .gz 产物（Content-Encoding: gzip）
 * - 二进制资源原样上传，.br 产物跳过
 */

package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"webbuild/internal/asset"
	"webbuild/internal/compress"
	"webbuild/internal/config"
	"webbuild/internal/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrNotConfigured 发布配置不完整
var ErrNotConfigured = errors.New("publish target not configured")

// ObjectPutter 上传对象（*s3.Client 实现该接口）
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Publisher 产物发布器
type Publisher struct {
	client ObjectPutter
	bucket string
	prefix string
}

// Result 发布结果
type Result struct {
	Uploaded int
	Skipped  int
	Failed   []string
	Bytes    int64
}

// New 根据配置创建 S3 客户端
func New(ctx context.Context, cfg config.PublishConfig) (*Publisher, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, ErrNotConfigured
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	utils.LogPrintf("[PUBLISH] S3 client initialized: bucket=%s, endpoint=%s", cfg.Bucket, cfg.Endpoint)
	return NewWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewWithClient 使用已有客户端创建发布器
func NewWithClient(client ObjectPutter, bucket, prefix string) *Publisher {
	return &Publisher{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// Publish 上传 dir 下的所有产物
// 单个对象上传失败只记录并计数
func (p *Publisher) Publish(ctx context.Context, dir string) (Result, error) {
	var res Result

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return res, fmt.Errorf("output dir not found: %s", dir)
	}

	err = filepath.WalkDir(dir, func(full string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, full)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		obj, ok := p.plan(full, rel)
		if !ok {
			res.Skipped++
			return nil
		}

		n, err := p.put(ctx, obj)
		if err != nil {
			utils.LogPrintf("[PUBLISH] ERROR: %s: %v", obj.key, err)
			res.Failed = append(res.Failed, rel)
			return nil
		}
		res.Uploaded++
		res.Bytes += n
		utils.LogPrintf("[PUBLISH] %s -> s3://%s/%s (%s)", rel, p.bucket, obj.key, utils.FormatBytes(n))
		return nil
	})
	if err != nil {
		return res, err
	}

	utils.LogPrintf("[PUBLISH] done: %d uploaded, %d skipped, %d failed, %s",
		res.Uploaded, res.Skipped, len(res.Failed), utils.FormatBytes(res.Bytes))
	return res, nil
}

// object 一次上传
type object struct {
	file            string
	key             string
	contentType     string
	contentEncoding string
}

// plan 决定 rel 如何上传，返回 false 表示跳过
func (p *Publisher) plan(full, rel string) (object, bool) {
	switch {
	case strings.HasSuffix(rel, compress.BrotliSuffix):
		return object{}, false

	case strings.HasSuffix(rel, compress.GzipSuffix):
		// 文本资源的 .gz 随资源本身上传
		base := strings.TrimSuffix(rel, compress.GzipSuffix)
		if asset.KindOf(base).IsText() {
			return object{}, false
		}
	}

	kind := asset.KindOf(rel)
	obj := object{file: full, key: p.key(rel)}

	if !kind.IsText() {
		obj.contentType = mime.TypeByExtension(path.Ext(rel))
		if obj.contentType == "" {
			obj.contentType = asset.Binary.ContentType()
		}
		return obj, true
	}

	obj.contentType = kind.ContentType()
	gz := full + compress.GzipSuffix
	if st, err := os.Stat(gz); err == nil && st.Mode().IsRegular() {
		obj.file = gz
		obj.contentEncoding = "gzip"
	}
	return obj, true
}

// key 对象键：prefix/rel
func (p *Publisher) key(rel string) string {
	if p.prefix == "" {
		return rel
	}
	return path.Join(p.prefix, rel)
}

func (p *Publisher) put(ctx context.Context, obj object) (int64, error) {
	data, err := os.ReadFile(obj.file)
	if err != nil {
		return 0, fmt.Errorf("failed to read: %w", err)
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(obj.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(obj.contentType),
	}
	if obj.contentEncoding != "" {
		input.ContentEncoding = aws.String(obj.contentEncoding)
	}

	if _, err := p.client.PutObject(ctx, input); err != nil {
		return 0, fmt.Errorf("failed to upload: %w", err)
	}
	return int64(len(data)), nil
}
