/**
 * internal/compress/clean.go
 * 旧压缩产物清理
 *
 * 功能：
 * - 递归删除目标目录下指定后缀的文件（.gz / .br）
 * - 保证源文件重命名或删除后不残留孤立的压缩产物
 */

package compress

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"webbuild/internal/utils"
)

// Clean 递归删除 dir 下以任一 suffix 结尾的普通文件，返回删除数量
// dir 不存在时不报错；目录本身永不删除
func Clean(dir string, suffixes ...string) (int, error) {
	if len(suffixes) == 0 {
		return 0, nil
	}

	removed := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if errors.Is(walkErr, fs.ErrNotExist) && path == dir {
				return filepath.SkipDir
			}
			return walkErr
		}

		if !d.Type().IsRegular() || !hasAnySuffix(d.Name(), suffixes) {
			return nil
		}

		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
		removed++
		utils.LogPrintf("[CLEAN] removed %s", path)
		return nil
	})
	if err != nil {
		return removed, err
	}

	return removed, nil
}

func hasAnySuffix(name string, suffixes []string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}
