/**
 * internal/hook/registry.go
 * 宿主构建系统的前置动作注册表
 *
 * 功能：
 * - 为构建目标注册前置钩子（固件编译、上传、文件系统镜像等）
 * - 支持目标别名（如 deploy -> uploadfs + upload）
 * - 同一次触发中同一指针钩子只执行一次
 */

package hook

import (
	"reflect"
	"sort"
	"sync"

	"webbuild/internal/utils"
)

// PreActionHook 目标执行前的钩子，不返回错误，失败由实现方自行记录
type PreActionHook interface {
	OnPreAction(target string)
}

// HookFunc 函数适配器
type HookFunc func(target string)

// OnPreAction 调用 f(target)
func (f HookFunc) OnPreAction(target string) {
	f(target)
}

// ====================  默认目标 ====================

// 宿主构建系统的目标名
const (
	TargetBuildProg = "buildprog"
	TargetUpload    = "upload"
	TargetBuildFS   = "buildfs"
	TargetUploadFS  = "uploadfs"
	TargetELF       = "$BUILD_DIR/${PROGNAME}.elf"
	TargetFSImage   = "$BUILD_DIR/littlefs.bin"

	// AliasDeploy 先上传文件系统再上传固件
	AliasDeploy = "deploy"
)

// DefaultTargets 默认挂载 Web 构建的目标
var DefaultTargets = []string{
	TargetBuildProg,
	TargetUpload,
	TargetBuildFS,
	TargetUploadFS,
	TargetELF,
	TargetFSImage,
}

// ====================  注册表 ====================

// Registry 目标 -> 钩子映射
type Registry struct {
	mu      sync.RWMutex
	hooks   map[string][]PreActionHook
	aliases map[string][]string
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{
		hooks:   make(map[string][]PreActionHook),
		aliases: make(map[string][]string),
	}
}

// Default 创建注册表，并将 h 挂到所有默认目标和 deploy 别名上
func Default(h PreActionHook) *Registry {
	r := NewRegistry()
	for _, target := range DefaultTargets {
		r.AddPreAction(target, h)
	}
	r.Alias(AliasDeploy, TargetUploadFS, TargetUpload)
	return r
}

// AddPreAction 为 target 注册前置钩子
func (r *Registry) AddPreAction(target string, h PreActionHook) {
	if h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[target] = append(r.hooks[target], h)
}

// Alias 注册别名，触发别名时按顺序触发各目标
func (r *Registry) Alias(name string, targets ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[name] = append([]string(nil), targets...)
}

// Targets 返回所有已注册的目标与别名（排序后）
func (r *Registry) Targets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.hooks)+len(r.aliases))
	for name := range r.hooks {
		names = append(names, name)
	}
	for name := range r.aliases {
		if _, ok := r.hooks[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Fire 触发 target（或别名）的前置钩子，返回执行的钩子数
// 未知目标记录日志后返回 0
func (r *Registry) Fire(target string) int {
	r.mu.RLock()
	targets := []string{target}
	if expanded, ok := r.aliases[target]; ok {
		targets = expanded
	}

	var queue []PreActionHook
	var queueTargets []string
	seen := make(map[PreActionHook]bool)
	for _, t := range targets {
		for _, h := range r.hooks[t] {
			// 只按指针去重：值类型的钩子可能含有不可比较的字段
			if reflect.ValueOf(h).Kind() == reflect.Pointer {
				if seen[h] {
					continue
				}
				seen[h] = true
			}
			queue = append(queue, h)
			queueTargets = append(queueTargets, t)
		}
	}
	r.mu.RUnlock()

	if len(queue) == 0 {
		utils.LogPrintf("[HOOK] no pre-action registered for target %q", target)
		return 0
	}

	for i, h := range queue {
		utils.LogDebugf("[HOOK] firing pre-action %d/%d for %s", i+1, len(queue), queueTargets[i])
		h.OnPreAction(queueTargets[i])
	}
	return len(queue)
}
