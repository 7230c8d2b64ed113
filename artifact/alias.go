package artifact

import (
	"fmt"
	"sync"
)

// aliasRegistry 别名登记表。
// 别名解析必须对链式别名安全（alias -> alias -> canonical），
// 注册时拒绝产生环的别名。
type aliasRegistry struct {
	mu            sync.RWMutex
	aliases       map[string]string // alias -> name
	allowOverride bool
}

func newAliasRegistry() *aliasRegistry {
	return &aliasRegistry{
		aliases:       make(map[string]string),
		allowOverride: true,
	}
}

// RegisterAlias 注册 alias -> name 的映射。
func (r *aliasRegistry) RegisterAlias(name, alias string) error {
	if name == "" || alias == "" {
		return &ValidationError{Name: alias, Reason: "alias and name must not be empty"}
	}
	if alias == name {
		// 指向自身的别名没有意义，直接移除已有映射
		r.mu.Lock()
		delete(r.aliases, alias)
		r.mu.Unlock()
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.aliases[alias]; ok {
		if existing == name {
			return nil // 已存在相同映射
		}
		if !r.allowOverride {
			return fmt.Errorf("artifact: cannot define alias %q for name %q: already bound to %q",
				alias, name, existing)
		}
	}

	// 环检测：name 自身（可能传递地）已解析到 alias 时注册会成环
	if r.resolvesToLocked(name, alias) {
		return fmt.Errorf("artifact: cannot define alias %q for name %q: circular alias chain", alias, name)
	}

	r.aliases[alias] = name
	return nil
}

// resolvesToLocked 报告沿别名链从 start 出发是否会到达 target。
func (r *aliasRegistry) resolvesToLocked(start, target string) bool {
	current := start
	for {
		next, ok := r.aliases[current]
		if !ok {
			return false
		}
		if next == target {
			return true
		}
		current = next
	}
}

// RemoveAlias 移除别名。
func (r *aliasRegistry) RemoveAlias(alias string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.aliases[alias]; !ok {
		return &NotFoundError{Name: alias, Kind: "alias"}
	}
	delete(r.aliases, alias)
	return nil
}

// IsAlias 报告名称是否被注册为别名。
func (r *aliasRegistry) IsAlias(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.aliases[name]
	return ok
}

// Aliases 返回指向 name 的所有别名（含传递别名）。
func (r *aliasRegistry) Aliases(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []string
	r.collectAliasesLocked(name, &result)
	return result
}

func (r *aliasRegistry) collectAliasesLocked(name string, out *[]string) {
	for alias, target := range r.aliases {
		if target == name {
			*out = append(*out, alias)
			r.collectAliasesLocked(alias, out)
		}
	}
}

// Canonical 将名称解析为规范名。别名链被完整跟随。
func (r *aliasRegistry) Canonical(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	canonical := name
	for {
		target, ok := r.aliases[canonical]
		if !ok {
			return canonical
		}
		canonical = target
	}
}
