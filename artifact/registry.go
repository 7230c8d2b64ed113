package artifact

import (
	"sync"
	"sync/atomic"
)

// Validator 注册时的定义校验钩子。
type Validator func(name string, def *Definition) error

// DefinitionRegistry 名称到定义的登记表。
// 注册顺序通过显式的名称列表保留（预实例化扫描等按注册顺序迭代，
// 不依赖 map 的迭代顺序）。
//
// 登记表有两个阶段：配置阶段（creationStarted 未置位）名称列表就地
// 追加；调用 BeginCreation 之后切换为写时复制，保证已经在途的迭代
// 看到稳定快照。
type DefinitionRegistry struct {
	mu              sync.RWMutex
	definitions     map[string]*Definition
	names           []string
	creationStarted atomic.Bool
	allowOverride   bool
	validators      []Validator
}

// NewDefinitionRegistry 创建定义登记表，默认允许覆盖注册。
func NewDefinitionRegistry() *DefinitionRegistry {
	r := &DefinitionRegistry{
		definitions:   make(map[string]*Definition),
		allowOverride: true,
	}
	r.validators = append(r.validators, validateStructure)
	return r
}

// SetAllowOverride 设置同名注册是否允许覆盖。
func (r *DefinitionRegistry) SetAllowOverride(allow bool) {
	r.mu.Lock()
	r.allowOverride = allow
	r.mu.Unlock()
}

// AddValidator 追加定义校验钩子，注册时依次执行。
func (r *DefinitionRegistry) AddValidator(v Validator) {
	r.mu.Lock()
	r.validators = append(r.validators, v)
	r.mu.Unlock()
}

// validateStructure 内置的结构校验。
func validateStructure(name string, def *Definition) error {
	if name == "" {
		return &ValidationError{Name: name, Reason: "name must not be empty"}
	}
	if def == nil {
		return &ValidationError{Name: name, Reason: "definition must not be nil"}
	}
	if def.Abstract && def.Scope == ScopeSingleton && !def.LazyInit && !def.HasParent() {
		// 抽象 + 急切单例的组合没有意义：抽象定义永远不会被实例化
		return &ValidationError{Name: name, Reason: "abstract definition cannot be an eager singleton"}
	}
	if def.FactoryMethod != "" && def.FactoryName == "" {
		return &ValidationError{Name: name, Reason: "factory method requires a factory artifact name"}
	}
	if def.HasInstance && def.Constructor != nil {
		return &ValidationError{Name: name, Reason: "instance and constructor are mutually exclusive"}
	}
	return nil
}

// Register 注册定义。
// 定义不合法时返回 ValidationError；同名定义已存在且禁止覆盖时
// 返回 OverrideNotAllowedError。覆盖成功返回被替换的旧定义。
func (r *DefinitionRegistry) Register(name string, def *Definition) (*Definition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, v := range r.validators {
		if err := v(name, def); err != nil {
			return nil, err
		}
	}

	existing, exists := r.definitions[name]
	if exists {
		if !r.allowOverride {
			return nil, &OverrideNotAllowedError{Name: name, Existing: existing}
		}
		r.definitions[name] = def
		return existing, nil
	}

	r.definitions[name] = def
	if r.creationStarted.Load() {
		// 创建阶段：写时复制，在途迭代器持有的旧快照保持稳定
		updated := make([]string, len(r.names)+1)
		copy(updated, r.names)
		updated[len(r.names)] = name
		r.names = updated
	} else {
		r.names = append(r.names, name)
	}
	return nil, nil
}

// Remove 移除定义，名称不存在时返回 NoSuchDefinitionError。
func (r *DefinitionRegistry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.definitions[name]; !ok {
		return &NoSuchDefinitionError{Name: name}
	}
	delete(r.definitions, name)

	if r.creationStarted.Load() {
		updated := make([]string, 0, len(r.names)-1)
		for _, n := range r.names {
			if n != name {
				updated = append(updated, n)
			}
		}
		r.names = updated
	} else {
		for i, n := range r.names {
			if n == name {
				r.names = append(r.names[:i], r.names[i+1:]...)
				break
			}
		}
	}
	return nil
}

// Get 按名称查找定义。
func (r *DefinitionRegistry) Get(name string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.definitions[name]
	if !ok {
		return nil, &NoSuchDefinitionError{Name: name}
	}
	return def, nil
}

// Contains 报告名称是否有本地定义。
func (r *DefinitionRegistry) Contains(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.definitions[name]
	return ok
}

// Names 返回按注册顺序排列的名称。
// 创建阶段返回内部的写时复制快照（调用方不得修改），
// 配置阶段返回副本。
func (r *DefinitionRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.creationStarted.Load() {
		return r.names
	}
	return append([]string(nil), r.names...)
}

// Count 返回定义数量。
func (r *DefinitionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.definitions)
}

// BeginCreation 显式地把登记表从配置阶段切换到创建阶段。
// 之后的结构性更新改用写时复制。
func (r *DefinitionRegistry) BeginCreation() {
	r.creationStarted.Store(true)
}

// CreationStarted 报告登记表是否已进入创建阶段。
func (r *DefinitionRegistry) CreationStarted() bool {
	return r.creationStarted.Load()
}
