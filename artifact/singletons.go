package artifact

import (
	"fmt"
	"sync"

	"github.com/gocrud/ioc/logging"
)

// SingletonRegistry 完全构建的单例实例登记表。
// 同时跟踪创建中状态（支持通过提前暴露解析循环引用）、
// 依赖/包含关系（用于有序销毁）以及销毁回调。
//
// 并发纪律：单例表、提前引用表与创建中集合的所有变更都在同一把
// 互斥锁（单例锁）下进行。同名单例的并发创建被串行化：只有一个
// 创建尝试继续执行，其余调用在条件变量上阻塞并接收结果。
type SingletonRegistry struct {
	mu   sync.Mutex
	cond *sync.Cond

	// singletons 完全创建的单例
	singletons map[string]any
	// earlyRefs 提前暴露的半成品引用（仅用于循环引用解析）
	earlyRefs map[string]any
	// earlyFactories 提前引用工厂，首次被请求时生成提前引用
	earlyFactories map[string]func() any

	// inCreation 当前正在创建的名称（跨所有调用链）
	inCreation map[string]struct{}
	// creationCheckExclusions 豁免创建中检查的名称（仅类型检查用的实例化）
	creationCheckExclusions map[string]struct{}

	// order 单例注册顺序
	order []string

	// disposables 销毁回调，disposableOrder 记录注册顺序
	disposables     map[string]func()
	disposableOrder []string

	// contained containing -> 其内部（匿名）工件名称列表
	contained map[string][]string
	// dependents name -> 依赖 name 的工件集合（须先于 name 销毁）
	dependents map[string]map[string]struct{}
	// dependencies name -> name 所依赖的工件集合
	dependencies map[string]map[string]struct{}

	// destroying 登记表整体销毁中
	destroying bool

	logger logging.Logger
}

// NewSingletonRegistry 创建单例登记表。
func NewSingletonRegistry() *SingletonRegistry {
	r := &SingletonRegistry{
		singletons:              make(map[string]any),
		earlyRefs:               make(map[string]any),
		earlyFactories:          make(map[string]func() any),
		inCreation:              make(map[string]struct{}),
		creationCheckExclusions: make(map[string]struct{}),
		disposables:             make(map[string]func()),
		contained:               make(map[string][]string),
		dependents:              make(map[string]map[string]struct{}),
		dependencies:            make(map[string]map[string]struct{}),
		logger:                  logging.NewNopLogger(),
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// SetLogger 设置销毁失败等事件的日志记录器。
func (r *SingletonRegistry) SetLogger(logger logging.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Register 手工注册一个完全构建的单例。
// 名称已被占用时报错（单例一经完全创建，除显式移除外不可变更）。
func (r *SingletonRegistry) Register(name string, obj any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.singletons[name]; ok {
		return fmt.Errorf("artifact: could not register singleton %q: name already bound to %T", name, existing)
	}
	r.addSingletonLocked(name, obj)
	return nil
}

func (r *SingletonRegistry) addSingletonLocked(name string, obj any) {
	r.singletons[name] = obj
	delete(r.earlyRefs, name)
	delete(r.earlyFactories, name)
	r.order = append(r.order, name)
}

// Get 返回名称对应的单例。
// allowEarly 为 true 且名称正处于创建中时，尝试通过已注册的
// 提前引用工厂暴露半成品引用（循环引用解析路径）。
// 两者都不存在时返回 nil, false。
func (r *SingletonRegistry) Get(name string, allowEarly bool) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(name, allowEarly)
}

func (r *SingletonRegistry) getLocked(name string, allowEarly bool) (any, bool) {
	if obj, ok := r.singletons[name]; ok {
		return obj, true
	}
	if _, creating := r.inCreation[name]; !creating {
		return nil, false
	}
	if obj, ok := r.earlyRefs[name]; ok {
		return obj, true
	}
	if !allowEarly {
		return nil, false
	}
	if factory, ok := r.earlyFactories[name]; ok {
		obj := factory()
		r.earlyRefs[name] = obj
		delete(r.earlyFactories, name)
		return obj, true
	}
	return nil, false
}

// AddEarlyFactory 注册提前引用工厂。
// 仅在名称尚无完全创建的单例时生效。
func (r *SingletonRegistry) AddEarlyFactory(name string, factory func() any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.singletons[name]; ok {
		return
	}
	r.earlyFactories[name] = factory
	delete(r.earlyRefs, name)
}

// GetOrCreate 单例创建的规范入口。
//  1. 单例已存在时直接返回。
//  2. 登记表整体销毁中返回 CreationNotAllowedError。
//  3. 本创建链重入同名创建返回 CurrentlyInCreationError
//     （无提前暴露支持的循环单例依赖链在此被拒绝，而非死锁）。
//  4. 其他调用链正在创建同名单例时阻塞等待其结果。
//  5. 调用 factory 构建对象；嵌套创建抛出的错误作为"被抑制错误"
//     收集，在外层创建最终失败时作为相关原因附加。
//  6. 成功时取消创建中标记、存为永久单例并清除提前引用缓存；
//     失败时取消标记并传播，移除残留的部分注册。
func (r *SingletonRegistry) GetOrCreate(name string, cc *creationContext, factory func() (any, error)) (any, error) {
	if cc == nil {
		cc = newCreationContext()
	}

	r.mu.Lock()
	for {
		if obj, ok := r.singletons[name]; ok {
			r.mu.Unlock()
			return obj, nil
		}
		if r.destroying {
			r.mu.Unlock()
			return nil, &CreationNotAllowedError{Name: name}
		}
		if _, excluded := r.creationCheckExclusions[name]; excluded {
			// 仅类型检查的实例化：不参与创建中登记，也不做单飞串行化
			r.mu.Unlock()
			return factory()
		}
		if cc.creatingSingleton(name) {
			r.mu.Unlock()
			return nil, &CurrentlyInCreationError{Name: name}
		}
		if _, creating := r.inCreation[name]; !creating {
			break
		}
		// 另一条调用链正在创建同名单例，等待其完成后重查
		r.cond.Wait()
	}
	r.inCreation[name] = struct{}{}
	cc.markSingleton(name)
	outermost := len(cc.suppressed) == 0 && len(cc.singletons) == 1
	r.mu.Unlock()

	obj, err := factory()

	r.mu.Lock()
	delete(r.inCreation, name)
	cc.unmarkSingleton(name)
	if err != nil {
		// 部分注册清理：调用方不会观察到失败名称下的半注册单例
		r.removeLocked(name)
		r.cond.Broadcast()
		r.mu.Unlock()
		if outermost {
			return nil, wrapCreationError(name, "", err, cc.takeSuppressed())
		}
		cc.suppress(err)
		return nil, err
	}
	r.addSingletonLocked(name, obj)
	r.cond.Broadcast()
	r.mu.Unlock()
	return obj, nil
}

// ExcludeFromCreationCheck 豁免名称的创建中检查。
// 用于"仅类型检查"的工厂实例化，避免引导期间的时序误报。
func (r *SingletonRegistry) ExcludeFromCreationCheck(name string) {
	r.mu.Lock()
	r.creationCheckExclusions[name] = struct{}{}
	r.mu.Unlock()
}

// IncludeInCreationCheck 恢复名称的创建中检查。
func (r *SingletonRegistry) IncludeInCreationCheck(name string) {
	r.mu.Lock()
	delete(r.creationCheckExclusions, name)
	r.mu.Unlock()
}

// IsInCreation 报告名称是否正在创建中（任一调用链）。
func (r *SingletonRegistry) IsInCreation(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.inCreation[name]
	return ok
}

// InDestruction 报告登记表是否整体销毁中。
func (r *SingletonRegistry) InDestruction() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.destroying
}

// Contains 报告名称下是否存在完全创建的单例。
func (r *SingletonRegistry) Contains(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.singletons[name]
	return ok
}

// Names 返回按注册顺序排列的单例名称。
func (r *SingletonRegistry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// Count 返回单例数量。
func (r *SingletonRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.singletons)
}

// Remove 原子地移除单例对象、提前引用与提前引用工厂（错误清理用）。
func (r *SingletonRegistry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(name)
}

func (r *SingletonRegistry) removeLocked(name string) {
	if _, ok := r.singletons[name]; ok {
		delete(r.singletons, name)
		for i, n := range r.order {
			if n == name {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	delete(r.earlyRefs, name)
	delete(r.earlyFactories, name)
}

// RegisterDisposable 注册销毁回调，按注册顺序记录（销毁时逆序执行）。
func (r *SingletonRegistry) RegisterDisposable(name string, dispose func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.disposables[name]; !ok {
		r.disposableOrder = append(r.disposableOrder, name)
	}
	r.disposables[name] = dispose
}

// RegisterContained 登记包含关系：contained 是 containing 的内部工件。
func (r *SingletonRegistry) RegisterContained(contained, containing string) {
	r.mu.Lock()
	existing := r.contained[containing]
	found := false
	for _, n := range existing {
		if n == contained {
			found = true
			break
		}
	}
	if !found {
		r.contained[containing] = append(existing, contained)
	}
	r.mu.Unlock()
	// 包含关系同时蕴含销毁顺序上的依赖关系
	r.RegisterDependent(contained, containing)
}

// RegisterDependent 登记依赖关系：dependent 依赖 name
// （name 须先于 dependent 创建、晚于 dependent 销毁）。
func (r *SingletonRegistry) RegisterDependent(name, dependent string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.dependents[name]
	if !ok {
		set = make(map[string]struct{})
		r.dependents[name] = set
	}
	set[dependent] = struct{}{}

	deps, ok := r.dependencies[dependent]
	if !ok {
		deps = make(map[string]struct{})
		r.dependencies[dependent] = deps
	}
	deps[name] = struct{}{}
}

// HasDependent 报告 dependent 是否（可能传递地）依赖 name。
// 通过显式的已访问集合保证在意外成环的依赖图上不会无限循环。
func (r *SingletonRegistry) HasDependent(name, dependent string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasDependentLocked(name, dependent, nil)
}

func (r *SingletonRegistry) hasDependentLocked(name, dependent string, seen map[string]struct{}) bool {
	if seen != nil {
		if _, visited := seen[name]; visited {
			return false
		}
	}
	set, ok := r.dependents[name]
	if !ok {
		return false
	}
	if _, direct := set[dependent]; direct {
		return true
	}
	if seen == nil {
		seen = make(map[string]struct{})
	}
	seen[name] = struct{}{}
	for transitive := range set {
		if r.hasDependentLocked(transitive, dependent, seen) {
			return true
		}
	}
	return false
}

// DependentsOf 返回依赖 name 的工件名称。
func (r *SingletonRegistry) DependentsOf(name string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.dependents[name]
	result := make([]string, 0, len(set))
	for n := range set {
		result = append(result, n)
	}
	return result
}

// DependenciesOf 返回 name 所依赖的工件名称。
func (r *SingletonRegistry) DependenciesOf(name string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.dependencies[name]
	result := make([]string, 0, len(set))
	for n := range set {
		result = append(result, n)
	}
	return result
}

// IsDependencyTracked 报告名称是否出现在依赖/包含登记中。
func (r *SingletonRegistry) IsDependencyTracked(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.dependents[name]; ok {
		return true
	}
	if _, ok := r.dependencies[name]; ok {
		return true
	}
	for _, names := range r.contained {
		for _, n := range names {
			if n == name {
				return true
			}
		}
	}
	return false
}

// DestroyAll 销毁所有登记了销毁回调的单例。
// 先置位"销毁中"标记，按注册逆序逐个销毁，随后清空包含/依赖
// 关系表，最后清空实例缓存。
func (r *SingletonRegistry) DestroyAll() {
	r.mu.Lock()
	r.destroying = true
	names := append([]string(nil), r.disposableOrder...)
	r.mu.Unlock()

	for i := len(names) - 1; i >= 0; i-- {
		r.Destroy(names[i])
	}

	r.mu.Lock()
	r.contained = make(map[string][]string)
	r.dependents = make(map[string]map[string]struct{})
	r.dependencies = make(map[string]map[string]struct{})
	r.singletons = make(map[string]any)
	r.earlyRefs = make(map[string]any)
	r.earlyFactories = make(map[string]func() any)
	r.order = nil
	r.disposables = make(map[string]func())
	r.disposableOrder = nil
	r.destroying = false
	r.cond.Broadcast()
	r.mu.Unlock()
}

// Destroy 销毁指定名称的单例。
// 先递归销毁所有已登记的依赖方（依赖方先于被依赖方销毁），
// 再执行自身的销毁回调（回调失败被记录但不会中止级联），
// 然后递归销毁其包含的内部工件，最后把名称从其他条目的依赖
// 集合中清除。
func (r *SingletonRegistry) Destroy(name string) {
	r.mu.Lock()
	r.removeLocked(name)
	dispose := r.disposables[name]
	delete(r.disposables, name)
	for i, n := range r.disposableOrder {
		if n == name {
			r.disposableOrder = append(r.disposableOrder[:i], r.disposableOrder[i+1:]...)
			break
		}
	}

	// 取出并移除依赖方集合，防止销毁级联中的环导致无限递归
	dependentSet := r.dependents[name]
	delete(r.dependents, name)
	dependentNames := make([]string, 0, len(dependentSet))
	for n := range dependentSet {
		dependentNames = append(dependentNames, n)
	}

	containedNames := r.contained[name]
	delete(r.contained, name)
	r.mu.Unlock()

	// 依赖方优先销毁
	for _, dependent := range dependentNames {
		r.Destroy(dependent)
	}

	if dispose != nil {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Error("Destroy callback panicked",
						logging.Field{Key: "name", Value: name},
						logging.Field{Key: "panic", Value: fmt.Sprint(rec)})
				}
			}()
			dispose()
		}()
	}

	// 内部工件随容器对象一起销毁
	for _, inner := range containedNames {
		r.Destroy(inner)
	}

	// 从其余条目的依赖集合中清除该名称
	r.mu.Lock()
	for other, set := range r.dependents {
		delete(set, name)
		if len(set) == 0 {
			delete(r.dependents, other)
		}
	}
	delete(r.dependencies, name)
	r.mu.Unlock()
}
