package artifact

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/gocrud/ioc/logging"
)

// Container 工件容器：把定义登记表、定义合并、单例登记表与
// 依赖解析组合成一个可独立嵌入的对象图解析引擎。
//
// 任意数量的 goroutine 可以并发请求工件；容器自身不引入线程池
// 或异步执行。
type Container struct {
	registry   *DefinitionRegistry
	aliases    *aliasRegistry
	singletons *SingletonRegistry

	// parent 父容器层级，本地找不到定义时向上委托
	parent *Container

	// merged 合并定义缓存
	mergedMu sync.RWMutex
	merged   map[string]*mergedEntry

	// resolvableDeps 类型到固定值的解析捷径（基础设施对象预绑定）
	resolvableMu   sync.RWMutex
	resolvableDeps map[reflect.Type]any

	// scopes 自定义作用域提供者
	scopesMu sync.RWMutex
	scopes   map[string]ScopeProvider

	// factoryProducts 工厂工件产品缓存（nullProduct 哨兵表示产品为 nil）
	productsMu      sync.Mutex
	factoryProducts map[string]any

	// typeResolver 延迟类型名解析钩子（由定义来源注册）
	typeResolver func(typeName string) (reflect.Type, bool)

	// priorityOf 候选优先级提取钩子
	priorityOf PriorityExtractor

	strategy  InstantiationStrategy
	converter TypeConverter

	hooks   hooks
	hooksMu sync.RWMutex

	// allowCircularReferences 是否允许基于属性的循环引用（提前暴露）
	allowCircularReferences bool

	logger logging.Logger

	// nestedCounter 匿名嵌套工件的命名计数
	nestedMu      sync.Mutex
	nestedCounter uint64
}

// mergedEntry 合并缓存条目。stale 置位后下次访问重新合并。
type mergedEntry struct {
	md    *MergedDefinition
	stale bool
}

// NewContainer 创建一个空容器。
func NewContainer() *Container {
	return &Container{
		registry:                NewDefinitionRegistry(),
		aliases:                 newAliasRegistry(),
		singletons:              NewSingletonRegistry(),
		merged:                  make(map[string]*mergedEntry),
		resolvableDeps:          make(map[reflect.Type]any),
		scopes:                  make(map[string]ScopeProvider),
		factoryProducts:         make(map[string]any),
		strategy:                NewReflectStrategy(),
		converter:               NewDefaultConverter(),
		allowCircularReferences: true,
		logger:                  logging.NewNopLogger(),
	}
}

// SetParent 设置父容器。
func (c *Container) SetParent(parent *Container) {
	c.parent = parent
}

// Parent 返回父容器（可能为 nil）。
func (c *Container) Parent() *Container {
	return c.parent
}

// SetLogger 设置日志记录器。
func (c *Container) SetLogger(logger logging.Logger) {
	if logger == nil {
		return
	}
	c.logger = logger
	c.singletons.SetLogger(logger)
}

// SetAllowOverride 设置同名定义注册是否允许覆盖。
func (c *Container) SetAllowOverride(allow bool) {
	c.registry.SetAllowOverride(allow)
}

// SetAllowCircularReferences 设置是否允许基于属性的循环引用。
func (c *Container) SetAllowCircularReferences(allow bool) {
	c.allowCircularReferences = allow
}

// SetInstantiationStrategy 替换实例化策略。
func (c *Container) SetInstantiationStrategy(s InstantiationStrategy) {
	if s != nil {
		c.strategy = s
	}
}

// SetTypeConverter 替换类型转换器。
func (c *Container) SetTypeConverter(tc TypeConverter) {
	if tc != nil {
		c.converter = tc
	}
}

// SetTypeResolver 注册延迟类型名解析钩子。
func (c *Container) SetTypeResolver(resolver func(typeName string) (reflect.Type, bool)) {
	c.typeResolver = resolver
}

// SetPriorityExtractor 注册候选优先级提取钩子。
func (c *Container) SetPriorityExtractor(p PriorityExtractor) {
	c.priorityOf = p
}

// Registry 返回底层定义登记表。
func (c *Container) Registry() *DefinitionRegistry {
	return c.registry
}

// Singletons 返回底层单例登记表。
func (c *Container) Singletons() *SingletonRegistry {
	return c.singletons
}

// Register 注册工件定义。
// 覆盖已有定义时记录日志（允许覆盖时覆盖不是错误）。
func (c *Container) Register(name string, def *Definition) error {
	replaced, err := c.registry.Register(name, def)
	if err != nil {
		return err
	}
	if replaced != nil {
		c.logger.Info("Overriding artifact definition",
			logging.Field{Key: "name", Value: name},
			logging.Field{Key: "old", Value: replaced.String()},
			logging.Field{Key: "new", Value: def.String()})
		c.InvalidateMerged(name)
	}
	return nil
}

// RegisterDefinition 用选项构造并注册定义的便捷方法。
func (c *Container) RegisterDefinition(name string, opts ...Option) error {
	return c.Register(name, NewDefinition(opts...))
}

// RemoveDefinition 移除定义并使其合并缓存失效。
func (c *Container) RemoveDefinition(name string) error {
	if err := c.registry.Remove(name); err != nil {
		return err
	}
	c.InvalidateMerged(name)
	return nil
}

// Definition 按名称查找定义（不跟随别名）。
func (c *Container) Definition(name string) (*Definition, error) {
	return c.registry.Get(name)
}

// RegisterAlias 注册别名。
func (c *Container) RegisterAlias(name, alias string) error {
	return c.aliases.RegisterAlias(name, alias)
}

// RemoveAlias 移除别名。
func (c *Container) RemoveAlias(alias string) error {
	return c.aliases.RemoveAlias(alias)
}

// Aliases 返回指向 name 的所有别名。
func (c *Container) Aliases(name string) []string {
	return c.aliases.Aliases(name)
}

// canonicalName 去掉工厂解引用前缀并跟随别名链。
func (c *Container) canonicalName(name string) string {
	stripped := name
	for len(stripped) > 0 && stripped[:1] == FactoryPrefix {
		stripped = stripped[1:]
	}
	return c.aliases.Canonical(stripped)
}

// isDereference 报告请求名是否带工厂解引用前缀。
func isDereference(name string) bool {
	return len(name) > 0 && name[:1] == FactoryPrefix
}

// Contains 报告名称（或其别名）是否对应本容器或父容器中的
// 定义或单例。
func (c *Container) Contains(name string) bool {
	canonical := c.canonicalName(name)
	if c.singletons.Contains(canonical) || c.registry.Contains(canonical) {
		return true
	}
	if c.parent != nil {
		return c.parent.Contains(canonical)
	}
	return false
}

// ContainsLocal 报告名称是否在本容器中有定义或单例（不看父容器）。
func (c *Container) ContainsLocal(name string) bool {
	canonical := c.canonicalName(name)
	return c.singletons.Contains(canonical) || c.registry.Contains(canonical)
}

// IsNameInUse 报告名称是否已被占用：别名、本地定义、单例实例，
// 或出现在依赖/包含登记中。
func (c *Container) IsNameInUse(name string) bool {
	return c.aliases.IsAlias(name) ||
		c.registry.Contains(name) ||
		c.singletons.Contains(name) ||
		c.singletons.IsDependencyTracked(name)
}

// RegisterSingleton 手工注册一个预构建单例。
func (c *Container) RegisterSingleton(name string, obj any) error {
	return c.singletons.Register(name, obj)
}

// RegisterResolvableDependency 为类型预绑定一个固定值，
// 按类型装配时优先于候选搜索（用于容器自身等基础设施对象）。
func (c *Container) RegisterResolvableDependency(typ reflect.Type, value any) {
	c.resolvableMu.Lock()
	c.resolvableDeps[typ] = value
	c.resolvableMu.Unlock()
}

// RegisterScope 注册自定义作用域提供者。
func (c *Container) RegisterScope(name string, provider ScopeProvider) error {
	if name == ScopeSingleton || name == ScopePrototype {
		return fmt.Errorf("artifact: cannot replace built-in scope %q", name)
	}
	c.scopesMu.Lock()
	c.scopes[name] = provider
	c.scopesMu.Unlock()
	return nil
}

// Scope 返回已注册的作用域提供者。
func (c *Container) Scope(name string) (ScopeProvider, bool) {
	c.scopesMu.RLock()
	defer c.scopesMu.RUnlock()
	sp, ok := c.scopes[name]
	return sp, ok
}

// AddMergedDefinitionHook 注册合并定义回调。
func (c *Container) AddMergedDefinitionHook(h MergedDefinitionHook) {
	c.hooksMu.Lock()
	c.hooks.mergedDefinition = append(c.hooks.mergedDefinition, h)
	c.hooksMu.Unlock()
}

// AddMergedResetHook 注册合并缓存失效观察者。
func (c *Container) AddMergedResetHook(h MergedResetHook) {
	c.hooksMu.Lock()
	c.hooks.mergedReset = append(c.hooks.mergedReset, h)
	c.hooksMu.Unlock()
}

// AddEarlyReferenceHook 注册提前引用回调。
func (c *Container) AddEarlyReferenceHook(h EarlyReferenceHook) {
	c.hooksMu.Lock()
	c.hooks.earlyReference = append(c.hooks.earlyReference, h)
	c.hooksMu.Unlock()
}

// AddBeforeInitHook 注册初始化前回调。
func (c *Container) AddBeforeInitHook(h InitHook) {
	c.hooksMu.Lock()
	c.hooks.beforeInit = append(c.hooks.beforeInit, h)
	c.hooksMu.Unlock()
}

// AddAfterInitHook 注册初始化后回调。
func (c *Container) AddAfterInitHook(h InitHook) {
	c.hooksMu.Lock()
	c.hooks.afterInit = append(c.hooks.afterInit, h)
	c.hooksMu.Unlock()
}

// AddDestructionHook 注册销毁感知回调。
func (c *Container) AddDestructionHook(h DestructionHook) {
	c.hooksMu.Lock()
	c.hooks.destruction = append(c.hooks.destruction, h)
	c.hooksMu.Unlock()
}

func (c *Container) snapshotHooks() hooks {
	c.hooksMu.RLock()
	defer c.hooksMu.RUnlock()
	return c.hooks
}

// IsSingleton 报告名称对应的工件是否为单例作用域。
func (c *Container) IsSingleton(name string) (bool, error) {
	canonical := c.canonicalName(name)
	if c.singletons.Contains(canonical) {
		return !isDereference(name) || c.isFactoryArtifactInstance(canonical), nil
	}
	if !c.registry.Contains(canonical) && c.parent != nil {
		return c.parent.IsSingleton(name)
	}
	md, err := c.getMerged(canonical)
	if err != nil {
		return false, err
	}
	return md.IsSingleton(), nil
}

// IsPrototype 报告名称对应的工件是否为 prototype 作用域。
func (c *Container) IsPrototype(name string) (bool, error) {
	canonical := c.canonicalName(name)
	if !c.registry.Contains(canonical) && c.parent != nil {
		return c.parent.IsPrototype(name)
	}
	md, err := c.getMerged(canonical)
	if err != nil {
		return false, err
	}
	return md.IsPrototype(), nil
}

// PreInstantiateSingletons 预实例化扫描：按注册顺序创建所有
// 非抽象、非延迟的急切单例。扫描前显式切换登记表到创建阶段。
func (c *Container) PreInstantiateSingletons() error {
	c.registry.BeginCreation()
	names := c.registry.Names()

	for _, name := range names {
		md, err := c.getMerged(name)
		if err != nil {
			return err
		}
		if md.Abstract || md.LazyInit || !md.IsSingleton() {
			continue
		}
		if c.isFactoryType(name, md) {
			// 先创建工厂本身，产品按需或按 EagerFactory 声明急切创建
			obj, err := c.Get(FactoryPrefix + name)
			if err != nil {
				return err
			}
			if ef, ok := obj.(EagerFactory); ok && ef.EagerInit() {
				if _, err := c.Get(name); err != nil {
					return err
				}
			}
			continue
		}
		if _, err := c.Get(name); err != nil {
			return err
		}
	}
	return nil
}

// Close 关闭容器：销毁全部单例并清空合并缓存。
func (c *Container) Close() {
	c.singletons.DestroyAll()
	c.productsMu.Lock()
	c.factoryProducts = make(map[string]any)
	c.productsMu.Unlock()
	c.mergedMu.Lock()
	c.merged = make(map[string]*mergedEntry)
	c.mergedMu.Unlock()
}

// DestroySingleton 销毁指定名称的单例（级联依赖方）。
func (c *Container) DestroySingleton(name string) {
	canonical := c.canonicalName(name)
	c.singletons.Destroy(canonical)
	c.productsMu.Lock()
	delete(c.factoryProducts, canonical)
	c.productsMu.Unlock()
}

// Resolve 按名称解析并断言为类型 T 的泛型便捷函数。
func Resolve[T any](c *Container, name string) (T, error) {
	var zero T
	obj, err := c.Get(name)
	if err != nil {
		return zero, err
	}
	if obj == nil {
		return zero, nil
	}
	v, ok := obj.(T)
	if !ok {
		return zero, &NotOfRequiredTypeError{
			Name:     name,
			Required: TypeOf[T](),
			Actual:   reflect.TypeOf(obj),
		}
	}
	return v, nil
}

// ResolveByType 解析类型 T 的唯一候选的泛型便捷函数。
func ResolveByType[T any](c *Container) (T, error) {
	var zero T
	obj, err := c.ResolveDependency(DependencyDescriptor{
		Type:     TypeOf[T](),
		Required: true,
	}, "")
	if err != nil {
		return zero, err
	}
	v, ok := obj.(T)
	if !ok {
		return zero, &NotOfRequiredTypeError{
			Required: TypeOf[T](),
			Actual:   reflect.TypeOf(obj),
		}
	}
	return v, nil
}
