package artifact

import (
	"fmt"
	"reflect"
)

// 作用域名称。除内置的 singleton 和 prototype 外，
// 还可以通过 Container.RegisterScope 注册自定义作用域。
const (
	// ScopeSingleton 每个容器（按名称）只存在一个实例。
	ScopeSingleton = "singleton"
	// ScopePrototype 每次请求创建一个新实例。
	ScopePrototype = "prototype"
)

// FactoryPrefix 解引用前缀。
// 以此前缀请求一个工厂工件时，返回工厂本身而非其产品。
const FactoryPrefix = "&"

// RefValue 表示对另一个已命名工件的引用。
// 出现在属性值或构造参数中时，解析阶段会替换为目标实例。
type RefValue struct {
	Name string
}

// NestedValue 表示一个匿名的嵌套定义。
// 嵌套定义不注册到登记表，每次使用时重新合并并创建，
// 其实例作为外层工件的内部对象参与销毁级联。
type NestedValue struct {
	Definition *Definition
}

// PropertyValue 待注入的单个属性。
// Value 可以是字面量、RefValue 或 NestedValue。
type PropertyValue struct {
	Name  string
	Value any
}

// Definition 工件的声明式配方。
// 定义在首次合并并实例化之前是可变的；之后对其的修改
// 需要通过 Container.InvalidateMerged 使合并缓存失效才会生效。
type Definition struct {
	// Type 目标类型。与 TypeName 二选一，Type 优先。
	Type reflect.Type

	// TypeName 延迟解析的目标类型名，通过容器的类型解析器解析。
	TypeName string

	// Scope 作用域名称。为空表示继承父定义，链上都未设置时默认 singleton。
	Scope string

	// Parent 父定义名称，用于定义继承。
	Parent string

	// Abstract 抽象定义不能直接实例化，只能被继承。
	Abstract bool

	// LazyInit 延迟初始化，预实例化扫描时跳过。
	LazyInit bool

	// Primary 类型匹配出现多个候选时优先选择。
	Primary bool

	// AutowireCandidate 是否参与按类型的自动装配，默认 true。
	AutowireCandidate bool

	// Qualifier 限定符，供限定符感知的注入点匹配。
	Qualifier string

	// Order 排序元数据，用于集合注入的排序以及优先级裁决。
	Order int
	// OrderSet 标记 Order 是否被显式设置。
	OrderSet bool

	// DependsOn 必须先于本工件创建、晚于本工件销毁的名称列表。
	DependsOn []string

	// ConstructorArgs 显式构造参数。元素可为字面量、RefValue 或 NestedValue。
	// 为空时构造函数参数按类型自动装配。
	ConstructorArgs []any

	// Properties 实例化后注入的属性列表。
	Properties []PropertyValue

	// Constructor 构造函数 func(deps...) (T) 或 (T, error)。
	Constructor any

	// FactoryName 工厂工件名称。设置后通过该工件的 FactoryMethod 方法创建实例。
	FactoryName string

	// FactoryMethod 工厂方法名，在 FactoryName 实例上反射调用。
	FactoryMethod string

	// Instance 预构建实例。设置后跳过实例化阶段直接使用。
	Instance any
	// HasInstance 区分 Instance 为 nil 与未设置。
	HasInstance bool

	// InjectFields 是否对实例执行 di 标签字段注入。
	// 对非 Instance 定义默认启用。
	InjectFields bool

	// InitFunc 初始化回调，在属性注入完成后调用。
	InitFunc func(obj any) error

	// DestroyFunc 销毁回调，在容器关闭或显式销毁时调用。
	DestroyFunc func(obj any)

	// Synthetic 容器内部合成的定义（如基础设施对象），
	// 跳过工厂产品缓存等面向用户定义的处理。
	Synthetic bool
}

// NewDefinition 创建定义并应用选项。
// 默认作用域为空（合并时回落到 singleton），自动装配候选为 true。
func NewDefinition(opts ...Option) *Definition {
	d := &Definition{
		AutowireCandidate: true,
		InjectFields:      true,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Clone 返回定义的深拷贝（切片独立，回调与类型共享）。
func (d *Definition) Clone() *Definition {
	clone := *d
	if d.DependsOn != nil {
		clone.DependsOn = append([]string(nil), d.DependsOn...)
	}
	if d.ConstructorArgs != nil {
		clone.ConstructorArgs = append([]any(nil), d.ConstructorArgs...)
	}
	if d.Properties != nil {
		clone.Properties = append([]PropertyValue(nil), d.Properties...)
	}
	return &clone
}

// HasParent 报告定义是否声明了父定义。
func (d *Definition) HasParent() bool {
	return d.Parent != ""
}

// SetProperty 设置或覆盖同名属性。
func (d *Definition) SetProperty(name string, value any) {
	for i := range d.Properties {
		if d.Properties[i].Name == name {
			d.Properties[i].Value = value
			return
		}
	}
	d.Properties = append(d.Properties, PropertyValue{Name: name, Value: value})
}

// PropertyNamed 按名称查找属性。
func (d *Definition) PropertyNamed(name string) (PropertyValue, bool) {
	for _, pv := range d.Properties {
		if pv.Name == name {
			return pv, true
		}
	}
	return PropertyValue{}, false
}

// String 返回便于日志输出的简要描述。
func (d *Definition) String() string {
	switch {
	case d.Type != nil:
		return fmt.Sprintf("Definition(type=%v, scope=%s)", d.Type, d.Scope)
	case d.TypeName != "":
		return fmt.Sprintf("Definition(typeName=%s, scope=%s)", d.TypeName, d.Scope)
	case d.Parent != "":
		return fmt.Sprintf("Definition(parent=%s, scope=%s)", d.Parent, d.Scope)
	default:
		return fmt.Sprintf("Definition(scope=%s)", d.Scope)
	}
}

// MergedDefinition 扁平化后的可用定义。
// 由定义与其父链合并产生，并缓存派生事实（解析后的类型、
// 是否为工厂工件）以避免重复的反射开销。
type MergedDefinition struct {
	Definition

	// containing 非 nil 表示这是嵌套定义的合并结果，永不缓存。
	containing *MergedDefinition

	// 派生缓存。重新合并时仅在类型/工厂标识未变时条件性前移。
	resolvedType reflect.Type
	isFactory    *bool
}

// ResolvedScope 返回生效作用域，未设置时为 singleton。
func (md *MergedDefinition) ResolvedScope() string {
	if md.Scope == "" {
		return ScopeSingleton
	}
	return md.Scope
}

// IsSingleton 报告合并后作用域是否为 singleton。
func (md *MergedDefinition) IsSingleton() bool {
	return md.ResolvedScope() == ScopeSingleton
}

// IsPrototype 报告合并后作用域是否为 prototype。
func (md *MergedDefinition) IsPrototype() bool {
	return md.ResolvedScope() == ScopePrototype
}

// sameTypeIdentity 报告两个合并结果的类型/工厂标识是否一致，
// 一致时派生缓存可以安全前移。
func (md *MergedDefinition) sameTypeIdentity(other *MergedDefinition) bool {
	return md.Type == other.Type &&
		md.TypeName == other.TypeName &&
		md.FactoryName == other.FactoryName &&
		md.FactoryMethod == other.FactoryMethod
}
