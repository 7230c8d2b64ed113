package artifact

import "reflect"

// Option 配置工件定义。
type Option func(*Definition)

// WithScope 设置作用域名称。
func WithScope(scope string) Option {
	return func(d *Definition) {
		d.Scope = scope
	}
}

// WithSingleton 将作用域设置为 singleton（默认）。
func WithSingleton() Option {
	return WithScope(ScopeSingleton)
}

// WithPrototype 将作用域设置为 prototype。
func WithPrototype() Option {
	return WithScope(ScopePrototype)
}

// WithType 设置目标类型。
func WithType(typ reflect.Type) Option {
	return func(d *Definition) {
		d.Type = typ
	}
}

// WithTypeName 设置延迟解析的目标类型名。
func WithTypeName(name string) Option {
	return func(d *Definition) {
		d.TypeName = name
	}
}

// WithParent 设置父定义名称。
func WithParent(name string) Option {
	return func(d *Definition) {
		d.Parent = name
	}
}

// WithAbstract 标记定义为抽象（只能被继承，不能实例化）。
func WithAbstract() Option {
	return func(d *Definition) {
		d.Abstract = true
	}
}

// WithLazyInit 标记定义为延迟初始化。
func WithLazyInit() Option {
	return func(d *Definition) {
		d.LazyInit = true
	}
}

// WithPrimary 标记定义为类型匹配的首选候选。
func WithPrimary() Option {
	return func(d *Definition) {
		d.Primary = true
	}
}

// WithQualifier 设置限定符。
func WithQualifier(q string) Option {
	return func(d *Definition) {
		d.Qualifier = q
	}
}

// WithOrder 设置排序元数据（数值越小优先级越高）。
func WithOrder(order int) Option {
	return func(d *Definition) {
		d.Order = order
		d.OrderSet = true
	}
}

// WithAutowireCandidate 设置是否参与按类型自动装配。
func WithAutowireCandidate(candidate bool) Option {
	return func(d *Definition) {
		d.AutowireCandidate = candidate
	}
}

// WithDependsOn 追加 depends-on 名称。
func WithDependsOn(names ...string) Option {
	return func(d *Definition) {
		d.DependsOn = append(d.DependsOn, names...)
	}
}

// WithConstructor 注册构造函数。参数将按类型自动装配，
// 除非通过 WithConstructorArgs 提供显式参数。
func WithConstructor(fn any) Option {
	return func(d *Definition) {
		d.Constructor = fn
	}
}

// WithConstructorArgs 提供显式构造参数。
// 元素可为字面量、Ref(name) 或 Nested(def)。
func WithConstructorArgs(args ...any) Option {
	return func(d *Definition) {
		d.ConstructorArgs = append(d.ConstructorArgs, args...)
	}
}

// WithProperty 追加字面量属性。
func WithProperty(name string, value any) Option {
	return func(d *Definition) {
		d.SetProperty(name, value)
	}
}

// WithPropertyRef 追加引用属性（注入另一个命名工件）。
func WithPropertyRef(name, refName string) Option {
	return func(d *Definition) {
		d.SetProperty(name, RefValue{Name: refName})
	}
}

// WithFactoryMethod 通过另一个工件的方法创建实例。
func WithFactoryMethod(factoryName, method string) Option {
	return func(d *Definition) {
		d.FactoryName = factoryName
		d.FactoryMethod = method
	}
}

// WithInstance 注册预构建实例（跳过实例化阶段）。
// 默认不对实例执行字段注入，需要时配合 WithFieldInjection。
func WithInstance(v any) Option {
	return func(d *Definition) {
		d.Instance = v
		d.HasInstance = true
		d.InjectFields = false
		if d.Type == nil && v != nil {
			d.Type = reflect.TypeOf(v)
		}
	}
}

// WithFieldInjection 设置是否执行 di 标签字段注入。
func WithFieldInjection(inject bool) Option {
	return func(d *Definition) {
		d.InjectFields = inject
	}
}

// WithInit 设置初始化回调。
func WithInit(fn func(obj any) error) Option {
	return func(d *Definition) {
		d.InitFunc = fn
	}
}

// WithDestroy 设置销毁回调。
func WithDestroy(fn func(obj any)) Option {
	return func(d *Definition) {
		d.DestroyFunc = fn
	}
}

// WithSynthetic 标记定义为容器合成。
func WithSynthetic() Option {
	return func(d *Definition) {
		d.Synthetic = true
	}
}

// Ref 构造对命名工件的引用值。
func Ref(name string) RefValue {
	return RefValue{Name: name}
}

// Nested 构造匿名嵌套定义值。
func Nested(def *Definition) NestedValue {
	return NestedValue{Definition: def}
}

// TypeOf 获取类型 T 的 reflect.Type（泛型辅助函数）。
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Typed 设置目标类型为 T 的泛型便捷选项。
func Typed[T any]() Option {
	return WithType(TypeOf[T]())
}
