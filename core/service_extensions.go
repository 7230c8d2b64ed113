package core

import (
	"reflect"

	"github.com/gocrud/ioc/artifact"
)

// ScopeNameScoped 作用域服务的作用域名称
// 构建时注册到容器，关闭时统一销毁作用域内实例
const ScopeNameScoped = "scoped"

// serviceName 按类型生成服务的注册名称
func serviceName(t reflect.Type) string {
	return t.String()
}

// registerTyped 以 T 的类型名注册 impl（实例或构造函数）
func registerTyped[T any](s *ServiceCollection, impl any, extra ...artifact.Option) {
	opts := make([]artifact.Option, 0, len(extra)+2)
	opts = append(opts, artifact.Typed[T]())

	if reflect.TypeOf(impl).Kind() == reflect.Func {
		opts = append(opts, artifact.WithConstructor(impl))
	} else {
		opts = append(opts, artifact.WithInstance(impl))
	}
	opts = append(opts, extra...)

	name := serviceName(artifact.TypeOf[T]())
	if err := s.container.RegisterDefinition(name, opts...); err != nil {
		panic(err)
	}
}

// AddSingleton 将接口 T 绑定到实现 impl，并注册为单例
// impl 可以是实例，也可以是构造函数
//
// 示例:
//
//	core.AddSingleton[IService](services, NewServiceImpl)
func AddSingleton[T any](s *ServiceCollection, impl any) {
	registerTyped[T](s, impl, artifact.WithSingleton())
}

// AddTransient 将接口 T 绑定到实现 impl，每次解析创建新实例
// impl 可以是实例，也可以是构造函数
//
// 示例:
//
//	core.AddTransient[IWorker](services, NewWorker)
func AddTransient[T any](s *ServiceCollection, impl any) {
	registerTyped[T](s, impl, artifact.WithPrototype())
}

// AddScoped 将接口 T 绑定到实现 impl，并注册为作用域服务
// impl 可以是实例，也可以是构造函数
//
// 示例:
//
//	core.AddScoped[IRequestScope](services, NewRequestScope)
func AddScoped[T any](s *ServiceCollection, impl any) {
	registerTyped[T](s, impl, artifact.WithScope(ScopeNameScoped))
}
