package core

import (
	"fmt"
	"reflect"

	"github.com/gocrud/ioc/artifact"
)

// Runtime 是框架的上帝对象，作为状态容器
type Runtime struct {
	// Features 存放构建时特性 (WebBuilder, DbBuilder 等)
	Features FeatureCollection

	// Container 核心工件容器
	Container *artifact.Container

	// Lifecycle 生命周期管理
	Lifecycle *LifecycleEvents

	// shutdownCh 用于通知应用退出
	shutdownCh chan struct{}

	// ErrorHandler 用于记录运行时产生的严重错误
	// 外部可以通过设置此字段来接管错误日志
	ErrorHandler func(err error)
}

// NewRuntime 创建一个新的运行时实例
func NewRuntime() *Runtime {
	return &Runtime{
		Container:  artifact.NewContainer(),
		Lifecycle:  NewLifecycle(),
		shutdownCh: make(chan struct{}),
		ErrorHandler: func(err error) {
			// 默认输出到标准输出
			fmt.Printf("[Runtime Error] %v\n", err)
		},
	}
}

// Shutdown 请求应用退出
// 调用此方法会触发应用关闭流程
func (rt *Runtime) Shutdown() {
	select {
	case <-rt.shutdownCh:
		// 已经关闭，无需操作
	default:
		close(rt.shutdownCh)
	}
}

// Done 返回一个通道，当应用需要退出时该通道会关闭
func (rt *Runtime) Done() <-chan struct{} {
	return rt.shutdownCh
}

// Provide 注册服务提供者 (语法糖)
// target 可以是构造函数或实例，以目标类型名注册为单例定义。
// 返回注册名称，便于调用方后续按名称解析。
func (rt *Runtime) Provide(target any, opts ...artifact.Option) (string, error) {
	if target == nil {
		return "", fmt.Errorf("core: Provide target must not be nil")
	}

	targetType := reflect.TypeOf(target)
	all := make([]artifact.Option, 0, len(opts)+1)

	if targetType.Kind() == reflect.Func {
		if targetType.NumOut() == 0 {
			return "", fmt.Errorf("core: constructor %T has no return value", target)
		}
		all = append(all, artifact.WithConstructor(target))
		targetType = targetType.Out(0)
	} else {
		all = append(all, artifact.WithInstance(target))
	}
	all = append(all, opts...)

	name := serviceName(targetType)
	if err := rt.Container.RegisterDefinition(name, all...); err != nil {
		return "", err
	}
	return name, nil
}

// Invoke 调用函数并按类型注入参数 (语法糖)
// 函数的最后一个返回值若为 error 将被透传
func (rt *Runtime) Invoke(function any) error {
	fnValue := reflect.ValueOf(function)
	fnType := fnValue.Type()
	if fnType.Kind() != reflect.Func {
		return fmt.Errorf("core: Invoke target must be a function, got %T", function)
	}

	args := make([]reflect.Value, fnType.NumIn())
	for i := 0; i < fnType.NumIn(); i++ {
		dep, err := rt.Container.ResolveDependency(artifact.DependencyDescriptor{
			Type:     fnType.In(i),
			Required: true,
		}, "")
		if err != nil {
			return fmt.Errorf("core: failed to resolve argument %d of %s: %w", i, fnType.String(), err)
		}
		args[i] = reflect.ValueOf(dep)
	}

	results := fnValue.Call(args)
	if len(results) > 0 {
		if last := results[len(results)-1]; last.Type() == reflect.TypeOf((*error)(nil)).Elem() {
			if !last.IsNil() {
				return last.Interface().(error)
			}
		}
	}
	return nil
}

// Apply 应用多个 Option
func (rt *Runtime) Apply(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(rt); err != nil {
			return err
		}
	}
	return nil
}

// As 是一个辅助函数，将注册定义的目标类型绑定到接口 T
// 这是一个转发，为了让 core 包的使用者不需要直接引入 artifact 包
func As[T any]() artifact.Option {
	return artifact.Typed[T]()
}
